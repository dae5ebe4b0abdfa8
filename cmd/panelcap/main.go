package main

import (
	"fmt"
	"os"
)

// Build variables set by ldflags
var (
	buildVersion string
	buildCommit  string
	buildTime    string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
