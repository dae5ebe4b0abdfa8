package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestShort(t *testing.T) {
	tests := []struct {
		name    string
		version string
		commit  string
		want    string
	}{
		{
			name:    "all values provided",
			version: "v1.0.0",
			commit:  "abcdef1234567890",
			want:    "v1.0.0-abcdef1",
		},
		{
			name:    "short commit",
			version: "v1.0.0",
			commit:  "abc",
			want:    "v1.0.0-abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.version, tt.commit, "").Short()
			if got != tt.want {
				t.Errorf("Short() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	info := New("", "", "")
	if info.Version != "dev" {
		t.Errorf("Version = %q, want dev", info.Version)
	}
	if info.Commit == "" || info.BuildTime == "" {
		t.Error("Commit and BuildTime should never be empty")
	}
	if info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("Platform = %q", info.Platform)
	}
}

func TestString(t *testing.T) {
	result := New("v1.0.0", "abcdef1234567890", "2024-01-01T00:00:00Z").String()

	for _, want := range []string{
		"panelcap",
		"Version:    v1.0.0",
		"Commit:     abcdef1234567890",
		"Built:      2024-01-01T00:00:00Z",
		"Go version:",
		"OS/Arch:",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("String() should contain %q", want)
		}
	}
}
