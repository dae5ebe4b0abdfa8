// Package ingest decodes artifact sets dropped into an inbox directory and
// stores each result as a panel record.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/mscrnt/panelcap/internal/logging"
	"github.com/mscrnt/panelcap/pkg/db"
	"github.com/mscrnt/panelcap/pkg/metrics"
	"github.com/mscrnt/panelcap/pkg/panelinfo"
)

// Inbox layout
const (
	LockFile     = ".panelcap.lock"
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Ingest results, also used as metric labels
const (
	ResultProcessed = "processed"
	ResultFailed    = "failed"
)

// ErrLocked is returned when another process holds the inbox lock
var ErrLocked = errors.New("inbox is locked by another process")

// ErrDuplicateArtifact marks a set with two files of one format
var ErrDuplicateArtifact = errors.New("duplicate artifact format")

// Store is the subset of the panel database the scanner writes to
type Store interface {
	CreatePanel(name string, paths db.ArtifactPaths, info *panelinfo.Info) (*db.Panel, error)
}

// Set is the group of artifacts in the inbox that share a stem.
// Duplicates holds further files of a format the set already has, e.g.
// a.txt next to a.dpcd.
type Set struct {
	Stem       string
	EDID       string
	VBT        string
	DPCD       string
	Duplicates []string
}

// Files returns the non-empty paths of the set, duplicates included
func (s Set) Files() []string {
	var files []string
	for _, p := range []string{s.EDID, s.VBT, s.DPCD} {
		if p != "" {
			files = append(files, p)
		}
	}
	return append(files, s.Duplicates...)
}

// Conflict reports a set holding more than one file of the same format
func (s Set) Conflict() error {
	if len(s.Duplicates) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.Files()))
	for _, p := range s.Files() {
		names = append(names, filepath.Base(p))
	}
	return fmt.Errorf("%w: set %q has %s", ErrDuplicateArtifact, s.Stem, strings.Join(names, ", "))
}

// Result summarizes one scan
type Result struct {
	Processed int
	Failed    int
	Panels    []*db.Panel
}

// Scanner processes one inbox directory
type Scanner struct {
	inbox  string
	store  Store
	parser *panelinfo.Parser
	logger *zap.Logger
}

// NewScanner creates a scanner over inbox. A nil logger discards output.
func NewScanner(inbox string, store Store, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ingest")
	return &Scanner{
		inbox:  inbox,
		store:  store,
		parser: panelinfo.NewParser(logger, panelinfo.WithDecodeHook(metrics.ObserveDecode)),
		logger: logger,
	}
}

// Inbox returns the watched directory
func (s *Scanner) Inbox() string {
	return s.inbox
}

// Run decodes every complete set in the inbox once. Decoded sets move to
// processed/, sets that fail to decode move to failed/ next to a .error
// file holding the reason.
func (s *Scanner) Run(ctx context.Context) (*Result, error) {
	for _, dir := range []string{s.inbox, filepath.Join(s.inbox, ProcessedDir), filepath.Join(s.inbox, FailedDir)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create inbox directory: %w", err)
		}
	}

	lock := flock.New(filepath.Join(s.inbox, LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release inbox lock", zap.Error(err))
		}
	}()

	sets, err := Discover(s.inbox)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, set := range sets {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		panel, err := s.process(set)
		if err != nil {
			result.Failed++
			metrics.RecordIngest(ResultFailed)
			s.logger.Warn("artifact set failed",
				zap.String("stem", set.Stem),
				zap.Error(err),
			)
			if moveErr := s.fail(set, err); moveErr != nil {
				s.logger.Error("failed to move set to failed/", zap.String("stem", set.Stem), zap.Error(moveErr))
			}
			continue
		}

		result.Processed++
		result.Panels = append(result.Panels, panel)
		metrics.RecordIngest(ResultProcessed)
		metrics.RecordPanelSaved()
		s.logger.Info("artifact set ingested",
			zap.String("stem", set.Stem),
			zap.Int64(logging.FieldPanelID, panel.ID),
			zap.String("parse_id", panel.ParseID),
		)
		if err := moveFiles(set.Files(), filepath.Join(s.inbox, ProcessedDir)); err != nil {
			s.logger.Error("failed to move set to processed/", zap.String("stem", set.Stem), zap.Error(err))
		}
	}

	return result, nil
}

func (s *Scanner) process(set Set) (*db.Panel, error) {
	if err := set.Conflict(); err != nil {
		return nil, err
	}
	info, err := s.parser.ParseAll(set.EDID, set.VBT, set.DPCD)
	if err != nil {
		return nil, err
	}
	if len(info.Sources) == 0 {
		return nil, fmt.Errorf("no artifact in set %q could be decoded", set.Stem)
	}

	paths := db.ArtifactPaths{
		EDID: baseName(set.EDID),
		VBT:  baseName(set.VBT),
		DPCD: baseName(set.DPCD),
	}
	return s.store.CreatePanel(set.Stem, paths, info)
}

func (s *Scanner) fail(set Set, reason error) error {
	dir := filepath.Join(s.inbox, FailedDir)
	if err := moveFiles(set.Files(), dir); err != nil {
		return err
	}
	msg := fmt.Sprintf("%s\n%v\n", time.Now().UTC().Format(time.RFC3339), reason)
	return os.WriteFile(filepath.Join(dir, set.Stem+".error"), []byte(msg), 0o600)
}

// Discover groups the regular files directly under inbox into sets by stem.
// Dotfiles and unrecognised extensions are ignored. When a stem has two
// files of one format the first by name fills the slot and the rest land
// in Duplicates.
func Discover(inbox string) ([]Set, error) {
	entries, err := os.ReadDir(inbox)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}

	byStem := map[string]*Set{}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || !e.Type().IsRegular() {
			continue
		}
		stem, kind := Classify(name)
		if kind == "" {
			continue
		}
		set, ok := byStem[stem]
		if !ok {
			set = &Set{Stem: stem}
			byStem[stem] = set
		}
		path := filepath.Join(inbox, name)
		var slot *string
		switch kind {
		case panelinfo.FormatEDID:
			slot = &set.EDID
		case panelinfo.FormatVBT:
			slot = &set.VBT
		case panelinfo.FormatDPCD:
			slot = &set.DPCD
		}
		if *slot != "" {
			set.Duplicates = append(set.Duplicates, path)
			continue
		}
		*slot = path
	}

	sets := make([]Set, 0, len(byStem))
	for _, set := range byStem {
		sets = append(sets, *set)
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].Stem < sets[j].Stem })
	return sets, nil
}

// Classify maps a file name to its set stem and artifact format
func Classify(name string) (stem, format string) {
	lower := strings.ToLower(name)
	for _, m := range []struct{ ext, format string }{
		{".dpcd.txt", panelinfo.FormatDPCD},
		{".dpcd", panelinfo.FormatDPCD},
		{".txt", panelinfo.FormatDPCD},
		{".edid", panelinfo.FormatEDID},
		{".bin", panelinfo.FormatEDID},
		{".vbt", panelinfo.FormatVBT},
	} {
		if strings.HasSuffix(lower, m.ext) && len(name) > len(m.ext) {
			return name[:len(name)-len(m.ext)], m.format
		}
	}
	return "", ""
}

func moveFiles(files []string, dir string) error {
	var errs []error
	for _, src := range files {
		dst := filepath.Join(dir, filepath.Base(src))
		if _, err := os.Stat(dst); err == nil {
			dst += "." + time.Now().UTC().Format("20060102T150405.000")
		}
		if err := os.Rename(src, dst); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
