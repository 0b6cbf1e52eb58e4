// ABOUTME: Local data layout for downloaded and processed standard sets
// ABOUTME: Raw API cache, processed record files and index upload markers

package datastore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nainya/standardstore/internal/fsutil"
	"github.com/nainya/standardstore/internal/logger"
	"github.com/nainya/standardstore/pkg/processor"
	"github.com/nainya/standardstore/pkg/record"
	"github.com/nainya/standardstore/pkg/standards"
)

const (
	rawDir          = "raw"
	setsDir         = "standardSets"
	jurisdictionDir = "jurisdictions"
	dataFile        = "data.json"
	processedFile   = "processed.json"
	markerFile      = ".index_uploaded"
)

// ErrInvalidID is returned for set or jurisdiction ids that cannot name a
// single directory under the data root.
var ErrInvalidID = errors.New("datastore: invalid id")

// ValidateID rejects ids that are empty, dot segments or contain a path
// separator, so every id maps to exactly one child of its parent directory.
func ValidateID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	case strings.ContainsAny(id, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidID, id)
	case strings.ContainsRune(id, 0):
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidID, id)
	}
	return nil
}

// Store resolves paths under one data directory.
type Store struct {
	root string
	log  *logger.Logger
}

// New returns a store rooted at root. A nil logger discards warnings.
func New(root string, log *logger.Logger) *Store {
	return &Store{root: root, log: logger.OrNop(log)}
}

// Root returns the data directory.
func (s *Store) Root() string { return s.root }

// JurisdictionsPath is the cached jurisdiction list.
func (s *Store) JurisdictionsPath() string {
	return filepath.Join(s.root, rawDir, "jurisdictions.json")
}

// JurisdictionPath is the cached details document of one jurisdiction.
func (s *Store) JurisdictionPath(id string) string {
	return filepath.Join(s.root, rawDir, jurisdictionDir, id, dataFile)
}

// SetDir is the directory holding everything about one standard set. The
// path helpers do not validate; operations that touch the disk do.
func (s *Store) SetDir(id string) string {
	return filepath.Join(s.root, rawDir, setsDir, id)
}

// RawSetPath is the downloaded API document of a set.
func (s *Store) RawSetPath(id string) string {
	return filepath.Join(s.SetDir(id), dataFile)
}

// ProcessedPath is the processed record list of a set.
func (s *Store) ProcessedPath(id string) string {
	return filepath.Join(s.SetDir(id), processedFile)
}

// MarkerPath is the upload marker of a set.
func (s *Store) MarkerPath(id string) string {
	return filepath.Join(s.SetDir(id), markerFile)
}

// ReadCache returns the cached document at path, if any.
func (s *Store) ReadCache(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("Failed to read cache").Str("path", path).Err(err).Send()
		}
		return nil, false
	}
	return data, true
}

// WriteCache stores a document at path atomically.
func (s *Store) WriteCache(path string, data []byte) error {
	return fsutil.WriteFileAtomic(path, data)
}

// ReadRaw returns the downloaded document of a set.
func (s *Store) ReadRaw(id string) ([]byte, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.RawSetPath(id))
	if err != nil {
		return nil, fmt.Errorf("standard set %s: %w", id, err)
	}
	return data, nil
}

// ProcessSet turns the downloaded document of a set into processed.json.
func (s *Store) ProcessSet(id string, opts processor.Options) (*processor.Result, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	return processor.ProcessFile(s.RawSetPath(id), s.ProcessedPath(id), opts)
}

// LoadProcessed reads the processed records of a set.
func (s *Store) LoadProcessed(id string) (*record.ProcessedSet, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	return record.Load(s.ProcessedPath(id))
}

// IsUploaded reports whether the set carries an upload marker.
func (s *Store) IsUploaded(id string) bool {
	if ValidateID(id) != nil {
		return false
	}
	_, err := os.Stat(s.MarkerPath(id))
	return err == nil
}

// MarkUploaded records that the set was written to the index at t.
func (s *Store) MarkUploaded(id string, t time.Time) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(s.MarkerPath(id), []byte(t.UTC().Format(time.RFC3339)))
}

// ClearUploaded removes the upload marker of a set.
func (s *Store) ClearUploaded(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	err := os.Remove(s.MarkerPath(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// UploadedAt returns the time stored in the upload marker.
func (s *Store) UploadedAt(id string) (time.Time, bool) {
	if ValidateID(id) != nil {
		return time.Time{}, false
	}
	data, err := os.ReadFile(s.MarkerPath(id))
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetInfo summarises one downloaded standard set.
type SetInfo struct {
	ID                string
	Title             string
	Subject           string
	EducationLevels   []string
	Jurisdiction      string
	PublicationStatus string
	ValidYear         string
	Processed         bool
	Uploaded          bool
	UploadedAt        time.Time
}

// ListSets returns every downloaded set sorted by id. Sets whose document
// cannot be read are skipped with a warning.
func (s *Store) ListSets() ([]SetInfo, error) {
	dir := filepath.Join(s.root, rawDir, setsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var sets []SetInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		path := s.RawSetPath(id)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		tree, err := standards.LoadTreeFile(path)
		if err != nil {
			s.log.Warn("Skipping unreadable standard set").Str("path", path).Err(err).Send()
			continue
		}

		status := tree.Document.PublicationStatus
		if status == "" {
			status = "Unknown"
		}
		info := SetInfo{
			ID:                tree.ID,
			Title:             tree.Title,
			Subject:           tree.Subject,
			EducationLevels:   tree.EducationLevels,
			Jurisdiction:      tree.Jurisdiction.Title,
			PublicationStatus: status,
			ValidYear:         tree.Document.Valid,
			Processed:         fileExists(s.ProcessedPath(id)),
		}
		info.UploadedAt, info.Uploaded = s.UploadedAt(id)
		sets = append(sets, info)
	}

	sort.Slice(sets, func(i, j int) bool { return sets[i].ID < sets[j].ID })
	return sets, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
