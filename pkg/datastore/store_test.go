package datastore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/standardstore/pkg/processor"
)

const setDoc = `{"data": {
  "id": "%s",
  "title": "Grade 3 Math",
  "subject": "Mathematics",
  "educationLevels": ["03"],
  "license": {"title": "CC", "URL": "u", "rightsHolder": "r"},
  "document": {"id": "D", "title": "T", "valid": "2010"},
  "jurisdiction": {"id": "J", "title": "Common Core"},
  "standards": {
    "R": {"id": "R", "position": 0, "depth": 0, "description": "Math", "parentId": null},
    "C": {"id": "C", "position": 1, "depth": 1, "description": "Count", "statementNotation": "3.A", "parentId": "R"}
  }
}}`

func writeSet(t *testing.T, s *Store, id, body string) {
	t.Helper()
	path := s.RawSetPath(id)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), nil)
}

func TestLayout(t *testing.T) {
	s := New("/data", nil)
	assert.Equal(t, filepath.Join("/data", "raw", "jurisdictions.json"), s.JurisdictionsPath())
	assert.Equal(t, filepath.Join("/data", "raw", "jurisdictions", "J1", "data.json"), s.JurisdictionPath("J1"))
	assert.Equal(t, filepath.Join("/data", "raw", "standardSets", "S1", "data.json"), s.RawSetPath("S1"))
	assert.Equal(t, filepath.Join("/data", "raw", "standardSets", "S1", "processed.json"), s.ProcessedPath("S1"))
	assert.Equal(t, filepath.Join("/data", "raw", "standardSets", "S1", ".index_uploaded"), s.MarkerPath("S1"))
}

func TestListSets(t *testing.T) {
	s := setupTestStore(t)

	sets, err := s.ListSets()
	require.NoError(t, err)
	assert.Empty(t, sets)

	writeSet(t, s, "S2", fmt.Sprintf(setDoc, "S2"))
	writeSet(t, s, "S1", fmt.Sprintf(setDoc, "S1"))
	writeSet(t, s, "BROKEN", `{"data":`)

	_, err = s.ProcessSet("S1", processor.Options{})
	require.NoError(t, err)
	require.NoError(t, s.MarkUploaded("S1", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))

	sets, err = s.ListSets()
	require.NoError(t, err)
	require.Len(t, sets, 2)

	assert.Equal(t, "S1", sets[0].ID)
	assert.True(t, sets[0].Processed)
	assert.True(t, sets[0].Uploaded)
	assert.Equal(t, 2024, sets[0].UploadedAt.Year())
	assert.Equal(t, "Unknown", sets[0].PublicationStatus)
	assert.Equal(t, "Common Core", sets[0].Jurisdiction)

	assert.Equal(t, "S2", sets[1].ID)
	assert.False(t, sets[1].Processed)
	assert.False(t, sets[1].Uploaded)
}

func TestProcessAndLoad(t *testing.T) {
	s := setupTestStore(t)
	writeSet(t, s, "S1", fmt.Sprintf(setDoc, "S1"))

	res, err := s.ProcessSet("S1", processor.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.Succeeded)

	set, err := s.LoadProcessed("S1")
	require.NoError(t, err)
	require.Len(t, set.Records, 2)
	assert.Equal(t, "Depth 0: Math\nDepth 1 (3.A): Count", set.Records[1].Content)
}

func TestProcessMissingSet(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.ProcessSet("nope", processor.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestUploadMarker(t *testing.T) {
	s := setupTestStore(t)
	assert.False(t, s.IsUploaded("S1"))

	now := time.Now()
	require.NoError(t, s.MarkUploaded("S1", now))
	assert.True(t, s.IsUploaded("S1"))

	at, ok := s.UploadedAt("S1")
	require.True(t, ok)
	assert.WithinDuration(t, now, at, time.Second)

	require.NoError(t, s.ClearUploaded("S1"))
	assert.False(t, s.IsUploaded("S1"))
	require.NoError(t, s.ClearUploaded("S1"))
}

func TestCache(t *testing.T) {
	s := setupTestStore(t)
	path := s.JurisdictionPath("J1")

	_, ok := s.ReadCache(path)
	assert.False(t, ok)

	require.NoError(t, s.WriteCache(path, []byte(`{"data":{}}`)))
	data, ok := s.ReadCache(path)
	require.True(t, ok)
	assert.JSONEq(t, `{"data":{}}`, string(data))
}

func TestValidateID(t *testing.T) {
	for _, id := range []string{"S1", "49FCDFBD2CF04033A9C347BFA0584DF0_D2604890_grade-03", "..."} {
		assert.NoError(t, ValidateID(id), id)
	}
	for _, id := range []string{"", ".", "..", "../S1", "a/b", `a\b`, "../../../outside", "a\x00b"} {
		assert.ErrorIs(t, ValidateID(id), ErrInvalidID, id)
	}
}

func TestTraversalIDStaysInsideDataDir(t *testing.T) {
	base := t.TempDir()
	s := New(filepath.Join(base, "data"), nil)

	outside := filepath.Join(base, "outside")
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "data.json"), []byte(fmt.Sprintf(setDoc, "X")), 0o644))

	id := "../../../outside"
	_, err := s.ProcessSet(id, processor.Options{})
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.NoFileExists(t, filepath.Join(outside, "processed.json"))

	_, err = s.ReadRaw(id)
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = s.LoadProcessed(id)
	assert.ErrorIs(t, err, ErrInvalidID)

	assert.ErrorIs(t, s.MarkUploaded(id, time.Now()), ErrInvalidID)
	assert.NoFileExists(t, filepath.Join(outside, ".index_uploaded"))
	assert.ErrorIs(t, s.ClearUploaded(id), ErrInvalidID)
	assert.False(t, s.IsUploaded(id))
	_, ok := s.UploadedAt(id)
	assert.False(t, ok)
}
