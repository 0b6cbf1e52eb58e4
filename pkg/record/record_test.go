package record

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rootRecord() Record {
	return Record{
		ID:                "R",
		Content:           "Depth 0: Math",
		StandardSetID:     "SET1",
		StandardSetTitle:  "Grade 3",
		Subject:           "Mathematics",
		EducationLevels:   []string{"03"},
		DocumentID:        "DOC1",
		DocumentValid:     "2010",
		JurisdictionID:    "J1",
		JurisdictionTitle: "Common Core",
		IsRoot:            true,
		RootID:            "R",
		AncestorIDs:       []string{},
		ChildIDs:          []string{"C1"},
	}
}

func TestRecordJSONOmitsAbsentOptionals(t *testing.T) {
	data, err := json.Marshal(rootRecord())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	for _, key := range []string{"statement_notation", "statement_label", "asn_identifier", "normalized_subject", "publication_status"} {
		assert.NotContains(t, m, key)
	}
	require.Contains(t, m, "parent_id")
	assert.Nil(t, m["parent_id"])
	assert.Equal(t, []any{}, m["ancestor_ids"])
	assert.Equal(t, "R", m["_id"])
}

func TestRecordJSONPresentOptionals(t *testing.T) {
	r := rootRecord()
	parent := "P"
	r.ParentID = &parent
	r.IsRoot = false
	r.StatementNotation = "1.1"
	r.StatementLabel = "Standard"
	r.PublicationStatus = "Published"

	data, err := json.Marshal(r)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	assert.Equal(t, "P", m["parent_id"])
	assert.Equal(t, "1.1", m["statement_notation"])
	assert.Equal(t, "Standard", m["statement_label"])
	assert.Equal(t, "Published", m["publication_status"])
}

func TestMetadataDropsNullParent(t *testing.T) {
	m, err := rootRecord().Metadata()
	require.NoError(t, err)
	assert.NotContains(t, m, "parent_id")
	assert.Equal(t, true, m["is_root"])
}

func TestHasLevel(t *testing.T) {
	r := rootRecord()
	assert.True(t, r.HasLevel("03"))
	assert.False(t, r.HasLevel("3"))
}

func TestProcessedSetSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "processed.json")
	set := &ProcessedSet{Records: []Record{rootRecord()}}
	require.NoError(t, set.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Records, 1)
	assert.Equal(t, set.Records[0], loaded.Records[0])
	assert.Nil(t, loaded.Records[0].ParentID)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSaveEmptySet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.json")
	require.NoError(t, (&ProcessedSet{}).Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, loaded.Records)
}
