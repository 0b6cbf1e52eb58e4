package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/standardstore/pkg/index"
)

type fakeIndex struct {
	hits    []index.Hit
	records map[string]map[string]any
	err     error
	last    index.Query
}

func (f *fakeIndex) Search(_ context.Context, q index.Query) ([]index.Hit, error) {
	f.last = q
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeIndex) Fetch(_ context.Context, id string) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	md, ok := f.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", index.ErrNotFound, id)
	}
	return md, nil
}

func TestFindRelevantStandards(t *testing.T) {
	ix := &fakeIndex{hits: []index.Hit{{
		ID:      "A",
		Score:   0.9,
		Content: "Depth 0: Math\nDepth 1: Count",
		Metadata: map[string]any{
			"subject":            "Mathematics",
			"education_levels":   []any{"K"},
			"standard_set_title": "Kindergarten",
			"statement_notation": "K.CC.1",
			"depth":              float64(1),
		},
	}}}
	s := NewService(ix, Defaults{}, nil)

	resp := s.FindRelevantStandards(context.Background(), "  counting blocks ", 0, "K")
	require.True(t, resp.Success)
	assert.Empty(t, resp.ErrorType)
	assert.Equal(t, "Found 1 matching standards", resp.Message)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "A", resp.Results[0]["_id"])
	assert.Equal(t, "K.CC.1", resp.Results[0]["statement_notation"])
	_, hasDepth := resp.Results[0]["depth"]
	assert.False(t, hasDepth)

	assert.Equal(t, "counting blocks", ix.last.Text)
	assert.Equal(t, 5, ix.last.TopK)
	assert.Equal(t, "K", ix.last.Grade)
}

func TestFindRelevantStandardsValidation(t *testing.T) {
	s := NewService(&fakeIndex{}, Defaults{}, nil)

	resp := s.FindRelevantStandards(context.Background(), "   ", 5, "")
	assert.False(t, resp.Success)
	assert.Equal(t, InvalidInput, resp.ErrorType)

	resp = s.FindRelevantStandards(context.Background(), "fractions", 5, "13")
	assert.Equal(t, InvalidInput, resp.ErrorType)

	resp = s.FindRelevantStandards(context.Background(), "fractions", 5, "")
	assert.Equal(t, NoResults, resp.ErrorType)
	assert.NotNil(t, resp.Results)
}

func TestClampResults(t *testing.T) {
	ix := &fakeIndex{}
	s := NewService(ix, Defaults{Results: 5, MaxResults: 20}, nil)
	assert.Equal(t, 5, s.ClampResults(0))
	assert.Equal(t, 5, s.ClampResults(-3))
	assert.Equal(t, 7, s.ClampResults(7))
	assert.Equal(t, 20, s.ClampResults(500))

	s.FindRelevantStandards(context.Background(), "x", 99, "09-12")
	assert.Equal(t, 20, ix.last.TopK)
	assert.Equal(t, "09-12", ix.last.Grade)
}

func TestIndexFailureIsAPIError(t *testing.T) {
	s := NewService(&fakeIndex{err: errors.New("disk full")}, Defaults{}, nil)

	resp := s.FindRelevantStandards(context.Background(), "x", 1, "")
	assert.Equal(t, APIError, resp.ErrorType)
	assert.Contains(t, resp.Message, "disk full")

	resp = s.GetStandardDetails(context.Background(), "A")
	assert.Equal(t, APIError, resp.ErrorType)
}

func TestGetStandardDetails(t *testing.T) {
	ix := &fakeIndex{records: map[string]map[string]any{
		"A": {"_id": "A", "content": "Count"},
	}}
	s := NewService(ix, Defaults{}, nil)

	resp := s.GetStandardDetails(context.Background(), " A ")
	require.True(t, resp.Success)
	assert.Equal(t, "Count", resp.Results[0]["content"])

	resp = s.GetStandardDetails(context.Background(), "K.CC.1")
	assert.Equal(t, NotFound, resp.ErrorType)
	assert.Contains(t, resp.Message, "find_relevant_standards")

	resp = s.GetStandardDetails(context.Background(), "")
	assert.Equal(t, InvalidInput, resp.ErrorType)
}

func TestResponseJSON(t *testing.T) {
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(Response{Success: true, Message: "ok"}.JSON()), &got))
	assert.Equal(t, []any{}, got["results"])
	_, hasType := got["error_type"]
	assert.False(t, hasType)

	require.NoError(t, json.Unmarshal([]byte(failure(NoResults, "none").JSON()), &got))
	assert.Equal(t, "no_results", got["error_type"])
	assert.Equal(t, false, got["success"])
}

func TestValidGrade(t *testing.T) {
	for _, g := range []string{"K", "01", "08", "12", "09-12"} {
		assert.True(t, ValidGrade(g), g)
	}
	for _, g := range []string{"", "k", "1", "13", "PK"} {
		assert.False(t, ValidGrade(g), g)
	}
}
