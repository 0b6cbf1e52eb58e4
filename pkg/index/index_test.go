package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/standardstore/pkg/record"
)

// hashEmbedder maps each token to one of dim buckets, so texts sharing words are similar.
type hashEmbedder struct {
	dim int

	mu    sync.Mutex
	calls int
	fail  func(call int) error
}

func (h *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	h.mu.Lock()
	h.calls++
	call := h.calls
	h.mu.Unlock()
	if h.fail != nil {
		if err := h.fail(call); err != nil {
			return nil, err
		}
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v := make([]float64, h.dim)
		for _, w := range tokenize(t) {
			f := fnv.New32a()
			_, _ = f.Write([]byte(w))
			v[int(f.Sum32())%h.dim]++
		}
		out[i] = v
	}
	return out, nil
}

func setupTestIndex(t *testing.T, emb Embedder) *Index {
	t.Helper()
	ix, err := Open(Options{
		Path:      filepath.Join(t.TempDir(), "index.db"),
		Name:      "test-index",
		Namespace: "standards",
		Embedder:  emb,
		Model:     "hash",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })

	created, err := ix.Init(context.Background())
	require.NoError(t, err)
	require.True(t, created)
	return ix
}

func noSleep(context.Context, time.Duration) error { return nil }

func rec(id, content string, leaf bool, levels ...string) record.Record {
	parent := "P"
	return record.Record{
		ID:              id,
		Content:         content,
		StandardSetID:   "S1",
		Subject:         "Mathematics",
		EducationLevels: levels,
		Depth:           1,
		IsLeaf:          leaf,
		ParentID:        &parent,
		RootID:          "P",
		AncestorIDs:     []string{"P"},
	}
}

func TestInitIsIdempotent(t *testing.T) {
	ix := setupTestIndex(t, &hashEmbedder{dim: 16})
	created, err := ix.Init(context.Background())
	require.NoError(t, err)
	assert.False(t, created)
}

func TestNotInitialized(t *testing.T) {
	ix, err := Open(Options{Path: filepath.Join(t.TempDir(), "x.db"), Embedder: &hashEmbedder{dim: 4}})
	require.NoError(t, err)
	defer ix.Close()

	_, err = ix.Stats(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = ix.Fetch(context.Background(), "A")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestUploadFetchAndStats(t *testing.T) {
	ix := setupTestIndex(t, &hashEmbedder{dim: 16})
	ctx := context.Background()

	root := rec("P", "Depth 0: Numbers", false, "03")
	root.ParentID = nil
	root.IsRoot = true
	recs := []record.Record{root, rec("A", "Depth 1: Count to 100", true, "03")}

	res, err := NewUploader(ix, UploaderOptions{Sleep: noSleep}).Upload(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, 1, res.Batches)

	md, err := ix.Fetch(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "Depth 1: Count to 100", md["content"])
	assert.Equal(t, "P", md["parent_id"])

	md, err = ix.Fetch(ctx, "P")
	require.NoError(t, err)
	_, hasParent := md["parent_id"]
	assert.False(t, hasParent, "null parent_id is not stored")

	_, err = ix.Fetch(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	st, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Total)
	assert.Equal(t, int64(2), st.Namespaces["standards"])
	assert.Equal(t, 16, st.Dimension)

	// Re-uploading replaces rather than duplicates.
	_, err = NewUploader(ix, UploaderOptions{Sleep: noSleep}).Upload(ctx, recs)
	require.NoError(t, err)
	st, err = ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Total)
}

func TestUploadBatchesInOrder(t *testing.T) {
	emb := &hashEmbedder{dim: 8}
	ix := setupTestIndex(t, emb)

	var recs []record.Record
	for i := 0; i < 10; i++ {
		recs = append(recs, rec(fmt.Sprintf("R%02d", i), fmt.Sprintf("standard %d", i), true))
	}

	var pauses []time.Duration
	up := NewUploader(ix, UploaderOptions{
		BatchSize:  4,
		BatchPause: 100 * time.Millisecond,
		Sleep: func(_ context.Context, d time.Duration) error {
			pauses = append(pauses, d)
			return nil
		},
	})
	res, err := up.Upload(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, 10, res.Records)
	assert.Equal(t, 3, emb.calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, pauses)
}

func TestUploadRetriesTransientErrors(t *testing.T) {
	emb := &hashEmbedder{dim: 8, fail: func(call int) error {
		if call <= 2 {
			return &StatusError{Backend: "test", StatusCode: http.StatusTooManyRequests}
		}
		return nil
	}}
	ix := setupTestIndex(t, emb)

	var delays []time.Duration
	up := NewUploader(ix, UploaderOptions{Sleep: func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}})
	res, err := up.Upload(context.Background(), []record.Record{rec("A", "x", true)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Retries)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestUploadGivesUpAfterMaxRetries(t *testing.T) {
	emb := &hashEmbedder{dim: 8, fail: func(int) error {
		return &StatusError{Backend: "test", StatusCode: http.StatusServiceUnavailable}
	}}
	ix := setupTestIndex(t, emb)

	up := NewUploader(ix, UploaderOptions{MaxRetries: 3, Sleep: noSleep})
	_, err := up.Upload(context.Background(), []record.Record{rec("A", "x", true)})

	var ue *UpsertError
	require.True(t, errors.As(err, &ue))
	assert.True(t, ue.Retryable)
	assert.Equal(t, 3, ue.Attempts)
	assert.Equal(t, 1, ue.Batch)
	assert.Equal(t, 3, emb.calls)
}

func TestUploadFatalErrorNotRetried(t *testing.T) {
	emb := &hashEmbedder{dim: 8, fail: func(int) error {
		return &StatusError{Backend: "test", StatusCode: http.StatusBadRequest}
	}}
	ix := setupTestIndex(t, emb)

	_, err := NewUploader(ix, UploaderOptions{Sleep: noSleep}).Upload(context.Background(), []record.Record{rec("A", "x", true)})
	var ue *UpsertError
	require.True(t, errors.As(err, &ue))
	assert.False(t, ue.Retryable)
	assert.Equal(t, 1, emb.calls)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, Backoff(0, time.Minute))
	assert.Equal(t, 8*time.Second, Backoff(3, time.Minute))
	assert.Equal(t, time.Minute, Backoff(6, time.Minute))
	assert.Equal(t, time.Minute, Backoff(40, time.Minute))
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &StatusError{StatusCode: 429}, true},
		{"server error", fmt.Errorf("wrapped: %w", &StatusError{StatusCode: 502}), true},
		{"bad request", &StatusError{StatusCode: 400}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("validation failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestSearchLeafOnlyWithGrade(t *testing.T) {
	ix := setupTestIndex(t, &hashEmbedder{dim: 64})
	ctx := context.Background()

	recs := []record.Record{
		rec("PARENT", "fractions fractions fractions", false, "03"),
		rec("G3", "understand fractions as numbers on a number line", true, "03"),
		rec("G4", "compare two fractions with different numerators", true, "04"),
		rec("G5", "write and interpret numerical expressions", true, "05"),
	}
	_, err := NewUploader(ix, UploaderOptions{Sleep: noSleep}).Upload(ctx, recs)
	require.NoError(t, err)

	hits, err := ix.Search(ctx, Query{Text: "fractions", TopK: 5})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	for _, h := range hits {
		assert.NotEqual(t, "PARENT", h.ID, "non-leaf records are never returned")
	}
	assert.Contains(t, []string{"G3", "G4"}, hits[0].ID)

	hits, err = ix.Search(ctx, Query{Text: "fractions", TopK: 5, Grade: "04"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "G4", hits[0].ID)
	assert.Equal(t, "Mathematics", hits[0].Metadata["subject"])

	hits, err = ix.Search(ctx, Query{Text: "fractions", TopK: 1})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = ix.Search(ctx, Query{Text: "fractions", Grade: "K"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchEmptyQuery(t *testing.T) {
	ix := setupTestIndex(t, &hashEmbedder{dim: 8})
	_, err := ix.Search(context.Background(), Query{Text: "  "})
	assert.Error(t, err)
}

func TestRerankPrefersTermCoverage(t *testing.T) {
	cands := []candidate{
		{hit: Hit{ID: "A", VectorScore: 0.80}, content: "measure length"},
		{hit: Hit{ID: "B", VectorScore: 0.75}, content: "measure and estimate liquid volumes"},
	}
	hits := rerank("estimate liquid volumes", cands)
	require.Len(t, hits, 2)
	assert.Equal(t, "B", hits[0].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestLexicalScore(t *testing.T) {
	assert.Zero(t, lexicalScore("anything", nil))
	assert.Zero(t, lexicalScore("count objects", []string{"fractions"}))
	one := lexicalScore("fractions", []string{"fractions"})
	two := lexicalScore("fractions and more fractions", []string{"fractions"})
	assert.Greater(t, two, one)
	assert.Less(t, two, 1.0)
	assert.Equal(t, []string{"add", "within"}, queryTerms("Add within 20, add!"))
}

func TestBlobRoundTrip(t *testing.T) {
	v := []float64{0, 1.5, -2.25}
	assert.Equal(t, v, blobToEmbedding(embeddingToBlob(v)))
	assert.InDelta(t, 1.0, cosineSimilarity(v, v), 1e-9)
	assert.Zero(t, cosineSimilarity(v, []float64{1}))
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Input[0] == "busy" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		out := make([][]float64, len(req.Input))
		for i := range out {
			out[i] = []float64{float64(i), 1}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "embeddings": out})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL+"/", "", time.Second)
	assert.Equal(t, "nomic-embed-text", e.Model)

	embs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 1}, {1, 1}}, embs)

	_, err = e.Embed(context.Background(), []string{"busy"})
	require.Error(t, err)
	assert.True(t, Retryable(err))
}
