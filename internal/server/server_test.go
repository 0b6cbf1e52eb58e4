// Integration tests for the StandardStore gRPC server
package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nainya/standardstore/internal/metrics"
	"github.com/nainya/standardstore/pkg/datastore"
	"github.com/nainya/standardstore/pkg/index"
	"github.com/nainya/standardstore/pkg/tools"
)

const bufSize = 1024 * 1024

const setDoc = `{"data": {
  "id": "%s", "title": "Grade 3 Math", "subject": "Mathematics", "educationLevels": ["03"],
  "license": {"title": "CC", "URL": "u", "rightsHolder": "r"},
  "document": {"id": "D", "title": "T", "valid": "2010"},
  "jurisdiction": {"id": "J", "title": "Common Core"},
  "standards": {
    "R": {"id": "R", "position": 0, "depth": 0, "description": "Math", "parentId": null},
    "C": {"id": "C", "position": 1, "depth": 1, "description": "Count", "parentId": "R"}%s
  }
}}`

type fakeIndex struct {
	hits    []index.Hit
	records map[string]map[string]any
	stats   *index.Stats
	err     error
}

func (f *fakeIndex) Search(context.Context, index.Query) ([]index.Hit, error) {
	return f.hits, f.err
}

func (f *fakeIndex) Fetch(_ context.Context, id string) (map[string]any, error) {
	if md, ok := f.records[id]; ok {
		return md, nil
	}
	return nil, fmt.Errorf("%w: %s", index.ErrNotFound, id)
}

func (f *fakeIndex) Stats(context.Context) (*index.Stats, error) {
	return f.stats, f.err
}

func writeSet(t *testing.T, store *datastore.Store, id, extra string) {
	t.Helper()
	path := store.RawSetPath(id)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(setDoc, id, extra)), 0o644))
}

func setupTestServer(t *testing.T, ix *fakeIndex) (*Client, *datastore.Store, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	store := datastore.New(t.TempDir(), nil)

	srv, err := NewServer(Deps{
		Tools:   tools.NewService(ix, tools.Defaults{}, nil),
		Stats:   ix,
		Store:   store,
		Metrics: m,
	})
	require.NoError(t, err)

	lis := bufconn.Listen(bufSize)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(GrpcMetricsInterceptor(m, nil)))
	RegisterStandardStoreServer(grpcServer, srv)
	go func() { _ = grpcServer.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		grpcServer.Stop()
		_ = lis.Close()
	})
	return NewClient(conn), store, reg
}

func TestGetStandard(t *testing.T) {
	client, _, _ := setupTestServer(t, &fakeIndex{records: map[string]map[string]any{
		"A": {"_id": "A", "content": "Count", "depth": float64(1)},
	}})
	ctx := context.Background()

	resp, err := client.GetStandard(ctx, "A")
	require.NoError(t, err)
	m := resp.AsMap()
	assert.Equal(t, true, m["success"])
	results := m["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "Count", results[0].(map[string]any)["content"])

	_, err = client.GetStandard(ctx, "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetStandard(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestFindRelevantStandards(t *testing.T) {
	ix := &fakeIndex{hits: []index.Hit{{ID: "A", Score: 0.5, Content: "Count", Metadata: map[string]any{"subject": "Math"}}}}
	client, _, _ := setupTestServer(t, ix)
	ctx := context.Background()

	resp, err := client.FindRelevantStandards(ctx, "counting", 3, "03")
	require.NoError(t, err)
	assert.Equal(t, "Found 1 matching standards", resp.AsMap()["message"])

	_, err = client.FindRelevantStandards(ctx, "counting", 3, "PK")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	ix.hits = nil
	resp, err = client.FindRelevantStandards(ctx, "counting", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "no_results", resp.AsMap()["error_type"])
}

func TestGetIndexStats(t *testing.T) {
	ix := &fakeIndex{stats: &index.Stats{Name: "idx", Namespace: "standards", Total: 7, Namespaces: map[string]int64{"standards": 7}}}
	client, _, _ := setupTestServer(t, ix)

	resp, err := client.GetIndexStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(7), resp.AsMap()["total_record_count"])

	ix.stats, ix.err = nil, index.ErrNotInitialized
	_, err = client.GetIndexStats(context.Background())
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestProcessSet(t *testing.T) {
	client, store, _ := setupTestServer(t, &fakeIndex{})
	ctx := context.Background()

	writeSet(t, store, "S1", "")
	resp, err := client.ProcessSet(ctx, "S1")
	require.NoError(t, err)
	m := resp.AsMap()
	assert.Equal(t, true, m["complete"])
	assert.Equal(t, float64(2), m["processed"])
	assert.FileExists(t, store.ProcessedPath("S1"))

	_, err = client.ProcessSet(ctx, "nope")
	assert.Equal(t, codes.NotFound, status.Code(err))

	writeSet(t, store, "BAD", `, "X": {"id": "X", "depth": 2, "description": "no position", "parentId": "C"}`)
	_, err = client.ProcessSet(ctx, "BAD")
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.NoFileExists(t, store.ProcessedPath("BAD"))

	_, err = client.ProcessSet(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestProcessSetRejectsTraversalID(t *testing.T) {
	client, store, _ := setupTestServer(t, &fakeIndex{})
	ctx := context.Background()

	// raw/standardSets/../../escaped resolves to <root>/escaped
	escaped := filepath.Join(store.Root(), "escaped")
	require.NoError(t, os.MkdirAll(escaped, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(escaped, "data.json"), []byte(fmt.Sprintf(setDoc, "E", "")), 0o644))

	for _, id := range []string{"../../escaped", "..", ".", "a/b", `a\b`} {
		_, err := client.ProcessSet(ctx, id)
		assert.Equal(t, codes.InvalidArgument, status.Code(err), id)
	}
	assert.NoFileExists(t, filepath.Join(escaped, "processed.json"))
}

func TestNewServerRequiresDeps(t *testing.T) {
	_, err := NewServer(Deps{})
	assert.Error(t, err)
}

func TestObservabilityEndpoints(t *testing.T) {
	client, _, reg := setupTestServer(t, &fakeIndex{stats: &index.Stats{}})
	_, err := client.GetIndexStats(context.Background())
	require.NoError(t, err)

	var notReady atomic.Bool
	notReady.Store(true)
	srv := httptest.NewServer(observabilityMux(reg, func(context.Context) error {
		if notReady.Load() {
			return index.ErrNotInitialized
		}
		return nil
	}))
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"healthy","service":"standardstore"}`, body)

	code, _ = get("/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	notReady.Store(false)
	code, _ = get("/ready")
	assert.Equal(t, http.StatusOK, code)

	code, body = get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `standardstore_grpc_requests_total{method="/standardstore.v1.StandardStore/GetIndexStats",status="OK"} 1`)
}
