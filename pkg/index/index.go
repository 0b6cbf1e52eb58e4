// ABOUTME: SQLite-backed vector index of processed standard records
// ABOUTME: Schema setup, stats, batch writes and direct lookup by id

package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nainya/standardstore/internal/logger"
	"github.com/nainya/standardstore/internal/metrics"
	"github.com/nainya/standardstore/pkg/record"
)

var (
	// ErrNotFound is returned by Fetch for an unknown id.
	ErrNotFound = errors.New("index: record not found")
	// ErrNotInitialized is returned when the schema has not been created yet.
	ErrNotInitialized = errors.New("index: not initialized, run index-init first")
)

// Options configures an Index.
type Options struct {
	Path      string
	Name      string
	Namespace string
	Embedder  Embedder
	// Model is stored with each vector; search only compares vectors of the same model.
	Model string
	// Threshold is the minimum cosine similarity of a search candidate.
	Threshold float64
	// CandidateFactor multiplies TopK to size the candidate pool before reranking.
	CandidateFactor int
	Logger          *logger.Logger
	Metrics         *metrics.Metrics
}

// Index stores records with their embeddings in one namespace of a SQLite file.
type Index struct {
	db              *sql.DB
	name            string
	namespace       string
	embedder        Embedder
	model           string
	threshold       float64
	candidateFactor int
	log             *logger.Logger
	metrics         *metrics.Metrics
}

// Stats describes the contents of the index.
type Stats struct {
	Name       string           `json:"name"`
	Namespace  string           `json:"namespace"`
	Total      int64            `json:"total_record_count"`
	Namespaces map[string]int64 `json:"namespaces"`
	Dimension  int              `json:"dimension"`
}

// Open opens (or creates) the database file. The schema is created by Init.
func Open(opts Options) (*Index, error) {
	if opts.Embedder == nil {
		return nil, errors.New("index: Embedder must not be nil")
	}
	if opts.Path == "" {
		return nil, errors.New("index: empty path")
	}
	if opts.Namespace == "" {
		opts.Namespace = "standards"
	}
	if opts.CandidateFactor <= 0 {
		opts.CandidateFactor = 2
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	dsn := opts.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	return &Index{
		db:              db,
		name:            opts.Name,
		namespace:       opts.Namespace,
		embedder:        opts.Embedder,
		model:           opts.Model,
		threshold:       opts.Threshold,
		candidateFactor: opts.CandidateFactor,
		log:             logger.OrNop(opts.Logger).IndexLogger(opts.Namespace),
		metrics:         opts.Metrics,
	}, nil
}

// Close closes the database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Namespace returns the namespace this index reads and writes.
func (ix *Index) Namespace() string { return ix.namespace }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS records (
		namespace  TEXT NOT NULL,
		id         TEXT NOT NULL,
		set_id     TEXT NOT NULL,
		is_leaf    INTEGER NOT NULL,
		levels     TEXT NOT NULL DEFAULT '[]',
		content    TEXT NOT NULL,
		metadata   TEXT NOT NULL,
		embedding  BLOB,
		model      TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (namespace, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_leaf ON records(namespace, is_leaf)`,
	`CREATE INDEX IF NOT EXISTS idx_records_set ON records(namespace, set_id)`,
	`CREATE TABLE IF NOT EXISTS index_info (
		name       TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	)`,
}

// Init creates the schema. It is idempotent and reports whether anything was created.
func (ix *Index) Init(ctx context.Context) (bool, error) {
	exists, err := ix.initialized(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		ix.log.Info("Index already exists").Str("name", ix.name).Send()
		return false, nil
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return false, fmt.Errorf("create schema: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO index_info (name, created_at) VALUES (?, ?)`,
		ix.name, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return false, fmt.Errorf("record index info: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	ix.log.Info("Index created").Str("name", ix.name).Send()
	return true, nil
}

func (ix *Index) initialized(ctx context.Context) (bool, error) {
	var n int
	err := ix.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'records'`,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check schema: %w", err)
	}
	return n > 0, nil
}

func (ix *Index) requireInit(ctx context.Context) error {
	ok, err := ix.initialized(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotInitialized
	}
	return nil
}

// Stats returns record counts for every namespace.
func (ix *Index) Stats(ctx context.Context) (*Stats, error) {
	if err := ix.requireInit(ctx); err != nil {
		return nil, err
	}

	rows, err := ix.db.QueryContext(ctx, `SELECT namespace, COUNT(*) FROM records GROUP BY namespace`)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	st := &Stats{Name: ix.name, Namespace: ix.namespace, Namespaces: map[string]int64{}}
	for rows.Next() {
		var ns string
		var n int64
		if err := rows.Scan(&ns, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		st.Namespaces[ns] = n
		st.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}

	var blob []byte
	err = ix.db.QueryRowContext(ctx,
		`SELECT embedding FROM records WHERE namespace = ? AND embedding IS NOT NULL LIMIT 1`, ix.namespace,
	).Scan(&blob)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read dimension: %w", err)
	}
	st.Dimension = len(blob) / 8

	ix.metrics.UpdateIndexStats(st.Namespaces[ix.namespace])
	return st, nil
}

// Fetch returns the stored metadata of one record by its id.
func (ix *Index) Fetch(ctx context.Context, id string) (map[string]any, error) {
	if err := ix.requireInit(ctx); err != nil {
		ix.metrics.RecordLookup("error")
		return nil, err
	}

	var raw string
	err := ix.db.QueryRowContext(ctx,
		`SELECT metadata FROM records WHERE namespace = ? AND id = ?`, ix.namespace, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		ix.metrics.RecordLookup("not_found")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		ix.metrics.RecordLookup("error")
		return nil, fmt.Errorf("fetch %s: %w", id, err)
	}

	var md map[string]any
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		ix.metrics.RecordLookup("error")
		return nil, fmt.Errorf("decode metadata of %s: %w", id, err)
	}
	ix.metrics.RecordLookup("found")
	return md, nil
}

// write stores one embedded batch in a single transaction, replacing
// records with the same id.
func (ix *Index) write(ctx context.Context, recs []record.Record, embs [][]float64) error {
	if len(recs) != len(embs) {
		return fmt.Errorf("index: %d records but %d embeddings", len(recs), len(embs))
	}
	if err := ix.requireInit(ctx); err != nil {
		return err
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO records
		(namespace, id, set_id, is_leaf, levels, content, metadata, embedding, model, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC().Format(time.RFC3339)
	for i, r := range recs {
		md, err := r.Metadata()
		if err != nil {
			return err
		}
		mdJSON, err := json.Marshal(md)
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", r.ID, err)
		}
		levels := r.EducationLevels
		if levels == nil {
			levels = []string{}
		}
		levelsJSON, err := json.Marshal(levels)
		if err != nil {
			return fmt.Errorf("encode levels of %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			ix.namespace, r.ID, r.StandardSetID, r.IsLeaf, string(levelsJSON), r.Content,
			string(mdJSON), embeddingToBlob(embs[i]), ix.model, now,
		); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}
