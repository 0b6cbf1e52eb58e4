package index

import (
	"context"
	"fmt"
	"time"

	"github.com/nainya/standardstore/internal/retry"
	"github.com/nainya/standardstore/pkg/record"
)

// UpsertError reports a batch that could not be written.
type UpsertError struct {
	Batch     int // 1-based
	Attempts  int
	Retryable bool
	Err       error
}

func (e *UpsertError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retries exhausted"
	}
	return fmt.Sprintf("upsert batch %d failed after %d attempt(s) (%s): %v", e.Batch, e.Attempts, kind, e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }

// UploaderOptions configures batching and retry.
type UploaderOptions struct {
	BatchSize  int           // records per batch, default 96
	MaxRetries int           // attempts per batch, default 5
	MaxBackoff time.Duration // backoff cap, default 60s
	BatchPause time.Duration // pause between batches, default 100ms
	// Sleep waits between attempts and batches; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Uploader embeds and writes records in ordered batches.
type Uploader struct {
	ix   *Index
	opts UploaderOptions
}

// UploadResult summarises an upload.
type UploadResult struct {
	Records int
	Batches int
	Retries int
}

// NewUploader returns an uploader writing to ix.
func NewUploader(ix *Index, opts UploaderOptions) *Uploader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 96
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 60 * time.Second
	}
	if opts.BatchPause < 0 {
		opts.BatchPause = 0
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.Sleep
	}
	return &Uploader{ix: ix, opts: opts}
}

// Backoff is the delay before retry attempt+1: min(2^attempt seconds, max).
func Backoff(attempt int, max time.Duration) time.Duration {
	return retry.Backoff(attempt, time.Second, max)
}

// Upload writes recs in batches of BatchSize, preserving input order. Each
// batch runs one retry sequence; a batch that fails stops the upload and
// earlier batches stay written.
func (u *Uploader) Upload(ctx context.Context, recs []record.Record) (*UploadResult, error) {
	res := &UploadResult{}
	if len(recs) == 0 {
		u.ix.log.Info("No records to upsert").Send()
		return res, nil
	}

	total := (len(recs) + u.opts.BatchSize - 1) / u.opts.BatchSize
	u.ix.log.Info("Upserting records").
		Int("records", len(recs)).
		Int("batches", total).
		Int("batch_size", u.opts.BatchSize).
		Send()

	for start, n := 0, 1; start < len(recs); start, n = start+u.opts.BatchSize, n+1 {
		end := min(start+u.opts.BatchSize, len(recs))
		batch := recs[start:end]

		t0 := time.Now()
		attempts, err := u.upsertBatch(ctx, n, batch)
		u.ix.log.LogBatchUpsert(n, total, len(batch), attempts, time.Since(t0), err)
		res.Retries += attempts - 1
		if err != nil {
			u.ix.metrics.RecordUpsertBatch("error", 0, attempts-1)
			return res, err
		}
		u.ix.metrics.RecordUpsertBatch("success", len(batch), attempts-1)
		res.Batches++
		res.Records += len(batch)

		if end < len(recs) {
			if err := u.opts.Sleep(ctx, u.opts.BatchPause); err != nil {
				return res, err
			}
		}
	}

	u.ix.log.Info("Upserted records").Int("records", res.Records).Send()
	return res, nil
}

func (u *Uploader) upsertBatch(ctx context.Context, n int, batch []record.Record) (int, error) {
	texts := make([]string, len(batch))
	for i, r := range batch {
		texts[i] = r.Content
	}

	for attempt := 0; ; attempt++ {
		err := u.tryBatch(ctx, batch, texts)
		if err == nil {
			return attempt + 1, nil
		}
		if ctx.Err() != nil {
			return attempt + 1, ctx.Err()
		}
		if !Retryable(err) {
			return attempt + 1, &UpsertError{Batch: n, Attempts: attempt + 1, Err: err}
		}
		if attempt == u.opts.MaxRetries-1 {
			return attempt + 1, &UpsertError{Batch: n, Attempts: attempt + 1, Retryable: true, Err: err}
		}

		delay := Backoff(attempt, u.opts.MaxBackoff)
		u.ix.log.Warn("Retryable upsert error").
			Int("batch", n).
			Int("attempt", attempt+1).
			Int("max_attempts", u.opts.MaxRetries).
			Dur("delay", delay).
			Err(err).
			Send()
		if err := u.opts.Sleep(ctx, delay); err != nil {
			return attempt + 1, err
		}
	}
}

func (u *Uploader) tryBatch(ctx context.Context, batch []record.Record, texts []string) error {
	embs, err := u.ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	return u.ix.write(ctx, batch, embs)
}
