// ABOUTME: Batch orchestration over a whole standard set
// ABOUTME: Maps are built once, every node is transformed once, failures are summarised

package processor

import (
	"errors"
	"fmt"

	"github.com/nainya/standardstore/pkg/record"
	"github.com/nainya/standardstore/pkg/standards"
)

// Options controls a processing run.
type Options struct {
	// FailFast aborts on the first invalid node instead of collecting failures.
	FailFast bool
	// AllowPartial lets ProcessFile persist a tree with failed nodes.
	AllowPartial bool
}

// Summary counts the outcome of a processing run.
type Summary struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failed_ids"`
}

// Result holds the records of one tree in source key order.
type Result struct {
	SetID    string
	Records  []record.Record
	Failures []*ValidationError
	Summary  Summary
	Leaves   int
}

// Complete reports whether every node produced a record.
func (r *Result) Complete() bool {
	return r.Summary.Failed == 0
}

// ProcessedSet returns the records in their persisted shape.
func (r *Result) ProcessedSet() *record.ProcessedSet {
	return &record.ProcessedSet{Records: r.Records}
}

// Process transforms every node of tree. Invalid nodes are reported in the
// summary; with FailFast the first one aborts the run and no records are returned.
func Process(tree *standards.Tree, opts Options) (*Result, error) {
	if tree == nil {
		return nil, errors.New("processor: nil standard set")
	}

	maps := BuildMaps(tree.Standards)
	tr := NewTransformer(tree, maps)

	res := &Result{
		SetID:   tree.ID,
		Records: make([]record.Record, 0, maps.Len()),
		Summary: Summary{Total: maps.Len(), FailedIDs: []string{}},
		Leaves:  maps.LeafCount(),
	}
	for idx := range maps.nodes {
		rec, err := tr.transformAt(uint32(idx))
		if err != nil {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				return nil, err
			}
			res.Failures = append(res.Failures, verr)
			res.Summary.Failed++
			res.Summary.FailedIDs = append(res.Summary.FailedIDs, verr.NodeID)
			if opts.FailFast {
				return nil, &BatchError{SetID: tree.ID, Summary: res.Summary, Cause: verr}
			}
			continue
		}
		res.Records = append(res.Records, rec)
		res.Summary.Succeeded++
	}
	return res, nil
}

// ProcessFile loads a raw set document, processes it and saves the records
// to outPath. A tree with failed nodes is not written unless AllowPartial is
// set; the result is still returned alongside the *BatchError.
func ProcessFile(dataPath, outPath string, opts Options) (*Result, error) {
	tree, err := standards.LoadTreeFile(dataPath)
	if err != nil {
		return nil, err
	}
	res, err := Process(tree, opts)
	if err != nil {
		return nil, err
	}
	if !res.Complete() && !opts.AllowPartial {
		return res, &BatchError{SetID: tree.ID, Summary: res.Summary}
	}
	if err := res.ProcessedSet().Save(outPath); err != nil {
		return res, fmt.Errorf("save %s: %w", tree.ID, err)
	}
	return res, nil
}
