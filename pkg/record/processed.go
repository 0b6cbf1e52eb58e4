package record

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nainya/standardstore/internal/fsutil"
)

// ProcessedSet is the persisted form of one tree's records.
type ProcessedSet struct {
	Records []Record `json:"records"`
}

// Save writes the set to path atomically: readers see either the previous
// file or the complete new one.
func (p *ProcessedSet) Save(path string) error {
	if p.Records == nil {
		p.Records = []Record{}
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode processed set: %w", err)
	}

	return fsutil.WriteFileAtomic(path, data)
}

// Load reads a processed set from disk.
func Load(path string) (*ProcessedSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var p ProcessedSet
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &p, nil
}
