// ABOUTME: Flat, search-ready record produced for every standard node
// ABOUTME: JSON member names are fixed because index consumers match on them

package record

import (
	"encoding/json"
	"fmt"
)

// Record is one denormalized standard. Optional string members are omitted
// when empty; ParentID is always emitted and is null for roots.
type Record struct {
	ID                string   `json:"_id"`
	Content           string   `json:"content"`
	StandardSetID     string   `json:"standard_set_id"`
	StandardSetTitle  string   `json:"standard_set_title"`
	Subject           string   `json:"subject"`
	NormalizedSubject string   `json:"normalized_subject,omitempty"`
	EducationLevels   []string `json:"education_levels"`
	DocumentID        string   `json:"document_id"`
	DocumentValid     string   `json:"document_valid"`
	PublicationStatus string   `json:"publication_status,omitempty"`
	JurisdictionID    string   `json:"jurisdiction_id"`
	JurisdictionTitle string   `json:"jurisdiction_title"`
	ASNIdentifier     string   `json:"asn_identifier,omitempty"`
	StatementNotation string   `json:"statement_notation,omitempty"`
	StatementLabel    string   `json:"statement_label,omitempty"`
	Depth             int      `json:"depth"`
	IsLeaf            bool     `json:"is_leaf"`
	IsRoot            bool     `json:"is_root"`
	ParentID          *string  `json:"parent_id"`
	RootID            string   `json:"root_id"`
	AncestorIDs       []string `json:"ancestor_ids"`
	ChildIDs          []string `json:"child_ids"`
	SiblingCount      int      `json:"sibling_count"`
}

// MarshalJSON guarantees list members encode as [] rather than null.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	p := plain(r)
	if p.EducationLevels == nil {
		p.EducationLevels = []string{}
	}
	if p.AncestorIDs == nil {
		p.AncestorIDs = []string{}
	}
	if p.ChildIDs == nil {
		p.ChildIDs = []string{}
	}
	return json.Marshal(p)
}

// Metadata returns the record as a flat map for index storage. Index
// metadata cannot hold null, so a root's parent_id is dropped here.
func (r Record) Metadata() (map[string]any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", r.ID, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", r.ID, err)
	}
	if m["parent_id"] == nil {
		delete(m, "parent_id")
	}
	return m, nil
}

// HasLevel reports whether the record is tagged with the given education level.
func (r Record) HasLevel(level string) bool {
	for _, l := range r.EducationLevels {
		if l == level {
			return true
		}
	}
	return false
}
