// ABOUTME: Record transformer merging node fields, hierarchy facts and set metadata
// ABOUTME: Pure function of node + maps + tree; invalid nodes fail with a named error

package processor

import (
	"slices"

	"github.com/nainya/standardstore/pkg/record"
	"github.com/nainya/standardstore/pkg/standards"
)

// Transformer builds records for the nodes of one tree using shared maps.
type Transformer struct {
	tree   *standards.Tree
	maps   *Maps
	levels []string
}

// NewTransformer binds a tree to the maps built from its nodes.
func NewTransformer(tree *standards.Tree, maps *Maps) *Transformer {
	return &Transformer{
		tree:   tree,
		maps:   maps,
		levels: standards.NormalizeEducationLevels(tree.EducationLevels),
	}
}

// Transform returns the record for the node carrying id.
func (t *Transformer) Transform(id string) (record.Record, error) {
	idx, ok := t.maps.index[id]
	if !ok {
		return record.Record{}, &ValidationError{NodeID: id, Reason: "not in standard set"}
	}
	return t.transformAt(idx)
}

func (t *Transformer) transformAt(idx uint32) (record.Record, error) {
	n := t.maps.nodes[idx]
	id := t.maps.ids[idx]
	if missing := n.Missing(); len(missing) > 0 {
		return record.Record{}, &ValidationError{NodeID: id, Fields: missing}
	}
	if t.maps.duplicates.Contains(idx) {
		return record.Record{}, &ValidationError{NodeID: id, Reason: "duplicate id"}
	}

	chain := t.maps.walk(idx)
	facts := t.maps.factsOf(idx, chain)

	var parentID *string
	if n.ParentID != nil {
		p := *n.ParentID
		parentID = &p
	}

	doc := t.tree.Document
	return record.Record{
		ID:                id,
		Content:           t.maps.contentOf(idx, chain),
		StandardSetID:     t.tree.ID,
		StandardSetTitle:  t.tree.Title,
		Subject:           t.tree.Subject,
		NormalizedSubject: t.tree.NormalizedSubject,
		EducationLevels:   slices.Clone(t.levels),
		DocumentID:        doc.ID,
		DocumentValid:     doc.Valid,
		PublicationStatus: doc.PublicationStatus,
		JurisdictionID:    t.tree.Jurisdiction.ID,
		JurisdictionTitle: t.tree.Jurisdiction.Title,
		ASNIdentifier:     n.ASNIdentifier,
		StatementNotation: n.StatementNotation,
		StatementLabel:    n.StatementLabel,
		Depth:             n.DepthValue(),
		IsLeaf:            facts.IsLeaf,
		IsRoot:            facts.IsRoot,
		ParentID:          parentID,
		RootID:            facts.RootID,
		AncestorIDs:       facts.AncestorIDs,
		ChildIDs:          facts.ChildIDs,
		SiblingCount:      facts.SiblingCount,
	}, nil
}
