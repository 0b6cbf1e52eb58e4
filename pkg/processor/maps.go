// ABOUTME: Relationship maps built once per tree: id index, ordered children, leaf set
// ABOUTME: Nodes live in an arena and are referenced by uint32 index, never by pointer links

package processor

import (
	"cmp"
	"slices"

	"github.com/RoaringBitmap/roaring"

	"github.com/nainya/standardstore/pkg/standards"
)

// Maps holds the relationship indexes of one tree. It is read-only after
// BuildMaps returns and is discarded when processing finishes.
type Maps struct {
	nodes []*standards.Node // arena, source key order
	ids   []string          // arena index -> id
	index map[string]uint32 // id -> first arena index carrying it

	children map[string][]uint32 // parent id -> children sorted by position
	roots    []uint32            // nodes with a null parent, sorted by position

	leaves     *roaring.Bitmap // ids never referenced as a parent
	duplicates *roaring.Bitmap // arena slots whose id was already taken
}

// BuildMaps indexes every node of the set in a single pass per map.
func BuildMaps(set standards.NodeSet) *Maps {
	keys := set.Keys()
	m := &Maps{
		nodes:      make([]*standards.Node, 0, len(keys)),
		ids:        make([]string, 0, len(keys)),
		index:      make(map[string]uint32, len(keys)),
		children:   make(map[string][]uint32),
		leaves:     roaring.New(),
		duplicates: roaring.New(),
	}

	for _, key := range keys {
		n, _ := set.Get(key)
		id := n.ID
		if id == "" {
			id = key
		}
		idx := uint32(len(m.nodes))
		m.nodes = append(m.nodes, n)
		m.ids = append(m.ids, id)
		if _, taken := m.index[id]; taken {
			m.duplicates.Add(idx)
			continue
		}
		m.index[id] = idx
	}

	referenced := roaring.New()
	for idx, n := range m.nodes {
		if n.ParentID == nil {
			m.roots = append(m.roots, uint32(idx))
			continue
		}
		parent := *n.ParentID
		m.children[parent] = append(m.children[parent], uint32(idx))
		if p, ok := m.index[parent]; ok {
			referenced.Add(p)
		}
	}

	// Groups were filled in arena order, so a stable sort keeps source order for equal positions.
	byPosition := func(a, b uint32) int {
		return cmp.Compare(m.nodes[a].PositionValue(), m.nodes[b].PositionValue())
	}
	slices.SortStableFunc(m.roots, byPosition)
	for _, group := range m.children {
		slices.SortStableFunc(group, byPosition)
	}

	if len(m.nodes) > 0 {
		m.leaves.AddRange(0, uint64(len(m.nodes)))
		m.leaves.AndNot(referenced)
	}
	return m
}

// Len returns the number of nodes in the arena.
func (m *Maps) Len() int {
	return len(m.nodes)
}

// Node returns the node carrying id.
func (m *Maps) Node(id string) (*standards.Node, bool) {
	idx, ok := m.index[id]
	if !ok {
		return nil, false
	}
	return m.nodes[idx], true
}

// IsLeaf reports whether no node names id as its parent.
func (m *Maps) IsLeaf(id string) bool {
	idx, ok := m.index[id]
	if !ok {
		return false
	}
	return m.leaves.Contains(idx)
}

// LeafCount returns the number of leaf nodes.
func (m *Maps) LeafCount() int {
	return int(m.leaves.GetCardinality())
}

// ChildIDs returns the children of id ordered by ascending position. A
// node listing itself as parent is not reported as its own child.
func (m *Maps) ChildIDs(id string) []string {
	return m.idsExcept(m.children[id], m.index[id], id)
}

// RootIDs returns the nodes with a null parent ordered by position.
func (m *Maps) RootIDs() []string {
	out := make([]string, len(m.roots))
	for i, idx := range m.roots {
		out[i] = m.ids[idx]
	}
	return out
}

func (m *Maps) idsExcept(group []uint32, self uint32, id string) []string {
	out := make([]string, 0, len(group))
	_, known := m.index[id]
	for _, idx := range group {
		if known && idx == self {
			continue
		}
		out = append(out, m.ids[idx])
	}
	return out
}
