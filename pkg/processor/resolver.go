// ABOUTME: Per-node hierarchy facts derived from the relationship maps
// ABOUTME: Parent walks are bounded by a visited set so cyclic input always terminates

package processor

import (
	"slices"

	"github.com/RoaringBitmap/roaring"
)

// Facts are the relationship facts computed for one node.
type Facts struct {
	IsRoot       bool
	IsLeaf       bool
	RootID       string
	AncestorIDs  []string // outermost first, immediate parent last
	ChildIDs     []string // ascending position
	SiblingCount int
}

// walk follows parent references from idx and returns the visited arena
// indexes, immediate parent first. It stops on a null parent, on a parent
// missing from the tree, or on a parent already visited.
func (m *Maps) walk(idx uint32) []uint32 {
	var chain []uint32
	visited := roaring.New()
	current := m.nodes[idx]
	for current.ParentID != nil {
		p, ok := m.index[*current.ParentID]
		if !ok || visited.Contains(p) {
			break
		}
		visited.Add(p)
		chain = append(chain, p)
		current = m.nodes[p]
	}
	return chain
}

// RootID returns the topmost ancestor of id. Dangling and cyclic parent
// chains make the node where the walk stopped the root.
func (m *Maps) RootID(id string) string {
	idx, ok := m.index[id]
	if !ok {
		return id
	}
	return m.rootOf(idx, m.walk(idx))
}

func (m *Maps) rootOf(idx uint32, chain []uint32) string {
	if len(chain) == 0 {
		return m.ids[idx]
	}
	return m.ids[chain[len(chain)-1]]
}

// AncestorIDs returns the ancestors of id ordered root first. Roots and
// unknown ids yield an empty list.
func (m *Maps) AncestorIDs(id string) []string {
	idx, ok := m.index[id]
	if !ok {
		return []string{}
	}
	return m.ancestorsOf(m.walk(idx))
}

func (m *Maps) ancestorsOf(chain []uint32) []string {
	out := make([]string, len(chain))
	for i, p := range chain {
		out[i] = m.ids[p]
	}
	slices.Reverse(out)
	return out
}

// SiblingCount returns how many other nodes share the parent of id.
func (m *Maps) SiblingCount(id string) int {
	idx, ok := m.index[id]
	if !ok {
		return 0
	}
	return m.siblingsOf(idx)
}

func (m *Maps) siblingsOf(idx uint32) int {
	group := m.roots
	if parent := m.nodes[idx].ParentID; parent != nil {
		g, ok := m.children[*parent]
		if !ok {
			return 0
		}
		group = g
	}
	count := 0
	for _, other := range group {
		if other != idx {
			count++
		}
	}
	return count
}

// Resolve computes every relationship fact of id with a single parent walk.
func (m *Maps) Resolve(id string) (Facts, bool) {
	idx, ok := m.index[id]
	if !ok {
		return Facts{}, false
	}
	return m.resolve(idx), true
}

func (m *Maps) resolve(idx uint32) Facts {
	return m.factsOf(idx, m.walk(idx))
}

func (m *Maps) factsOf(idx uint32, chain []uint32) Facts {
	id := m.ids[idx]
	return Facts{
		IsRoot:       m.nodes[idx].ParentID == nil,
		IsLeaf:       m.leaves.Contains(idx),
		RootID:       m.rootOf(idx, chain),
		AncestorIDs:  m.ancestorsOf(chain),
		ChildIDs:     m.idsExcept(m.children[id], idx, id),
		SiblingCount: m.siblingsOf(idx),
	}
}
