// ABOUTME: Ordered id -> node mapping for the standards member of a set
// ABOUTME: Keeps source key order so processing is repeatable across runs

package standards

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NodeSet maps node ids to nodes and remembers the order keys were added.
type NodeSet struct {
	keys  []string
	nodes map[string]*Node
}

// NewNodeSet builds a set from nodes, keyed by their ids, in argument order.
func NewNodeSet(nodes ...*Node) NodeSet {
	var s NodeSet
	for _, n := range nodes {
		s.Add(n.ID, n)
	}
	return s
}

// Add inserts or replaces the node stored under key. A replaced key keeps its first position.
func (s *NodeSet) Add(key string, n *Node) {
	if s.nodes == nil {
		s.nodes = make(map[string]*Node)
	}
	if _, ok := s.nodes[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.nodes[key] = n
}

// Get returns the node stored under key.
func (s NodeSet) Get(key string) (*Node, bool) {
	n, ok := s.nodes[key]
	return n, ok
}

// Keys returns the keys in source order.
func (s NodeSet) Keys() []string {
	return s.keys
}

// Len returns the number of nodes.
func (s NodeSet) Len() int {
	return len(s.keys)
}

func (s *NodeSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = NodeSet{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("standards: expected object, got %v", tok)
	}

	var out NodeSet
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("standards: expected key, got %v", tok)
		}
		var n Node
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("standards[%s]: %w", key, err)
		}
		out.Add(key, &n)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

func (s NodeSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(s.nodes[key])
		if err != nil {
			return nil, fmt.Errorf("standards[%s]: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
