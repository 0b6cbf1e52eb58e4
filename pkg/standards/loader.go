// ABOUTME: Decoding of raw standard set documents shaped {"data": {...}}
// ABOUTME: Malformed documents fail the whole load before any processing starts

package standards

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrMalformedDocument reports a source document that cannot be decoded.
var ErrMalformedDocument = errors.New("malformed standards document")

// DecodeTree decodes a standard set from an API response envelope.
func DecodeTree(r io.Reader) (*Tree, error) {
	var env Envelope[json.RawMessage]
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	raw := bytes.TrimSpace(env.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: missing data member", ErrMalformedDocument)
	}

	var tree Tree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if tree.ID == "" {
		return nil, fmt.Errorf("%w: standard set has no id", ErrMalformedDocument)
	}
	return &tree, nil
}

// LoadTreeFile reads and decodes a standard set document from disk.
func LoadTreeFile(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	tree, err := DecodeTree(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tree, nil
}

// EncodeTree writes the tree wrapped in a response envelope.
func EncodeTree(w io.Writer, tree *Tree) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Envelope[*Tree]{Data: tree})
}
