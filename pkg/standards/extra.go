// ABOUTME: Extension bag for JSON members the schema does not model
// ABOUTME: Unknown fields survive a decode/encode round trip and can be queried with JSONPath

package standards

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Extra holds JSON members that are not part of the strict schema.
type Extra map[string]any

// Lookup evaluates a JSONPath expression against the bag.
func (e Extra) Lookup(path string) ([]any, error) {
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	if e == nil {
		return nil, nil
	}
	return x.Get(map[string]any(e)), nil
}

// QueryDocument evaluates a JSONPath expression against a raw JSON document.
func QueryDocument(data []byte, path string) ([]any, error) {
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return x.Get(doc), nil
}

var knownCache sync.Map // reflect.Type -> map[string]struct{}

// knownFields returns the JSON member names declared on a struct type.
func knownFields(t reflect.Type) map[string]struct{} {
	if v, ok := knownCache.Load(t); ok {
		return v.(map[string]struct{})
	}
	names := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		names[name] = struct{}{}
	}
	knownCache.Store(t, names)
	return names
}

// decodeWithExtra decodes data into dst and returns the members dst does not declare.
// dst must point to a struct type without its own UnmarshalJSON.
func decodeWithExtra(data []byte, dst any) (Extra, error) {
	if err := json.Unmarshal(data, dst); err != nil {
		return nil, err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	known := knownFields(reflect.TypeOf(dst).Elem())
	var extra Extra
	for name, raw := range members {
		if _, ok := known[name]; ok {
			continue
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, err
		}
		if extra == nil {
			extra = make(Extra)
		}
		extra[name] = value
	}
	return extra, nil
}

// encodeWithExtra encodes src and merges the extension members back in.
// Declared fields win over extension members with the same name.
func encodeWithExtra(src any, extra Extra) ([]byte, error) {
	data, err := json.Marshal(src)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for name, value := range extra {
		if _, ok := merged[name]; ok {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("extra member %q: %w", name, err)
		}
		merged[name] = raw
	}
	return json.Marshal(merged)
}
