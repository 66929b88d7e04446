package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// JSON is an Event backed by a single decoded JSON object, the ingress
// format specified in spec.md §6.
type JSON struct {
	root     Value
	keywords []string
	hasKW    bool
}

// DecodeJSON parses a single JSON object payload into an Event. Decode
// failure is the EventDecode error kind from §7 and is the caller's
// responsibility to route to the dead-letter path.
func DecodeJSON(payload []byte) (*JSON, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode event json: %w", err)
	}

	root, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("decode event json: payload is not a JSON object")
	}

	val := fromGo(root)
	kws, meaningful := extractKeywords(val)
	return &JSON{root: val, keywords: kws, hasKW: meaningful}, nil
}

func fromGo(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		f, _ := t.Float64()
		return Float(f)
	case float64:
		if f := t; f == float64(int64(f)) {
			return Int(int64(f))
		}
		return Float(t)
	case map[string]interface{}:
		out := make(map[string]Value, len(t))
		for k, v := range t {
			out[k] = fromGo(v)
		}
		return Object(out)
	case []interface{}:
		out := make([]Value, len(t))
		for i, v := range t {
			out[i] = fromGo(v)
		}
		return Array(out)
	default:
		return Null
	}
}

// Keywords implements Event. Every string leaf in the event (recursively,
// including inside arrays) is a keyword candidate; this is the
// "commonly searched free-text" flattening §4.1 calls for when no
// narrower convention is specified by the rule source. "meaningful" is
// false only when the event carries no string leaves at all, so a
// keywords-identifier rule against a purely-numeric event is correctly
// reported as inapplicable rather than silently false.
func (j *JSON) Keywords() ([]string, bool) {
	return j.keywords, j.hasKW
}

// Select implements Event.
func (j *JSON) Select(path string) (Value, bool) {
	return Traverse(j.root, path)
}

func extractKeywords(v Value) ([]string, bool) {
	var out []string
	var walk func(Value)
	walk = func(v Value) {
		switch v.Kind() {
		case KindString:
			out = append(out, v.str)
		case KindArray:
			for _, e := range v.arr {
				walk(e)
			}
		case KindObject:
			keys := make([]string, 0, len(v.obj))
			for k := range v.obj {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(v.obj[k])
			}
		}
	}
	walk(v)
	return out, len(out) > 0
}
