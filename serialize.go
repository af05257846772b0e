package mirage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/mirage/relation"
	"github.com/roach88/mirage/value"
)

// Reserved metadata keys carried on every flattened entity so generic
// collaborators (a response serializer, a fixture differ) can identify the
// owning model and its primary-key property without knowing the schema.
const (
	MetaModel      = "__model"
	MetaPrimaryKey = "__primaryKey"
)

// Flatten renders the entity as a plain map for transport, resolving one
// level of relations: directly related entities are embedded with their
// scalar attributes, and their own relations are rendered as primary-key
// values rather than recursed into.
//
// Nullable unset relations flatten to nil (to-one) or an empty list
// (to-many). Resolution failures surface unchanged.
func (e *Entity) Flatten() (map[string]any, error) {
	rec, ok := e.t.get(e.key)
	if !ok {
		return nil, newBrokenReferenceError(e.t.model, "", e.key)
	}

	out := make(map[string]any, len(e.t.props)+2)
	out[MetaModel] = e.t.model
	out[MetaPrimaryKey] = e.t.keyProp

	for prop, spec := range e.t.props {
		if spec.scalar != nil {
			out[prop] = value.ToAny(rec.attrs[prop])
			continue
		}

		targets, err := e.db.resolveRelation(e.t, rec, prop, spec.rel)
		if err != nil {
			return nil, err
		}
		if spec.rel.Kind == relation.KindOne {
			if len(targets) == 0 {
				out[prop] = nil
				continue
			}
			shallow, err := targets[0].flattenShallow()
			if err != nil {
				return nil, err
			}
			out[prop] = shallow
			continue
		}
		list := make([]any, 0, len(targets))
		for _, target := range targets {
			shallow, err := target.flattenShallow()
			if err != nil {
				return nil, err
			}
			list = append(list, shallow)
		}
		out[prop] = list
	}
	return out, nil
}

// flattenShallow renders a related entity one level deep: scalars by value,
// relations by primary key.
func (e *Entity) flattenShallow() (map[string]any, error) {
	rec, ok := e.t.get(e.key)
	if !ok {
		return nil, newBrokenReferenceError(e.t.model, "", e.key)
	}

	out := make(map[string]any, len(e.t.props)+2)
	out[MetaModel] = e.t.model
	out[MetaPrimaryKey] = e.t.keyProp

	for prop, spec := range e.t.props {
		if spec.scalar != nil {
			out[prop] = value.ToAny(rec.attrs[prop])
			continue
		}

		ref, stored := rec.refs[prop]
		if !stored {
			if spec.rel.Kind == relation.KindOne {
				out[prop] = nil
			} else {
				out[prop] = []any{}
			}
			continue
		}

		target := e.db.tables[spec.rel.Target]
		keys := make([]any, 0, len(ref.keys))
		for _, k := range ref.keys {
			trec, found := target.get(k)
			if !found {
				return nil, newBrokenReferenceError(e.t.model, prop, k)
			}
			keys = append(keys, value.ToAny(trec.attrs[target.keyProp]))
		}
		if spec.rel.Kind == relation.KindOne {
			if len(keys) == 0 {
				out[prop] = nil
			} else {
				out[prop] = keys[0]
			}
			continue
		}
		out[prop] = keys
	}
	return out, nil
}

// MarshalDeterministic encodes a flattened entity (or any tree of maps,
// slices, and scalars) as JSON with a byte-stable layout: object keys
// sorted by UTF-16 code units, strings NFC-normalized, and no HTML
// escaping. Two equal trees always encode to identical bytes, which is what
// golden-file comparison needs.
func MarshalDeterministic(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeDeterministic(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeDeterministic(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case string:
		return encodeString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
		return nil
	case float64:
		buf.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
		return nil
	case int:
		buf.WriteString(strconv.Itoa(val))
		return nil
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeDeterministic(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]any:
		buf.WriteByte('{')
		for i, k := range sortedKeysUTF16(val) {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := encodeDeterministic(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("unsupported type %T", v)
	}
}

// encodeString writes an NFC-normalized JSON string without HTML escaping.
func encodeString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return err
	}
	out := tmp.Bytes()
	// json.Encoder appends a trailing newline.
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	buf.Write(out)
	return nil
}

// sortedKeysUTF16 orders keys by UTF-16 code units. Go's native string
// ordering compares UTF-8 bytes, which diverges for characters outside the
// basic multilingual plane.
func sortedKeysUTF16(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}
