package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"

	"ancine-dash/internal/domain"
)

// record is one flattened source object. keys keeps first-appearance order.
type record struct {
	keys   []string
	values map[string]domain.Value
	folded map[string]string
}

func newRecord() *record {
	return &record{values: make(map[string]domain.Value), folded: make(map[string]string)}
}

// set rejects a name already present in the object, including one that
// differs only in case ({"Nome": 1, "nome": 2}).
func (r *record) set(name string, v domain.Value) error {
	if prev, dup := r.folded[domain.FoldName(name)]; dup {
		return &domain.NameCollisionError{Column: name, Existing: prev}
	}
	r.folded[domain.FoldName(name)] = name
	r.keys = append(r.keys, name)
	r.values[name] = v
	return nil
}

// flattenObject walks a JSON object in document order. Nested objects become
// dotted names, arrays are kept as compact JSON text, numbers keep their
// literal text, booleans become true/false and null stays null.
func flattenObject(raw []byte, prefix string, rec *record) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if _, err := dec.Token(); err != nil { // opening '{'
		return err
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", keyTok)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("decode %q: %w", prefix+key, err)
		}
		if err := flattenValue(val, prefix+key, rec); err != nil {
			return err
		}
	}
	return nil
}

func flattenValue(val json.RawMessage, name string, rec *record) error {
	val = bytes.TrimSpace(val)
	if len(val) == 0 {
		return fmt.Errorf("empty value for %q", name)
	}
	switch val[0] {
	case '{':
		return flattenObject(val, name+".", rec)
	case '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, val); err != nil {
			return fmt.Errorf("compact %q: %w", name, err)
		}
		return rec.set(name, domain.Text(buf.String()))
	case '"':
		var s string
		if err := json.Unmarshal(val, &s); err != nil {
			return fmt.Errorf("decode string %q: %w", name, err)
		}
		return rec.set(name, domain.Text(s))
	case 'n':
		return rec.set(name, domain.Null())
	default:
		// true, false and numbers keep their literal JSON text.
		return rec.set(name, domain.Text(string(val)))
	}
}
