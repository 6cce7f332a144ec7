package event

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is a string map that remembers the order in which keys were first
// set. The zero value is ready to use.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord creates a Record from alternating key/value pairs
func NewRecord(pairs ...string) Record {
	var r Record
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

// Set stores value under key. An existing key keeps its position.
func (r *Record) Set(key, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// SetIfAbsent stores value only when key has not been seen yet
func (r *Record) SetIfAbsent(key, value string) bool {
	if r.Has(key) {
		return false
	}
	r.Set(key, value)
	return true
}

// Get returns the value for key, or "" when absent
func (r Record) Get(key string) string {
	return r.values[key]
}

// Has reports whether key is present
func (r Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Keys returns the keys in first-seen order
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of keys
func (r Record) Len() int {
	return len(r.keys)
}

// MarshalJSON encodes the record as a JSON object preserving key order
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the order of its keys.
// Non-string values are stored in their JSON text form.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*r = Record{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected object, got %v", tok)
	}

	*r = Record{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("record: unexpected key %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record: decoding %q: %w", key, err)
		}
		r.Set(key, ScalarString(raw))
	}
	_, err = dec.Token()
	return err
}

// ScalarString renders a raw JSON value as cell text: strings unquoted,
// null as empty, anything else verbatim.
func ScalarString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}
