// Package filter holds the user's choice of search filters.
//
// A Selection maps filter field names (the select controls of the search
// form) to one or more chosen values, keeping the order in which fields were
// added. Selections come from manual "campo=valor" entry or from the options
// discovered on the page; Validate resolves them against the discovered
// options so a user can type either an option's value or its visible label,
// ignoring case and accents.
//
// Example usage:
//
//	sel, err := filter.ParseManual("anio=2025, departamento=Bogotá D.C.")
//	if err != nil {
//	    return err
//	}
//	sel, err = filter.Validate(sel, discovered)
//	rows := s.Rows(ctx, sel.Values(), warn)
package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Selection is an ordered mapping of field name to chosen values.
// The zero value is an empty selection.
type Selection struct {
	fields []string
	values map[string][]string
}

// New creates an empty selection
func New() *Selection {
	return &Selection{values: make(map[string][]string)}
}

// Add appends a value to field. Repeated values are ignored.
func (s *Selection) Add(field, value string) {
	if s.values == nil {
		s.values = make(map[string][]string)
	}
	existing, ok := s.values[field]
	if !ok {
		s.fields = append(s.fields, field)
	}
	for _, v := range existing {
		if v == value {
			return
		}
	}
	s.values[field] = append(existing, value)
}

// Set replaces the values of field, keeping its position. No values removes it.
func (s *Selection) Set(field string, values ...string) {
	if len(values) == 0 {
		s.Remove(field)
		return
	}
	if _, ok := s.values[field]; ok {
		s.values[field] = nil
	}
	for _, v := range values {
		s.Add(field, v)
	}
}

// Remove deletes field from the selection
func (s *Selection) Remove(field string) {
	if _, ok := s.values[field]; !ok {
		return
	}
	delete(s.values, field)
	for i, f := range s.fields {
		if f == field {
			s.fields = append(s.fields[:i:i], s.fields[i+1:]...)
			break
		}
	}
}

// Get returns the values chosen for field
func (s *Selection) Get(field string) []string {
	if s == nil {
		return nil
	}
	return s.values[field]
}

// Fields returns field names in the order they were added
func (s *Selection) Fields() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of fields
func (s *Selection) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

// IsEmpty reports whether no filter is active, i.e. all events are wanted
func (s *Selection) IsEmpty() bool {
	return s.Len() == 0
}

// Values returns the selection as query parameters
func (s *Selection) Values() url.Values {
	v := make(url.Values, s.Len())
	if s == nil {
		return v
	}
	for _, f := range s.fields {
		v[f] = append([]string(nil), s.values[f]...)
	}
	return v
}

// String returns "campo=valor, campo=valor" or "No active filters"
func (s *Selection) String() string {
	if s.IsEmpty() {
		return "No active filters"
	}
	parts := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		parts = append(parts, f+"="+strings.Join(s.values[f], "|"))
	}
	return strings.Join(parts, ", ")
}

// Clone creates a deep copy of the selection
func (s *Selection) Clone() *Selection {
	clone := New()
	if s == nil {
		return clone
	}
	for _, f := range s.fields {
		for _, v := range s.values[f] {
			clone.Add(f, v)
		}
	}
	return clone
}

type jsonField struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
}

// MarshalJSON encodes the selection as an ordered list of fields
func (s *Selection) MarshalJSON() ([]byte, error) {
	out := make([]jsonField, 0, s.Len())
	if s != nil {
		for _, f := range s.fields {
			out = append(out, jsonField{Field: f, Values: s.values[f]})
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON
func (s *Selection) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Selection{}
		return nil
	}
	var in []jsonField
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decoding selection: %w", err)
	}
	*s = Selection{}
	for _, f := range in {
		for _, v := range f.Values {
			s.Add(f.Field, v)
		}
	}
	return nil
}
