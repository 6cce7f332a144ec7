package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pfrederiksen/pulep-events/internal/event"
)

// Errors returned while parsing or validating a selection
var (
	ErrMalformed     = errors.New("malformed filter, expected campo=valor")
	ErrUnknownField  = errors.New("unknown filter field")
	ErrUnknownOption = errors.New("unknown filter option")
)

// allLabel is the site's "no filter" option
const allLabel = "(Todos)"

// ParseManual parses a comma separated list such as
// "anio=2025, departamento=11". Empty items are ignored.
func ParseManual(input string) (*Selection, error) {
	return ParseAssignments(strings.Split(input, ","))
}

// ParseAssignments parses "campo=valor" items, one per element, as given
// by repeated --filter flags. A field may repeat to select several values.
func ParseAssignments(items []string) (*Selection, error) {
	sel := New()
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		field, value, ok := strings.Cut(item, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformed, item)
		}
		sel.Add(field, strings.TrimSpace(value))
	}
	return Normalize(sel), nil
}

// Normalize trims values and drops the ones meaning "no filter": empty
// strings and "(Todos)". Fields left without values are removed.
func Normalize(sel *Selection) *Selection {
	out := New()
	for _, f := range sel.Fields() {
		for _, v := range sel.Get(f) {
			v = strings.TrimSpace(v)
			if isAll(v) {
				continue
			}
			out.Add(f, v)
		}
	}
	return out
}

func isAll(v string) bool {
	if v == "" {
		return true
	}
	k := event.FoldKey(v)
	return k == event.FoldKey(allLabel) || k == "todos"
}

// Validate resolves every field and value of sel against the discovered
// filter options. Field names match exactly or case/accent-insensitively;
// a value may be given as the option's value or its label. Options whose
// value is empty mean "all" and are dropped.
func Validate(sel *Selection, discovered event.FilterSet) (*Selection, error) {
	out := New()
	for _, name := range sel.Fields() {
		field, ok := lookupField(discovered, name)
		if !ok {
			return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownField, name, strings.Join(discovered.Names(), ", "))
		}

		for _, raw := range sel.Get(name) {
			opt, ok := lookupOption(field, raw)
			if !ok {
				return nil, fmt.Errorf("%w: %q for %s (%s)", ErrUnknownOption, raw, field.Name, describeOptions(field, 8))
			}
			if strings.TrimSpace(opt.Value) == "" {
				continue
			}
			out.Add(field.Name, opt.Value)
		}
	}
	return out, nil
}

func lookupField(set event.FilterSet, name string) (event.FilterField, bool) {
	if f, ok := set.Lookup(name); ok {
		return f, true
	}
	key := event.FoldKey(name)
	for _, f := range set {
		if event.FoldKey(f.Name) == key {
			return f, true
		}
	}
	return event.FilterField{}, false
}

// lookupOption matches an exact value first, then a label, then a value
// ignoring case and accents
func lookupOption(field event.FilterField, raw string) (event.FilterOption, bool) {
	for _, o := range field.Options {
		if o.Value == raw {
			return o, true
		}
	}
	key := event.FoldKey(raw)
	for _, o := range field.Options {
		if event.FoldKey(o.Label) == key {
			return o, true
		}
	}
	for _, o := range field.Options {
		if event.FoldKey(o.Value) == key {
			return o, true
		}
	}
	return event.FilterOption{}, false
}

func describeOptions(field event.FilterField, limit int) string {
	labels := make([]string, 0, limit)
	for i, o := range field.Options {
		if i == limit {
			labels = append(labels, fmt.Sprintf("and %d more", len(field.Options)-limit))
			break
		}
		labels = append(labels, o.Label)
	}
	return "options: " + strings.Join(labels, ", ")
}
