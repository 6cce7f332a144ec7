package site

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/pulep-events/internal/event"
)

// ParseFilters reads every named select control of the search form.
// Options with neither value nor text are skipped and the label defaults
// to the value.
func (p *PULEP) ParseFilters(doc *goquery.Document) ([]event.FilterField, error) {
	form := doc.Find(p.sel.Form).First()
	if form.Length() == 0 {
		return nil, fmt.Errorf("%w: no %q element", ErrNoFilters, p.sel.Form)
	}

	var fields []event.FilterField
	form.Find("select").Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.AttrOr("name", ""))
		if name == "" {
			name = strings.TrimSpace(sel.AttrOr("id", ""))
		}
		if name == "" {
			return
		}

		field := event.FilterField{Name: name}
		sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
			value := strings.TrimSpace(opt.AttrOr("value", ""))
			label := selText(opt)
			if value == "" && label == "" {
				return
			}
			if label == "" {
				label = value
			}
			field.Options = append(field.Options, event.FilterOption{Label: label, Value: value})
		})
		fields = append(fields, field)
	})

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: form has no named select controls", ErrNoFilters)
	}
	return fields, nil
}
