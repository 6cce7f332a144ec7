package site

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/pulep-events/internal/event"
)

// ParseResults reads the results table of one page and the link to the
// next page. Rows whose cell count differs from the header count are
// skipped with a warning.
func (p *PULEP) ParseResults(doc *goquery.Document, pageURL *url.URL) (*ResultsPage, error) {
	table := p.findResultsTable(doc)
	if table == nil {
		return nil, ErrNoTable
	}

	page := &ResultsPage{Headers: tableHeaders(table)}

	body := table.Find("tbody tr")
	if body.Length() == 0 {
		body = table.Find("tr")
	}

	pos := 0
	body.Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		if cells.Length() == 0 {
			return
		}
		pos++

		if len(page.Headers) > 0 && cells.Length() != len(page.Headers) {
			page.Warnings = append(page.Warnings, event.Warning{
				Row:     pos,
				Message: fmt.Sprintf("row has %d cells but table has %d columns; skipped", cells.Length(), len(page.Headers)),
			})
			return
		}

		var rec event.Record
		cells.Each(func(i int, td *goquery.Selection) {
			rec.Set(columnName(page.Headers, i), selText(td))
		})

		row := event.ResultRow{Index: pos, Fields: rec}
		if href, ok := firstHref(tr, p.sel.DetailLink); ok {
			if link, err := resolve(pageURL, href); err == nil {
				row.DetailURL = link
			}
		}
		page.Rows = append(page.Rows, row)
	})

	if href, ok := firstHref(doc.Selection, p.sel.NextPage); ok {
		if link, err := resolve(pageURL, href); err == nil {
			page.Next, _ = url.Parse(link)
		}
	}

	return page, nil
}

// findResultsTable picks the first table whose headers mention the table
// hint, else the first table
func (p *PULEP) findResultsTable(doc *goquery.Document) *goquery.Selection {
	tables := doc.Find("table")
	if tables.Length() == 0 {
		return nil
	}

	hint := event.FoldKey(p.sel.TableHint)
	var match *goquery.Selection
	tables.EachWithBreak(func(_ int, t *goquery.Selection) bool {
		found := false
		t.Find("th").EachWithBreak(func(_ int, th *goquery.Selection) bool {
			found = strings.Contains(event.FoldKey(selText(th)), hint)
			return !found
		})
		if found {
			match = t
		}
		return !found
	})
	if match != nil {
		return match
	}
	return tables.First()
}

// tableHeaders returns unique, non-empty column names from thead, else from
// every th of the table
func tableHeaders(table *goquery.Selection) []string {
	ths := table.Find("thead th")
	if ths.Length() == 0 {
		ths = table.Find("th")
	}

	headers := make([]string, 0, ths.Length())
	seen := make(map[string]int)
	ths.Each(func(i int, th *goquery.Selection) {
		name := selText(th)
		if name == "" {
			name = "col_" + strconv.Itoa(i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = name + "_" + strconv.Itoa(n)
		}
		headers = append(headers, name)
	})
	return headers
}

func columnName(headers []string, i int) string {
	if i < len(headers) {
		return headers[i]
	}
	return "col_" + strconv.Itoa(i+1)
}

// firstHref returns the href of the first followable anchor matching selector
func firstHref(s *goquery.Selection, selector string) (string, bool) {
	var href string
	s.Find(selector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if h, ok := a.Attr("href"); ok && usableHref(h) {
			href = strings.TrimSpace(h)
			return false
		}
		return true
	})
	return href, href != ""
}

func resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}
