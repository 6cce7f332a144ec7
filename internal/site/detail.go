package site

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/pfrederiksen/pulep-events/internal/event"
)

// ContentField holds the page text when no labelled field could be found
const ContentField = "contenido"

// ParseDetail extracts label/value pairs from an event detail page.
//
// Table rows with two or more cells are read first (first cell is the
// label, second the value). Then label, strong and b elements followed by a
// sibling with text are read, without overwriting labels already found.
func (p *PULEP) ParseDetail(doc *goquery.Document) (*event.Record, error) {
	pageText := selText(doc.Find("body"))
	if pageText == "" {
		pageText = selText(doc.Selection)
	}
	if pageText == "" {
		return nil, ErrEmptyDocument
	}

	var rec event.Record

	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("th, td")
		if cells.Length() < 2 {
			return
		}
		key := selText(cells.Eq(0))
		if key == "" {
			return
		}
		rec.Set(key, selText(cells.Eq(1)))
	})

	doc.Find("label, strong, b").Each(func(_ int, s *goquery.Selection) {
		key := strings.TrimSpace(strings.TrimRight(selText(s), ":"))
		if key == "" {
			return
		}
		value := siblingText(s.Nodes[0].NextSibling)
		if value == "" {
			return
		}
		rec.SetIfAbsent(key, value)
	})

	if rec.Len() == 0 {
		rec.Set(ContentField, pageText)
	}
	return &rec, nil
}

func siblingText(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return strings.Join(strings.Fields(n.Data), " ")
	}
	return nodeText(n)
}
