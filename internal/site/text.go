package site

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// nodeText joins the text nodes under n with single spaces, so
// "<td>Bogotá<br>D.C.</td>" reads "Bogotá D.C." rather than "BogotáD.C.".
// Script and style contents are skipped.
func nodeText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// selText is nodeText over every node of a selection
func selText(s *goquery.Selection) string {
	parts := make([]string, 0, s.Length())
	for _, n := range s.Nodes {
		if t := nodeText(n); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// usableHref reports whether an href points somewhere a GET can follow
func usableHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return false
	}
	lower := strings.ToLower(href)
	return !strings.HasPrefix(lower, "javascript:") && !strings.HasPrefix(lower, "mailto:")
}
