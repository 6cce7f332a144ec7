package event

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()

// FoldKey returns a comparison key for s that ignores case, accents and
// repeated whitespace, so "Año  Evento" and "ano evento" compare equal.
func FoldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(foldCaser.String(stripped)), " ")
}
