package schema

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// GoName converts arbitrary column text into an exported ASCII Go identifier:
// accents are stripped, separators start a new word, and a leading digit is
// prefixed with "F". "číslo_protokolu" becomes "CisloProtokolu".
func GoName(s string) string {
	// Decompose, remove nonspacing marks (accents), recompose.
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	ascii, _, _ := transform.String(t, strings.TrimSpace(s))

	var b strings.Builder
	upper := true
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if b.Len() == 0 {
				b.WriteByte('F')
			}
			b.WriteRune(r)
			upper = true
		default:
			// separators and anything non-ASCII
			upper = true
		}
	}
	if b.Len() == 0 {
		return "Col"
	}
	return b.String()
}

// namer hands out unique Go names within one struct.
type namer struct {
	used map[string]int
}

func newNamer() *namer { return &namer{used: map[string]int{}} }

func (n *namer) next(s string) string {
	name := GoName(s)
	n.used[name]++
	if c := n.used[name]; c > 1 {
		alt := name + strconv.Itoa(c)
		for n.used[alt] > 0 {
			c++
			alt = name + strconv.Itoa(c)
		}
		n.used[alt]++
		return alt
	}
	return name
}
