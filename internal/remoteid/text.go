package remoteid

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiField folds s to ASCII and fits it into a zero padded field of the given width.
// Diacritics are stripped ("Päijänne" becomes "Paijanne"); any rune that still falls
// outside ASCII is replaced with '?'.
func asciiField(s string, width int) []byte {
	field := make([]byte, width)

	// transformers carry state, so the chain is built per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}

	n := 0
	for _, r := range s {
		if n == width {
			break
		}
		if r > unicode.MaxASCII {
			r = '?'
		}
		field[n] = byte(r)
		n++
	}

	return field
}
