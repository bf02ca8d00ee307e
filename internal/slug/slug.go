// Package slug maps free-text product names to canonical cache keys.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/product-battle/internal/model"
)

// Separator joins the alphanumeric runs of a key.
const Separator = '_'

// Normalize returns the canonical key for raw. Case, surrounding and
// repeated whitespace, diacritics and punctuation do not affect the result:
// "  Lenovo   Legion Y540 " and "lenovo-legion y540" both yield
// "lenovo_legion_y540". Returns an InvalidNameError when nothing
// alphanumeric remains.
func Normalize(raw string) (string, error) {
	folded := fold(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteRune(Separator)
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSep = true
	}

	if b.Len() == 0 {
		return "", model.InvalidNameError(raw)
	}
	return b.String(), nil
}

// MustNormalize is Normalize for inputs known to be valid.
func MustNormalize(raw string) string {
	key, err := Normalize(raw)
	if err != nil {
		panic(err)
	}
	return key
}

// Equal reports whether a and b normalize to the same valid key.
func Equal(a, b string) bool {
	ka, errA := Normalize(a)
	kb, errB := Normalize(b)
	return errA == nil && errB == nil && ka == kb
}

// fold decomposes compatibility characters and strips combining marks, so
// "Café" and "Cafe" share a key.
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
