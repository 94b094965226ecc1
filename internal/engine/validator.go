package engine

import (
	"strings"
	"unicode"

	"github.com/DoyleJ11/dexrush-backend/internal/catalog"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Validator resolves raw guesses against a catalog. It is immutable after
// construction and safe for concurrent use.
type Validator struct {
	catalog *catalog.Catalog
	index   map[string][]int
}

func NewValidator(c *catalog.Catalog) *Validator {
	v := &Validator{catalog: c, index: make(map[string][]int, c.Len())}
	for _, sp := range c.All() {
		key := Normalize(sp.Name)
		if key == "" {
			continue
		}
		v.index[key] = append(v.index[key], sp.Rank)
	}
	return v
}

// Normalize strips accents, case-folds, and drops everything that is not a
// letter, so "Mr. Mime", "mr mime" and "MRMIME" compare equal.
func Normalize(raw string) string {
	// Transformers and Casers hold state; build fresh ones per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, raw)
	if err != nil {
		s = raw
	}
	s = cases.Fold().String(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return -1
	}, s)
}

// Resolve returns the normalized form of raw and every rank it names, in
// catalog order. ranks is nil when nothing matches.
func (v *Validator) Resolve(raw string) (normalized string, ranks []int) {
	normalized = Normalize(raw)
	if normalized == "" {
		return "", nil
	}
	return normalized, v.index[normalized]
}

func (v *Validator) Catalog() *catalog.Catalog { return v.catalog }
