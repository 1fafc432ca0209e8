package services

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// variantSuffixes are printing annotations that collection exports append to card names
var variantSuffixes = []string{
	" (borderless)",
	" (showcase)",
	" (extended art)",
	" (retro frame)",
	" (full art)",
	" (alternate art)",
	" (promo)",
	" (foil etched)",
}

// NormalizeName folds case and whitespace so names compare equal regardless of formatting
func NormalizeName(name string) string {
	name = norm.NFC.String(name)
	name = cases.Fold().String(name)
	return strings.Join(strings.Fields(name), " ")
}

// stripVariantSuffixes removes trailing printing annotations from a normalized name
func stripVariantSuffixes(name string) string {
	for {
		stripped := false
		for _, suffix := range variantSuffixes {
			if strings.HasSuffix(name, suffix) {
				name = strings.TrimSpace(strings.TrimSuffix(name, suffix))
				stripped = true
			}
		}
		if !stripped {
			return name
		}
	}
}

// frontFace returns the part of a compound name before the "//" separator
func frontFace(name string) string {
	if i := strings.Index(name, "//"); i >= 0 {
		return strings.TrimSpace(name[:i])
	}
	return name
}

// NamesMatch reports whether two card names refer to the same card. Names match when
// they are equal after folding, equal once printing annotations such as "(Showcase)"
// are removed, or when the front face of a compound "A // B" name matches the other name.
func NamesMatch(a, b string) bool {
	a, b = NormalizeName(a), NormalizeName(b)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}

	a, b = stripVariantSuffixes(a), stripVariantSuffixes(b)
	if a == b {
		return true
	}

	fa, fb := frontFace(a), frontFace(b)
	return fa == b || a == fb || fa == fb
}
