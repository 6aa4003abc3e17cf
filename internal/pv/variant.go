package pv

import (
	"strings"
	"unicode"

	"fiduciaire/pkg/errors"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Variant one of the four built-in minutes layouts.
type Variant string

const (
	VariantReport     Variant = "REPORT"
	VariantDividendes Variant = "DIVIDENDES"
	VariantDeficit    Variant = "DEFICIT"
	VariantContinuite Variant = "CONTINUITE"
)

// Variants in selection order.
var Variants = []Variant{VariantContinuite, VariantDeficit, VariantDividendes, VariantReport}

// checked in order, first match wins; "continuite" before "perte" because
// continuation minutes usually mention the losses too
var variantKeywords = []struct {
	variant  Variant
	keywords []string
}{
	{VariantContinuite, []string{"continuite", "dissolution", "quart du capital"}},
	{VariantDeficit, []string{"perte", "deficit"}},
	{VariantDividendes, []string{"dividende", "distribution"}},
	{VariantReport, []string{"report"}},
}

// SelectVariant picks the variant from a type name, ignoring case and
// accents. Unknown names fall back to VariantReport.
func SelectVariant(name string) Variant {
	normalized := Normalize(name)
	for _, candidate := range variantKeywords {
		for _, kw := range candidate.keywords {
			if strings.Contains(normalized, kw) {
				return candidate.variant
			}
		}
	}
	return VariantReport
}

// ParseVariant validates a variant code.
func ParseVariant(code string) (Variant, bool) {
	v := Variant(strings.ToUpper(strings.TrimSpace(code)))
	for _, known := range Variants {
		if v == known {
			return v, true
		}
	}
	return "", false
}

// Normalize lowercases and strips diacritics.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Check verifies the allocation fits the variant.
func (v Variant) Check(in Inputs, a Allocation) error {
	switch v {
	case VariantDividendes:
		if a.Dividendes <= 0 {
			return errors.New(errors.ErrValidation, "ce procès-verbal requiert une distribution de dividendes")
		}
	case VariantReport:
		if in.ResultatNet < 0 {
			return errors.New(errors.ErrValidation, "résultat déficitaire: choisir un procès-verbal d'affectation de perte")
		}
		if a.Dividendes > 0 {
			return errors.New(errors.ErrValidation, "ce procès-verbal ne prévoit pas de distribution de dividendes")
		}
	case VariantDeficit:
		if in.ResultatNet > 0 {
			return errors.New(errors.ErrValidation, "résultat bénéficiaire: ce procès-verbal concerne un exercice déficitaire")
		}
	case VariantContinuite:
		if !a.CapitauxPropresFaibles {
			return errors.New(errors.ErrValidation,
				"les capitaux propres ne sont pas inférieurs au quart du capital social")
		}
	default:
		return errors.Newf(errors.ErrValidation, "variante inconnue: %s", v)
	}
	return nil
}
