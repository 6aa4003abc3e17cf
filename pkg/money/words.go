package money

import "strings"

var units = [...]string{
	"zéro", "un", "deux", "trois", "quatre", "cinq", "six", "sept", "huit", "neuf",
	"dix", "onze", "douze", "treize", "quatorze", "quinze", "seize",
	"dix-sept", "dix-huit", "dix-neuf",
}

var tens = [...]string{"", "", "vingt", "trente", "quarante", "cinquante", "soixante"}

// InWords spells the amount in French:
// "douze mille trois cent quarante-cinq dirhams et soixante-sept centimes".
func (a Amount) InWords() string {
	whole := a.Whole()
	prefix := ""
	if a < 0 {
		prefix = "moins "
		whole = -whole
	}

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(NumberInWords(whole))
	switch {
	case whole <= 1:
		b.WriteString(" dirham")
	case whole%1_000_000 == 0:
		b.WriteString(" de dirhams")
	default:
		b.WriteString(" dirhams")
	}

	if c := a.Cents(); c > 0 {
		b.WriteString(" et ")
		b.WriteString(NumberInWords(c))
		if c == 1 {
			b.WriteString(" centime")
		} else {
			b.WriteString(" centimes")
		}
	}
	return b.String()
}

// NumberInWords spells a non-negative integer in French (traditional spelling).
func NumberInWords(n int64) string {
	if n < 0 {
		return "moins " + NumberInWords(-n)
	}
	if n == 0 {
		return units[0]
	}

	var parts []string
	milliards := n / 1_000_000_000
	millions := (n / 1_000_000) % 1000
	thousands := (n / 1000) % 1000
	rest := n % 1000

	if milliards > 0 {
		if milliards == 1 {
			parts = append(parts, "un milliard")
		} else {
			parts = append(parts, NumberInWords(milliards)+" milliards")
		}
	}
	if millions > 0 {
		if millions == 1 {
			parts = append(parts, "un million")
		} else {
			parts = append(parts, belowThousand(millions, true)+" millions")
		}
	}
	if thousands > 0 {
		// "mille" is invariable and never takes "un"
		if thousands == 1 {
			parts = append(parts, "mille")
		} else {
			parts = append(parts, belowThousand(thousands, false)+" mille")
		}
	}
	if rest > 0 {
		parts = append(parts, belowThousand(rest, true))
	}
	return strings.Join(parts, " ")
}

// plural controls the final "s" of cents and quatre-vingts, dropped before mille.
func belowThousand(n int64, plural bool) string {
	hundreds := n / 100
	rest := n % 100

	switch {
	case hundreds == 0:
		return belowHundred(rest, plural)
	case hundreds == 1:
		if rest == 0 {
			return "cent"
		}
		return "cent " + belowHundred(rest, plural)
	default:
		if rest == 0 {
			if plural {
				return units[hundreds] + " cents"
			}
			return units[hundreds] + " cent"
		}
		return units[hundreds] + " cent " + belowHundred(rest, plural)
	}
}

func belowHundred(n int64, plural bool) string {
	if n < 20 {
		return units[n]
	}
	t, u := n/10, n%10
	switch t {
	case 7:
		if u == 1 {
			return "soixante et onze"
		}
		return "soixante-" + units[10+u]
	case 8:
		if u == 0 {
			if plural {
				return "quatre-vingts"
			}
			return "quatre-vingt"
		}
		return "quatre-vingt-" + units[u]
	case 9:
		return "quatre-vingt-" + units[10+u]
	default:
		switch u {
		case 0:
			return tens[t]
		case 1:
			return tens[t] + " et un"
		default:
			return tens[t] + "-" + units[u]
		}
	}
}
