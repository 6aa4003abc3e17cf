// Package money handles dirham amounts as integer centimes.
package money

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Amount is a dirham amount in centimes.
type Amount int64

// Dirhams builds an amount from whole dirhams.
func Dirhams(dh int64) Amount {
	return Amount(dh * 100)
}

// Parse reads "12345.67", "12 345,67" or "-10". At most two decimals.
func Parse(s string) (Amount, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimSuffix(strings.TrimSuffix(raw, "DH"), "MAD")
	raw = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '_':
			return -1
		}
		return r
	}, raw)
	if raw == "" {
		return 0, fmt.Errorf("montant vide")
	}

	negative := false
	if raw[0] == '-' || raw[0] == '+' {
		negative = raw[0] == '-'
		raw = raw[1:]
	}
	raw = strings.Replace(raw, ",", ".", 1)

	intPart, fracPart, _ := strings.Cut(raw, ".")
	if intPart == "" && fracPart == "" || !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return 0, fmt.Errorf("montant %q invalide", s)
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > 2 {
		return 0, fmt.Errorf("montant %q: deux décimales au maximum", s)
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}

	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("montant %q invalide", s)
	}
	cents, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("montant %q invalide", s)
	}

	total := whole*100 + cents
	if negative {
		total = -total
	}
	return Amount(total), nil
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Whole returns the dirham part, truncated toward zero.
func (a Amount) Whole() int64 { return int64(a) / 100 }

// Cents returns the absolute centime part.
func (a Amount) Cents() int64 {
	c := int64(a) % 100
	if c < 0 {
		c = -c
	}
	return c
}

// MulRate returns a*num/den rounded half away from zero.
func (a Amount) MulRate(num, den int64) Amount {
	if den == 0 {
		return 0
	}
	p := int64(a) * num
	if (p < 0) != (den < 0) {
		return Amount((p - den/2) / den)
	}
	return Amount((p + den/2) / den)
}

// Split shares a non-negative amount pro rata to weights by largest
// remainder: every share is floored, then the leftover centimes go one by
// one to the largest fractional parts, earlier weights first on ties. The
// shares sum to a and none is negative.
func (a Amount) Split(weights []int64) []Amount {
	shares := make([]Amount, len(weights))
	var total int64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if a <= 0 || total == 0 {
		return shares
	}

	remainders := make([]int64, len(weights))
	left := int64(a)
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		p := int64(a) * w
		shares[i] = Amount(p / total)
		remainders[i] = p % total
		left -= p / total
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		return remainders[order[x]] > remainders[order[y]]
	})
	for _, i := range order {
		if left == 0 {
			break
		}
		if weights[i] <= 0 {
			continue
		}
		shares[i]++
		left--
	}
	return shares
}

// Min of two amounts
func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// Max of two amounts
func Max(a, b Amount) Amount {
	if a > b {
		return a
	}
	return b
}

// Decimal renders "12345.67".
func (a Amount) Decimal() string {
	sign := ""
	if a < 0 {
		sign = "-"
	}
	whole := a.Whole()
	if whole < 0 {
		whole = -whole
	}
	return fmt.Sprintf("%s%d.%02d", sign, whole, a.Cents())
}

// Format renders "12 345,67 DH".
func (a Amount) Format() string {
	return a.FormatNumber() + " DH"
}

// FormatNumber renders "12 345,67".
func (a Amount) FormatNumber() string {
	sign := ""
	if a < 0 {
		sign = "-"
	}
	whole := a.Whole()
	if whole < 0 {
		whole = -whole
	}
	return fmt.Sprintf("%s%s,%02d", sign, groupThousands(whole), a.Cents())
}

func groupThousands(n int64) string {
	digits := strconv.FormatInt(n, 10)
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// MarshalJSON writes the amount as a JSON number in dirhams.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal()), nil
}

// UnmarshalJSON accepts a JSON number or a string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
