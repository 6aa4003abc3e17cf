package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := map[string]Amount{
		"12345.67":     1234567,
		"12 345,67":    1234567,
		"12 345,67 DH": 1234567,
		"-10":          -1000,
		"0.5":          50,
		",05":          5,
		"100000":       10000000,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "abc", "1.234", "1,2,3", "--5", "1.-5", "+-5", "1.+5", "-"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "12 345,67 DH", Amount(1234567).Format())
	assert.Equal(t, "0,05 DH", Amount(5).Format())
	assert.Equal(t, "-1 000 000,00 DH", Dirhams(-1_000_000).Format())
	assert.Equal(t, "999,00", Dirhams(999).FormatNumber())
}

func TestMulRate(t *testing.T) {
	assert.Equal(t, Amount(500), Dirhams(100).MulRate(5, 100))
	// 5% of 0.10 DH = 0.005 rounds to 0.01
	assert.Equal(t, Amount(1), Amount(10).MulRate(5, 100))
	assert.Equal(t, Amount(-1), Amount(-10).MulRate(5, 100))
	assert.Equal(t, Amount(0), Amount(10).MulRate(5, 0))
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []Amount{1, 1, 0, 0}, Amount(2).Split([]int64{1, 1, 1, 1}))
	assert.Equal(t, []Amount{3, 3, 2, 2}, Amount(10).Split([]int64{1, 1, 1, 1}))
	// 7 * 2/3 = 4.67 and 7 * 1/3 = 2.33: the larger remainder takes the centime
	assert.Equal(t, []Amount{5, 2}, Amount(7).Split([]int64{2, 1}))
	assert.Equal(t, []Amount{0, 3, 2}, Amount(5).Split([]int64{0, 1, 1}))
	assert.Equal(t, []Amount{0, 0}, Amount(5).Split([]int64{0, 0}))
	assert.Equal(t, []Amount{0, 0}, Amount(-5).Split([]int64{1, 1}))

	shares := Amount(1_000_001).Split([]int64{333, 333, 334})
	var sum Amount
	for _, s := range shares {
		assert.GreaterOrEqual(t, int64(s), int64(0))
		sum += s
	}
	assert.Equal(t, Amount(1_000_001), sum)
}

func TestJSONRoundTripAcceptsStrings(t *testing.T) {
	var payload struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 1500.5, "b": "2 000,25"}`), &payload))
	assert.Equal(t, Amount(150050), payload.A)
	assert.Equal(t, Amount(200025), payload.B)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1500.50,"b":2000.25}`, string(out))
}

func TestNumberInWords(t *testing.T) {
	cases := map[int64]string{
		0:             "zéro",
		1:             "un",
		16:            "seize",
		17:            "dix-sept",
		21:            "vingt et un",
		22:            "vingt-deux",
		70:            "soixante-dix",
		71:            "soixante et onze",
		77:            "soixante-dix-sept",
		80:            "quatre-vingts",
		81:            "quatre-vingt-un",
		91:            "quatre-vingt-onze",
		100:           "cent",
		101:           "cent un",
		200:           "deux cents",
		201:           "deux cent un",
		1000:          "mille",
		1001:          "mille un",
		80000:         "quatre-vingt mille",
		200000:        "deux cent mille",
		1000000:       "un million",
		2000000:       "deux millions",
		200000000:     "deux cents millions",
		1000000000:    "un milliard",
		3_021_080_100: "trois milliards vingt et un millions quatre-vingt mille cent",
	}
	for n, want := range cases {
		assert.Equal(t, want, NumberInWords(n), n)
	}
}

func TestAmountInWords(t *testing.T) {
	assert.Equal(t, "zéro dirham", Amount(0).InWords())
	assert.Equal(t, "un dirham", Dirhams(1).InWords())
	assert.Equal(t, "cent mille dirhams", Dirhams(100000).InWords())
	assert.Equal(t, "un million de dirhams", Dirhams(1_000_000).InWords())
	assert.Equal(t,
		"douze mille trois cent quarante-cinq dirhams et soixante-sept centimes",
		Amount(1234567).InWords())
	assert.Equal(t, "moins deux dirhams et un centime", Amount(-201).InWords())
}
