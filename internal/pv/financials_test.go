package pv

import (
	stderrors "errors"
	"testing"

	"fiduciaire/pkg/errors"
	"fiduciaire/pkg/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveProfitWithoutDividends(t *testing.T) {
	a, err := Derive(Inputs{
		Capital:     money.Dirhams(100_000),
		ResultatNet: money.Dirhams(50_000),
	})
	require.NoError(t, err)

	assert.Equal(t, money.Dirhams(2_500), a.DotationReserveLegale)
	assert.Equal(t, money.Dirhams(10_000), a.PlafondReserveLegale)
	assert.Equal(t, money.Dirhams(47_500), a.Distribuable)
	assert.Equal(t, money.Amount(0), a.Dividendes)
	assert.Equal(t, money.Dirhams(47_500), a.AffectationReport)
	assert.Equal(t, money.Dirhams(47_500), a.NouveauReport)
	assert.Equal(t, money.Dirhams(150_000), a.CapitauxPropres)
	assert.False(t, a.CapitauxPropresFaibles)
}

func TestDeriveReserveCeiling(t *testing.T) {
	a, err := Derive(Inputs{
		Capital:                money.Dirhams(100_000),
		ResultatNet:            money.Dirhams(50_000),
		ReserveLegaleExistante: money.Dirhams(9_000),
	})
	require.NoError(t, err)
	assert.Equal(t, money.Dirhams(1_000), a.DotationReserveLegale)

	a, err = Derive(Inputs{
		Capital:                money.Dirhams(100_000),
		ResultatNet:            money.Dirhams(50_000),
		ReserveLegaleExistante: money.Dirhams(12_000),
	})
	require.NoError(t, err)
	assert.Equal(t, money.Amount(0), a.DotationReserveLegale)
}

func TestDerivePriorLossesReduceReserveBase(t *testing.T) {
	in := Inputs{
		Capital:         money.Dirhams(100_000),
		ResultatNet:     money.Dirhams(50_000),
		ReportAnterieur: money.Dirhams(-40_000),
	}
	a, err := Derive(in)
	require.NoError(t, err)
	assert.Equal(t, money.Dirhams(500), a.DotationReserveLegale)
	assert.Equal(t, money.Dirhams(9_500), a.Distribuable)

	in.DividendesDemandes = money.Dirhams(10_000)
	_, err = Derive(in)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrValidation))

	in.DividendesDemandes = money.Dirhams(9_500)
	a, err = Derive(in)
	require.NoError(t, err)
	assert.Equal(t, money.Dirhams(40_000), a.AffectationReport)
	assert.Equal(t, money.Amount(0), a.NouveauReport)
}

func TestDeriveLoss(t *testing.T) {
	a, err := Derive(Inputs{
		Capital:         money.Dirhams(100_000),
		ResultatNet:     money.Dirhams(-30_000),
		ReportAnterieur: money.Dirhams(-60_000),
	})
	require.NoError(t, err)
	assert.Equal(t, money.Amount(0), a.DotationReserveLegale)
	assert.Equal(t, money.Amount(0), a.Distribuable)
	assert.Equal(t, money.Dirhams(-30_000), a.AffectationReport)
	assert.Equal(t, money.Dirhams(-90_000), a.NouveauReport)
	assert.Equal(t, money.Dirhams(10_000), a.CapitauxPropres)
	assert.True(t, a.CapitauxPropresFaibles)
}

func TestDeriveRejectsBadInputs(t *testing.T) {
	cases := map[string]Inputs{
		"no capital":         {ResultatNet: money.Dirhams(10)},
		"negative reserve":   {Capital: money.Dirhams(10_000), ReserveLegaleExistante: -1},
		"negative dividends": {Capital: money.Dirhams(10_000), DividendesDemandes: -1},
		"dividends on loss": {
			Capital: money.Dirhams(10_000), ResultatNet: money.Dirhams(-5), DividendesDemandes: money.Dirhams(1),
		},
	}
	for name, in := range cases {
		_, err := Derive(in)
		assert.Error(t, err, name)
	}
}

func TestDeriveAllocationAddsUp(t *testing.T) {
	results := []money.Amount{-123_456, -1, 0, 1, 99, 12_345_67, 98_765_432}
	priors := []money.Amount{-5_000_000, 0, 1_234_500}
	reserves := []money.Amount{0, 500_000, 2_000_000}
	capital := money.Dirhams(100_000)

	for _, r := range results {
		for _, p := range priors {
			for _, res := range reserves {
				in := Inputs{Capital: capital, ResultatNet: r, ReportAnterieur: p, ReserveLegaleExistante: res}
				a, err := Derive(in)
				require.NoError(t, err)
				assert.Equal(t, r, a.DotationReserveLegale+a.Dividendes+a.AffectationReport)
				assert.LessOrEqual(t, int64(res+a.DotationReserveLegale), int64(money.Max(a.PlafondReserveLegale, res)))
				assert.GreaterOrEqual(t, int64(a.DotationReserveLegale), int64(0))

				if r > 0 && a.Distribuable > 0 {
					in.DividendesDemandes = a.Distribuable
					a2, err := Derive(in)
					require.NoError(t, err)
					assert.Equal(t, r, a2.DotationReserveLegale+a2.Dividendes+a2.AffectationReport)
				}
			}
		}
	}
}
