package pv

import (
	"fiduciaire/pkg/errors"
	"fiduciaire/pkg/money"
)

// Legal reserve: 5% of the year's profit, less prior losses, until the
// reserve reaches one tenth of the capital.
const (
	reserveRatePercent    = 5
	reserveCeilingPercent = 10
)

// Inputs financial figures entered for the exercice.
type Inputs struct {
	Capital                money.Amount `json:"capital"`
	ResultatNet            money.Amount `json:"resultat_net"`
	ReserveLegaleExistante money.Amount `json:"reserve_legale_existante"`
	ReportAnterieur        money.Amount `json:"report_anterieur"`
	AutresReserves         money.Amount `json:"autres_reserves"`
	DividendesDemandes     money.Amount `json:"dividendes_demandes"`
}

// Allocation derived appropriation of the result.
// DotationReserveLegale + Dividendes + AffectationReport == ResultatNet.
type Allocation struct {
	DotationReserveLegale money.Amount `json:"dotation_reserve_legale"`
	PlafondReserveLegale  money.Amount `json:"plafond_reserve_legale"`
	Distribuable          money.Amount `json:"distribuable"`
	Dividendes            money.Amount `json:"dividendes"`
	AffectationReport     money.Amount `json:"affectation_report"`
	NouveauReport         money.Amount `json:"nouveau_report"`
	CapitauxPropres       money.Amount `json:"capitaux_propres"`
	// equity below a quarter of the capital: the associés must decide
	// whether the company continues
	CapitauxPropresFaibles bool `json:"capitaux_propres_faibles"`
}

// Derive computes the appropriation of the result.
func Derive(in Inputs) (Allocation, error) {
	if in.Capital <= 0 {
		return Allocation{}, errors.New(errors.ErrValidation, "le capital doit être positif")
	}
	if in.ReserveLegaleExistante < 0 || in.AutresReserves < 0 {
		return Allocation{}, errors.New(errors.ErrValidation, "les réserves ne peuvent pas être négatives")
	}
	if in.DividendesDemandes < 0 {
		return Allocation{}, errors.New(errors.ErrValidation, "les dividendes ne peuvent pas être négatifs")
	}

	var out Allocation
	out.PlafondReserveLegale = in.Capital.MulRate(reserveCeilingPercent, 100)

	if in.ResultatNet > 0 {
		base := in.ResultatNet + money.Min(in.ReportAnterieur, 0)
		room := money.Max(out.PlafondReserveLegale-in.ReserveLegaleExistante, 0)
		if base > 0 {
			out.DotationReserveLegale = money.Min(base.MulRate(reserveRatePercent, 100), room)
		}
		out.Distribuable = in.ResultatNet - out.DotationReserveLegale + in.ReportAnterieur

		if in.DividendesDemandes > money.Max(out.Distribuable, 0) {
			return Allocation{}, errors.Newf(errors.ErrValidation,
				"les dividendes (%s) dépassent le bénéfice distribuable (%s)",
				in.DividendesDemandes.Format(), money.Max(out.Distribuable, 0).Format())
		}
		out.Dividendes = in.DividendesDemandes
	} else {
		if in.DividendesDemandes > 0 {
			return Allocation{}, errors.New(errors.ErrValidation,
				"aucun dividende ne peut être distribué sur un exercice déficitaire")
		}
		out.Distribuable = money.Max(in.ResultatNet+in.ReportAnterieur, 0)
	}

	out.AffectationReport = in.ResultatNet - out.DotationReserveLegale - out.Dividendes
	out.NouveauReport = in.ReportAnterieur + out.AffectationReport
	out.CapitauxPropres = in.Capital + in.ReserveLegaleExistante + out.DotationReserveLegale +
		in.AutresReserves + out.NouveauReport
	out.CapitauxPropresFaibles = int64(out.CapitauxPropres)*4 < int64(in.Capital)

	return out, nil
}
