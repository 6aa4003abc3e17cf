package pv

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"fiduciaire/pkg/money"
)

// Societe company details printed on the minutes.
type Societe struct {
	RaisonSociale  string       `json:"raison_sociale"`
	FormeJuridique string       `json:"forme_juridique"`
	Capital        money.Amount `json:"capital"`
	NombreParts    int64        `json:"nombre_parts"`
	SiegeSocial    string       `json:"siege_social"`
	Ville          string       `json:"ville"`
	RC             string       `json:"rc"`
	ICE            string       `json:"ice"`
	IF             string       `json:"if"`
}

// Associe a shareholder present at the meeting.
type Associe struct {
	Nom   string `json:"nom"`
	Parts int64  `json:"parts"`
}

// Data everything needed to fill a template.
type Data struct {
	Cabinet        string     `json:"cabinet"`
	VilleSignature string     `json:"ville_signature"`
	Societe        Societe    `json:"societe"`
	Associes       []Associe  `json:"associes"`
	Gerants        []string   `json:"gerants"`
	Exercice       int        `json:"exercice"`
	DateAssemblee  time.Time  `json:"date_assemblee"`
	LieuAssemblee  string     `json:"lieu_assemblee"`
	President      string     `json:"president"`
	Inputs         Inputs     `json:"inputs"`
	Allocation     Allocation `json:"allocation"`
	GeneratedAt    time.Time  `json:"generated_at"`
}

var formesLongues = map[string]string{
	"SARL":   "Société à Responsabilité Limitée",
	"SARLAU": "Société à Responsabilité Limitée d'Associé Unique",
	"SA":     "Société Anonyme",
	"SNC":    "Société en Nom Collectif",
	"SCS":    "Société en Commandite Simple",
}

var moisFrancais = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// FormatDate renders "1er juin 2026", "15 juin 2026".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	day := strconv.Itoa(t.Day())
	if t.Day() == 1 {
		day = "1er"
	}
	return fmt.Sprintf("%s %s %d", day, moisFrancais[t.Month()-1], t.Year())
}

// knownTokens every token Variables can produce.
var knownTokens = []string{
	"CABINET", "VILLE_SIGNATURE", "DATE_DOCUMENT",
	"RAISON_SOCIALE", "FORME_JURIDIQUE", "FORME_JURIDIQUE_LONGUE",
	"CAPITAL", "CAPITAL_LETTRES", "NOMBRE_PARTS", "VALEUR_NOMINALE",
	"SIEGE_SOCIAL", "VILLE", "RC", "ICE", "IF",
	"TITRE_ASSEMBLEE", "ORGANE_DECISION",
	"EXERCICE", "DATE_CLOTURE", "DATE_ASSEMBLEE", "HEURE_ASSEMBLEE", "LIEU_ASSEMBLEE", "PRESIDENT",
	"ASSOCIES_HTML", "REPARTITION_DIVIDENDES_HTML", "GERANTS_HTML", "GERANTS",
	"PARTS_PRESENTES", "POURCENTAGE_PRESENT",
	"RESULTAT_NET", "RESULTAT_NET_LETTRES", "PERTE", "PERTE_LETTRES",
	"RESERVE_LEGALE_EXISTANTE", "DOTATION_RESERVE_LEGALE", "PLAFOND_RESERVE_LEGALE",
	"BENEFICE_DISTRIBUABLE", "DIVIDENDES", "DIVIDENDES_LETTRES", "DIVIDENDE_PAR_PART",
	"REPORT_ANTERIEUR", "AFFECTATION_REPORT", "NOUVEAU_REPORT", "AUTRES_RESERVES",
	"CAPITAUX_PROPRES", "QUART_CAPITAL",
}

var knownTokenSet = func() map[string]bool {
	set := make(map[string]bool, len(knownTokens))
	for _, t := range knownTokens {
		set[t] = true
	}
	return set
}()

// KnownTokens returns a copy of the token catalogue.
func KnownTokens() []string {
	return append([]string(nil), knownTokens...)
}

// KnownToken reports whether Variables produces name.
func KnownToken(name string) bool {
	return knownTokenSet[name]
}

// Variables flattens d into template values.
func (d Data) Variables() map[string]string {
	s := d.Societe
	a := d.Allocation
	in := d.Inputs
	unique := s.FormeJuridique == "SARLAU"

	vars := map[string]string{
		"CABINET":         d.Cabinet,
		"VILLE_SIGNATURE": firstNonEmpty(d.VilleSignature, s.Ville),
		"DATE_DOCUMENT":   FormatDate(d.GeneratedAt),

		"RAISON_SOCIALE":         s.RaisonSociale,
		"FORME_JURIDIQUE":        s.FormeJuridique,
		"FORME_JURIDIQUE_LONGUE": firstNonEmpty(formesLongues[s.FormeJuridique], s.FormeJuridique),
		"CAPITAL":                s.Capital.Format(),
		"CAPITAL_LETTRES":        s.Capital.InWords(),
		"NOMBRE_PARTS":           strconv.FormatInt(s.NombreParts, 10),
		"VALEUR_NOMINALE":        "",
		"SIEGE_SOCIAL":           s.SiegeSocial,
		"VILLE":                  s.Ville,
		"RC":                     s.RC,
		"ICE":                    s.ICE,
		"IF":                     s.IF,

		"EXERCICE":        strconv.Itoa(d.Exercice),
		"DATE_CLOTURE":    FormatDate(time.Date(d.Exercice, time.December, 31, 0, 0, 0, 0, time.UTC)),
		"DATE_ASSEMBLEE":  FormatDate(d.DateAssemblee),
		"HEURE_ASSEMBLEE": d.DateAssemblee.Format("15h04"),
		"LIEU_ASSEMBLEE":  firstNonEmpty(d.LieuAssemblee, "au siège social"),
		"PRESIDENT":       d.Chair(),
		"GERANTS":         strings.Join(d.Gerants, ", "),

		"RESULTAT_NET":             in.ResultatNet.Format(),
		"RESULTAT_NET_LETTRES":     in.ResultatNet.InWords(),
		"PERTE":                    money.Max(-in.ResultatNet, 0).Format(),
		"PERTE_LETTRES":            money.Max(-in.ResultatNet, 0).InWords(),
		"RESERVE_LEGALE_EXISTANTE": in.ReserveLegaleExistante.Format(),
		"DOTATION_RESERVE_LEGALE":  a.DotationReserveLegale.Format(),
		"PLAFOND_RESERVE_LEGALE":   a.PlafondReserveLegale.Format(),
		"BENEFICE_DISTRIBUABLE":    a.Distribuable.Format(),
		"DIVIDENDES":               a.Dividendes.Format(),
		"DIVIDENDES_LETTRES":       a.Dividendes.InWords(),
		"DIVIDENDE_PAR_PART":       "",
		"REPORT_ANTERIEUR":         in.ReportAnterieur.Format(),
		"AFFECTATION_REPORT":       a.AffectationReport.Format(),
		"NOUVEAU_REPORT":           a.NouveauReport.Format(),
		"AUTRES_RESERVES":          in.AutresReserves.Format(),
		"CAPITAUX_PROPRES":         a.CapitauxPropres.Format(),
		"QUART_CAPITAL":            s.Capital.MulRate(1, 4).Format(),
	}

	if s.NombreParts > 0 {
		vars["VALEUR_NOMINALE"] = s.Capital.MulRate(1, s.NombreParts).Format()
		vars["DIVIDENDE_PAR_PART"] = a.Dividendes.MulRate(1, s.NombreParts).Format()
	}

	if unique {
		vars["TITRE_ASSEMBLEE"] = "PROCÈS-VERBAL DES DÉCISIONS DE L'ASSOCIÉ UNIQUE"
		vars["ORGANE_DECISION"] = "L'Associé Unique"
	} else {
		vars["TITRE_ASSEMBLEE"] = "PROCÈS-VERBAL DE L'ASSEMBLÉE GÉNÉRALE ORDINAIRE"
		vars["ORGANE_DECISION"] = "L'Assemblée Générale"
	}

	var present int64
	for _, as := range d.Associes {
		present += as.Parts
	}
	vars["PARTS_PRESENTES"] = strconv.FormatInt(present, 10)
	vars["POURCENTAGE_PRESENT"] = percent(present, s.NombreParts)

	vars["ASSOCIES_HTML"] = d.associesHTML()
	vars["REPARTITION_DIVIDENDES_HTML"] = d.repartitionHTML(present)
	vars["GERANTS_HTML"] = listHTML(d.Gerants)

	return vars
}

// Chair who presides: the named president, else the first gérant, else the
// first associé.
func (d Data) Chair() string {
	if d.President != "" {
		return d.President
	}
	if len(d.Gerants) > 0 {
		return d.Gerants[0]
	}
	if len(d.Associes) > 0 {
		return d.Associes[0].Nom
	}
	return ""
}

func (d Data) associesHTML() string {
	items := make([]string, 0, len(d.Associes))
	for _, as := range d.Associes {
		items = append(items, fmt.Sprintf("%s, titulaire de %d parts sociales", as.Nom, as.Parts))
	}
	return listHTML(items)
}

// repartitionHTML splits the dividends pro rata to the parts held.
func (d Data) repartitionHTML(present int64) string {
	if d.Allocation.Dividendes <= 0 || present <= 0 {
		return ""
	}
	parts := make([]int64, len(d.Associes))
	for i, as := range d.Associes {
		parts[i] = as.Parts
	}
	shares := d.Allocation.Dividendes.Split(parts)
	items := make([]string, 0, len(d.Associes))
	for i, as := range d.Associes {
		items = append(items, fmt.Sprintf("%s : %s", as.Nom, shares[i].Format()))
	}
	return listHTML(items)
}

func listHTML(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<ul>")
	for _, item := range items {
		b.WriteString("<li>")
		b.WriteString(html.EscapeString(item))
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

func percent(part, total int64) string {
	if total <= 0 {
		return "0"
	}
	// two decimals, French separator
	hundredths := (part*10000 + total/2) / total
	return strings.TrimSuffix(strings.TrimSuffix(
		fmt.Sprintf("%d,%02d", hundredths/100, hundredths%100), "00"), ",")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
