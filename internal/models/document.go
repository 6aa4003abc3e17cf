package models

import (
	"fiduciaire/pkg/money"
	"time"

	"gorm.io/datatypes"
)

// Document generated minutes for one société and one exercice
type Document struct {
	SoftDeleteModel
	SocieteID       uint      `json:"societe_id" gorm:"not null;index"`
	TypePVID        uint      `json:"type_pv_id" gorm:"not null;index"`
	Exercice        int       `json:"exercice" gorm:"not null;index"`
	DateAssemblee   time.Time `json:"date_assemblee"`
	LieuAssemblee   string    `json:"lieu_assemblee" gorm:"size:255"`
	PresidentSeance string    `json:"president_seance" gorm:"size:200"`
	Variant         string    `json:"variant" gorm:"size:20"`

	ResultatNet             money.Amount `json:"resultat_net"`
	ReserveLegaleAnterieure money.Amount `json:"reserve_legale_anterieure"`
	ReportAnterieur         money.Amount `json:"report_anterieur"`
	AutresReserves          money.Amount `json:"autres_reserves"`
	DotationReserveLegale   money.Amount `json:"dotation_reserve_legale"`
	Dividendes              money.Amount `json:"dividendes"`
	AffectationReport       money.Amount `json:"affectation_report"`
	NouveauReport           money.Amount `json:"nouveau_report"`
	CapitauxPropres         money.Amount `json:"capitaux_propres"`
	CapitauxPropresFaibles  bool         `json:"capitaux_propres_faibles"`

	Status          string         `json:"status" gorm:"not null;size:20;default:'BROUILLON'"`
	FileName        string         `json:"file_name" gorm:"size:255"`
	TemplateVersion string         `json:"template_version" gorm:"size:50"`
	Variables       datatypes.JSON `json:"variables,omitempty"` // pv.Data snapshot
	Contenu         string         `json:"-" gorm:"type:text"`      // substituted HTML
	CreatedBy       uint           `json:"created_by" gorm:"index"`


	Societe *Societe `json:"societe,omitempty" gorm:"foreignKey:SocieteID"`
	TypePV  *TypePV  `json:"type_pv,omitempty" gorm:"foreignKey:TypePVID"`
}

func (d *Document) TableName() string {
	return "documents"
}

// Document statuses
const (
	DocumentStatusDraft     = "BROUILLON"
	DocumentStatusGenerated = "GENERE"
)
