package models

import "time"

// Associe shareholder of a société
type Associe struct {
	SoftDeleteModel
	SocieteID   uint       `json:"societe_id" gorm:"not null;index;uniqueIndex:idx_associes_cin_societe,where:deleted_at IS NULL"`
	Type        string     `json:"type" gorm:"not null;size:20;default:'PHYSIQUE'"`
	Nom         string     `json:"nom" gorm:"not null;size:200"`
	Prenom      string     `json:"prenom" gorm:"size:100"`
	CIN         string     `json:"cin" gorm:"not null;size:20;uniqueIndex:idx_associes_cin_societe,where:deleted_at IS NULL"`
	Nationalite string     `json:"nationalite" gorm:"size:50"`
	Adresse     string     `json:"adresse" gorm:"size:255"`
	NombreParts int64      `json:"nombre_parts" gorm:"not null"`
	DateEntree  *time.Time `json:"date_entree,omitempty"`


	Pourcentage float64 `json:"pourcentage" gorm:"-"`
}

func (a *Associe) TableName() string {
	return "associes"
}

// Shareholder types
const (
	AssociePhysique = "PHYSIQUE"
	AssocieMorale   = "MORALE"
)

// DisplayName "Prenom Nom" for people, the company name otherwise.
func (a *Associe) DisplayName() string {
	if a.Type == AssocieMorale || a.Prenom == "" {
		return a.Nom
	}
	return a.Prenom + " " + a.Nom
}
