package models

import "time"

// Gerant manager of a société
type Gerant struct {
	SoftDeleteModel
	SocieteID      uint       `json:"societe_id" gorm:"not null;index;uniqueIndex:idx_gerants_cin_societe,where:deleted_at IS NULL"`
	Nom            string     `json:"nom" gorm:"not null;size:100"`
	Prenom         string     `json:"prenom" gorm:"not null;size:100"`
	CIN            string     `json:"cin" gorm:"not null;size:20;uniqueIndex:idx_gerants_cin_societe,where:deleted_at IS NULL"`
	Nationalite    string     `json:"nationalite" gorm:"size:50"`
	Adresse        string     `json:"adresse" gorm:"size:255"`
	Telephone      string     `json:"telephone" gorm:"size:20"`
	DateNomination *time.Time `json:"date_nomination,omitempty"`
	DureeMandat    int        `json:"duree_mandat"` // years, 0 = unlimited
	IsAssocie      bool       `json:"is_associe"`
	Active         bool       `json:"active" gorm:"default:true"`
}

func (g *Gerant) TableName() string {
	return "gerants"
}

func (g *Gerant) FullName() string {
	return g.Prenom + " " + g.Nom
}
