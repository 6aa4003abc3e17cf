package models

import (
	"fiduciaire/pkg/money"
	"time"
)

// Societe client company managed by the firm
type Societe struct {
	SoftDeleteModel
	RaisonSociale     string       `json:"raison_sociale" gorm:"not null;size:200;index"`
	FormeJuridique    string       `json:"forme_juridique" gorm:"not null;size:20"`
	Capital           money.Amount `json:"capital" gorm:"not null"`
	NombreParts       int64        `json:"nombre_parts" gorm:"not null"`
	SiegeSocial       string       `json:"siege_social" gorm:"size:255"`
	Ville             string       `json:"ville" gorm:"size:100"`
	RC                string       `json:"rc" gorm:"size:50;index"`
	ICE               string       `json:"ice" gorm:"size:15;uniqueIndex:idx_societes_ice,where:deleted_at IS NULL AND ice <> ''"`
	IdentifiantFiscal string       `json:"if" gorm:"column:identifiant_fiscal;size:20;uniqueIndex:idx_societes_if,where:deleted_at IS NULL AND identifiant_fiscal <> ''"`
	Patente           string       `json:"patente" gorm:"size:30"`
	CNSS              string       `json:"cnss" gorm:"size:30"`
	DateCreation      *time.Time   `json:"date_creation,omitempty"`
	Email             string       `json:"email" gorm:"size:100"`
	Telephone         string       `json:"telephone" gorm:"size:20"`
	CreatedBy         uint         `json:"created_by" gorm:"index"`


	Associes []Associe `json:"associes,omitempty" gorm:"foreignKey:SocieteID"`
	Gerants  []Gerant  `json:"gerants,omitempty" gorm:"foreignKey:SocieteID"`
}

func (s *Societe) TableName() string {
	return "societes"
}

// Legal forms
const (
	FormeSARL   = "SARL"
	FormeSARLAU = "SARLAU"
	FormeSA     = "SA"
	FormeSNC    = "SNC"
	FormeSCS    = "SCS"
)

// IsValidFormeJuridique reports whether f is a supported legal form
func IsValidFormeJuridique(f string) bool {
	switch f {
	case FormeSARL, FormeSARLAU, FormeSA, FormeSNC, FormeSCS:
		return true
	}
	return false
}

// ValeurNominale nominal value of one share
func (s *Societe) ValeurNominale() money.Amount {
	if s.NombreParts <= 0 {
		return 0
	}
	return money.Amount(int64(s.Capital) / s.NombreParts)
}

// SocieteUser links a user to a société with an access level.
type SocieteUser struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	SocieteID uint      `json:"societe_id" gorm:"not null;uniqueIndex:idx_societe_user"`
	UserID    uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_societe_user;index"`
	Access    string    `json:"access" gorm:"not null;size:20"`
	GrantedBy *uint     `json:"granted_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User    *User    `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Societe *Societe `json:"societe,omitempty" gorm:"foreignKey:SocieteID"`
}

func (SocieteUser) TableName() string {
	return "societe_users"
}

// Access levels, ordered
const (
	AccessViewer = "VIEWER"
	AccessEditor = "EDITOR"
	AccessOwner  = "OWNER"
)

var accessRank = map[string]int{
	AccessViewer: 1,
	AccessEditor: 2,
	AccessOwner:  3,
}

// IsValidAccess reports whether level is known
func IsValidAccess(level string) bool {
	_, ok := accessRank[level]
	return ok
}

// AccessAtLeast reports whether have grants at least need.
func AccessAtLeast(have, need string) bool {
	return accessRank[have] >= accessRank[need] && accessRank[need] > 0
}
