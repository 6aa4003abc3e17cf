package services

import (
	stderrors "errors"
	"strings"
	"time"

	"fiduciaire/internal/models"
	"fiduciaire/pkg/errors"

	"gorm.io/gorm"
)

// GerantService managers of a société
type GerantService struct {
	db       *gorm.DB
	societes *SocieteService
}

// GerantInput create/update form
type GerantInput struct {
	Nom            string
	Prenom         string
	CIN            string
	Nationalite    string
	Adresse        string
	Telephone      string
	DateNomination *time.Time
	DureeMandat    int
	Active         *bool
}

func NewGerantService(db *gorm.DB, societes *SocieteService) *GerantService {
	return &GerantService{
		db:       db,
		societes: societes,
	}
}

// List gérants of a société; activeOnly hides former managers.
func (s *GerantService) List(actor *models.User, societeID uint, activeOnly bool) ([]models.Gerant, error) {
	if err := s.societes.RequireAccess(actor, societeID, models.AccessViewer); err != nil {
		return nil, err
	}
	var gerants []models.Gerant
	query := s.db.Where("societe_id = ?", societeID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	err := query.Order("id ASC").Find(&gerants).Error
	return gerants, err
}

// Create adds a gérant. Requires EDITOR.
func (s *GerantService) Create(actor *models.User, societeID uint, in GerantInput) (*models.Gerant, error) {
	if err := s.societes.RequireAccess(actor, societeID, models.AccessEditor); err != nil {
		return nil, err
	}
	in = normalizeGerant(in)
	if err := validateGerant(in); err != nil {
		return nil, err
	}
	if err := s.ensureCINFree(societeID, 0, in.CIN); err != nil {
		return nil, err
	}

	gerant := &models.Gerant{SocieteID: societeID, Active: true}
	applyGerantInput(gerant, in)
	isAssocie, err := s.isAssocie(societeID, gerant.CIN)
	if err != nil {
		return nil, err
	}
	gerant.IsAssocie = isAssocie

	if err := s.db.Create(gerant).Error; err != nil {
		return nil, err
	}
	// default:true swallows false on insert
	if !gerant.Active {
		if err := s.db.Model(gerant).Update("active", false).Error; err != nil {
			return nil, err
		}
	}
	return gerant, nil
}

// Update changes a gérant. Requires EDITOR.
func (s *GerantService) Update(actor *models.User, societeID, id uint, in GerantInput) (*models.Gerant, error) {
	if err := s.societes.RequireAccess(actor, societeID, models.AccessEditor); err != nil {
		return nil, err
	}
	in = normalizeGerant(in)
	if err := validateGerant(in); err != nil {
		return nil, err
	}
	gerant, err := s.get(societeID, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCINFree(societeID, id, in.CIN); err != nil {
		return nil, err
	}

	applyGerantInput(gerant, in)
	if gerant.IsAssocie, err = s.isAssocie(societeID, gerant.CIN); err != nil {
		return nil, err
	}
	if err := s.db.Save(gerant).Error; err != nil {
		return nil, err
	}
	return gerant, nil
}

// Delete removes a gérant. Requires EDITOR.
func (s *GerantService) Delete(actor *models.User, societeID, id uint) error {
	if err := s.societes.RequireAccess(actor, societeID, models.AccessEditor); err != nil {
		return err
	}
	gerant, err := s.get(societeID, id)
	if err != nil {
		return err
	}
	return s.db.Delete(gerant).Error
}

func (s *GerantService) get(societeID, id uint) (*models.Gerant, error) {
	var gerant models.Gerant
	err := s.db.Where("id = ? AND societe_id = ?", id, societeID).First(&gerant).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrNotFound, "gérant introuvable")
	}
	if err != nil {
		return nil, err
	}
	return &gerant, nil
}

func (s *GerantService) ensureCINFree(societeID, selfID uint, cin string) error {
	var count int64
	err := s.db.Model(&models.Gerant{}).
		Where("societe_id = ? AND cin = ? AND id <> ?", societeID, cin, selfID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.Newf(errors.ErrConflict, "un gérant avec la CIN %s existe déjà dans cette société", cin)
	}
	return nil
}

func (s *GerantService) isAssocie(societeID uint, cin string) (bool, error) {
	var count int64
	err := s.db.Model(&models.Associe{}).
		Where("societe_id = ? AND cin = ?", societeID, cin).
		Count(&count).Error
	return count > 0, err
}

func validateGerant(in GerantInput) error {
	if in.Nom == "" || in.Prenom == "" {
		return errors.New(errors.ErrValidation, "le nom et le prénom du gérant sont obligatoires")
	}
	if in.CIN == "" {
		return errors.New(errors.ErrValidation, "la CIN du gérant est obligatoire")
	}
	if in.DureeMandat < 0 {
		return errors.New(errors.ErrValidation, "la durée du mandat ne peut pas être négative")
	}
	return nil
}

func normalizeGerant(in GerantInput) GerantInput {
	in.Nom = strings.TrimSpace(in.Nom)
	in.Prenom = strings.TrimSpace(in.Prenom)
	in.CIN = normalizeCIN(in.CIN)
	return in
}

func applyGerantInput(g *models.Gerant, in GerantInput) {
	g.Nom = in.Nom
	g.Prenom = in.Prenom
	g.CIN = in.CIN
	g.Nationalite = strings.TrimSpace(in.Nationalite)
	g.Adresse = strings.TrimSpace(in.Adresse)
	g.Telephone = strings.TrimSpace(in.Telephone)
	g.DateNomination = in.DateNomination
	g.DureeMandat = in.DureeMandat
	if in.Active != nil {
		g.Active = *in.Active
	}
}
