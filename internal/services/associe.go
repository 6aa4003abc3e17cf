package services

import (
	stderrors "errors"
	"strings"
	"time"

	"fiduciaire/internal/models"
	"fiduciaire/pkg/errors"

	"gorm.io/gorm"
)

// AssocieService shareholders of a société
type AssocieService struct {
	db       *gorm.DB
	societes *SocieteService
}

// AssocieInput create/update form
type AssocieInput struct {
	Type        string
	Nom         string
	Prenom      string
	CIN         string
	Nationalite string
	Adresse     string
	NombreParts int64
	DateEntree  *time.Time
}

func NewAssocieService(db *gorm.DB, societes *SocieteService) *AssocieService {
	return &AssocieService{
		db:       db,
		societes: societes,
	}
}

// List associés of a société, largest holders first.
func (s *AssocieService) List(actor *models.User, societeID uint) ([]models.Associe, error) {
	if err := s.societes.RequireAccess(actor, societeID, models.AccessViewer); err != nil {
		return nil, err
	}
	societe, err := s.societes.load(societeID)
	if err != nil {
		return nil, err
	}
	var associes []models.Associe
	err = s.db.Where("societe_id = ?", societeID).Order("nombre_parts DESC, id ASC").Find(&associes).Error
	if err != nil {
		return nil, err
	}
	fillPercentages(societe, associes)
	return associes, nil
}

// Create adds an associé. Requires EDITOR.
func (s *AssocieService) Create(actor *models.User, societeID uint, in AssocieInput) (*models.Associe, error) {
	if err := s.societes.RequireAccess(actor, societeID, models.AccessEditor); err != nil {
		return nil, err
	}
	in = normalizeAssocie(in)
	if err := validateAssocie(in); err != nil {
		return nil, err
	}
	societe, err := s.societes.load(societeID)
	if err != nil {
		return nil, err
	}
	if err := s.checkConstraints(societe, 0, in); err != nil {
		return nil, err
	}

	associe := &models.Associe{SocieteID: societeID}
	applyAssocieInput(associe, in)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(associe).Error; err != nil {
			return err
		}
		return syncGerantsAssocie(tx, societeID)
	})
	if err != nil {
		return nil, err
	}
	associe.Pourcentage = percentOf(associe.NombreParts, societe.NombreParts)
	return associe, nil
}

// Update changes an associé. Requires EDITOR.
func (s *AssocieService) Update(actor *models.User, societeID, id uint, in AssocieInput) (*models.Associe, error) {
	if err := s.societes.RequireAccess(actor, societeID, models.AccessEditor); err != nil {
		return nil, err
	}
	in = normalizeAssocie(in)
	if err := validateAssocie(in); err != nil {
		return nil, err
	}
	associe, err := s.get(societeID, id)
	if err != nil {
		return nil, err
	}
	societe, err := s.societes.load(societeID)
	if err != nil {
		return nil, err
	}
	if err := s.checkConstraints(societe, id, in); err != nil {
		return nil, err
	}

	applyAssocieInput(associe, in)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(associe).Error; err != nil {
			return err
		}
		return syncGerantsAssocie(tx, societeID)
	})
	if err != nil {
		return nil, err
	}
	associe.Pourcentage = percentOf(associe.NombreParts, societe.NombreParts)
	return associe, nil
}

// Delete removes an associé. Requires EDITOR.
func (s *AssocieService) Delete(actor *models.User, societeID, id uint) error {
	if err := s.societes.RequireAccess(actor, societeID, models.AccessEditor); err != nil {
		return err
	}
	associe, err := s.get(societeID, id)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(associe).Error; err != nil {
			return err
		}
		return syncGerantsAssocie(tx, societeID)
	})
}

func (s *AssocieService) get(societeID, id uint) (*models.Associe, error) {
	var associe models.Associe
	err := s.db.Where("id = ? AND societe_id = ?", id, societeID).First(&associe).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrNotFound, "associé introuvable")
	}
	if err != nil {
		return nil, err
	}
	return &associe, nil
}

// checkConstraints: CIN unique in the société, parts within the total,
// a single associé for SARLAU. selfID is excluded (0 on create).
func (s *AssocieService) checkConstraints(societe *models.Societe, selfID uint, in AssocieInput) error {
	var dup int64
	err := s.db.Model(&models.Associe{}).
		Where("societe_id = ? AND cin = ? AND id <> ?", societe.ID, in.CIN, selfID).
		Count(&dup).Error
	if err != nil {
		return err
	}
	if dup > 0 {
		return errors.Newf(errors.ErrConflict, "un associé avec la CIN %s existe déjà dans cette société", in.CIN)
	}

	var others, otherParts int64
	query := s.db.Model(&models.Associe{}).Where("societe_id = ? AND id <> ?", societe.ID, selfID)
	if err := query.Count(&others).Error; err != nil {
		return err
	}
	err = s.db.Model(&models.Associe{}).
		Where("societe_id = ? AND id <> ?", societe.ID, selfID).
		Select("COALESCE(SUM(nombre_parts), 0)").
		Scan(&otherParts).Error
	if err != nil {
		return err
	}

	if societe.FormeJuridique == models.FormeSARLAU && others > 0 {
		return errors.New(errors.ErrValidation, "une SARLAU ne peut compter qu'un seul associé")
	}
	if otherParts+in.NombreParts > societe.NombreParts {
		return errors.Newf(errors.ErrValidation,
			"total des parts des associés (%d) supérieur au nombre de parts de la société (%d)",
			otherParts+in.NombreParts, societe.NombreParts)
	}
	return nil
}

func validateAssocie(in AssocieInput) error {
	if in.Type != models.AssociePhysique && in.Type != models.AssocieMorale {
		return errors.Newf(errors.ErrValidation, "type d'associé %q invalide", in.Type)
	}
	if in.Nom == "" {
		return errors.New(errors.ErrValidation, "le nom de l'associé est obligatoire")
	}
	if in.CIN == "" {
		return errors.New(errors.ErrValidation, "la CIN (ou l'identifiant) de l'associé est obligatoire")
	}
	if in.NombreParts <= 0 {
		return errors.New(errors.ErrValidation, "le nombre de parts doit être positif")
	}
	return nil
}

func normalizeAssocie(in AssocieInput) AssocieInput {
	in.Type = strings.ToUpper(strings.TrimSpace(in.Type))
	if in.Type == "" {
		in.Type = models.AssociePhysique
	}
	in.Nom = strings.TrimSpace(in.Nom)
	in.Prenom = strings.TrimSpace(in.Prenom)
	in.CIN = normalizeCIN(in.CIN)
	return in
}

func applyAssocieInput(a *models.Associe, in AssocieInput) {
	a.Type = in.Type
	a.Nom = in.Nom
	a.Prenom = in.Prenom
	a.CIN = in.CIN
	a.Nationalite = strings.TrimSpace(in.Nationalite)
	a.Adresse = strings.TrimSpace(in.Adresse)
	a.NombreParts = in.NombreParts
	a.DateEntree = in.DateEntree
}

func normalizeCIN(cin string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(cin), " ", ""))
}

func percentOf(parts, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(parts) * 100 / float64(total)
}

// syncGerantsAssocie recomputes is_associe for every gérant of the société.
func syncGerantsAssocie(tx *gorm.DB, societeID uint) error {
	cins := tx.Model(&models.Associe{}).Select("cin").Where("societe_id = ?", societeID)
	if err := tx.Model(&models.Gerant{}).
		Where("societe_id = ?", societeID).
		Update("is_associe", false).Error; err != nil {
		return err
	}
	return tx.Model(&models.Gerant{}).
		Where("societe_id = ? AND cin IN (?)", societeID, cins).
		Update("is_associe", true).Error
}
