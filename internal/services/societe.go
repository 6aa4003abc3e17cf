package services

import (
	"context"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"fiduciaire/internal/models"
	"fiduciaire/pkg/errors"
	"fiduciaire/pkg/logger"
	"fiduciaire/pkg/money"
	"fiduciaire/pkg/pagination"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var validate = validator.New()

// SocieteService sociétés and their access links
type SocieteService struct {
	db            *gorm.DB
	notifications *NotificationService
}

// SocieteInput create/update form
type SocieteInput struct {
	RaisonSociale     string
	FormeJuridique    string
	Capital           money.Amount
	NombreParts       int64
	SiegeSocial       string
	Ville             string
	RC                string
	ICE               string
	IdentifiantFiscal string
	Patente           string
	CNSS              string
	DateCreation      *time.Time
	Email             string
	Telephone         string
}

// SocieteFilter list filters
type SocieteFilter struct {
	Keyword        string
	FormeJuridique string
	Ville          string
}

// Member a user linked to a société
type Member struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Nom    string `json:"nom"`
	Prenom string `json:"prenom"`
	Role   string `json:"role"`
	Access string `json:"access"`
}

func NewSocieteService(db *gorm.DB, notifications *NotificationService) *SocieteService {
	return &SocieteService{
		db:            db,
		notifications: notifications,
	}
}

// ========== Access ==========

// AccessOf returns actor's level on the société. ADMIN is OWNER everywhere.
// Sociétés the actor cannot see are reported as not found.
func (s *SocieteService) AccessOf(actor *models.User, societeID uint) (string, error) {
	var count int64
	if err := s.db.Model(&models.Societe{}).Where("id = ?", societeID).Count(&count).Error; err != nil {
		return "", err
	}
	if count == 0 {
		return "", errors.New(errors.ErrNotFound, "société introuvable")
	}
	if actor.IsAdmin() {
		return models.AccessOwner, nil
	}

	var link models.SocieteUser
	err := s.db.Where("societe_id = ? AND user_id = ?", societeID, actor.ID).First(&link).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return "", errors.New(errors.ErrNotFound, "société introuvable")
	}
	if err != nil {
		return "", err
	}
	return link.Access, nil
}

// RequireAccess fails unless actor holds at least need on the société.
func (s *SocieteService) RequireAccess(actor *models.User, societeID uint, need string) error {
	have, err := s.AccessOf(actor, societeID)
	if err != nil {
		return err
	}
	if !models.AccessAtLeast(have, need) {
		return errors.Newf(errors.ErrForbidden, "accès %s requis sur cette société", need)
	}
	return nil
}

// accessibleIDs subquery of the sociétés visible to actor; nil for ADMIN.
func (s *SocieteService) accessibleIDs(actor *models.User) *gorm.DB {
	if actor.IsAdmin() {
		return nil
	}
	return s.db.Model(&models.SocieteUser{}).Select("societe_id").Where("user_id = ?", actor.ID)
}

// ========== CRUD ==========

// Create registers a société and makes actor its OWNER.
func (s *SocieteService) Create(ctx context.Context, actor *models.User, in SocieteInput) (*models.Societe, error) {
	in = normalizeSociete(in)
	if err := s.Validate(in); err != nil {
		return nil, err
	}
	if err := s.ensureIdentifiersFree(0, in); err != nil {
		return nil, err
	}

	societe := &models.Societe{CreatedBy: actor.ID}
	applySocieteInput(societe, in)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(societe).Error; err != nil {
			return err
		}
		link := &models.SocieteUser{
			SocieteID: societe.ID,
			UserID:    actor.ID,
			Access:    models.AccessOwner,
			GrantedBy: &actor.ID,
		}
		return tx.Create(link).Error
	})
	if err != nil {
		return nil, err
	}

	logger.GetLogger().WithField("societe_id", societe.ID).Infof("société %s créée par %d", societe.RaisonSociale, actor.ID)
	return societe, nil
}

// Update requires EDITOR. The share count cannot drop below the parts
// already held by associés.
func (s *SocieteService) Update(ctx context.Context, actor *models.User, id uint, in SocieteInput) (*models.Societe, error) {
	if err := s.RequireAccess(actor, id, models.AccessEditor); err != nil {
		return nil, err
	}
	in = normalizeSociete(in)
	if err := s.Validate(in); err != nil {
		return nil, err
	}
	if err := s.ensureIdentifiersFree(id, in); err != nil {
		return nil, err
	}

	societe, err := s.load(id)
	if err != nil {
		return nil, err
	}

	var held int64
	var count int64
	if err := s.db.Model(&models.Associe{}).Where("societe_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Associe{}).Where("societe_id = ?", id).
		Select("COALESCE(SUM(nombre_parts), 0)").Scan(&held).Error; err != nil {
		return nil, err
	}
	if held > in.NombreParts {
		return nil, errors.Newf(errors.ErrValidation,
			"les associés détiennent déjà %d parts, plus que les %d parts demandées", held, in.NombreParts)
	}
	if in.FormeJuridique == models.FormeSARLAU && count > 1 {
		return nil, errors.New(errors.ErrValidation, "une SARLAU ne peut compter qu'un seul associé")
	}

	applySocieteInput(societe, in)
	if err := s.db.WithContext(ctx).Save(societe).Error; err != nil {
		return nil, err
	}
	return societe, nil
}

// Delete requires OWNER; associés, gérants and documents go with it.
func (s *SocieteService) Delete(ctx context.Context, actor *models.User, id uint) error {
	if err := s.RequireAccess(actor, id, models.AccessOwner); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []interface{}{&models.Associe{}, &models.Gerant{}, &models.Document{}} {
			if err := tx.Where("societe_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("societe_id = ?", id).Delete(&models.SocieteUser{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Societe{}, id).Error
	})
}

// Get loads a société with its associés (percentages filled) and gérants.
func (s *SocieteService) Get(actor *models.User, id uint) (*models.Societe, string, error) {
	access, err := s.AccessOf(actor, id)
	if err != nil {
		return nil, "", err
	}

	var societe models.Societe
	err = s.db.
		Preload("Associes", func(db *gorm.DB) *gorm.DB { return db.Order("nombre_parts DESC, id ASC") }).
		Preload("Gerants", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&societe, id).Error
	if err != nil {
		return nil, "", err
	}
	fillPercentages(&societe, societe.Associes)
	return &societe, access, nil
}

// GetWithFiltersAndPage sociétés visible to actor
func (s *SocieteService) GetWithFiltersAndPage(actor *models.User, filter SocieteFilter, page, pageSize int) ([]*models.Societe, int64, error) {
	var societes []*models.Societe
	var total int64

	query := s.filtered(actor, filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("raison_sociale ASC").Scopes(pagination.Paginate(page, pageSize)).Find(&societes).Error
	if err != nil {
		return nil, 0, err
	}
	return societes, total, nil
}

func (s *SocieteService) filtered(actor *models.User, filter SocieteFilter) *gorm.DB {
	query := s.db.Model(&models.Societe{})
	if sub := s.accessibleIDs(actor); sub != nil {
		query = query.Where("id IN (?)", sub)
	}
	if filter.Keyword != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(filter.Keyword)) + "%"
		query = query.Where("LOWER(raison_sociale) LIKE ? OR ice LIKE ? OR identifiant_fiscal LIKE ? OR LOWER(rc) LIKE ?",
			pattern, pattern, pattern, pattern)
	}
	if filter.FormeJuridique != "" {
		query = query.Where("forme_juridique = ?", filter.FormeJuridique)
	}
	if filter.Ville != "" {
		query = query.Where("LOWER(ville) = ?", strings.ToLower(strings.TrimSpace(filter.Ville)))
	}
	return query
}

// ========== Validation ==========

// Validate checks a société form.
func (s *SocieteService) Validate(in SocieteInput) error {
	if in.RaisonSociale == "" {
		return errors.New(errors.ErrValidation, "la raison sociale est obligatoire")
	}
	if !models.IsValidFormeJuridique(in.FormeJuridique) {
		return errors.Newf(errors.ErrValidation, "forme juridique %q non supportée", in.FormeJuridique)
	}
	if in.Capital <= 0 {
		return errors.New(errors.ErrValidation, "le capital doit être positif")
	}
	if in.NombreParts <= 0 {
		return errors.New(errors.ErrValidation, "le nombre de parts doit être positif")
	}
	if in.ICE != "" && (len(in.ICE) != 15 || !isDigits(in.ICE)) {
		return errors.New(errors.ErrValidation, "l'ICE doit comporter exactement 15 chiffres")
	}
	if in.IdentifiantFiscal != "" && (len(in.IdentifiantFiscal) > 10 || !isDigits(in.IdentifiantFiscal)) {
		return errors.New(errors.ErrValidation, "l'identifiant fiscal doit comporter au plus 10 chiffres")
	}
	if in.Email != "" {
		if err := validate.Var(in.Email, "email"); err != nil {
			return errors.New(errors.ErrValidation, "adresse e-mail invalide")
		}
	}
	return nil
}

func (s *SocieteService) ensureIdentifiersFree(selfID uint, in SocieteInput) error {
	checks := []struct {
		column, value, label string
	}{
		{"ice", in.ICE, "ICE"},
		{"identifiant_fiscal", in.IdentifiantFiscal, "identifiant fiscal"},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		var count int64
		err := s.db.Model(&models.Societe{}).
			Where(c.column+" = ? AND id <> ?", c.value, selfID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return errors.Newf(errors.ErrConflict, "une société avec cet %s existe déjà", c.label)
		}
	}
	return nil
}

// ========== Sharing ==========

// ListMembers users linked to the société
func (s *SocieteService) ListMembers(actor *models.User, societeID uint) ([]Member, error) {
	if err := s.RequireAccess(actor, societeID, models.AccessViewer); err != nil {
		return nil, err
	}
	var links []models.SocieteUser
	if err := s.db.Preload("User").Where("societe_id = ?", societeID).Order("id ASC").Find(&links).Error; err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(links))
	for _, l := range links {
		if l.User == nil {
			continue
		}
		members = append(members, Member{
			UserID: l.UserID,
			Email:  l.User.Email,
			Nom:    l.User.Nom,
			Prenom: l.User.Prenom,
			Role:   l.User.Role,
			Access: l.Access,
		})
	}
	return members, nil
}

// Share grants (or changes) a user's access. Requires OWNER.
func (s *SocieteService) Share(ctx context.Context, actor *models.User, societeID, userID uint, access string) (*models.SocieteUser, error) {
	if err := s.RequireAccess(actor, societeID, models.AccessOwner); err != nil {
		return nil, err
	}
	if !models.IsValidAccess(access) {
		return nil, errors.Newf(errors.ErrValidation, "niveau d'accès %q invalide", access)
	}

	var target models.User
	err := s.db.First(&target, userID).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrNotFound, "utilisateur introuvable")
	}
	if err != nil {
		return nil, err
	}
	if !target.IsApproved() {
		return nil, errors.New(errors.ErrValidation, "seul un compte validé peut recevoir un accès")
	}

	var link models.SocieteUser
	err = s.db.Where("societe_id = ? AND user_id = ?", societeID, userID).First(&link).Error
	switch {
	case err == nil:
		if link.Access == models.AccessOwner && access != models.AccessOwner {
			if err := s.ensureOtherOwner(societeID, userID); err != nil {
				return nil, err
			}
		}
		link.Access = access
		link.GrantedBy = &actor.ID
		if err := s.db.Save(&link).Error; err != nil {
			return nil, err
		}
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		link = models.SocieteUser{SocieteID: societeID, UserID: userID, Access: access, GrantedBy: &actor.ID}
		if err := s.db.Create(&link).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if userID != actor.ID {
		var societe models.Societe
		if err := s.db.Select("id", "raison_sociale").First(&societe, societeID).Error; err == nil {
			_, _ = s.notifications.Notify(ctx, userID, models.NotificationSocieteShared,
				"Nouvelle société partagée",
				fmt.Sprintf("%s vous a donné un accès %s à %s.", actor.FullName(), access, societe.RaisonSociale),
				fmt.Sprintf("/societes/%d", societeID))
		}
	}
	return &link, nil
}

// Unshare removes a user's access. Requires OWNER; the last OWNER stays.
func (s *SocieteService) Unshare(actor *models.User, societeID, userID uint) error {
	if err := s.RequireAccess(actor, societeID, models.AccessOwner); err != nil {
		return err
	}
	var link models.SocieteUser
	err := s.db.Where("societe_id = ? AND user_id = ?", societeID, userID).First(&link).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.New(errors.ErrNotFound, "cet utilisateur n'a pas accès à la société")
	}
	if err != nil {
		return err
	}
	if link.Access == models.AccessOwner {
		if err := s.ensureOtherOwner(societeID, userID); err != nil {
			return err
		}
	}
	return s.db.Delete(&link).Error
}

func (s *SocieteService) ensureOtherOwner(societeID, userID uint) error {
	var owners int64
	err := s.db.Model(&models.SocieteUser{}).
		Where("societe_id = ? AND access = ? AND user_id <> ?", societeID, models.AccessOwner, userID).
		Count(&owners).Error
	if err != nil {
		return err
	}
	if owners == 0 {
		return errors.New(errors.ErrValidation, "la société doit conserver au moins un propriétaire")
	}
	return nil
}

// ========== Export ==========

var societeCSVHeader = []string{
	"raison_sociale", "forme_juridique", "capital", "nombre_parts", "siege_social", "ville",
	"rc", "ice", "if", "patente", "cnss", "email", "telephone",
}

// ExportCSV writes every société visible to actor, semicolon separated.
func (s *SocieteService) ExportCSV(actor *models.User, filter SocieteFilter, w io.Writer) error {
	var societes []*models.Societe
	if err := s.filtered(actor, filter).Order("raison_sociale ASC").Find(&societes).Error; err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(societeCSVHeader); err != nil {
		return err
	}
	for _, so := range societes {
		record := []string{
			so.RaisonSociale, so.FormeJuridique, so.Capital.Decimal(), strconv.FormatInt(so.NombreParts, 10),
			so.SiegeSocial, so.Ville, so.RC, so.ICE, so.IdentifiantFiscal, so.Patente, so.CNSS,
			so.Email, so.Telephone,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ========== helpers ==========

func (s *SocieteService) load(id uint) (*models.Societe, error) {
	var societe models.Societe
	err := s.db.First(&societe, id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrNotFound, "société introuvable")
	}
	if err != nil {
		return nil, err
	}
	return &societe, nil
}

func normalizeSociete(in SocieteInput) SocieteInput {
	in.RaisonSociale = strings.TrimSpace(in.RaisonSociale)
	in.FormeJuridique = strings.ToUpper(strings.TrimSpace(in.FormeJuridique))
	in.ICE = strings.TrimSpace(in.ICE)
	in.IdentifiantFiscal = strings.TrimSpace(in.IdentifiantFiscal)
	in.RC = strings.TrimSpace(in.RC)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	return in
}

func applySocieteInput(so *models.Societe, in SocieteInput) {
	so.RaisonSociale = in.RaisonSociale
	so.FormeJuridique = in.FormeJuridique
	so.Capital = in.Capital
	so.NombreParts = in.NombreParts
	so.SiegeSocial = strings.TrimSpace(in.SiegeSocial)
	so.Ville = strings.TrimSpace(in.Ville)
	so.RC = in.RC
	so.ICE = in.ICE
	so.IdentifiantFiscal = in.IdentifiantFiscal
	so.Patente = strings.TrimSpace(in.Patente)
	so.CNSS = strings.TrimSpace(in.CNSS)
	so.DateCreation = in.DateCreation
	so.Email = in.Email
	so.Telephone = strings.TrimSpace(in.Telephone)
}

func fillPercentages(so *models.Societe, associes []models.Associe) {
	for i := range associes {
		if so.NombreParts > 0 {
			associes[i].Pourcentage = float64(associes[i].NombreParts) * 100 / float64(so.NombreParts)
		}
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
