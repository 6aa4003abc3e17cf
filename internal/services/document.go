package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"fiduciaire/internal/models"
	"fiduciaire/internal/pv"
	"fiduciaire/pkg/config"
	"fiduciaire/pkg/errors"
	"fiduciaire/pkg/logger"
	"fiduciaire/pkg/money"
	"fiduciaire/pkg/pagination"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentService generation and download of minutes
type DocumentService struct {
	db            *gorm.DB
	societes      *SocieteService
	notifications *NotificationService
	cfg           config.PVConfig
	now           func() time.Time
}

// GenerateRequest form of the generation screen
type GenerateRequest struct {
	SocieteID              uint
	TypePVID               uint
	Exercice               int
	DateAssemblee          time.Time
	LieuAssemblee          string
	PresidentSeance        string
	ResultatNet            money.Amount
	ReserveLegaleExistante money.Amount
	ReportAnterieur        money.Amount
	AutresReserves         money.Amount
	DividendesDemandes     money.Amount
}

// Preview what a generation would produce
type Preview struct {
	Variant         string        `json:"variant"`
	TemplateVersion string        `json:"template_version"`
	Allocation      pv.Allocation `json:"allocation"`
	HTML            string        `json:"html"`
}

// DocumentFilter list filters
type DocumentFilter struct {
	SocieteID uint
	TypePVID  uint
	Exercice  int
}

// prepared everything computed before persistence
type prepared struct {
	societe  *models.Societe
	typePV   *models.TypePV
	variant  pv.Variant
	template pv.Template
	data     pv.Data
	html     string
}

func NewDocumentService(db *gorm.DB, societes *SocieteService, notifications *NotificationService, cfg config.PVConfig) *DocumentService {
	return &DocumentService{
		db:            db,
		societes:      societes,
		notifications: notifications,
		cfg:           cfg,
		now:           time.Now,
	}
}

// ========== Generation ==========

// Preview renders the minutes without storing anything.
func (s *DocumentService) Preview(actor *models.User, req GenerateRequest) (*Preview, error) {
	p, err := s.prepare(actor, req)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Variant:         string(p.variant),
		TemplateVersion: p.template.Version,
		Allocation:      p.data.Allocation,
		HTML:            p.html,
	}, nil
}

// Generate renders and stores the minutes, then notifies the author.
func (s *DocumentService) Generate(ctx context.Context, actor *models.User, req GenerateRequest) (*models.Document, error) {
	p, err := s.prepare(actor, req)
	if err != nil {
		return nil, err
	}

	snapshot, err := json.Marshal(p.data)
	if err != nil {
		return nil, fmt.Errorf("snapshot variables: %w", err)
	}

	a := p.data.Allocation
	doc := &models.Document{
		SocieteID:               p.societe.ID,
		TypePVID:                p.typePV.ID,
		Exercice:                req.Exercice,
		DateAssemblee:           req.DateAssemblee,
		LieuAssemblee:           p.data.LieuAssemblee,
		PresidentSeance:         p.data.President,
		Variant:                 string(p.variant),
		ResultatNet:             req.ResultatNet,
		ReserveLegaleAnterieure: req.ReserveLegaleExistante,
		ReportAnterieur:         req.ReportAnterieur,
		AutresReserves:          req.AutresReserves,
		DotationReserveLegale:   a.DotationReserveLegale,
		Dividendes:              a.Dividendes,
		AffectationReport:       a.AffectationReport,
		NouveauReport:           a.NouveauReport,
		CapitauxPropres:         a.CapitauxPropres,
		CapitauxPropresFaibles:  a.CapitauxPropresFaibles,
		Status:                  models.DocumentStatusGenerated,
		FileName:                fileName(p.societe.RaisonSociale, p.typePV.Code, req.Exercice),
		TemplateVersion:         p.template.Version,
		Variables:               datatypes.JSON(snapshot),
		Contenu:                 p.html,
		CreatedBy:               actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}

	_, err = s.notifications.Notify(ctx, actor.ID, models.NotificationDocumentReady,
		"Procès-verbal généré",
		fmt.Sprintf("%s - exercice %d : %s", p.societe.RaisonSociale, req.Exercice, p.typePV.Nom),
		fmt.Sprintf("/documents/%d", doc.ID))
	if err != nil {
		logger.GetLogger().WithField("document_id", doc.ID).Errorf("notification échouée: %v", err)
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"document_id": doc.ID,
		"societe_id":  doc.SocieteID,
		"variant":     doc.Variant,
	}).Info("procès-verbal généré")

	doc.Societe = p.societe
	doc.TypePV = p.typePV
	return doc, nil
}

func (s *DocumentService) prepare(actor *models.User, req GenerateRequest) (*prepared, error) {
	if err := s.societes.RequireAccess(actor, req.SocieteID, models.AccessEditor); err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	var societe models.Societe
	err := s.db.
		Preload("Associes", func(db *gorm.DB) *gorm.DB { return db.Order("nombre_parts DESC, id ASC") }).
		Preload("Gerants", "active = ?", true).
		First(&societe, req.SocieteID).Error
	if err != nil {
		return nil, err
	}
	if len(societe.Associes) == 0 {
		return nil, errors.New(errors.ErrValidation, "la société doit avoir au moins un associé")
	}

	var typePV models.TypePV
	err = s.db.First(&typePV, req.TypePVID).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrNotFound, "type de procès-verbal introuvable")
	}
	if err != nil {
		return nil, err
	}
	if !typePV.Active {
		return nil, errors.New(errors.ErrValidation, "ce type de procès-verbal est désactivé")
	}

	inputs := pv.Inputs{
		Capital:                societe.Capital,
		ResultatNet:            req.ResultatNet,
		ReserveLegaleExistante: req.ReserveLegaleExistante,
		ReportAnterieur:        req.ReportAnterieur,
		AutresReserves:         req.AutresReserves,
		DividendesDemandes:     req.DividendesDemandes,
	}
	allocation, err := pv.Derive(inputs)
	if err != nil {
		return nil, err
	}
	variant := pv.SelectVariant(typePV.Nom)
	if err := variant.Check(inputs, allocation); err != nil {
		return nil, err
	}

	tpl, err := ResolveTemplate(&typePV)
	if err != nil {
		return nil, err
	}

	data := pv.Data{
		Cabinet:        s.cfg.FirmName,
		VilleSignature: firstNonBlank(societe.Ville, s.cfg.City),
		Societe: pv.Societe{
			RaisonSociale:  societe.RaisonSociale,
			FormeJuridique: societe.FormeJuridique,
			Capital:        societe.Capital,
			NombreParts:    societe.NombreParts,
			SiegeSocial:    societe.SiegeSocial,
			Ville:          societe.Ville,
			RC:             societe.RC,
			ICE:            societe.ICE,
			IF:             societe.IdentifiantFiscal,
		},
		Exercice:      req.Exercice,
		DateAssemblee: req.DateAssemblee,
		LieuAssemblee: strings.TrimSpace(req.LieuAssemblee),
		President:     strings.TrimSpace(req.PresidentSeance),
		Inputs:        inputs,
		Allocation:    allocation,
		GeneratedAt:   s.now(),
	}
	for _, a := range societe.Associes {
		data.Associes = append(data.Associes, pv.Associe{Nom: a.DisplayName(), Parts: a.NombreParts})
	}
	for _, g := range societe.Gerants {
		data.Gerants = append(data.Gerants, g.FullName())
	}
	data.President = data.Chair()

	out, err := tpl.Render(data)
	if err != nil {
		return nil, err
	}

	return &prepared{
		societe:  &societe,
		typePV:   &typePV,
		variant:  variant,
		template: tpl,
		data:     data,
		html:     out,
	}, nil
}

func (s *DocumentService) validateRequest(req GenerateRequest) error {
	year := s.now().Year()
	if req.Exercice < 1900 || req.Exercice > year {
		return errors.Newf(errors.ErrValidation, "exercice %d invalide", req.Exercice)
	}
	if req.DateAssemblee.IsZero() {
		return errors.New(errors.ErrValidation, "la date de l'assemblée est obligatoire")
	}
	closing := time.Date(req.Exercice, time.December, 31, 0, 0, 0, 0, req.DateAssemblee.Location())
	if req.DateAssemblee.Before(closing) {
		return errors.New(errors.ErrValidation, "l'assemblée doit se tenir après la clôture de l'exercice")
	}
	return nil
}

// ========== Queries ==========

// Get loads a document the actor can see.
func (s *DocumentService) Get(actor *models.User, id uint) (*models.Document, error) {
	var doc models.Document
	err := s.db.Preload("Societe").Preload("TypePV").First(&doc, id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrNotFound, "document introuvable")
	}
	if err != nil {
		return nil, err
	}
	if err := s.societes.RequireAccess(actor, doc.SocieteID, models.AccessViewer); err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return nil, errors.New(errors.ErrNotFound, "document introuvable")
		}
		return nil, err
	}
	return &doc, nil
}

// GetWithFiltersAndPage documents of the sociétés visible to actor
func (s *DocumentService) GetWithFiltersAndPage(actor *models.User, filter DocumentFilter, page, pageSize int) ([]*models.Document, int64, error) {
	var docs []*models.Document
	var total int64

	query := s.db.Model(&models.Document{})
	if sub := s.societes.accessibleIDs(actor); sub != nil {
		query = query.Where("societe_id IN (?)", sub)
	}
	if filter.SocieteID > 0 {
		query = query.Where("societe_id = ?", filter.SocieteID)
	}
	if filter.TypePVID > 0 {
		query = query.Where("type_pv_id = ?", filter.TypePVID)
	}
	if filter.Exercice > 0 {
		query = query.Where("exercice = ?", filter.Exercice)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Omit("contenu", "variables").
		Preload("Societe").Preload("TypePV").
		Order("created_at DESC, id DESC").
		Scopes(pagination.Paginate(page, pageSize)).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// Delete soft-deletes a document. Requires EDITOR on its société.
func (s *DocumentService) Delete(actor *models.User, id uint) error {
	doc, err := s.Get(actor, id)
	if err != nil {
		return err
	}
	if err := s.societes.RequireAccess(actor, doc.SocieteID, models.AccessEditor); err != nil {
		return err
	}
	return s.db.Delete(&models.Document{}, id).Error
}

// Render writes the stored minutes in format and returns the download name.
func (s *DocumentService) Render(actor *models.User, id uint, format pv.Format, w io.Writer) (string, error) {
	doc, err := s.Get(actor, id)
	if err != nil {
		return "", err
	}
	if doc.Contenu == "" {
		return "", errors.New(errors.ErrValidation, "ce document n'a pas de contenu généré")
	}
	title := doc.FileName
	if doc.TypePV != nil {
		title = doc.TypePV.Nom
	}
	if err := pv.Write(w, format, title, doc.Contenu); err != nil {
		return "", err
	}
	return doc.FileName + "." + string(format), nil
}

// CountByExercice documents generated per exercice for the sociétés
// visible to actor.
func (s *DocumentService) CountByExercice(actor *models.User) (map[int]int64, error) {
	var rows []struct {
		Exercice int
		Count    int64
	}
	query := s.db.Model(&models.Document{}).Where("status = ?", models.DocumentStatusGenerated)
	if sub := s.societes.accessibleIDs(actor); sub != nil {
		query = query.Where("societe_id IN (?)", sub)
	}
	err := query.Select("exercice, COUNT(*) as count").Group("exercice").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int]int64, len(rows))
	for _, r := range rows {
		out[r.Exercice] = r.Count
	}
	return out, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9]+`)

// fileName "PV_ATLAS_FILS_AGO_REPORT_2025_1a2b3c4d"
func fileName(raisonSociale, code string, exercice int) string {
	slug := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToUpper(pv.Normalize(raisonSociale)), "_"), "_")
	if slug == "" {
		slug = "SOCIETE"
	}
	return fmt.Sprintf("PV_%s_%s_%d_%s", slug, code, exercice, uuid.NewString()[:8])
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
