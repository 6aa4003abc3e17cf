package services

import (
	stderrors "errors"
	"strings"

	"fiduciaire/internal/models"
	"fiduciaire/internal/pv"
	"fiduciaire/pkg/errors"

	"gorm.io/gorm"
)

// TypePVService catalogue of minutes types
type TypePVService struct {
	db *gorm.DB
}

// TypePVInput create/update form; Template empty means built-in layout.
type TypePVInput struct {
	Code        string
	Nom         string
	Description string
	Template    string
	Active      *bool
}

// TypePVDetail type plus the layout it resolves to
type TypePVDetail struct {
	*models.TypePV
	Variant string   `json:"variant"`
	Tokens  []string `json:"tokens"`
}

func NewTypePVService(db *gorm.DB) *TypePVService {
	return &TypePVService{db: db}
}

// List types; activeOnly for the generation form.
func (s *TypePVService) List(activeOnly bool) ([]*models.TypePV, error) {
	var types []*models.TypePV
	query := s.db.Model(&models.TypePV{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	err := query.Order("nom ASC").Find(&types).Error
	return types, err
}

// GetByID loads a type
func (s *TypePVService) GetByID(id uint) (*models.TypePV, error) {
	var t models.TypePV
	err := s.db.First(&t, id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrNotFound, "type de procès-verbal introuvable")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Detail type with its variant and the tokens its template uses.
func (s *TypePVService) Detail(id uint) (*TypePVDetail, error) {
	t, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	tpl, err := ResolveTemplate(t)
	if err != nil {
		return nil, err
	}
	return &TypePVDetail{
		TypePV:  t,
		Variant: string(pv.SelectVariant(t.Nom)),
		Tokens:  pv.Tokens(tpl.Body),
	}, nil
}

// Create adds a type; a custom template is checked against the token catalogue.
func (s *TypePVService) Create(in TypePVInput) (*models.TypePV, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Nom = strings.TrimSpace(in.Nom)
	if in.Code == "" || in.Nom == "" {
		return nil, errors.New(errors.ErrValidation, "le code et le nom sont obligatoires")
	}
	if in.Template != "" {
		if err := pv.Validate(in.Template); err != nil {
			return nil, err
		}
	}

	var count int64
	if err := s.db.Model(&models.TypePV{}).Where("code = ?", in.Code).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.Newf(errors.ErrConflict, "le code %s existe déjà", in.Code)
	}

	t := &models.TypePV{
		Code:            in.Code,
		Nom:             in.Nom,
		Description:     strings.TrimSpace(in.Description),
		Template:        in.Template,
		TemplateVersion: 1,
		Active:          true,
	}
	if err := s.db.Create(t).Error; err != nil {
		return nil, err
	}
	if in.Active != nil && !*in.Active {
		t.Active = false
		if err := s.db.Model(t).Update("active", false).Error; err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Update changes a type. The template version moves on every template change.
func (s *TypePVService) Update(id uint, in TypePVInput) (*models.TypePV, error) {
	t, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	in.Nom = strings.TrimSpace(in.Nom)
	if in.Nom == "" {
		return nil, errors.New(errors.ErrValidation, "le nom est obligatoire")
	}
	if in.Template != "" {
		if err := pv.Validate(in.Template); err != nil {
			return nil, err
		}
	}

	if in.Template != t.Template {
		t.TemplateVersion++
	}
	t.Nom = in.Nom
	t.Description = strings.TrimSpace(in.Description)
	t.Template = in.Template
	if in.Active != nil {
		t.Active = *in.Active
	}
	if err := s.db.Save(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes an unused type; a type with documents is only deactivated.
func (s *TypePVService) Delete(id uint) (deactivated bool, err error) {
	t, err := s.GetByID(id)
	if err != nil {
		return false, err
	}
	var used int64
	if err := s.db.Unscoped().Model(&models.Document{}).Where("type_pv_id = ?", id).Count(&used).Error; err != nil {
		return false, err
	}
	if used > 0 {
		return true, s.db.Model(t).Update("active", false).Error
	}
	return false, s.db.Delete(t).Error
}

// ResolveTemplate custom template of t, else the built-in of its variant.
func ResolveTemplate(t *models.TypePV) (pv.Template, error) {
	if t.HasCustomTemplate() {
		return pv.Custom(t.Code, t.Template, t.TemplateVersion), nil
	}
	return pv.Builtin(pv.SelectVariant(t.Nom))
}

// BuiltinTypes the types seeded at first start, one per variant.
func BuiltinTypes() []models.TypePV {
	return []models.TypePV{
		{Code: "AGO_REPORT", Nom: "AGO - Approbation des comptes et report à nouveau",
			Description: "Approbation des comptes annuels et affectation du bénéfice en report à nouveau"},
		{Code: "AGO_DIVIDENDES", Nom: "AGO - Approbation des comptes et distribution de dividendes",
			Description: "Approbation des comptes annuels avec distribution de dividendes aux associés"},
		{Code: "AGO_DEFICIT", Nom: "AGO - Approbation des comptes et affectation de la perte",
			Description: "Approbation des comptes d'un exercice déficitaire"},
		{Code: "AGE_CONTINUITE", Nom: "AG - Continuité d'exploitation (capitaux propres inférieurs au quart du capital)",
			Description: "Décision de poursuite de l'activité malgré des capitaux propres inférieurs au quart du capital"},
	}
}

// SeedBuiltinTypes inserts the missing built-in types.
func (s *TypePVService) SeedBuiltinTypes() (int, error) {
	created := 0
	for _, bt := range BuiltinTypes() {
		var count int64
		if err := s.db.Model(&models.TypePV{}).Where("code = ?", bt.Code).Count(&count).Error; err != nil {
			return created, err
		}
		if count > 0 {
			continue
		}
		t := bt
		t.TemplateVersion = 1
		t.Active = true
		if err := s.db.Create(&t).Error; err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
