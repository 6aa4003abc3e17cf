package handlers

import (
	"bytes"
	"fmt"
	"strconv"

	"fiduciaire/internal/pv"
	"fiduciaire/internal/services"
	"fiduciaire/pkg/errors"
	"fiduciaire/pkg/money"
	"fiduciaire/pkg/pagination"
	"fiduciaire/pkg/response"

	"github.com/gin-gonic/gin"
)

type DocumentHandler struct {
	documentService *services.DocumentService
}

func NewDocumentHandler(documentService *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// GenerateRequest body of preview and generation
type GenerateRequest struct {
	SocieteID              uint         `json:"societe_id" binding:"required"`
	TypePVID               uint         `json:"type_pv_id" binding:"required"`
	Exercice               int          `json:"exercice" binding:"required,gte=1900,lte=2200"`
	DateAssemblee          string       `json:"date_assemblee" binding:"required"`
	LieuAssemblee          string       `json:"lieu_assemblee" binding:"max=255"`
	PresidentSeance        string       `json:"president_seance" binding:"max=200"`
	ResultatNet            money.Amount `json:"resultat_net"`
	ReserveLegaleExistante money.Amount `json:"reserve_legale_existante"`
	ReportAnterieur        money.Amount `json:"report_anterieur"`
	AutresReserves         money.Amount `json:"autres_reserves"`
	DividendesDemandes     money.Amount `json:"dividendes_demandes"`
}

func (r GenerateRequest) request() (services.GenerateRequest, error) {
	date, err := parseDate(r.DateAssemblee)
	if err != nil {
		return services.GenerateRequest{}, errors.New(errors.ErrValidation, err.Error())
	}
	if date == nil {
		return services.GenerateRequest{}, errors.New(errors.ErrValidation, "la date de l'assemblée est obligatoire")
	}
	return services.GenerateRequest{
		SocieteID:              r.SocieteID,
		TypePVID:               r.TypePVID,
		Exercice:               r.Exercice,
		DateAssemblee:          *date,
		LieuAssemblee:          r.LieuAssemblee,
		PresidentSeance:        r.PresidentSeance,
		ResultatNet:            r.ResultatNet,
		ReserveLegaleExistante: r.ReserveLegaleExistante,
		ReportAnterieur:        r.ReportAnterieur,
		AutresReserves:         r.AutresReserves,
		DividendesDemandes:     r.DividendesDemandes,
	}, nil
}

func (h *DocumentHandler) bind(c *gin.Context) (services.GenerateRequest, bool) {
	var req GenerateRequest
	if !bindJSON(c, &req) {
		return services.GenerateRequest{}, false
	}
	out, err := req.request()
	if err != nil {
		response.FromError(c, err, "requête invalide")
		return services.GenerateRequest{}, false
	}
	return out, true
}

// Preview computes the allocation and renders the HTML without storing anything.
func (h *DocumentHandler) Preview(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	req, ok := h.bind(c)
	if !ok {
		return
	}

	preview, err := h.documentService.Preview(actor, req)
	if err != nil {
		response.FromError(c, err, "aperçu impossible")
		return
	}
	response.Success(c, preview)
}

// Generate stores a new PV. EDITOR access on the société is required.
func (h *DocumentHandler) Generate(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	req, ok := h.bind(c)
	if !ok {
		return
	}

	doc, err := h.documentService.Generate(c.Request.Context(), actor, req)
	if err != nil {
		response.FromError(c, err, "génération du PV échouée")
		return
	}
	response.Created(c, doc)
}

// List documents of the visible sociétés.
// Query: societe_id, type_pv_id, exercice, page, page_size
func (h *DocumentHandler) List(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	params := pagination.ParsePageParams(c)
	exercice, _ := strconv.Atoi(c.Query("exercice"))
	filter := services.DocumentFilter{
		SocieteID: queryUint(c, "societe_id"),
		TypePVID:  queryUint(c, "type_pv_id"),
		Exercice:  exercice,
	}

	docs, total, err := h.documentService.GetWithFiltersAndPage(actor, filter, params.Page, params.PageSize)
	if err != nil {
		response.FromError(c, err, "chargement des documents échoué")
		return
	}
	response.SuccessWithPage(c, docs, pagination.NewPageInfo(params.Page, params.PageSize, total))
}

func (h *DocumentHandler) Get(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	doc, err := h.documentService.Get(actor, id)
	if err != nil {
		response.FromError(c, err, "chargement du document échoué")
		return
	}
	response.Success(c, doc)
}

// Download renders the stored PV. Query: format=docx (default), pdf or html.
func (h *DocumentHandler) Download(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	format, err := pv.ParseFormat(c.DefaultQuery("format", string(pv.FormatDOCX)))
	if err != nil {
		response.BadRequest(c, "format inconnu : docx, pdf ou html attendu")
		return
	}

	// rendered to memory first so a failure still gets a JSON error
	var buf bytes.Buffer
	name, err := h.documentService.Render(actor, id, format, &buf)
	if err != nil {
		response.FromError(c, err, "rendu du document échoué")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(200, format.ContentType(), buf.Bytes())
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.documentService.Delete(actor, id); err != nil {
		response.FromError(c, err, "suppression du document échouée")
		return
	}
	response.SuccessWithMessage(c, "document supprimé", nil)
}
