package handlers

import (
	"bytes"
	"fmt"
	"time"

	"fiduciaire/internal/models"
	"fiduciaire/internal/services"
	"fiduciaire/pkg/money"
	"fiduciaire/pkg/pagination"
	"fiduciaire/pkg/response"

	"github.com/gin-gonic/gin"
)

type SocieteHandler struct {
	societeService *services.SocieteService
}

func NewSocieteHandler(societeService *services.SocieteService) *SocieteHandler {
	return &SocieteHandler{societeService: societeService}
}

type SocieteRequest struct {
	RaisonSociale     string       `json:"raison_sociale" binding:"required,max=200"`
	FormeJuridique    string       `json:"forme_juridique" binding:"required"`
	Capital           money.Amount `json:"capital" binding:"required"`
	NombreParts       int64        `json:"nombre_parts" binding:"required,gt=0"`
	SiegeSocial       string       `json:"siege_social" binding:"max=255"`
	Ville             string       `json:"ville" binding:"max=100"`
	RC                string       `json:"rc" binding:"max=50"`
	ICE               string       `json:"ice" binding:"omitempty,len=15,numeric"`
	IdentifiantFiscal string       `json:"if" binding:"omitempty,max=10,numeric"`
	Patente           string       `json:"patente" binding:"max=30"`
	CNSS              string       `json:"cnss" binding:"max=30"`
	DateCreation      string       `json:"date_creation" binding:"omitempty,datetime=2006-01-02"`
	Email             string       `json:"email" binding:"omitempty,email,max=100"`
	Telephone         string       `json:"telephone" binding:"max=20"`
}

func (r SocieteRequest) input() (services.SocieteInput, error) {
	date, err := parseDate(r.DateCreation)
	if err != nil {
		return services.SocieteInput{}, err
	}
	return services.SocieteInput{
		RaisonSociale:     r.RaisonSociale,
		FormeJuridique:    r.FormeJuridique,
		Capital:           r.Capital,
		NombreParts:       r.NombreParts,
		SiegeSocial:       r.SiegeSocial,
		Ville:             r.Ville,
		RC:                r.RC,
		ICE:               r.ICE,
		IdentifiantFiscal: r.IdentifiantFiscal,
		Patente:           r.Patente,
		CNSS:              r.CNSS,
		DateCreation:      date,
		Email:             r.Email,
		Telephone:         r.Telephone,
	}, nil
}

type ShareRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Access string `json:"access" binding:"required,oneof=VIEWER EDITOR OWNER"`
}

// SocieteDetail a société with the caller's access level
type SocieteDetail struct {
	*models.Societe
	Access string `json:"access"`
}

func filterFromQuery(c *gin.Context) services.SocieteFilter {
	return services.SocieteFilter{
		Keyword:        c.Query("keyword"),
		FormeJuridique: c.Query("forme_juridique"),
		Ville:          c.Query("ville"),
	}
}

// List sociétés visible to the caller.
// Query: keyword, forme_juridique, ville, page, page_size
func (h *SocieteHandler) List(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	params := pagination.ParsePageParams(c)

	societes, total, err := h.societeService.GetWithFiltersAndPage(actor, filterFromQuery(c), params.Page, params.PageSize)
	if err != nil {
		response.FromError(c, err, "chargement des sociétés échoué")
		return
	}
	response.SuccessWithPage(c, societes, pagination.NewPageInfo(params.Page, params.PageSize, total))
}

func (h *SocieteHandler) Create(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	var req SocieteRequest
	if !bindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	societe, err := h.societeService.Create(c.Request.Context(), actor, in)
	if err != nil {
		response.FromError(c, err, "création de la société échouée")
		return
	}
	response.Created(c, societe)
}

// Get a société with its associés and gérants.
func (h *SocieteHandler) Get(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	societe, access, err := h.societeService.Get(actor, id)
	if err != nil {
		response.FromError(c, err, "chargement de la société échoué")
		return
	}
	response.Success(c, SocieteDetail{Societe: societe, Access: access})
}

func (h *SocieteHandler) Update(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req SocieteRequest
	if !bindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	societe, err := h.societeService.Update(c.Request.Context(), actor, id, in)
	if err != nil {
		response.FromError(c, err, "mise à jour de la société échouée")
		return
	}
	response.SuccessWithMessage(c, "société mise à jour", societe)
}

// Delete a société with its associés, gérants, documents and links.
func (h *SocieteHandler) Delete(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.societeService.Delete(c.Request.Context(), actor, id); err != nil {
		response.FromError(c, err, "suppression de la société échouée")
		return
	}
	response.SuccessWithMessage(c, "société supprimée", nil)
}

// Export visible sociétés as CSV, same filters as List.
func (h *SocieteHandler) Export(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.societeService.ExportCSV(actor, filterFromQuery(c), &buf); err != nil {
		response.FromError(c, err, "export échoué")
		return
	}
	name := fmt.Sprintf("societes_%s.csv", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(200, "text/csv; charset=utf-8", buf.Bytes())
}

// ========== Members ==========

func (h *SocieteHandler) ListMembers(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	members, err := h.societeService.ListMembers(actor, id)
	if err != nil {
		response.FromError(c, err, "chargement des membres échoué")
		return
	}
	response.Success(c, members)
}

// Share grants or changes a user's access. OWNER only.
func (h *SocieteHandler) Share(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ShareRequest
	if !bindJSON(c, &req) {
		return
	}

	link, err := h.societeService.Share(c.Request.Context(), actor, id, req.UserID, req.Access)
	if err != nil {
		response.FromError(c, err, "partage échoué")
		return
	}
	response.SuccessWithMessage(c, "accès accordé", link)
}

func (h *SocieteHandler) Unshare(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "user_id")
	if !ok {
		return
	}

	if err := h.societeService.Unshare(actor, id, userID); err != nil {
		response.FromError(c, err, "retrait de l'accès échoué")
		return
	}
	response.SuccessWithMessage(c, "accès retiré", nil)
}
