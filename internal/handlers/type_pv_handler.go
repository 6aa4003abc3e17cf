package handlers

import (
	"fiduciaire/internal/middleware"
	"fiduciaire/internal/services"
	"fiduciaire/pkg/response"

	"github.com/gin-gonic/gin"
)

type TypePVHandler struct {
	typePVService *services.TypePVService
}

func NewTypePVHandler(typePVService *services.TypePVService) *TypePVHandler {
	return &TypePVHandler{typePVService: typePVService}
}

type TypePVRequest struct {
	Code        string `json:"code" binding:"max=50"`
	Nom         string `json:"nom" binding:"required,max=150"`
	Description string `json:"description" binding:"max=500"`
	Template    string `json:"template"`
	Active      *bool  `json:"active"`
}

func (r TypePVRequest) input() services.TypePVInput {
	return services.TypePVInput{
		Code:        r.Code,
		Nom:         r.Nom,
		Description: r.Description,
		Template:    r.Template,
		Active:      r.Active,
	}
}

// List types. Only ADMIN sees inactive ones, with ?all=true.
func (h *TypePVHandler) List(c *gin.Context) {
	activeOnly := true
	if user := middleware.CurrentUser(c); user != nil && user.IsAdmin() && queryBool(c, "all") {
		activeOnly = false
	}

	types, err := h.typePVService.List(activeOnly)
	if err != nil {
		response.FromError(c, err, "chargement des types de PV échoué")
		return
	}
	response.Success(c, types)
}

// Get a type with its resolved variant and template tokens.
func (h *TypePVHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	detail, err := h.typePVService.Detail(id)
	if err != nil {
		response.FromError(c, err, "chargement du type de PV échoué")
		return
	}
	response.Success(c, detail)
}

func (h *TypePVHandler) Create(c *gin.Context) {
	var req TypePVRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Code == "" {
		response.BadRequest(c, "le champ code est obligatoire")
		return
	}

	typePV, err := h.typePVService.Create(req.input())
	if err != nil {
		response.FromError(c, err, "création du type de PV échouée")
		return
	}
	response.Created(c, typePV)
}

// Update a type; changing the template bumps its version.
func (h *TypePVHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req TypePVRequest
	if !bindJSON(c, &req) {
		return
	}

	typePV, err := h.typePVService.Update(id, req.input())
	if err != nil {
		response.FromError(c, err, "mise à jour du type de PV échouée")
		return
	}
	response.SuccessWithMessage(c, "type de PV mis à jour", typePV)
}

// Delete an unused type; a type already used by documents is deactivated.
func (h *TypePVHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	deactivated, err := h.typePVService.Delete(id)
	if err != nil {
		response.FromError(c, err, "suppression du type de PV échouée")
		return
	}
	if deactivated {
		response.SuccessWithMessage(c, "type de PV utilisé par des documents : désactivé", gin.H{"deactivated": true})
		return
	}
	response.SuccessWithMessage(c, "type de PV supprimé", gin.H{"deactivated": false})
}
