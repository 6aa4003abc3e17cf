package handlers

import (
	"fiduciaire/internal/services"
	"fiduciaire/pkg/response"

	"github.com/gin-gonic/gin"
)

type AssocieHandler struct {
	associeService *services.AssocieService
}

func NewAssocieHandler(associeService *services.AssocieService) *AssocieHandler {
	return &AssocieHandler{associeService: associeService}
}

type AssocieRequest struct {
	Type        string `json:"type" binding:"omitempty,oneof=PHYSIQUE MORALE physique morale"`
	Nom         string `json:"nom" binding:"required,max=100"`
	Prenom      string `json:"prenom" binding:"max=100"`
	CIN         string `json:"cin" binding:"required,max=20"`
	Nationalite string `json:"nationalite" binding:"max=50"`
	Adresse     string `json:"adresse" binding:"max=255"`
	NombreParts int64  `json:"nombre_parts" binding:"required,gt=0"`
	DateEntree  string `json:"date_entree" binding:"omitempty,datetime=2006-01-02"`
}

func (r AssocieRequest) input() (services.AssocieInput, error) {
	date, err := parseDate(r.DateEntree)
	if err != nil {
		return services.AssocieInput{}, err
	}
	return services.AssocieInput{
		Type:        r.Type,
		Nom:         r.Nom,
		Prenom:      r.Prenom,
		CIN:         r.CIN,
		Nationalite: r.Nationalite,
		Adresse:     r.Adresse,
		NombreParts: r.NombreParts,
		DateEntree:  date,
	}, nil
}

// List associés of a société with their percentage of the capital.
func (h *AssocieHandler) List(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	societeID, ok := parseID(c, "id")
	if !ok {
		return
	}

	associes, err := h.associeService.List(actor, societeID)
	if err != nil {
		response.FromError(c, err, "chargement des associés échoué")
		return
	}
	response.Success(c, associes)
}

func (h *AssocieHandler) Create(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	societeID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req AssocieRequest
	if !bindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	associe, err := h.associeService.Create(actor, societeID, in)
	if err != nil {
		response.FromError(c, err, "ajout de l'associé échoué")
		return
	}
	response.Created(c, associe)
}

func (h *AssocieHandler) Update(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	societeID, ok := parseID(c, "id")
	if !ok {
		return
	}
	id, ok := parseID(c, "associe_id")
	if !ok {
		return
	}
	var req AssocieRequest
	if !bindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	associe, err := h.associeService.Update(actor, societeID, id, in)
	if err != nil {
		response.FromError(c, err, "mise à jour de l'associé échouée")
		return
	}
	response.SuccessWithMessage(c, "associé mis à jour", associe)
}

func (h *AssocieHandler) Delete(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	societeID, ok := parseID(c, "id")
	if !ok {
		return
	}
	id, ok := parseID(c, "associe_id")
	if !ok {
		return
	}

	if err := h.associeService.Delete(actor, societeID, id); err != nil {
		response.FromError(c, err, "suppression de l'associé échouée")
		return
	}
	response.SuccessWithMessage(c, "associé supprimé", nil)
}
