package handlers

import (
	"fiduciaire/internal/services"
	"fiduciaire/pkg/response"

	"github.com/gin-gonic/gin"
)

type GerantHandler struct {
	gerantService *services.GerantService
}

func NewGerantHandler(gerantService *services.GerantService) *GerantHandler {
	return &GerantHandler{gerantService: gerantService}
}

type GerantRequest struct {
	Nom            string `json:"nom" binding:"required,max=100"`
	Prenom         string `json:"prenom" binding:"required,max=100"`
	CIN            string `json:"cin" binding:"required,max=20"`
	Nationalite    string `json:"nationalite" binding:"max=50"`
	Adresse        string `json:"adresse" binding:"max=255"`
	Telephone      string `json:"telephone" binding:"max=20"`
	DateNomination string `json:"date_nomination" binding:"omitempty,datetime=2006-01-02"`
	DureeMandat    int    `json:"duree_mandat" binding:"gte=0"`
	Active         *bool  `json:"active"`
}

func (r GerantRequest) input() (services.GerantInput, error) {
	date, err := parseDate(r.DateNomination)
	if err != nil {
		return services.GerantInput{}, err
	}
	return services.GerantInput{
		Nom:            r.Nom,
		Prenom:         r.Prenom,
		CIN:            r.CIN,
		Nationalite:    r.Nationalite,
		Adresse:        r.Adresse,
		Telephone:      r.Telephone,
		DateNomination: date,
		DureeMandat:    r.DureeMandat,
		Active:         r.Active,
	}, nil
}

// List gérants of a société. Query: active=true for current mandates only.
func (h *GerantHandler) List(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	societeID, ok := parseID(c, "id")
	if !ok {
		return
	}

	gerants, err := h.gerantService.List(actor, societeID, queryBool(c, "active"))
	if err != nil {
		response.FromError(c, err, "chargement des gérants échoué")
		return
	}
	response.Success(c, gerants)
}

func (h *GerantHandler) Create(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	societeID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req GerantRequest
	if !bindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	gerant, err := h.gerantService.Create(actor, societeID, in)
	if err != nil {
		response.FromError(c, err, "ajout du gérant échoué")
		return
	}
	response.Created(c, gerant)
}

func (h *GerantHandler) Update(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	societeID, ok := parseID(c, "id")
	if !ok {
		return
	}
	id, ok := parseID(c, "gerant_id")
	if !ok {
		return
	}
	var req GerantRequest
	if !bindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	gerant, err := h.gerantService.Update(actor, societeID, id, in)
	if err != nil {
		response.FromError(c, err, "mise à jour du gérant échouée")
		return
	}
	response.SuccessWithMessage(c, "gérant mis à jour", gerant)
}

func (h *GerantHandler) Delete(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	societeID, ok := parseID(c, "id")
	if !ok {
		return
	}
	id, ok := parseID(c, "gerant_id")
	if !ok {
		return
	}

	if err := h.gerantService.Delete(actor, societeID, id); err != nil {
		response.FromError(c, err, "suppression du gérant échouée")
		return
	}
	response.SuccessWithMessage(c, "gérant supprimé", nil)
}
