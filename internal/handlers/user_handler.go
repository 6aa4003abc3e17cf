package handlers

import (
	"fiduciaire/internal/models"
	"fiduciaire/internal/services"
	"fiduciaire/pkg/pagination"
	"fiduciaire/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type UpdateProfileRequest struct {
	Nom       string `json:"nom" binding:"required,max=100"`
	Prenom    string `json:"prenom" binding:"required,max=100"`
	Telephone string `json:"telephone" binding:"max=20"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

type RejectRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// ========== Profile ==========

// UpdateProfile the current user's contact details
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.userService.UpdateProfile(user.ID, req.Nom, req.Prenom, req.Telephone)
	if err != nil {
		response.FromError(c, err, "mise à jour du profil échouée")
		return
	}
	response.SuccessWithMessage(c, "profil mis à jour", updated)
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.userService.ChangePassword(user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		response.FromError(c, err, "changement de mot de passe échoué")
		return
	}
	response.SuccessWithMessage(c, "mot de passe modifié", nil)
}

// ========== Administration ==========

// List all accounts, ADMIN only.
// Query: status, role, keyword, page, page_size
func (h *UserHandler) List(c *gin.Context) {
	params := pagination.ParsePageParams(c)
	filter := services.UserFilter{
		Status:  c.Query("status"),
		Role:    c.Query("role"),
		Keyword: c.Query("keyword"),
	}

	users, total, err := h.userService.GetWithFiltersAndPage(filter, params.Page, params.PageSize)
	if err != nil {
		response.FromError(c, err, "chargement des utilisateurs échoué")
		return
	}
	response.SuccessWithPage(c, users, pagination.NewPageInfo(params.Page, params.PageSize, total))
}

// Pending accounts the current user may approve or reject.
func (h *UserHandler) Pending(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	users, err := h.userService.PendingFor(actor)
	if err != nil {
		response.FromError(c, err, "chargement des demandes échoué")
		return
	}
	response.Success(c, users)
}

// Get an account: ADMIN, the user themself, or someone allowed to review it.
func (h *UserHandler) Get(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	user, err := h.userService.GetByID(id)
	if err != nil {
		response.FromError(c, err, "chargement de l'utilisateur échoué")
		return
	}
	if !actor.IsAdmin() && actor.ID != user.ID && !models.CanReview(actor.Role, user.Role) {
		response.NotFound(c, "utilisateur introuvable")
		return
	}
	response.Success(c, user)
}

func (h *UserHandler) Delete(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.userService.Delete(actor, id); err != nil {
		response.FromError(c, err, "suppression échouée")
		return
	}
	response.SuccessWithMessage(c, "utilisateur supprimé", nil)
}

// Stats account counts, ADMIN only.
func (h *UserHandler) Stats(c *gin.Context) {
	stats, err := h.userService.GetStats()
	if err != nil {
		response.FromError(c, err, "statistiques indisponibles")
		return
	}
	response.Success(c, stats)
}

// ========== Workflow ==========

func (h *UserHandler) Approve(c *gin.Context) {
	h.transition(c, "compte validé", func(actor *models.User, id uint) (*models.User, error) {
		return h.userService.Approve(c.Request.Context(), actor, id)
	})
}

func (h *UserHandler) Reject(c *gin.Context) {
	var req RejectRequest
	if !bindJSON(c, &req) {
		return
	}
	h.transition(c, "compte refusé", func(actor *models.User, id uint) (*models.User, error) {
		return h.userService.Reject(c.Request.Context(), actor, id, req.Reason)
	})
}

func (h *UserHandler) Suspend(c *gin.Context) {
	h.transition(c, "compte suspendu", func(actor *models.User, id uint) (*models.User, error) {
		return h.userService.Suspend(c.Request.Context(), actor, id)
	})
}

func (h *UserHandler) Reactivate(c *gin.Context) {
	h.transition(c, "compte réactivé", func(actor *models.User, id uint) (*models.User, error) {
		return h.userService.Reactivate(c.Request.Context(), actor, id)
	})
}

func (h *UserHandler) transition(c *gin.Context, message string, apply func(actor *models.User, id uint) (*models.User, error)) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	user, err := apply(actor, id)
	if err != nil {
		response.FromError(c, err, "opération impossible")
		return
	}
	response.SuccessWithMessage(c, message, user)
}
