package handlers

import (
	"fiduciaire/internal/services"
	"fiduciaire/pkg/pagination"
	"fiduciaire/pkg/response"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// List the caller's notifications, newest first. Query: unread=true, page, page_size
func (h *NotificationHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	params := pagination.ParsePageParams(c)

	items, total, err := h.notificationService.List(user.ID, queryBool(c, "unread"), params.Page, params.PageSize)
	if err != nil {
		response.FromError(c, err, "chargement des notifications échoué")
		return
	}
	response.SuccessWithPage(c, items, pagination.NewPageInfo(params.Page, params.PageSize, total))
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	count, err := h.notificationService.UnreadCount(user.ID)
	if err != nil {
		response.FromError(c, err, "comptage échoué")
		return
	}
	response.Success(c, gin.H{"count": count})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(user.ID, id); err != nil {
		response.FromError(c, err, "opération échouée")
		return
	}
	response.SuccessWithMessage(c, "notification lue", nil)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	updated, err := h.notificationService.MarkAllRead(user.ID)
	if err != nil {
		response.FromError(c, err, "opération échouée")
		return
	}
	response.SuccessWithMessage(c, "notifications lues", gin.H{"updated": updated})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.Delete(user.ID, id); err != nil {
		response.FromError(c, err, "suppression échouée")
		return
	}
	response.SuccessWithMessage(c, "notification supprimée", nil)
}
