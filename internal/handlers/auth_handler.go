package handlers

import (
	"strings"
	"time"

	"fiduciaire/internal/models"
	"fiduciaire/internal/services"
	"fiduciaire/pkg/jwt"
	"fiduciaire/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	userService *services.UserService
	jwtManager  *jwt.Manager
}

func NewAuthHandler(userService *services.UserService, jwtManager *jwt.Manager) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		jwtManager:  jwtManager,
	}
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=100"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	Nom       string `json:"nom" binding:"required,max=100"`
	Prenom    string `json:"prenom" binding:"required,max=100"`
	Telephone string `json:"telephone" binding:"max=20"`
	Role      string `json:"role" binding:"required,oneof=COMPTABLE ASSISTANT"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt int64        `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Register self-registration; the account waits for e-mail verification.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.Register(c.Request.Context(), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		Nom:       req.Nom,
		Prenom:    req.Prenom,
		Telephone: req.Telephone,
		Role:      req.Role,
	})
	if err != nil {
		response.FromError(c, err, "inscription impossible")
		return
	}

	c.JSON(201, response.Response{
		Code:    201,
		Message: "compte créé : un e-mail de confirmation vous a été envoyé",
		Data:    user,
	})
}

// VerifyEmail consumes the token from the confirmation mail.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		response.FromError(c, err, "vérification impossible")
		return
	}
	response.SuccessWithMessage(c, "adresse confirmée : votre compte attend la validation d'un responsable", user)
}

// ResendVerification always answers success so addresses cannot be probed.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req ResendVerificationRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.userService.ResendVerification(c.Request.Context(), req.Email); err != nil {
		response.FromError(c, err, "envoi impossible")
		return
	}
	response.SuccessWithMessage(c, "si un compte en attente existe pour cette adresse, un nouvel e-mail a été envoyé", nil)
}

// Login issues a token for an approved account.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.FromError(c, err, "connexion impossible")
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		response.ServerError(c, "génération du jeton échouée")
		return
	}

	response.Success(c, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.jwtManager.GetTokenDuration()).Unix(),
		User:      user,
	})
}

// RefreshToken exchanges a valid token for a fresh one. Mounted behind
// RequireLogin, so suspended accounts cannot refresh.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, err := h.jwtManager.RefreshToken(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	if err != nil {
		response.Unauthorized(c, "session invalide ou expirée")
		return
	}

	response.Success(c, gin.H{
		"token":      token,
		"expires_at": time.Now().Add(h.jwtManager.GetTokenDuration()).Unix(),
	})
}

// GetProfile the current user.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	response.Success(c, user)
}
