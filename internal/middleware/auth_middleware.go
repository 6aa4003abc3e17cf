package middleware

import (
	stderrors "errors"
	"strings"

	"fiduciaire/internal/models"
	"fiduciaire/internal/services"
	"fiduciaire/pkg/errors"
	"fiduciaire/pkg/jwt"
	"fiduciaire/pkg/response"

	"github.com/gin-gonic/gin"
)

// context keys
const (
	ContextUser   = "user"
	ContextUserID = "user_id"
	ContextClaims = "claims"
)

// AuthMiddleware bearer token authentication and role checks
type AuthMiddleware struct {
	users      *services.UserService
	jwtManager *jwt.Manager
}

func NewAuthMiddleware(users *services.UserService, jwtManager *jwt.Manager) *AuthMiddleware {
	return &AuthMiddleware{
		users:      users,
		jwtManager: jwtManager,
	}
}

// Authenticate resolves a raw token to an approved user. Also used by the
// websocket endpoint, which receives its token in the query string.
func (m *AuthMiddleware) Authenticate(token string) (*models.User, *jwt.Claims, error) {
	claims, err := m.jwtManager.VerifyToken(token)
	if err != nil {
		return nil, nil, errors.New(errors.ErrUnauthorized, "session invalide ou expirée")
	}
	user, err := m.users.GetByID(claims.UserID)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return nil, nil, errors.New(errors.ErrUnauthorized, "utilisateur inconnu")
		}
		return nil, nil, err
	}
	// a suspension takes effect on the next request, not at token expiry
	if !user.IsApproved() {
		return nil, nil, errors.New(errors.ErrForbidden, "compte inactif")
	}
	return user, claims, nil
}

// RequireLogin checks the Authorization header and stores the user in the context.
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "veuillez vous connecter")
			c.Abort()
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "en-tête d'authentification mal formé")
			c.Abort()
			return
		}

		user, claims, err := m.Authenticate(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			response.FromError(c, err, "authentification impossible")
			c.Abort()
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextUserID, user.ID)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequireRole lets only the given roles through. Use after RequireLogin.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Unauthorized(c, "veuillez vous connecter")
			c.Abort()
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "droits insuffisants : rôle "+strings.Join(roles, " ou ")+" requis")
		c.Abort()
	}
}

// CurrentUser the authenticated user, nil outside RequireLogin.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
