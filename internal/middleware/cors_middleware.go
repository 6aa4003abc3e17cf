package middleware

import (
	"strings"
	"time"

	"fiduciaire/pkg/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupCORS builds the CORS middleware from config
func SetupCORS(cfg config.CORSConfig) gin.HandlerFunc {
	wildcard := false
	for _, o := range cfg.AllowOrigins {
		if o != "*" && strings.Contains(o, "*") {
			wildcard = true
		}
	}

	corsConfig := cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     cfg.AllowMethods,
		AllowHeaders:     cfg.AllowHeaders,
		ExposeHeaders:    cfg.ExposeHeaders,
		AllowCredentials: cfg.AllowCredentials,
		AllowWildcard:    wildcard,
		MaxAge:           time.Duration(cfg.MaxAge) * time.Hour,
	}
	return cors.New(corsConfig)
}

// OriginAllowed applies the CORS origin list to a websocket handshake.
// An empty origin (same-origin or non-browser client) is accepted.
func OriginAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || matchOrigin(origin, a) {
			return true
		}
	}
	return false
}

// matchOrigin exact match, or "*.example.com" for the domain and its subdomains
func matchOrigin(origin, allowed string) bool {
	if origin == allowed {
		return true
	}
	if !strings.HasPrefix(allowed, "*.") {
		return false
	}
	domain := allowed[2:]

	host := origin
	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
