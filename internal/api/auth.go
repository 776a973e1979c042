package api

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// Scope names an operation class the API exposes: ScopeRead covers
// GetJob/ListFindings (viewing masked findings), ScopeWrite covers
// CreateScan/DeleteJob (launching and tearing down scans). Separating
// them lets a deployer hand a dashboard a read-only token while keeping
// the ability to kick off a bucket-wide scan restricted to a smaller set
// of credentials.
type Scope string

const (
	ScopeRead  Scope = "read"
	ScopeWrite Scope = "write"
)

// AuthMiddleware validates bearer tokens for the given scope. It first
// checks a scope-specific environment variable (API_READ_TOKEN or
// API_WRITE_TOKEN); if that is unset it falls back to the shared
// API_AUTH_TOKEN so a single-token deployment still works. If neither is
// set, requests in that scope are allowed through (development mode).
func AuthMiddleware(scope Scope) gin.HandlerFunc {
	token := scopedToken(scope)

	if token == "" && os.Getenv("GIN_MODE") == "release" {
		log.Printf("[SECURITY WARNING] no auth token configured for %s-scope routes in release mode. "+
			"Set API_%s_TOKEN or API_AUTH_TOKEN to enforce authentication.", scope, strings.ToUpper(string(scope)))
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing Authorization header",
				"hint":  "Use: Authorization: Bearer <token>",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid Authorization header format"})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// scopedToken resolves the bearer token required for scope: a dedicated
// API_<SCOPE>_TOKEN env var takes priority over the shared API_AUTH_TOKEN.
func scopedToken(scope Scope) string {
	if v := os.Getenv("API_" + strings.ToUpper(string(scope)) + "_TOKEN"); v != "" {
		return v
	}
	return os.Getenv("API_AUTH_TOKEN")
}
