package api

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────
// Bearer Token Authentication Middleware
//
// The write path requires: Authorization: Bearer <INGEST_TOKEN>
//
// There is no development passthrough. An unconfigured token fails
// closed: every protected request answers 500 until the operator
// sets INGEST_TOKEN, so a deploy mistake can never silently open
// the ingest endpoint to the public internet.
// ──────────────────────────────────────────────────────────────────

// AuthMiddleware returns a Gin middleware that validates bearer tokens
// against the configured ingest token.
func AuthMiddleware(token string) gin.HandlerFunc {
	if token == "" {
		log.Println("[SECURITY WARNING] INGEST_TOKEN is not set. " +
			"All protected endpoints will answer 500 until it is configured.")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Ingest authentication is not configured",
			})
			c.Abort()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing Authorization header",
				"hint":  "Use: Authorization: Bearer <INGEST_TOKEN>",
			})
			c.Abort()
			return
		}

		// Parse "Bearer <token>"
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid Authorization header format"})
			c.Abort()
			return
		}

		// Use constant-time comparison to prevent timing-based token enumeration.
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
