package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"document-archive-platform/internal/config"
	"document-archive-platform/utils"
)

// ImportAuth guards the write endpoints with a static bearer token.
// With no token configured the endpoints are disabled outright rather
// than left open.
func ImportAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.ImportAPIToken == "" {
			utils.ServiceUnavailable(c, "Import API is not configured")
			c.Abort()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.ImportAPIToken)) != 1 {
			utils.Unauthorized(c, "Unauthorized")
			c.Abort()
			return
		}
		c.Next()
	}
}
