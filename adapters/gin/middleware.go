package ginadapter

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tuan304201/generate-license-key/adapters/ginutil"
	jwtkit "github.com/tuan304201/generate-license-key/jwt"
)

// TokenVerifier validates gateway bearer tokens. Satisfied by jwtkit.Verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (jwtkit.TokenInfo, error)
}

// RequireBearer gates admin routes behind a verified bearer token. The
// middleware only authenticates; authorization decisions stay upstream.
func RequireBearer(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if v == nil {
			ginutil.Unauthorized(c, "auth_not_configured")
			c.Abort()
			return
		}
		h := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(h, prefix) {
			ginutil.Unauthorized(c, "missing_bearer_token")
			c.Abort()
			return
		}
		info, err := v.Verify(c.Request.Context(), strings.TrimSpace(h[len(prefix):]))
		if err != nil {
			ginutil.Unauthorized(c, "invalid_token")
			c.Abort()
			return
		}
		c.Set("auth.subject", info.Subject)
		c.Next()
	}
}
