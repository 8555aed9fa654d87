package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/jwt"
)

const principalKey = "layover.principal"

// TokenValidator checks a bearer token. jwt.Service satisfies it.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Token, error)
}

// RequireRole admits requests carrying a valid bearer token whose roles
// include role. A missing or invalid token is answered 401, a valid token
// without the role 403, both with the JSON envelope.
func RequireRole(v TokenValidator, role string) gin.HandlerFunc {
	if v == nil {
		panic("middleware.RequireRole: validator must not be nil")
	}

	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			deny(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		tok, err := v.ValidateToken(raw)
		if err != nil || tok == nil {
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			deny(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if !slices.Contains(tok.Roles, role) {
			deny(c, http.StatusForbidden, "role "+role+" required")
			return
		}

		c.Set(principalKey, tok.UserID)
		c.Next()
	}
}

// Principal returns the user RequireRole admitted the request as, or "" on
// unguarded routes.
func Principal(c *gin.Context) string {
	return c.GetString(principalKey)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func deny(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    status,
		"message": message,
		"data":    nil,
	})
}
