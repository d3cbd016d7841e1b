package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ims-console-api/internal/models"
	appErrors "github.com/noah-isme/ims-console-api/pkg/errors"
	"github.com/noah-isme/ims-console-api/pkg/imsclient"
	"github.com/noah-isme/ims-console-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

type tokenValidator interface {
	ValidateToken(tokenString string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token. The raw token is forwarded to the
// IMS backend through the request context. Claims of an expired token are still stored so
// SessionGuard knows whose session ended.
func JWT(tokens tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			return
		}
		raw := strings.TrimSpace(parts[1])

		claims, err := tokens.ValidateToken(raw)
		if claims != nil {
			c.Set(ContextUserKey, claims)
			c.Set("user_id", claims.ActorID())
		}
		if err != nil {
			response.Abort(c, err)
			return
		}

		c.Request = c.Request.WithContext(imsclient.WithToken(c.Request.Context(), raw))
		c.Next()
	}
}

// ClaimsFromContext returns the claims stored by JWT.
func ClaimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}
