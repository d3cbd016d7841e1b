package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ims-console-api/internal/models"
	appErrors "github.com/noah-isme/ims-console-api/pkg/errors"
	"github.com/noah-isme/ims-console-api/pkg/response"
)

// RBAC enforces role-based access control for routes. Roles compare case-insensitively.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed))
	for _, a := range allowed {
		allowedRoles[models.UserRole(strings.ToLower(strings.TrimSpace(a)))] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowedRoles[claims.NormalizedRole()]; ok {
			c.Next()
			return
		}
		response.Abort(c, appErrors.ErrForbidden)
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
