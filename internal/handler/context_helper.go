package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ims-console-api/internal/middleware"
	"github.com/noah-isme/ims-console-api/internal/models"
	appErrors "github.com/noah-isme/ims-console-api/pkg/errors"
	"github.com/noah-isme/ims-console-api/pkg/response"
)

type requestValidator interface {
	Fields(s interface{}) map[string]string
}

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.ClaimsFromContext(c)
}

// actorFromContext writes a 401 and returns false when the request carries no user.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.ActorID() == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return models.Actor{ID: claims.ActorID(), Role: claims.NormalizedRole()}, true
}

// bindJSON decodes the body into dest and, when v is set, validates it. It writes the
// error response itself and returns false on failure.
func bindJSON(c *gin.Context, dest interface{}, v requestValidator, what string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+what+" payload"))
		return false
	}
	if v == nil {
		return true
	}
	if errs := v.Fields(dest); len(errs) > 0 {
		response.Error(c, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "invalid "+what+" payload"), errs))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return value
}
