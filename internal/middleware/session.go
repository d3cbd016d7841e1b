package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/ims-console-api/internal/models"
)

type stagedConversionDiscarder interface {
	Discard(ctx context.Context, actor models.Actor) error
}

// SessionGuard is the one place a 401 is handled: when a request ends unauthorised, locally
// or because the IMS backend rejected the token, the user's staged conversion is dropped.
// Register it before JWT so it also sees JWT's own rejections.
func SessionGuard(conversions stagedConversionDiscarder, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() != http.StatusUnauthorized || conversions == nil {
			return
		}
		claims := ClaimsFromContext(c)
		if claims == nil || claims.ActorID() == "" {
			return
		}
		actor := models.Actor{ID: claims.ActorID(), Role: claims.NormalizedRole()}
		if err := conversions.Discard(context.WithoutCancel(c.Request.Context()), actor); err != nil {
			logger.Sugar().Warnw("failed to drop staged conversion after session expiry", "user_id", actor.ID, "error", err)
			return
		}
		logger.Sugar().Infow("session expired, staged conversion dropped", "user_id", actor.ID)
	}
}
