package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ims-console-api/internal/models"
	"github.com/noah-isme/ims-console-api/internal/service"
	"github.com/noah-isme/ims-console-api/pkg/config"
	appErrors "github.com/noah-isme/ims-console-api/pkg/errors"
	"github.com/noah-isme/ims-console-api/pkg/imsclient"
	"github.com/noah-isme/ims-console-api/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type discardRecorder struct {
	actors []models.Actor
	err    error
}

func (d *discardRecorder) Discard(_ context.Context, actor models.Actor) error {
	d.actors = append(d.actors, actor)
	return d.err
}

func newTokens() *service.TokenService {
	return service.NewTokenService(config.JWTConfig{Secret: "test-secret"})
}

func issue(t *testing.T, tokens *service.TokenService, role models.UserRole, ttl time.Duration) string {
	t.Helper()
	token, err := tokens.Issue(models.JWTClaims{UserID: "user-1", Role: role}, ttl)
	require.NoError(t, err)
	return token
}

func newRouter(tokens *service.TokenService, guard *discardRecorder, handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	chain := []gin.HandlerFunc{SessionGuard(guard, nil), JWT(tokens)}
	chain = append(chain, handlers...)
	r.GET("/protected", chain...)
	return r
}

func serve(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTForwardsTokenUpstream(t *testing.T) {
	tokens := newTokens()
	token := issue(t, tokens, models.RoleCounsellor, time.Hour)
	guard := &discardRecorder{}
	r := newRouter(tokens, guard, func(c *gin.Context) {
		assert.Equal(t, token, imsclient.TokenFromContext(c.Request.Context()))
		assert.Equal(t, "user-1", c.GetString("user_id"))
		c.Status(http.StatusNoContent)
	})

	w := serve(r, token)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, guard.actors)
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	guard := &discardRecorder{}
	w := serve(newRouter(newTokens(), guard), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "true", w.Header().Get(response.SessionExpiredHeader))
	assert.Empty(t, guard.actors)
}

func TestSessionGuardDropsSlotOnExpiredToken(t *testing.T) {
	tokens := newTokens()
	token := issue(t, tokens, models.RoleCounsellor, -time.Minute)
	guard := &discardRecorder{}

	w := serve(newRouter(tokens, guard), token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrSessionExpired.Code)
	require.Len(t, guard.actors, 1)
	assert.Equal(t, "user-1", guard.actors[0].ID)
}

func TestSessionGuardDropsSlotOnUpstream401(t *testing.T) {
	tokens := newTokens()
	guard := &discardRecorder{err: errors.New("redis down")}
	r := newRouter(tokens, guard, func(c *gin.Context) {
		response.Error(c, appErrors.ErrSessionExpired)
	})

	w := serve(r, issue(t, tokens, models.RoleAdmin, time.Hour))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "true", w.Header().Get(response.SessionExpiredHeader))
	require.Len(t, guard.actors, 1)
}

func TestRBAC(t *testing.T) {
	tokens := newTokens()
	r := newRouter(tokens, &discardRecorder{}, RBAC("ADMIN", "superadmin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(r, issue(t, tokens, "Admin", time.Hour)).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, issue(t, tokens, models.RoleCounsellor, time.Hour)).Code)
}

type observerStub struct {
	paths    []string
	statuses []int
}

func (o *observerStub) ObserveHTTPRequest(_ string, path string, status int, _ time.Duration) {
	o.paths = append(o.paths, path)
	o.statuses = append(o.statuses, status)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	obs := &observerStub{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/enquiries/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/enquiries/e1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, []string{"/enquiries/:id", "unmatched"}, obs.paths)
	assert.Equal(t, []int{http.StatusOK, http.StatusNotFound}, obs.statuses)
}

func TestResponseMeta(t *testing.T) {
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/meta", func(c *gin.Context) {
		SetMeta(c, "prefilled", true)
		response.JSON(c, http.StatusOK, gin.H{"ok": true}, nil, ExtractMeta(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/meta", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"ok":true},"meta":{"prefilled":true}}`, w.Body.String())
}
