package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": actor.ID.Hex(), "role": actor.Role})
	})
	r.GET("/protected", handlers...)
	return r
}

func get(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthGuardRejectsMissingAndBadTokens(t *testing.T) {
	r := newRouter(AuthGuard(testSecret))

	w := get(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)

	assert.Equal(t, http.StatusUnauthorized, get(r, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer not-a-jwt").Code)

	wrongKey := signToken(t, jwt.MapClaims{"userId": primitive.NewObjectID().Hex()}, "other")
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+wrongKey).Code)

	expired := signToken(t, jwt.MapClaims{
		"userId": primitive.NewObjectID().Hex(),
		"exp":    time.Now().Add(-time.Minute).Unix(),
	}, testSecret)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+expired).Code)

	noUser := signToken(t, jwt.MapClaims{"role": "buyer"}, testSecret)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+noUser).Code)
}

func TestAuthGuardInjectsActor(t *testing.T) {
	r := newRouter(AuthGuard(testSecret))
	id := primitive.NewObjectID()
	token := signToken(t, jwt.MapClaims{
		"userId": id.Hex(),
		"role":   "supplier",
		"exp":    time.Now().Add(time.Minute).Unix(),
	}, testSecret)

	w := get(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"`+id.Hex()+`","role":"supplier"}`, w.Body.String())
}

func TestRoleChecks(t *testing.T) {
	buyer := signToken(t, jwt.MapClaims{"userId": primitive.NewObjectID().Hex(), "role": "buyer"}, testSecret)
	admin := signToken(t, jwt.MapClaims{"userId": primitive.NewObjectID().Hex(), "role": "admin"}, testSecret)

	guarded := newRouter(AuthGuard(testSecret, "supplier", "admin"))
	assert.Equal(t, http.StatusForbidden, get(guarded, "Bearer "+buyer).Code)
	assert.Equal(t, http.StatusOK, get(guarded, "Bearer "+admin).Code)

	chained := newRouter(AuthGuard(testSecret), RequireRoles("admin"))
	w := get(chained, "Bearer "+buyer)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "User role buyer is not authorized")
	assert.Equal(t, http.StatusOK, get(chained, "Bearer "+admin).Code)

	adminOnly := newRouter(AdminAuth(testSecret))
	assert.Equal(t, http.StatusForbidden, get(adminOnly, "Bearer "+buyer).Code)
}

func TestParseBearerRejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"userId": primitive.NewObjectID().Hex(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseBearer("Bearer "+token, testSecret)
	assert.Error(t, err)
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(1, 2)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))

	now = now.Add(time.Hour)
	assert.Equal(t, 2, l.Prune())
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(NewIPRateLimiter(0.001, 1)))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}

func TestRequestMetricsPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestMetrics())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
