package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agorahq/agora/backend/internal/auth"
	"github.com/agorahq/agora/backend/internal/cache/cachetest"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(tokens *auth.TokenService, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware(), GinLoggerMiddleware(), MetricsMiddleware())
	handlers := append([]gin.HandlerFunc{AuthMiddleware(tokens)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		id, _ := CurrentIdentity(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id.UserID})
	})
	r.GET("/me", handlers...)
	return r
}

func TestRequestIDIsEchoed(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "abc-123", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokenService([]byte("secret"))
	r := newRouter(tokens)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := tokens.GenerateToken(auth.Identity{UserID: "u1"})
	require.NoError(t, err)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1"}`, w.Body.String())
}

func TestAdminMiddleware(t *testing.T) {
	tokens := auth.NewTokenService([]byte("secret"))
	r := newRouter(tokens, AdminMiddleware())

	plain, _ := tokens.GenerateToken(auth.Identity{UserID: "u1"})
	admin, _ := tokens.GenerateToken(auth.Identity{UserID: "u2", IsAdmin: true})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+plain, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+admin, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpgradeRateLimit(t *testing.T) {
	bus, mr := cachetest.NewBus(t)
	tokens := auth.NewTokenService([]byte("secret"))
	r := newRouter(tokens, UpgradeRateLimitMiddleware(bus, 2, time.Minute))
	token, _ := tokens.GenerateToken(auth.Identity{UserID: "u1"})

	call := func() int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call())
	assert.Equal(t, http.StatusOK, call())
	assert.Equal(t, http.StatusTooManyRequests, call())

	mr.FastForward(61 * time.Second)
	assert.Equal(t, http.StatusOK, call())

	mr.Close()
	assert.Equal(t, http.StatusServiceUnavailable, call())
}
