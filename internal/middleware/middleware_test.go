package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "middleware-secret", JWTExpiry: time.Hour})
}

func echoStudent(c *gin.Context) {
	c.String(http.StatusOK, "%d", StudentID(c))
}

func TestRequireStudentJWT(t *testing.T) {
	auth := testAuth()
	studentToken, err := auth.GenerateStudentToken(42)
	require.NoError(t, err)
	adminToken, err := auth.GenerateAdminToken(1)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", RequireStudentJWT(auth), echoStudent)

	tests := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{name: "missing", status: http.StatusUnauthorized, body: "TOKEN_REQUIRED"},
		{name: "garbage", header: "Bearer nope", status: http.StatusUnauthorized, body: "TOKEN_INVALID"},
		{name: "admin token", header: "Bearer " + adminToken, status: http.StatusForbidden, body: "STUDENT_ACCESS_ONLY"},
		{name: "bearer header", header: "Bearer " + studentToken, status: http.StatusOK, body: "42"},
		{name: "lowercase scheme", header: "bearer " + studentToken, status: http.StatusOK, body: "42"},
		{name: "query fallback", query: "?token=" + studentToken, status: http.StatusOK, body: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestRequireAdminJWT(t *testing.T) {
	auth := testAuth()
	studentToken, _ := auth.GenerateStudentToken(42)
	adminToken, _ := auth.GenerateAdminToken(3)

	r := gin.New()
	r.GET("/monitor", RequireAdminJWT(auth), echoStudent)

	req := httptest.NewRequest(http.MethodGet, "/monitor?token="+adminToken, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/monitor", nil)
	req.Header.Set("Authorization", "Bearer "+studentToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "ADMIN_ACCESS_ONLY")
}

func TestRequireStudentWSAuthIgnoresHeader(t *testing.T) {
	auth := testAuth()
	token, _ := auth.GenerateStudentToken(9)

	r := gin.New()
	r.GET("/ws", RequireStudentWSAuth(auth), echoStudent)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "9", w.Body.String())
}

func TestRateLimiterAllow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 2, time.Hour, KeyByClientIP)
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "buckets are per key")
}

func TestRateLimiterRefills(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 1, 20*time.Millisecond, KeyByClientIP)
	require.True(t, rl.Allow("a"))
	require.False(t, rl.Allow("a"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiterMiddlewareKeysByStudent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auth := testAuth()
	rl := NewRateLimiter(ctx, 1, time.Hour, KeyByStudent)

	r := gin.New()
	r.POST("/start", RequireStudentJWT(auth), rl.Middleware(), echoStudent)

	call := func(id int) int {
		token, _ := auth.GenerateStudentToken(id)
		req := httptest.NewRequest(http.MethodPost, "/start", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call(1))
	assert.Equal(t, http.StatusTooManyRequests, call(1))
	assert.Equal(t, http.StatusOK, call(2))
}

func TestCacheHeaders(t *testing.T) {
	r := gin.New()
	r.GET("/cached", CacheControl(60), echoStudent)
	r.GET("/live", NoStore(), echoStudent)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cached", nil))
	assert.Equal(t, "private, max-age=60", w.Header().Get("Cache-Control"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
}

func TestCompress(t *testing.T) {
	large := strings.Repeat("question ", 400)

	r := gin.New()
	r.Use(Compress(DefaultCompressMinLength))
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "tiny") })

	t.Run("large body is encoded", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/large", nil)
		req.Header.Set("Accept-Encoding", "gzip, br")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, "br", w.Header().Get("Content-Encoding"))
		plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
		require.NoError(t, err)
		assert.Equal(t, large, string(plain))
	})

	t.Run("small body stays plain", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/small", nil)
		req.Header.Set("Accept-Encoding", "br")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, "tiny", w.Body.String())
	})

	t.Run("client without br", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/large", nil))

		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, large, w.Body.String())
	})

	t.Run("event stream is skipped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/large", nil)
		req.Header.Set("Accept-Encoding", "br")
		req.Header.Set("Accept", "text/event-stream")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Content-Encoding"))
	})
}
