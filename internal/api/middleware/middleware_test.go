package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func ok(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"success": true}) }

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		wantStatus  int
		wantAllow   string
		credentials bool
	}{
		{
			name:       "wildcard simple request",
			origins:    []string{"*"},
			method:     http.MethodGet,
			origin:     "http://localhost:5173",
			wantStatus: http.StatusOK,
			wantAllow:  "*",
		},
		{
			name:       "wildcard preflight",
			origins:    []string{"*"},
			method:     http.MethodOptions,
			origin:     "http://localhost:5173",
			wantStatus: http.StatusNoContent,
			wantAllow:  "*",
		},
		{
			name:        "listed origin gets credentials",
			origins:     []string{"https://pen.example.com"},
			method:      http.MethodGet,
			origin:      "https://pen.example.com",
			wantStatus:  http.StatusOK,
			wantAllow:   "https://pen.example.com",
			credentials: true,
		},
		{
			name:       "unlisted origin is refused",
			origins:    []string{"https://pen.example.com"},
			method:     http.MethodGet,
			origin:     "https://evil.example.com",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "no origin header",
			origins:    []string{"*"},
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.Use(CORS(CORSConfigFor(tt.origins)))
			router.GET("/test", ok)

			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllow, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.credentials {
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

func TestLimiterWindow(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(RateLimitConfig{Bucket: "create", Max: 3, Window: 15 * time.Minute}, nil, nil)
	l.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("1.2.3.4"), "request %d", i)
	}
	assert.False(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("5.6.7.8"), "clients are limited independently")

	clock = clock.Add(14 * time.Minute)
	assert.False(t, l.Allow("1.2.3.4"), "earlier requests are still in the window")

	clock = clock.Add(time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("1.2.3.4"))
	}
	assert.False(t, l.Allow("1.2.3.4"))
}

func TestLimiterCapsEveryRollingWindow(t *testing.T) {
	tests := []struct {
		name string
		max  int
	}{
		{"create", 50},
		{"update", 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window := 15 * time.Minute
			start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			clock := start
			l := NewLimiter(RateLimitConfig{Bucket: tt.name, Max: tt.max, Window: window}, nil, nil)
			l.now = func() time.Time { return clock }

			// One request per second for three windows
			var admitted []time.Time
			for i := 0; i < int(3*window/time.Second); i++ {
				clock = start.Add(time.Duration(i) * time.Second)
				if l.Allow("1.2.3.4") {
					admitted = append(admitted, clock)
				}
			}

			require.NotEmpty(t, admitted)
			for i, at := range admitted {
				inWindow := 0
				for _, other := range admitted[i:] {
					if other.Sub(at) < window {
						inWindow++
					}
				}
				require.LessOrEqual(t, inWindow, tt.max, "window starting at %s", at)
			}
			assert.Equal(t, 3*tt.max, len(admitted))
		})
	}
}

func TestLimiterForgetsIdleClients(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(RateLimitConfig{Max: 1, Window: time.Minute}, nil, nil)
	l.now = func() time.Time { return clock }

	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Clients())

	clock = clock.Add(2 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Clients())
}

func TestRateLimitMiddlewareBody(t *testing.T) {
	router := setupTestRouter()
	router.POST("/api/create", RateLimit(RateLimitConfig{
		Bucket:  "create",
		Max:     1,
		Window:  time.Hour,
		Message: "Too many requests, please try again later",
	}, nil, nil), ok)

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/create", nil))
		return w
	}

	assert.Equal(t, http.StatusOK, send().Code)
	w := send()
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var body types.ErrorResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "Too many requests, please try again later", body.Error)
}

func TestAdminAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name       string
		hash       string
		header     string
		value      string
		wantStatus int
	}{
		{"disabled without hash", "", "Authorization", "Bearer s3cret", http.StatusNotFound},
		{"disabled with malformed hash", "not-a-hash", "Authorization", "Bearer s3cret", http.StatusNotFound},
		{"missing token", string(hash), "", "", http.StatusUnauthorized},
		{"wrong token", string(hash), "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"bearer token", string(hash), "Authorization", "Bearer s3cret", http.StatusOK},
		{"admin header", string(hash), HeaderAdminToken, "s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.GET("/api/admin/backup", AdminAuth(tt.hash, nil), ok)

			req := httptest.NewRequest(http.MethodGet, "/api/admin/backup", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestHashToken(t *testing.T) {
	hash, err := HashToken("token")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("token")))
}
