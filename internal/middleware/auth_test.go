package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/auth"
	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestService(t *testing.T, exp time.Duration) *auth.Service {
	t.Helper()
	svc, err := auth.NewService("middleware-test-secret-key", exp)
	require.NoError(t, err)
	return svc
}

func tokenFor(t *testing.T, svc *auth.Service, role models.Role) string {
	t.Helper()
	token, err := svc.GenerateToken(&models.User{
		ID:       primitive.NewObjectID(),
		Username: string(role) + "-user",
		Role:     role,
	})
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	authService := newTestService(t, time.Hour)
	middleware := NewAuthMiddleware(authService)

	t.Run("valid token", func(t *testing.T) {
		token := tokenFor(t, authService, models.RoleDispatcher)

		req := httptest.NewRequest("GET", "/api/maintenance/records", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
			claims, ok := GetUserFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, "dispatcher-user", claims.Username)
			assert.Equal(t, models.RoleDispatcher, claims.Role)
		})

		middleware.Authenticate(handler).ServeHTTP(w, req)
		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing authorization header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/incidents", nil)
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
		})

		middleware.Authenticate(handler).ServeHTTP(w, req)
		assert.False(t, handlerCalled)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("lowercase scheme", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/incidents", nil)
		req.Header.Set("Authorization", "bearer "+tokenFor(t, authService, models.RoleDriver))
		w := httptest.NewRecorder()

		middleware.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not a bearer header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/incidents", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()

		middleware.Authenticate(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/incidents", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
		})

		middleware.Authenticate(handler).ServeHTTP(w, req)
		assert.False(t, handlerCalled)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"error":"unauthorized","message":"Invalid token"}`, w.Body.String())
	})

	t.Run("expired token", func(t *testing.T) {
		short := newTestService(t, time.Nanosecond)
		token := tokenFor(t, short, models.RoleDriver)
		time.Sleep(1100 * time.Millisecond)

		req := httptest.NewRequest("GET", "/api/incidents", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		NewAuthMiddleware(short).Authenticate(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Token expired")
	})

	for _, path := range []string{"/api/auth/login", "/health", "/metrics"} {
		t.Run("skip auth "+path, func(t *testing.T) {
			req := httptest.NewRequest("POST", path, nil)
			w := httptest.NewRecorder()

			handlerCalled := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
			})

			middleware.Authenticate(handler).ServeHTTP(w, req)
			assert.True(t, handlerCalled)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}

	t.Run("skip is exact match", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/healthz", nil)
		w := httptest.NewRecorder()

		middleware.Authenticate(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("register needs a token", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/auth/register", nil)
		w := httptest.NewRecorder()

		middleware.Authenticate(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthMiddleware_RequirePermission(t *testing.T) {
	authService := newTestService(t, time.Hour)
	middleware := NewAuthMiddleware(authService)

	tests := []struct {
		name       string
		role       models.Role
		action     string
		wantCalled bool
		wantStatus int
	}{
		{"owner manages users", models.RoleOwner, models.ActionManageUsers, true, http.StatusOK},
		{"admin manages settings", models.RoleAdmin, models.ActionManageSettings, true, http.StatusOK},
		{"dispatcher manages maintenance", models.RoleDispatcher, models.ActionManageMaintenance, true, http.StatusOK},
		{"dispatcher cannot manage settings", models.RoleDispatcher, models.ActionManageSettings, false, http.StatusForbidden},
		{"driver reports incidents", models.RoleDriver, models.ActionCreateIncident, true, http.StatusOK},
		{"driver records spill kit checks", models.RoleDriver, models.ActionCreateSpillKitCheck, true, http.StatusOK},
		{"driver cannot delete maintenance", models.RoleDriver, models.ActionManageMaintenance, false, http.StatusForbidden},
		{"driver cannot export incidents", models.RoleDriver, models.ActionExportIncidents, false, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/x", nil)
			req.Header.Set("Authorization", "Bearer "+tokenFor(t, authService, tt.role))
			w := httptest.NewRecorder()

			handlerCalled := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
			})

			middleware.Authenticate(middleware.RequirePermission(tt.action)(handler)).ServeHTTP(w, req)
			assert.Equal(t, tt.wantCalled, handlerCalled)
			assert.Equal(t, tt.wantStatus, w.Code)
			if !tt.wantCalled {
				assert.Contains(t, w.Body.String(), `"error":"forbidden"`)
			}
		})
	}

	t.Run("no user in context", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/x", nil)
		w := httptest.NewRecorder()

		middleware.RequirePermission(models.ActionViewVehicles)(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimitMiddleware()
	now := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	calls := 0
	handler := limiter.RateLimit(2, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	hit := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/test", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, hit("192.168.1.2:12345").Code)
	now = now.Add(20 * time.Second)
	assert.Equal(t, http.StatusOK, hit("192.168.1.2:23456").Code)

	w := hit("192.168.1.2:12345")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "40", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate_limited","message":"Rate limit exceeded"}`, w.Body.String())
	assert.Equal(t, 2, calls)

	// Other clients have their own window.
	assert.Equal(t, http.StatusOK, hit("192.168.1.3:12345").Code)

	now = now.Add(40 * time.Second)
	assert.Equal(t, http.StatusOK, hit("192.168.1.2:12345").Code)
	assert.Equal(t, 4, calls)

	t.Run("stale clients are swept", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		hit("10.0.0.1:1")
		limiter.mu.Lock()
		defer limiter.mu.Unlock()
		assert.Len(t, limiter.clients, 1)
	})

	t.Run("disabled", func(t *testing.T) {
		open := NewRateLimitMiddleware().RateLimit(0, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		for i := 0; i < 10; i++ {
			req := httptest.NewRequest("GET", "/api/test", nil)
			w := httptest.NewRecorder()
			open.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote addr", "192.168.1.1:5000", nil, "192.168.1.1"},
		{"ipv6 remote addr", "[2001:db8::1]:5000", nil, "2001:db8::1"},
		{"forwarded chain", "10.0.0.1:5000", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "203.0.113.7"},
		{"real ip", "10.0.0.1:5000", map[string]string{"X-Real-IP": " 198.51.100.4 "}, "198.51.100.4"},
		{"no port", "pipe", nil, "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestGetUserFromContext(t *testing.T) {
	claims := &models.Claims{
		UserID:   "test-id",
		Username: "testuser",
		Role:     models.RoleDriver,
	}

	retrievedClaims, ok := GetUserFromContext(WithUser(context.Background(), claims))
	assert.True(t, ok)
	assert.Equal(t, claims.UserID, retrievedClaims.UserID)
	assert.Equal(t, claims.Username, retrievedClaims.Username)
	assert.Equal(t, claims.Role, retrievedClaims.Role)

	// A plain string key must not collide with the typed key.
	ctx := context.WithValue(context.Background(), "user", claims)
	_, ok = GetUserFromContext(ctx)
	assert.False(t, ok)

	_, ok = GetUserFromContext(context.Background())
	assert.False(t, ok)
}
