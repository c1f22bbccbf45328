package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/auth"
	"github.com/portaprosoftware/fleet-compliance/internal/models"
)

type contextKey string

const UserContextKey contextKey = "user"

// publicPaths never require a token. Registration is an admin action, so
// only login is listed.
var publicPaths = map[string]bool{
	"/api/auth/login": true,
	"/health":         true,
	"/metrics":        true,
}

// AuthMiddleware authenticates bearer tokens and gates routes by role.
type AuthMiddleware struct {
	authService *auth.Service
}

func NewAuthMiddleware(authService *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Authenticate puts the caller's claims into the request context or answers
// 401.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Authorization header required")
			return
		}
		token, err := m.authService.ExtractTokenFromHeader(header)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
			return
		}

		claims, err := m.authService.ValidateToken(token)
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			writeError(w, http.StatusUnauthorized, "unauthorized", "Token expired")
			return
		case err != nil:
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims)))
	})
}

// RequirePermission answers 403 unless the caller's role may perform action.
// It must run after Authenticate.
func (m *AuthMiddleware) RequirePermission(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "User context not found")
				return
			}
			if !claims.Role.Can(action) {
				writeError(w, http.StatusForbidden, "forbidden", "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns a copy of ctx carrying claims.
func WithUser(ctx context.Context, claims *models.Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

func GetUserFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*models.Claims)
	return claims, ok && claims != nil
}

// RateLimitMiddleware counts requests per client IP in fixed windows.
type RateLimitMiddleware struct {
	mu        sync.Mutex
	clients   map[string]*window
	lastSweep time.Time
	now       func() time.Time
}

type window struct {
	start time.Time
	count int
}

func NewRateLimitMiddleware() *RateLimitMiddleware {
	return &RateLimitMiddleware{
		clients: make(map[string]*window),
		now:     time.Now,
	}
}

// RateLimit allows maxRequests per client every windowSeconds and answers
// 429 with Retry-After beyond that. A non-positive maxRequests disables it.
func (m *RateLimitMiddleware) RateLimit(maxRequests int, windowSeconds int) func(http.Handler) http.Handler {
	length := time.Duration(windowSeconds) * time.Second
	return func(next http.Handler) http.Handler {
		if maxRequests <= 0 || length <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if wait, ok := m.allow(getClientIP(r), maxRequests, length); !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allow counts one request for client. When refused it returns the time
// until the client's window resets.
func (m *RateLimitMiddleware) allow(client string, max int, length time.Duration) (time.Duration, bool) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) >= length {
		for ip, win := range m.clients {
			if now.Sub(win.start) >= length {
				delete(m.clients, ip)
			}
		}
		m.lastSweep = now
	}

	win, ok := m.clients[client]
	if !ok || now.Sub(win.start) >= length {
		win = &window{start: now}
		m.clients[client] = win
	}
	if win.count >= max {
		return win.start.Add(length).Sub(now), false
	}
	win.count++
	return 0, true
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's address.
func getClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeError mirrors the API's JSON error body.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
