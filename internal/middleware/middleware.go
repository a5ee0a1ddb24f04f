// Package middleware provides HTTP middleware for the civic issue server.
package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/models"
)

// StructuredLogger returns a middleware that logs HTTP requests with zap
func StructuredLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			logger.Info("HTTP Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.statusCode),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.String("remote", clientIP(r)),
			)
		})
	}
}

// SecurityHeaders sets defensive response headers on every response.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticator resolves a bearer token to an active admin.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Admin, error)
}

type adminKey struct{}

// WithAdmin stores the authenticated admin in ctx.
func WithAdmin(ctx context.Context, admin *models.Admin) context.Context {
	return context.WithValue(ctx, adminKey{}, admin)
}

// AdminFrom returns the admin set by RequireAdmin, or nil.
func AdminFrom(ctx context.Context) *models.Admin {
	admin, _ := ctx.Value(adminKey{}).(*models.Admin)
	return admin
}

// RequireAdmin validates the bearer token and loads the admin it names.
// Inactive or deleted admins are rejected even when the token is still valid.
func RequireAdmin(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Access denied. No token provided.")
				return
			}

			tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			admin, err := auth.Authenticate(r.Context(), tokenStr)
			if err != nil || admin == nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), admin)))
		})
	}
}

// RequireRole admits only admins holding one of roles. It must run after RequireAdmin.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	allowed := make(map[models.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin := AdminFrom(r.Context())
			if admin == nil {
				writeError(w, http.StatusUnauthorized, "Access denied. No token provided.")
				return
			}
			if !allowed[admin.Role] {
				writeError(w, http.StatusForbidden, "Access denied. Insufficient role.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission admits only admins whose permission flag perm is set. It must run after RequireAdmin.
func RequirePermission(perm models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin := AdminFrom(r.Context())
			if admin == nil {
				writeError(w, http.StatusUnauthorized, "Authentication required.")
				return
			}
			if !admin.Permissions.Has(perm) {
				writeError(w, http.StatusForbidden, "Access denied. Missing permission: "+string(perm))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestMeta extracts the client address and user agent recorded in activity logs.
func RequestMeta(r *http.Request) *models.RequestMeta {
	return &models.RequestMeta{IPAddress: clientIP(r), UserAgent: r.UserAgent()}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit implements a fixed one-minute window limiter per client IP.
// The sweeper stops when ctx is cancelled.
func RateLimit(ctx context.Context, requestsPerMinute int) func(http.Handler) http.Handler {
	type client struct {
		count       int
		windowStart time.Time
	}

	var (
		mu      sync.Mutex
		clients = make(map[string]*client)
	)

	// Cleanup stale entries every 5 minutes
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			mu.Lock()
			for ip, c := range clients {
				if time.Since(c.windowStart) > 2*time.Minute {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			now := time.Now()

			mu.Lock()
			c, exists := clients[key]
			if !exists || now.Sub(c.windowStart) > time.Minute {
				clients[key] = &client{count: 1, windowStart: now}
				mu.Unlock()
				next.ServeHTTP(w, r)
				return
			}

			c.count++
			over := c.count > requestsPerMinute
			mu.Unlock()

			if over {
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
