package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/observability/metrics"
	"github.com/lotledger/lotledger/internal/observability/statsd"
)

const (
	// DefaultSessionCookie is the cookie carrying the session token.
	DefaultSessionCookie = "session_id"
	requestIDHeader      = "X-Request-ID"
)

// Authenticator resolves a session token to a live session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domainauth.Session, error)
}

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", RequestIDFromContext(r.Context())),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Metrics emits a count and latency per request tagged with the matched
// route pattern. It must sit directly in front of the mux because the mux
// records the pattern on the request it is handed.
func Metrics(sink statsd.Sink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if sink == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			metrics.EmitRequest(sink, metrics.RequestMetric{
				Route:    r.Pattern,
				Status:   ww.status,
				Duration: time.Since(start),
			})
		})
	}
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					WriteError(w, ErrorParams{
						Code:    http.StatusInternalServerError,
						ErrCode: "internal",
						Err:     errors.New("internal server error"),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID tags each request with an id, reusing a well-formed inbound
// X-Request-ID and generating a UUID otherwise.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)
			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LimitBody caps request bodies at n bytes. Non-positive n disables the cap.
func LimitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if n <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

// Chain applies middlewares so the first one listed runs outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// SessionGuard authenticates requests and checks them against the policy.
type SessionGuard struct {
	Auth       Authenticator
	Policy     domainauth.Policy
	CookieName string
	Logger     *slog.Logger
}

// Require wraps next so it only runs for a live session whose role the
// policy allows for op. Unknown operations are forbidden.
func (g *SessionGuard) Require(op domainauth.Operation, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := g.sessionFromRequest(r)
		if err != nil {
			writeServiceError(w, r, g.logger(), err)
			return
		}
		if err := g.Policy.Authorize(session, op); err != nil {
			if session != nil {
				g.logger().InfoContext(r.Context(), "request denied",
					"operation", op, "role", session.Role, "identity_id", session.IdentityID)
			}
			writeServiceError(w, r, g.logger(), err)
			return
		}
		ctx := SetSessionInContext(r.Context(), session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *SessionGuard) sessionFromRequest(r *http.Request) (*domainauth.Session, error) {
	token := TokenFromRequest(r, g.cookieName())
	if token == "" {
		return nil, domainauth.ErrUnauthenticated
	}
	return g.Auth.Authenticate(r.Context(), token)
}

func (g *SessionGuard) cookieName() string {
	if g.CookieName == "" {
		return DefaultSessionCookie
	}
	return g.CookieName
}

func (g *SessionGuard) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// TokenFromRequest reads the session token from an "Authorization: Bearer"
// header, falling back to the session cookie.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}
