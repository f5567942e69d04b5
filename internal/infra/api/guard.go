package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bookstore-payments/internal/domain/model"
	"bookstore-payments/internal/domain/ports/repository"
	"bookstore-payments/internal/infra/logging"
	"bookstore-payments/internal/infra/metrics"
)

type Middleware func(http.Handler) http.Handler

func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TraceID(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid := uuid.NewString()
			ctx := logging.WithTraceID(r.Context(), tid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequestLog(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := logging.With(r.Context(), logger)
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: 200}
			next.ServeHTTP(ww, r)
			l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.status).
				Dur("duration", time.Since(start)).
				Msg("http_request")
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

func Recover(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					l := logging.With(r.Context(), logger)
					l.Error().Interface("panic", rec).Msg("panic recovered")
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ===== Principal resolution =====

type principalKey struct{}

// PrincipalFrom returns the resolved caller. Absent means Anonymous; handlers
// never see a nil principal.
func PrincipalFrom(ctx context.Context) model.Principal {
	if p, ok := ctx.Value(principalKey{}).(model.Principal); ok {
		return p
	}
	return model.Anonymous()
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Guard turns request credentials into a model.Principal. Ambiguity always
// degrades downward: a bad token is Anonymous, a role lookup failure refuses
// the request instead of assuming RoleUser.
type Guard struct {
	jwtSecret []byte
	botSecret []byte
	profiles  repository.ProfileRepository
	log       *zerolog.Logger
}

func NewGuard(jwtSecret, botSecret string, profiles repository.ProfileRepository, logger *zerolog.Logger) *Guard {
	return &Guard{
		jwtSecret: []byte(jwtSecret),
		botSecret: []byte(botSecret),
		profiles:  profiles,
		log:       logger,
	}
}

func bearerToken(r *http.Request) string {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return ""
	}
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Resolve authenticates the session token, when present, and stashes the
// principal in the request context. An invalid or missing token is Anonymous;
// only an unanswerable role lookup turns into a hard 500 (fail closed).
func (g *Guard) Resolve() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerToken(r)
			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims := &sessionClaims{}
			parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
				return g.jwtSecret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !parsed.Valid || claims.Subject == "" {
				next.ServeHTTP(w, r) // anonymous
				return
			}

			role, err := g.profiles.FindRole(r.Context(), repository.NoTX, claims.Subject)
			if err != nil {
				l := logging.With(r.Context(), g.log)
				l.Error().Err(err).Str("user_id", claims.Subject).Msg("role lookup failed; refusing request")
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			p := model.UserPrincipal(claims.Subject, role)
			ctx := context.WithValue(logging.WithUserID(r.Context(), claims.Subject), principalKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser refuses anonymous callers before the handler runs.
func (g *Guard) RequireUser() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFrom(r.Context())
			if p.Kind != model.PrincipalUser {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireBot authenticates gateway callbacks against the shared bot secret.
// The comparison is constant-time and the 401 carries no hint of how close
// the presented token was.
func (g *Guard) RequireBot() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerToken(r)
			if len(g.botSecret) == 0 ||
				subtle.ConstantTimeCompare([]byte(tok), g.botSecret) != 1 {
				metrics.IncWebhookAuthFailure()
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), principalKey{}, model.BotPrincipal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
