package session

import (
	"context"
	"net/http"

	"github.com/vitiscan/vitiscan-web/pkg/httputil"
	"github.com/vitiscan/vitiscan-web/pkg/logger"
)

type contextKey string

const sessionKey contextKey = "session"

// CookieConfig controls the session cookie
type CookieConfig struct {
	Name   string
	Secure bool
}

// Middleware resolves the session from its signed cookie, creating a fresh
// one when the cookie is missing, invalid, expired or points to an evicted
// session. The cookie is re-issued on every request so its expiry slides
// along with the store entry.
func Middleware(store *Store, tokens *TokenManager, cookie CookieConfig, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLog := log.WithRequestID(httputil.GetRequestID(r.Context()))
			sess := resolve(r, store, tokens, cookie.Name, reqLog)

			token, expiresAt, err := tokens.Generate(sess.ID)
			if err != nil {
				reqLog.WithSessionID(sess.ID).WithError(err).Error().Msg("failed to sign session token")
				httputil.ErrorLocalized(w, r, err)
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     cookie.Name,
				Value:    token,
				Path:     "/",
				Expires:  expiresAt,
				HttpOnly: true,
				Secure:   cookie.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := httputil.WithSessionID(r.Context(), sess.ID)
			ctx = WithSession(ctx, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolve(r *http.Request, store *Store, tokens *TokenManager, name string, log *logger.Logger) *Session {
	if c, err := r.Cookie(name); err == nil {
		id, err := tokens.Validate(c.Value)
		if err == nil {
			if sess, ok := store.Get(id); ok {
				return sess
			}
			log.WithSessionID(id).Debug().Msg("session expired from store")
		} else {
			log.WithError(err).Debug().Msg("rejected session cookie")
		}
	}

	sess := store.Create()
	log.WithSessionID(sess.ID).Info().Msg("session created")
	return sess
}

// WithSession stores the session in the context
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// FromContext returns the session attached by Middleware
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*Session)
	return sess, ok
}
