package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionHeader carries the session id for API clients.
	SessionHeader = "X-Session-ID"
	// SessionCookie carries the session id for the dashboard.
	SessionCookie = "citadel_session"
)

// Session identifies the caller's session. The id comes from the
// X-Session-ID header or the session cookie. When neither holds a valid
// UUID a new session is started and returned in both.
type Session struct {
	ttl    time.Duration
	secure bool
}

// NewSession creates the session middleware. Cookies expire after ttl and
// are marked Secure when secure is set.
func NewSession(ttl time.Duration, secure bool) *Session {
	return &Session{ttl: ttl, secure: secure}
}

func (s *Session) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := sessionFromRequest(r)
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(s.ttl.Seconds()),
				HttpOnly: true,
				Secure:   s.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(SessionHeader, id)
		next.ServeHTTP(w, r.WithContext(SetSessionID(r.Context(), id)))
	})
}

func sessionFromRequest(r *http.Request) string {
	if v := r.Header.Get(SessionHeader); validSessionID(v) {
		return v
	}
	if c, err := r.Cookie(SessionCookie); err == nil && validSessionID(c.Value) {
		return c.Value
	}
	return ""
}

func validSessionID(v string) bool {
	if v == "" {
		return false
	}
	_, err := uuid.Parse(v)
	return err == nil
}
