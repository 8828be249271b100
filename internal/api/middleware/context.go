package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const sessionIDKey contextKey = "session_id"

// SetSessionID stores the session id in ctx.
func SetSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// GetSessionID returns the session id set by the Session middleware.
func GetSessionID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(sessionIDKey).(string)
	return id, ok && id != ""
}
