package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

const userIDKey contextKey = "user_id"

// RequireUser extracts the caller identity from the X-User-ID header.
// Authentication proper happens upstream (gateway); this service only
// needs the id to enforce per-conversation ownership. Requests without
// the header are rejected.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "X-User-ID header required"})
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID retrieves the caller id stored by RequireUser.
func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}
