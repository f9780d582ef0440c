package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/guidely/guidely-backend/pkg/logger"
)

const sessionHeader = "X-GL-Session"

// Session attaches an anonymous visitor session id to the request context.
// Visitors that arrive without one are assigned a fresh id, echoed back
// in the response header so the client can carry it through signup.
func Session(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := r.Header.Get(sessionHeader)
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			w.Header().Set(sessionHeader, sessionID)

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{"session_id": sessionID})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
