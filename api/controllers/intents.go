package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/guidely/guidely-backend/api/middleware"
	"github.com/guidely/guidely-backend/api/responses"
	"github.com/guidely/guidely-backend/api/validators"
	"github.com/guidely/guidely-backend/internal/enrollment"
	pkgerrors "github.com/guidely/guidely-backend/pkg/errors"
	"github.com/guidely/guidely-backend/pkg/logger"
)

type recordIntentRequest struct {
	Kind       string     `json:"kind" validate:"required,oneof=invitation activity"`
	Token      string     `json:"token,omitempty"`
	ActivityID *uuid.UUID `json:"activity_id,omitempty"`
}

// RecordIntent stashes what an anonymous visitor wanted to do so signup can
// finish the job. The latest intent for a session wins.
func RecordIntent(store *enrollment.IntentStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intent store unavailable"))
			return
		}

		sessionID := middleware.SessionIDFromContext(r.Context())
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session id required"))
			return
		}

		var body recordIntentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent := enrollment.Intent{
			Kind:       enrollment.IntentKind(body.Kind),
			Token:      body.Token,
			ActivityID: body.ActivityID,
		}
		if err := store.Record(r.Context(), sessionID, intent); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"status": "recorded"})
	}
}
