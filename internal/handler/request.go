package handler

import (
	"net/http"

	"github.com/forgo/atelier/internal/middleware"
	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/internal/service"
)

// viewerFrom returns the caller of the request, or nil when anonymous
func viewerFrom(r *http.Request) *service.Viewer {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		return nil
	}
	return &service.Viewer{UserID: userID, Role: middleware.GetUserRole(r.Context())}
}

// requireUser returns the authenticated user id, writing 401 when absent
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return "", false
	}
	return userID, true
}

// validator is implemented by request bodies that check themselves
type validator interface {
	Validate() []model.FieldError
}

// decodeValid decodes the body into v and runs its validation, writing the
// problem response on failure.
func decodeValid(w http.ResponseWriter, r *http.Request, v validator) bool {
	if err := DecodeJSON(r, v); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return false
	}
	if errs := v.Validate(); len(errs) > 0 {
		WriteError(w, model.NewValidationError(errs))
		return false
	}
	return true
}
