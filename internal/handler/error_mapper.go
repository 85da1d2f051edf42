package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/internal/service"
)

// MapServiceError converts a service error to a ProblemDetails response.
// Unknown errors are logged and reported as 500 without leaking details.
func MapServiceError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	switch {
	// ===== Authentication Errors → 401 =====
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrRefreshTokenExpired),
		errors.Is(err, service.ErrRefreshTokenRevoked):
		return model.NewUnauthorizedError(err.Error())

	// ===== Authorization Errors → 403 =====
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrNotWorkshopOrganizer):
		return model.NewForbiddenError(err.Error())
	case errors.Is(err, service.ErrNotEligible):
		return model.NewNotEligibleError(err.Error())

	// ===== Not Found Errors → 404 =====
	case errors.Is(err, service.ErrUserNotFound):
		return model.NewNotFoundError("user")
	case errors.Is(err, service.ErrFamilyNotFound):
		return model.NewNotFoundError("workshop family")
	case errors.Is(err, service.ErrTypeNotFound):
		return model.NewNotFoundError("workshop type")
	case errors.Is(err, service.ErrClientNotFound):
		return model.NewNotFoundError("client")
	case errors.Is(err, service.ErrWorkshopNotFound):
		return model.NewNotFoundError("workshop")
	case errors.Is(err, service.ErrParticipationNotFound):
		return model.NewNotFoundError("participation")
	case errors.Is(err, service.ErrWaitlistEntryNotFound):
		return model.NewNotFoundError("waitlist entry")
	case errors.Is(err, service.ErrLevelNotFound):
		return model.NewNotFoundError("role level")
	case errors.Is(err, service.ErrRequirementNotFound):
		return model.NewNotFoundError("requirement")
	case errors.Is(err, service.ErrNotRegistered):
		return model.NewNotFoundError("registration")

	// ===== Conflict Errors → 409 =====
	case errors.Is(err, service.ErrEmailAlreadyExists),
		errors.Is(err, service.ErrFamilyNameExists),
		errors.Is(err, service.ErrFamilyHasTypes),
		errors.Is(err, service.ErrTypeNameExists),
		errors.Is(err, service.ErrTypeInUse),
		errors.Is(err, service.ErrClientNameExists),
		errors.Is(err, service.ErrClientInUse),
		errors.Is(err, service.ErrLevelExists),
		errors.Is(err, service.ErrLevelInUse),
		errors.Is(err, service.ErrAlreadyRegistered),
		errors.Is(err, service.ErrAlreadyWaitlisted),
		errors.Is(err, service.ErrAttendanceRecorded),
		errors.Is(err, service.ErrFeedbackAlreadyGiven):
		return model.NewConflictError(err.Error())

	// ===== Validation Errors → 422 =====
	case errors.Is(err, service.ErrPasswordRequired),
		errors.Is(err, service.ErrPasswordTooShort),
		errors.Is(err, service.ErrPasswordTooLong),
		errors.Is(err, service.ErrPasswordUnchanged):
		return model.NewValidationError([]model.FieldError{{Field: "password", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidEmail):
		return model.NewValidationError([]model.FieldError{{Field: "email", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidRole):
		return model.NewValidationError([]model.FieldError{{Field: "role", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidTimeRange):
		return model.NewValidationError([]model.FieldError{{Field: "ends_at", Message: err.Error()}})
	case errors.Is(err, service.ErrWorkshopInPast):
		return model.NewValidationError([]model.FieldError{{Field: "starts_at", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidRecurrence),
		errors.Is(err, service.ErrTooManyOccurrences):
		return model.NewValidationError([]model.FieldError{{Field: "recurrence", Message: err.Error()}})
	case errors.Is(err, service.ErrCapacityBelowRegistered):
		return model.NewValidationError([]model.FieldError{{Field: "capacity", Message: err.Error()}})

	// Registration state → 422 with its own problem type
	case errors.Is(err, service.ErrWorkshopNotOpen),
		errors.Is(err, service.ErrWorkshopStarted):
		return model.NewRegistrationClosedError(err.Error())
	case errors.Is(err, service.ErrWorkshopFull):
		return model.NewWorkshopFullError(err.Error())
	case errors.Is(err, service.ErrWorkshopReadOnly):
		return model.NewWorkshopReadOnlyError(err.Error())

	// State errors → 422
	case errors.Is(err, service.ErrCannotChangeOwnRole),
		errors.Is(err, service.ErrTypeInactive),
		errors.Is(err, service.ErrClientInactive),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrOrganizerNotStaff),
		errors.Is(err, service.ErrWorkshopNotStarted),
		errors.Is(err, service.ErrFeedbackNotAllowed),
		errors.Is(err, service.ErrAttendanceNotAllowed),
		errors.Is(err, service.ErrEntryNotWaiting):
		return model.NewUnprocessableError(err.Error())

	// ===== Provider Errors → 502 =====
	case errors.Is(err, service.ErrEmailProvider):
		return model.NewExternalServiceError("email provider")
	case errors.Is(err, service.ErrEmailDisabled):
		return model.NewUnprocessableError(err.Error())

	// ===== Default → 500 =====
	default:
		slog.Error("unmapped service error", slog.Any("error", err))
		return model.NewInternalError("")
	}
}

// writeServiceError maps and writes a service error
func writeServiceError(w http.ResponseWriter, err error) {
	WriteError(w, MapServiceError(err))
}
