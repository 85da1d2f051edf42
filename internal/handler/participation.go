package handler

import (
	"context"
	"net/http"

	"github.com/forgo/atelier/internal/model"
)

// ParticipationManager covers registration and a user's own records
type ParticipationManager interface {
	Register(ctx context.Context, userID, workshopID string) (*model.RegistrationResult, error)
	Cancel(ctx context.Context, userID, workshopID string) error
	SubmitFeedback(ctx context.Context, userID, workshopID string, req *model.SubmitFeedbackRequest) (*model.Participation, error)
	MyParticipations(ctx context.Context, userID string, filter model.ParticipationFilter) ([]*model.Participation, error)
	MyWaitlist(ctx context.Context, userID string) ([]*model.WaitlistEntry, error)
	CalendarWorkshops(ctx context.Context, userID string) ([]*model.Workshop, error)
}

// ParticipationHandler handles registration and /v1/me endpoints
type ParticipationHandler struct {
	participations ParticipationManager
	calendar       CalendarWriter
}

// NewParticipationHandler creates a new participation handler
func NewParticipationHandler(participations ParticipationManager, calendar CalendarWriter) *ParticipationHandler {
	return &ParticipationHandler{participations: participations, calendar: calendar}
}

// Register handles POST /v1/workshops/{workshopId}/registration.
// A seat answers 201, a waiting list entry 202.
func (h *ParticipationHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	result, err := h.participations.Register(r.Context(), userID, r.PathValue("workshopId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Outcome == model.OutcomeWaitlisted {
		status = http.StatusAccepted
	}
	WriteData(w, status, result, map[string]string{
		"workshop": "/v1/workshops/" + r.PathValue("workshopId"),
	})
}

// Cancel handles DELETE /v1/workshops/{workshopId}/registration. It removes
// either the seat or the waiting list entry.
func (h *ParticipationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.participations.Cancel(r.Context(), userID, r.PathValue("workshopId")); err != nil {
		writeServiceError(w, err)
		return
	}

	WriteNoContent(w)
}

// Feedback handles POST /v1/workshops/{workshopId}/feedback
func (h *ParticipationHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.SubmitFeedbackRequest
	if !decodeValid(w, r, &req) {
		return
	}

	p, err := h.participations.SubmitFeedback(r.Context(), userID, r.PathValue("workshopId"), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, p, nil)
}

// MyParticipations handles GET /v1/me/participations
func (h *ParticipationHandler) MyParticipations(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	filter, errs := parseParticipationFilter(r)
	if len(errs) > 0 {
		WriteError(w, model.NewValidationError(errs))
		return
	}

	participations, err := h.participations.MyParticipations(r.Context(), userID, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteCollection(w, http.StatusOK, participations, pageOf(len(participations), filter.Limit, filter.Offset), nil)
}

// MyWaitlist handles GET /v1/me/waitlist
func (h *ParticipationHandler) MyWaitlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	entries, err := h.participations.MyWaitlist(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteCollection(w, http.StatusOK, entries, nil, nil)
}

// MyCalendar handles GET /v1/me/calendar.ics
func (h *ParticipationHandler) MyCalendar(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	workshops, err := h.participations.CalendarWorkshops(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeCalendar(w, "my-workshops.ics", h.calendar.Render("My workshops", workshops))
}

func parseParticipationFilter(r *http.Request) (model.ParticipationFilter, []model.FieldError) {
	var (
		filter model.ParticipationFilter
		errs   []model.FieldError
	)
	filter.Limit, filter.Offset = pageParams(r)

	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		status := model.ParticipationStatus(raw)
		if !status.IsValid() {
			errs = append(errs, model.FieldError{Field: "status", Message: "unknown participation status '" + raw + "'"})
		} else {
			filter.Status = &status
		}
	}
	switch when := model.ParticipationWhen(q.Get("when")); when {
	case model.ParticipationWhenAll, model.ParticipationWhenUpcoming, model.ParticipationWhenPast:
		filter.When = when
	default:
		errs = append(errs, model.FieldError{Field: "when", Message: "when must be 'upcoming' or 'past'"})
	}
	return filter, errs
}
