package handler

import (
	"context"
	"net/http"

	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/internal/service"
)

// WorkshopManager is the workshop lifecycle as seen by the HTTP layer
type WorkshopManager interface {
	List(ctx context.Context, v *service.Viewer, filter model.WorkshopFilter) ([]*model.Workshop, error)
	Get(ctx context.Context, v *service.Viewer, id string) (*model.WorkshopDetail, error)
	Create(ctx context.Context, v *service.Viewer, req *model.CreateWorkshopRequest) (*model.Workshop, error)
	CreateSeries(ctx context.Context, v *service.Viewer, req *model.CreateSeriesRequest) ([]*model.Workshop, error)
	Update(ctx context.Context, v *service.Viewer, id string, req *model.UpdateWorkshopRequest) (*model.Workshop, error)
	Transition(ctx context.Context, v *service.Viewer, id string, req *model.TransitionWorkshopRequest) (*model.Workshop, error)
	Participants(ctx context.Context, v *service.Viewer, id string) ([]*model.Participation, error)
	Waitlist(ctx context.Context, v *service.Viewer, id string) ([]*model.WaitlistEntry, error)
	MarkAttendance(ctx context.Context, v *service.Viewer, workshopID, participationID string, req *model.MarkAttendanceRequest) (*model.Participation, error)
	AddAnimator(ctx context.Context, v *service.Viewer, workshopID string, req *model.AddAnimatorRequest) (*model.Participation, error)
	AddOrganizer(ctx context.Context, v *service.Viewer, workshopID string, req *model.AddOrganizerRequest) (*model.Workshop, error)
	Calendar(ctx context.Context, v *service.Viewer, id string) (*model.Workshop, error)
}

// CalendarWriter renders workshops as an iCalendar document
type CalendarWriter interface {
	Render(name string, workshops []*model.Workshop) []byte
}

// WorkshopHandler handles workshop HTTP requests
type WorkshopHandler struct {
	workshops WorkshopManager
	calendar  CalendarWriter
}

// NewWorkshopHandler creates a new workshop handler
func NewWorkshopHandler(workshops WorkshopManager, calendar CalendarWriter) *WorkshopHandler {
	return &WorkshopHandler{workshops: workshops, calendar: calendar}
}

// List handles GET /v1/workshops
func (h *WorkshopHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, errs := model.ParseWorkshopFilter(r.URL.Query())
	if len(errs) > 0 {
		WriteError(w, model.NewValidationError(errs))
		return
	}

	workshops, err := h.workshops.List(r.Context(), viewerFrom(r), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	limit := filter.EffectiveLimit()
	links := map[string]string{"self": "/v1/workshops?" + filter.Encode().Encode()}
	if len(workshops) >= limit {
		next := filter
		next.Offset += limit
		links["next"] = "/v1/workshops?" + next.Encode().Encode()
	}

	WriteCollection(w, http.StatusOK, workshops, pageOf(len(workshops), limit, filter.Offset), links)
}

// Get handles GET /v1/workshops/{workshopId}
func (h *WorkshopHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("workshopId")

	detail, err := h.workshops.Get(r.Context(), viewerFrom(r), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, detail, workshopLinks(detail.ID))
}

// Calendar handles GET /v1/workshops/{workshopId}/calendar.ics
func (h *WorkshopHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	workshop, err := h.workshops.Calendar(r.Context(), viewerFrom(r), r.PathValue("workshopId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeCalendar(w, "workshop.ics", h.calendar.Render(workshop.Title, []*model.Workshop{workshop}))
}

// Create handles POST /v1/workshops
func (h *WorkshopHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateWorkshopRequest
	if !decodeValid(w, r, &req) {
		return
	}

	workshop, err := h.workshops.Create(r.Context(), viewerFrom(r), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Location", "/v1/workshops/"+workshop.ID)
	WriteData(w, http.StatusCreated, workshop, workshopLinks(workshop.ID))
}

// CreateSeries handles POST /v1/workshops/series
func (h *WorkshopHandler) CreateSeries(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSeriesRequest
	if !decodeValid(w, r, &req) {
		return
	}

	workshops, err := h.workshops.CreateSeries(r.Context(), viewerFrom(r), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteCollection(w, http.StatusCreated, workshops, nil, nil)
}

// Update handles PATCH /v1/workshops/{workshopId}
func (h *WorkshopHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateWorkshopRequest
	if !decodeValid(w, r, &req) {
		return
	}

	workshop, err := h.workshops.Update(r.Context(), viewerFrom(r), r.PathValue("workshopId"), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, workshop, workshopLinks(workshop.ID))
}

// Transition handles POST /v1/workshops/{workshopId}/status
func (h *WorkshopHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req model.TransitionWorkshopRequest
	if !decodeValid(w, r, &req) {
		return
	}

	workshop, err := h.workshops.Transition(r.Context(), viewerFrom(r), r.PathValue("workshopId"), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, workshop, workshopLinks(workshop.ID))
}

// Participants handles GET /v1/workshops/{workshopId}/participants
func (h *WorkshopHandler) Participants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.workshops.Participants(r.Context(), viewerFrom(r), r.PathValue("workshopId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteCollection(w, http.StatusOK, participants, nil, nil)
}

// AddAnimator handles POST /v1/workshops/{workshopId}/participants
func (h *WorkshopHandler) AddAnimator(w http.ResponseWriter, r *http.Request) {
	var req model.AddAnimatorRequest
	if !decodeValid(w, r, &req) {
		return
	}

	p, err := h.workshops.AddAnimator(r.Context(), viewerFrom(r), r.PathValue("workshopId"), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusCreated, p, nil)
}

// AddOrganizer handles POST /v1/workshops/{workshopId}/organizers
func (h *WorkshopHandler) AddOrganizer(w http.ResponseWriter, r *http.Request) {
	var req model.AddOrganizerRequest
	if !decodeValid(w, r, &req) {
		return
	}

	workshop, err := h.workshops.AddOrganizer(r.Context(), viewerFrom(r), r.PathValue("workshopId"), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, workshop, nil)
}

// MarkAttendance handles PATCH /v1/workshops/{workshopId}/participants/{participationId}
func (h *WorkshopHandler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req model.MarkAttendanceRequest
	if !decodeValid(w, r, &req) {
		return
	}

	p, err := h.workshops.MarkAttendance(r.Context(), viewerFrom(r),
		r.PathValue("workshopId"), r.PathValue("participationId"), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, p, nil)
}

// Waitlist handles GET /v1/workshops/{workshopId}/waitlist
func (h *WorkshopHandler) Waitlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.workshops.Waitlist(r.Context(), viewerFrom(r), r.PathValue("workshopId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteCollection(w, http.StatusOK, entries, nil, nil)
}

func workshopLinks(id string) map[string]string {
	base := "/v1/workshops/" + id
	return map[string]string{
		"self":         base,
		"registration": base + "/registration",
		"calendar":     base + "/calendar.ics",
	}
}

func writeCalendar(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
