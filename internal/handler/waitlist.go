package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/forgo/atelier/internal/model"
)

// WaitlistManager is the admin view of waiting lists
type WaitlistManager interface {
	List(ctx context.Context, filter model.WaitlistFilter) ([]*model.WaitlistEntry, error)
	Promote(ctx context.Context, entryID string, force bool) (*model.Participation, error)
	Remove(ctx context.Context, entryID string) error
}

// WaitlistHandler handles /v1/admin/waitlists
type WaitlistHandler struct {
	waitlists WaitlistManager
}

// NewWaitlistHandler creates a new waitlist handler
func NewWaitlistHandler(waitlists WaitlistManager) *WaitlistHandler {
	return &WaitlistHandler{waitlists: waitlists}
}

// List handles GET /v1/admin/waitlists
func (h *WaitlistHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := model.WaitlistFilter{WorkshopID: r.URL.Query().Get("workshop")}
	filter.Limit, filter.Offset = pageParams(r)

	entries, err := h.waitlists.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteCollection(w, http.StatusOK, entries, pageOf(len(entries), filter.Limit, filter.Offset), nil)
}

// Promote handles POST /v1/admin/waitlists/{entryId}/promote. The body is
// optional; {"force": true} allows one seat of overflow.
func (h *WaitlistHandler) Promote(w http.ResponseWriter, r *http.Request) {
	var req model.PromoteRequest
	if err := DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	p, err := h.waitlists.Promote(r.Context(), r.PathValue("entryId"), req.Force)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusOK, p, nil)
}

// Remove handles DELETE /v1/admin/waitlists/{entryId}
func (h *WaitlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.waitlists.Remove(r.Context(), r.PathValue("entryId")); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteNoContent(w)
}
