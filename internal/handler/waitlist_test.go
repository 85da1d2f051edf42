package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/internal/service"
)

type mockWaitlistManager struct {
	lastFilter model.WaitlistFilter
	lastForce  bool
	promoteErr error
}

func (m *mockWaitlistManager) List(_ context.Context, filter model.WaitlistFilter) ([]*model.WaitlistEntry, error) {
	m.lastFilter = filter
	return []*model.WaitlistEntry{{ID: "waitlist_entry:1", Position: 1}}, nil
}

func (m *mockWaitlistManager) Promote(_ context.Context, entryID string, force bool) (*model.Participation, error) {
	m.lastForce = force
	if m.promoteErr != nil {
		return nil, m.promoteErr
	}
	return &model.Participation{ID: "participation:" + entryID, Status: model.ParticipationStatusRegistered}, nil
}

func (m *mockWaitlistManager) Remove(_ context.Context, entryID string) error {
	if entryID == "waitlist_entry:gone" {
		return service.ErrWaitlistEntryNotFound
	}
	return nil
}

func TestWaitlistHandler_Promote(t *testing.T) {
	t.Parallel()
	path := map[string]string{"entryId": "waitlist_entry:1"}

	tests := []struct {
		name      string
		body      any
		err       error
		wantForce bool
		status    int
	}{
		{name: "empty body", body: nil, status: http.StatusOK},
		{name: "forced", body: `{"force":true}`, wantForce: true, status: http.StatusOK},
		{name: "full", body: nil, err: service.ErrWorkshopFull, status: http.StatusUnprocessableEntity},
		{name: "no longer waiting", body: nil, err: service.ErrEntryNotWaiting, status: http.StatusUnprocessableEntity},
		{name: "bad body", body: `{"force":"yes"}`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := &mockWaitlistManager{promoteErr: tt.err}
			rr := httptest.NewRecorder()
			NewWaitlistHandler(mock).Promote(rr, newJSONRequest(t, http.MethodPost, "/v1/admin/waitlists/waitlist_entry:1/promote", tt.body, path))

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			if rr.Code == http.StatusOK && mock.lastForce != tt.wantForce {
				t.Errorf("force = %v, want %v", mock.lastForce, tt.wantForce)
			}
		})
	}
}

func TestWaitlistHandler_ListAndRemove(t *testing.T) {
	t.Parallel()
	mock := &mockWaitlistManager{}
	h := NewWaitlistHandler(mock)

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/waitlists?workshop=workshop:1&limit=10", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if mock.lastFilter.WorkshopID != "workshop:1" || mock.lastFilter.Limit != 10 {
		t.Errorf("unexpected filter %+v", mock.lastFilter)
	}

	rr = httptest.NewRecorder()
	h.Remove(rr, newJSONRequest(t, http.MethodDelete, "/v1/admin/waitlists/waitlist_entry:gone", nil, map[string]string{"entryId": "waitlist_entry:gone"}))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}
