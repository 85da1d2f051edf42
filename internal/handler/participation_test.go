package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/internal/service"
)

type mockParticipationManager struct {
	registerFunc func(ctx context.Context, userID, workshopID string) (*model.RegistrationResult, error)
	cancelFunc   func(ctx context.Context, userID, workshopID string) error
	mineFunc     func(ctx context.Context, userID string, filter model.ParticipationFilter) ([]*model.Participation, error)
	calendarFunc func(ctx context.Context, userID string) ([]*model.Workshop, error)
}

func (m *mockParticipationManager) Register(ctx context.Context, userID, workshopID string) (*model.RegistrationResult, error) {
	return m.registerFunc(ctx, userID, workshopID)
}

func (m *mockParticipationManager) Cancel(ctx context.Context, userID, workshopID string) error {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, userID, workshopID)
	}
	return nil
}

func (m *mockParticipationManager) SubmitFeedback(ctx context.Context, userID, workshopID string, req *model.SubmitFeedbackRequest) (*model.Participation, error) {
	return nil, service.ErrFeedbackAlreadyGiven
}

func (m *mockParticipationManager) MyParticipations(ctx context.Context, userID string, filter model.ParticipationFilter) ([]*model.Participation, error) {
	if m.mineFunc != nil {
		return m.mineFunc(ctx, userID, filter)
	}
	return nil, nil
}

func (m *mockParticipationManager) MyWaitlist(ctx context.Context, userID string) ([]*model.WaitlistEntry, error) {
	return []*model.WaitlistEntry{}, nil
}

func (m *mockParticipationManager) CalendarWorkshops(ctx context.Context, userID string) ([]*model.Workshop, error) {
	if m.calendarFunc != nil {
		return m.calendarFunc(ctx, userID)
	}
	return nil, nil
}

func registrationRequest(t *testing.T, method string) *http.Request {
	return newJSONRequest(t, method, "/v1/workshops/workshop:1/registration", nil, map[string]string{"workshopId": "workshop:1"})
}

func TestParticipationHandler_Register(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		result   *model.RegistrationResult
		err      error
		status   int
		typeSlug string
	}{
		{
			name:   "seat taken",
			result: &model.RegistrationResult{Outcome: model.OutcomeRegistered, Participation: &model.Participation{ID: "participation:1"}},
			status: http.StatusCreated,
		},
		{
			name:   "waitlisted",
			result: &model.RegistrationResult{Outcome: model.OutcomeWaitlisted, WaitlistEntry: &model.WaitlistEntry{ID: "waitlist_entry:1"}},
			status: http.StatusAccepted,
		},
		{name: "not eligible", err: service.ErrNotEligible, status: http.StatusForbidden, typeSlug: "not-eligible"},
		{name: "duplicate", err: service.ErrAlreadyRegistered, status: http.StatusConflict, typeSlug: "conflict"},
		{name: "closed", err: service.ErrWorkshopNotOpen, status: http.StatusUnprocessableEntity, typeSlug: "registration-closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := &mockParticipationManager{
				registerFunc: func(_ context.Context, userID, workshopID string) (*model.RegistrationResult, error) {
					if userID != "user:ada" || workshopID != "workshop:1" {
						t.Errorf("unexpected call (%s, %s)", userID, workshopID)
					}
					return tt.result, tt.err
				},
			}
			rr := httptest.NewRecorder()
			NewParticipationHandler(mock, &stubCalendar{}).Register(rr, asUser(registrationRequest(t, http.MethodPost), "user:ada", model.UserRoleParticipant))

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			if tt.typeSlug != "" {
				if got := problemType(t, rr); got != tt.typeSlug {
					t.Errorf("problem type = %s, want %s", got, tt.typeSlug)
				}
				return
			}
			var got model.RegistrationResult
			decodeData(t, rr, &got)
			if got.Outcome != tt.result.Outcome {
				t.Errorf("outcome = %s, want %s", got.Outcome, tt.result.Outcome)
			}
		})
	}
}

func TestParticipationHandler_RequiresUser(t *testing.T) {
	t.Parallel()
	h := NewParticipationHandler(&mockParticipationManager{}, &stubCalendar{})

	for name, fn := range map[string]http.HandlerFunc{
		"register": h.Register,
		"cancel":   h.Cancel,
		"feedback": h.Feedback,
		"mine":     h.MyParticipations,
		"waitlist": h.MyWaitlist,
		"calendar": h.MyCalendar,
	} {
		rr := httptest.NewRecorder()
		fn(rr, registrationRequest(t, http.MethodPost))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", name, rr.Code)
		}
	}
}

func TestParticipationHandler_Cancel(t *testing.T) {
	t.Parallel()
	mock := &mockParticipationManager{
		cancelFunc: func(_ context.Context, _, _ string) error { return service.ErrWorkshopStarted },
	}
	h := NewParticipationHandler(mock, &stubCalendar{})

	rr := httptest.NewRecorder()
	h.Cancel(rr, asUser(registrationRequest(t, http.MethodDelete), "user:ada", model.UserRoleParticipant))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rr.Code)
	}

	mock.cancelFunc = nil
	rr = httptest.NewRecorder()
	h.Cancel(rr, asUser(registrationRequest(t, http.MethodDelete), "user:ada", model.UserRoleParticipant))
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rr.Code)
	}
}

func TestParticipationHandler_Feedback_ValidatesRating(t *testing.T) {
	t.Parallel()
	h := NewParticipationHandler(&mockParticipationManager{}, &stubCalendar{})
	path := map[string]string{"workshopId": "workshop:1"}

	rr := httptest.NewRecorder()
	h.Feedback(rr, asUser(newJSONRequest(t, http.MethodPost, "/v1/workshops/workshop:1/feedback", `{"rating":9}`, path), "user:ada", model.UserRoleParticipant))
	if rr.Code != http.StatusUnprocessableEntity || problemType(t, rr) != "validation" {
		t.Errorf("expected validation problem, got %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.Feedback(rr, asUser(newJSONRequest(t, http.MethodPost, "/v1/workshops/workshop:1/feedback", `{"rating":4}`, path), "user:ada", model.UserRoleParticipant))
	if rr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rr.Code)
	}
}

func TestParticipationHandler_MyParticipations_Filter(t *testing.T) {
	t.Parallel()
	var got model.ParticipationFilter
	mock := &mockParticipationManager{
		mineFunc: func(_ context.Context, _ string, f model.ParticipationFilter) ([]*model.Participation, error) {
			got = f
			return nil, nil
		},
	}
	h := NewParticipationHandler(mock, &stubCalendar{})

	rr := httptest.NewRecorder()
	h.MyParticipations(rr, asUser(httptest.NewRequest(http.MethodGet, "/v1/me/participations?status=attended&when=past&limit=5", nil), "user:ada", model.UserRoleParticipant))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got.Status == nil || *got.Status != model.ParticipationStatusAttended || got.When != model.ParticipationWhenPast || got.Limit != 5 {
		t.Errorf("unexpected filter %+v", got)
	}

	rr = httptest.NewRecorder()
	h.MyParticipations(rr, asUser(httptest.NewRequest(http.MethodGet, "/v1/me/participations?status=maybe&when=tomorrow", nil), "user:ada", model.UserRoleParticipant))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rr.Code)
	}
}

func TestParticipationHandler_MyCalendar(t *testing.T) {
	t.Parallel()
	cal := &stubCalendar{}
	mock := &mockParticipationManager{
		calendarFunc: func(context.Context, string) ([]*model.Workshop, error) {
			return []*model.Workshop{{ID: "workshop:1"}, {ID: "workshop:2"}}, nil
		},
	}

	rr := httptest.NewRecorder()
	NewParticipationHandler(mock, cal).MyCalendar(rr, asUser(httptest.NewRequest(http.MethodGet, "/v1/me/calendar.ics", nil), "user:ada", model.UserRoleParticipant))

	if rr.Code != http.StatusOK || cal.count != 2 {
		t.Errorf("expected both workshops rendered, got %d (%d)", cal.count, rr.Code)
	}
	if rr.Header().Get("Content-Disposition") != `attachment; filename="my-workshops.ics"` {
		t.Errorf("unexpected disposition %q", rr.Header().Get("Content-Disposition"))
	}
}
