package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/forgo/atelier/internal/model"
)

type bookingFixture struct {
	store  *memStore
	clock  time.Time
	sender *recordingSender
	elig   *staticEligibility
	types  *mockTypes

	participations *ParticipationService
	waitlist       *WaitlistService
	workshops      *WorkshopService

	organizer *model.User
	admin     *model.User
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	f := &bookingFixture{
		store:  newMemStore(),
		clock:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		sender: &recordingSender{},
		elig:   &staticEligibility{eligible: true},
		types:  newMockTypes(),
	}
	now := func() time.Time { return f.clock }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	workshopRepo := &memWorkshopRepo{s: f.store}
	participationRepo := &memParticipationRepo{s: f.store}
	waitlistRepo := &memWaitlistRepo{s: f.store}
	users := &memUserRepo{s: f.store}
	notifier := NewNotifier(NotifierConfig{Sender: f.sender, PublicBaseURL: "https://atelier.test", Logger: logger})

	f.waitlist = NewWaitlistService(WaitlistServiceConfig{
		WaitlistRepo: waitlistRepo,
		Workshops:    workshopRepo,
		Notifier:     notifier,
		Logger:       logger,
	})
	f.participations = NewParticipationService(ParticipationServiceConfig{
		ParticipationRepo: participationRepo,
		WaitlistRepo:      waitlistRepo,
		Workshops:         workshopRepo,
		Users:             users,
		Eligibility:       f.elig,
		Seats:             f.waitlist,
		Notifier:          notifier,
		Logger:            logger,
		Now:               now,
	})
	f.workshops = NewWorkshopService(WorkshopServiceConfig{
		WorkshopRepo:      workshopRepo,
		ParticipationRepo: participationRepo,
		WaitlistRepo:      waitlistRepo,
		Types:             f.types,
		Users:             users,
		Seats:             f.waitlist,
		Notifier:          notifier,
		Logger:            logger,
		Now:               now,
	})

	f.types.types["workshop_type:intro"] = &model.WorkshopType{
		ID: "workshop_type:intro", FamilyID: "workshop_family:clay", Name: "Intro to clay",
		DurationMins: 120, DefaultCapacity: 8, Active: true,
	}
	f.organizer = f.store.addUser("org@example.com", model.UserRoleOrganizer)
	f.admin = f.store.addUser("admin@example.com", model.UserRoleAdmin)
	return f
}

func (f *bookingFixture) publishedWorkshop(capacity int) *model.Workshop {
	start := f.clock.Add(48 * time.Hour)
	return f.store.addWorkshop(&model.Workshop{
		TypeID:    "workshop_type:intro",
		Title:     "Wheel throwing",
		StartsAt:  start,
		EndsAt:    start.Add(2 * time.Hour),
		Capacity:  capacity,
		Status:    model.WorkshopStatusPublished,
		CreatedBy: f.organizer.ID,
	})
}

func (f *bookingFixture) participant(t *testing.T, email string) *model.User {
	t.Helper()
	return f.store.addUser(email, model.UserRoleParticipant)
}

func (f *bookingFixture) register(t *testing.T, u *model.User, w *model.Workshop) *model.RegistrationResult {
	t.Helper()
	res, err := f.participations.Register(context.Background(), u.ID, w.ID)
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", u.Email, err)
	}
	return res
}

func (f *bookingFixture) seats(w *model.Workshop) int {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.seatHolders(w.ID)
}

func TestRegister_TakesSeatAndConfirms(t *testing.T) {
	f := newBookingFixture(t)
	w := f.publishedWorkshop(2)
	ada := f.participant(t, "ada@example.com")

	res := f.register(t, ada, w)
	if res.Outcome != model.OutcomeRegistered {
		t.Fatalf("expected registered, got %s", res.Outcome)
	}
	if res.Participation.Status != model.ParticipationStatusRegistered || res.Participation.Role != model.ParticipationRoleParticipant {
		t.Errorf("unexpected participation: %+v", res.Participation)
	}
	if f.seats(w) != 1 {
		t.Errorf("expected 1 seat taken, got %d", f.seats(w))
	}
	if subjects := f.sender.subjects(); len(subjects) != 1 || subjects[0] != "Registration confirmed: Wheel throwing" {
		t.Errorf("unexpected emails: %v", subjects)
	}
}

func TestRegister_FullWorkshopQueuesInOrder(t *testing.T) {
	f := newBookingFixture(t)
	w := f.publishedWorkshop(1)
	f.register(t, f.participant(t, "first@example.com"), w)

	second := f.register(t, f.participant(t, "second@example.com"), w)
	third := f.register(t, f.participant(t, "third@example.com"), w)

	if second.Outcome != model.OutcomeWaitlisted || third.Outcome != model.OutcomeWaitlisted {
		t.Fatalf("expected both waitlisted, got %s and %s", second.Outcome, third.Outcome)
	}
	if second.WaitlistEntry.Position != 1 || third.WaitlistEntry.Position != 2 {
		t.Errorf("expected positions 1 and 2, got %d and %d", second.WaitlistEntry.Position, third.WaitlistEntry.Position)
	}
	if f.seats(w) != 1 {
		t.Errorf("capacity exceeded: %d seats", f.seats(w))
	}
}

func TestRegister_Rejections(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	ada := f.participant(t, "ada@example.com")

	open := f.publishedWorkshop(1)
	f.register(t, ada, open)
	if _, err := f.participations.Register(ctx, ada.ID, open.ID); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("expected ErrAlreadyRegistered, got %v", err)
	}

	bob := f.participant(t, "bob@example.com")
	f.register(t, bob, open)
	if _, err := f.participations.Register(ctx, bob.ID, open.ID); !errors.Is(err, ErrAlreadyWaitlisted) {
		t.Errorf("expected ErrAlreadyWaitlisted, got %v", err)
	}

	if _, err := f.participations.Register(ctx, ada.ID, "workshop:missing"); !errors.Is(err, ErrWorkshopNotFound) {
		t.Errorf("expected ErrWorkshopNotFound, got %v", err)
	}

	draft := f.publishedWorkshop(5)
	draft.Status = model.WorkshopStatusDraft
	if _, err := f.participations.Register(ctx, ada.ID, draft.ID); !errors.Is(err, ErrWorkshopNotOpen) {
		t.Errorf("expected ErrWorkshopNotOpen, got %v", err)
	}

	started := f.publishedWorkshop(5)
	started.StartsAt = f.clock.Add(-time.Minute)
	if _, err := f.participations.Register(ctx, ada.ID, started.ID); !errors.Is(err, ErrWorkshopStarted) {
		t.Errorf("expected ErrWorkshopStarted, got %v", err)
	}
}

func TestRegister_NotEligible(t *testing.T) {
	f := newBookingFixture(t)
	w := f.publishedWorkshop(3)
	f.elig.eligible = false

	_, err := f.participations.Register(context.Background(), f.participant(t, "ada@example.com").ID, w.ID)
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
	if f.seats(w) != 0 {
		t.Error("ineligible user took a seat")
	}
}

func TestRegister_EmailFailureDoesNotFailRegistration(t *testing.T) {
	f := newBookingFixture(t)
	f.sender.err = ErrEmailProvider
	w := f.publishedWorkshop(3)

	res := f.register(t, f.participant(t, "ada@example.com"), w)
	if res.Outcome != model.OutcomeRegistered {
		t.Fatalf("expected registered, got %s", res.Outcome)
	}
}

func TestCancel_PromotesOldestWaiting(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	w := f.publishedWorkshop(1)
	ada := f.participant(t, "ada@example.com")
	bob := f.participant(t, "bob@example.com")
	cyd := f.participant(t, "cyd@example.com")
	f.register(t, ada, w)
	f.register(t, bob, w)
	f.register(t, cyd, w)

	if err := f.participations.Cancel(ctx, ada.ID, w.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	p, entry, _ := f.participations.Mine(ctx, bob.ID, w.ID)
	if p == nil || p.Status != model.ParticipationStatusRegistered {
		t.Fatalf("expected bob promoted, got %+v", p)
	}
	if entry != nil {
		t.Error("expected bob's waiting entry to be consumed")
	}

	_, cydEntry, _ := f.participations.Mine(ctx, cyd.ID, w.ID)
	if cydEntry == nil || cydEntry.Position != 1 {
		t.Errorf("expected cyd first in line, got %+v", cydEntry)
	}
	if f.seats(w) != 1 {
		t.Errorf("expected 1 seat taken, got %d", f.seats(w))
	}

	subjects := f.sender.subjects()
	if last := subjects[len(subjects)-1]; !strings.HasPrefix(last, "You got a seat") {
		t.Errorf("expected promotion email, got %q", last)
	}
}

func TestCancel_ThenRegisterReactivates(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	w := f.publishedWorkshop(2)
	ada := f.participant(t, "ada@example.com")

	first := f.register(t, ada, w)
	if err := f.participations.Cancel(ctx, ada.ID, w.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	second := f.register(t, ada, w)

	if second.Participation.ID != first.Participation.ID {
		t.Errorf("expected row %s to be reused, got %s", first.Participation.ID, second.Participation.ID)
	}
	if second.Participation.Status != model.ParticipationStatusRegistered {
		t.Errorf("expected registered, got %s", second.Participation.Status)
	}
}

func TestCancel_WaitingEntryAndErrors(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	w := f.publishedWorkshop(1)
	ada := f.participant(t, "ada@example.com")
	bob := f.participant(t, "bob@example.com")
	f.register(t, ada, w)
	f.register(t, bob, w)

	if err := f.participations.Cancel(ctx, bob.ID, w.ID); err != nil {
		t.Fatalf("Cancel of waiting entry failed: %v", err)
	}
	if entries, _ := f.participations.MyWaitlist(ctx, bob.ID); len(entries) != 0 {
		t.Errorf("expected no waiting entries, got %d", len(entries))
	}
	if err := f.participations.Cancel(ctx, bob.ID, w.ID); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}

	f.clock = w.StartsAt.Add(time.Minute)
	if err := f.participations.Cancel(ctx, ada.ID, w.ID); !errors.Is(err, ErrWorkshopStarted) {
		t.Errorf("expected ErrWorkshopStarted, got %v", err)
	}
}

func TestSubmitFeedback(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	w := f.publishedWorkshop(2)
	ada := f.participant(t, "ada@example.com")
	res := f.register(t, ada, w)
	req := &model.SubmitFeedbackRequest{Rating: 5, Comment: strp("Lovely")}

	if _, err := f.participations.SubmitFeedback(ctx, ada.ID, w.ID, req); !errors.Is(err, ErrFeedbackNotAllowed) {
		t.Fatalf("expected ErrFeedbackNotAllowed before attendance, got %v", err)
	}

	f.store.participations[res.Participation.ID].Status = model.ParticipationStatusAttended
	p, err := f.participations.SubmitFeedback(ctx, ada.ID, w.ID, req)
	if err != nil {
		t.Fatalf("SubmitFeedback failed: %v", err)
	}
	if p.FeedbackRating == nil || *p.FeedbackRating != 5 {
		t.Errorf("expected rating 5, got %v", p.FeedbackRating)
	}

	if _, err := f.participations.SubmitFeedback(ctx, ada.ID, w.ID, req); !errors.Is(err, ErrFeedbackAlreadyGiven) {
		t.Errorf("expected ErrFeedbackAlreadyGiven, got %v", err)
	}
	if _, err := f.participations.SubmitFeedback(ctx, "user:stranger", w.ID, req); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
}

func TestAnimatorsDoNotTakeSeats(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	w := f.publishedWorkshop(1)
	helper := f.participant(t, "helper@example.com")

	org := &Viewer{UserID: f.organizer.ID, Role: model.UserRoleOrganizer}
	if _, err := f.workshops.AddAnimator(ctx, org, w.ID, &model.AddAnimatorRequest{UserID: helper.ID}); err != nil {
		t.Fatalf("AddAnimator failed: %v", err)
	}

	res := f.register(t, f.participant(t, "ada@example.com"), w)
	if res.Outcome != model.OutcomeRegistered {
		t.Fatalf("expected a free seat next to the animator, got %s", res.Outcome)
	}
}

func TestCalendarWorkshops_OnlyActive(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	ada := f.participant(t, "ada@example.com")
	kept := f.publishedWorkshop(3)
	dropped := f.publishedWorkshop(3)
	f.register(t, ada, kept)
	f.register(t, ada, dropped)
	if err := f.participations.Cancel(ctx, ada.ID, dropped.ID); err != nil {
		t.Fatal(err)
	}

	ws, err := f.participations.CalendarWorkshops(ctx, ada.ID)
	if err != nil {
		t.Fatalf("CalendarWorkshops failed: %v", err)
	}
	if len(ws) != 1 || ws[0].ID != kept.ID {
		t.Errorf("expected only %s, got %v", kept.ID, ws)
	}
}

func TestAddAnimator_KeepsRecordedAttendance(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	w := f.publishedWorkshop(2)
	ada := f.participant(t, "ada@example.com")
	res := f.register(t, ada, w)
	f.store.participations[res.Participation.ID].Status = model.ParticipationStatusAttended

	org := &Viewer{UserID: f.organizer.ID, Role: model.UserRoleOrganizer}
	_, err := f.workshops.AddAnimator(ctx, org, w.ID, &model.AddAnimatorRequest{UserID: ada.ID})
	if !errors.Is(err, ErrAttendanceRecorded) {
		t.Fatalf("expected ErrAttendanceRecorded, got %v", err)
	}

	p := f.store.participations[res.Participation.ID]
	if p.Status != model.ParticipationStatusAttended || p.Role != model.ParticipationRoleParticipant {
		t.Errorf("attendance row was rewritten: %+v", p)
	}
}

func TestAddAnimator_ClearsWaitingEntry(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	w := f.publishedWorkshop(1)
	ada := f.participant(t, "ada@example.com")
	bob := f.participant(t, "bob@example.com")
	f.register(t, ada, w)
	queued := f.register(t, bob, w)
	if queued.Outcome != model.OutcomeWaitlisted {
		t.Fatalf("expected bob waitlisted, got %s", queued.Outcome)
	}

	org := &Viewer{UserID: f.organizer.ID, Role: model.UserRoleOrganizer}
	if _, err := f.workshops.AddAnimator(ctx, org, w.ID, &model.AddAnimatorRequest{UserID: bob.ID}); err != nil {
		t.Fatalf("AddAnimator failed: %v", err)
	}
	if e := f.store.entries[queued.WaitlistEntry.ID]; e.Status != model.WaitlistStatusRemoved {
		t.Errorf("expected waiting entry removed, got %s", e.Status)
	}

	if err := f.participations.Cancel(ctx, ada.ID, w.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	f.store.mu.Lock()
	p := f.store.findParticipation(w.ID, bob.ID)
	f.store.mu.Unlock()
	if p == nil || p.Role != model.ParticipationRoleAnimator {
		t.Errorf("expected bob to stay an animator, got %+v", p)
	}
	if f.seats(w) != 0 {
		t.Errorf("expected the freed seat to stay free, got %d seats", f.seats(w))
	}
}

func TestRegister_EligibilityCheckedBeforeWaitlist(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	w := f.publishedWorkshop(1)
	f.register(t, f.participant(t, "ada@example.com"), w)
	bob := f.participant(t, "bob@example.com")
	f.register(t, bob, w)

	f.elig.eligible = false
	if _, err := f.participations.Register(ctx, bob.ID, w.ID); !errors.Is(err, ErrNotEligible) {
		t.Errorf("expected ErrNotEligible, got %v", err)
	}
}
