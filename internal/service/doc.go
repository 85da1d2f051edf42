// Package service holds the workshop booking rules: the catalog, clients,
// scheduling and recurrence, seat allocation with its waiting list,
// attendance and feedback, the certification ladder, and outgoing email.
//
// Services are built from a config struct and declare the narrow
// repository interfaces they need, so tests can back them with in-memory
// fakes. Failures are the sentinel errors in errors.go; handlers map them
// onto problem responses.
//
//	workshops := NewWorkshopService(WorkshopServiceConfig{
//	    WorkshopRepo:      workshopRepo,
//	    ParticipationRepo: participationRepo,
//	    WaitlistRepo:      waitlistRepo,
//	    Types:             catalogRepo,
//	    Seats:             waitlists,
//	})
//	w, err := workshops.Create(ctx, viewer, req)
//	if errors.Is(err, ErrWorkshopInPast) {
//	    ...
//	}
package service
