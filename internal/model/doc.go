// Package model defines domain entities and data structures for the Atelier API.
//
// The model package contains the struct definitions for domain objects,
// request types with their validation, and error definitions. Models are
// used across all layers of the application.
//
// # Domain Entities
//
//   - User: account with a role (participant, organizer, admin)
//   - Client: organization that commissions workshops
//   - WorkshopFamily, WorkshopType: the workshop catalog
//   - Workshop: a scheduled session with capacity and lifecycle status
//   - Participation: a user's registration record for a workshop
//   - WaitlistEntry: a queued registration for a full workshop
//   - RoleLevel, RoleRequirement: the certification ladder
//
// # Classification Tables
//
// Status labels, allowed workshop transitions and the seat badge are plain
// lookup tables (see CanTransition and ClassifySeats).
//
// # Filters
//
// WorkshopFilter is read from and written back to URL query values:
//
//	f, errs := model.ParseWorkshopFilter(r.URL.Query())
//	next := f
//	next.Offset += f.EffectiveLimit()
//	link := "/v1/workshops?" + next.Encode().Encode()
//
// # Error Types
//
// RFC 9457 Problem Details errors are defined in errors.go.
package model
