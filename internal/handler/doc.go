// Package handler provides the HTTP endpoints of the Atelier API.
//
// Handlers are grouped by area: auth, catalog, workshops, registrations and
// the caller's own records, certification, clients, admin users, waiting
// lists and the email proxy. Routing and role checks live in cmd/server;
// handlers read the caller from the request context and leave permission
// decisions that depend on a resource to the service layer.
//
// # Response Format
//
//   - WriteData: single resource with optional HATEOAS links
//   - WriteCollection: list with optional offset pagination
//   - WriteError: RFC 9457 Problem Details (application/problem+json)
//
// Service errors go through MapServiceError, which owns the mapping from
// sentinel errors to status codes.
//
// # Example Usage
//
//	h := NewWorkshopHandler(workshopService, calendarRenderer)
//	mux.HandleFunc("GET /v1/workshops", h.List)
//	mux.Handle("POST /v1/workshops", organizer(http.HandlerFunc(h.Create)))
package handler
