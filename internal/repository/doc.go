// Package repository is the SurrealDB data access layer.
//
// One repository per aggregate: users and refresh tokens, the workshop
// catalog, clients, role levels with their requirements, workshops,
// participations and waiting list entries. Queries are parameterised
// SurrealQL with type::record() for ids. Seat allocation runs inside a
// transaction whose guard THROWs when the workshop is full, surfacing as
// database.ErrLimitExceeded.
//
// Lookups return (nil, nil) when a record does not exist; writes to a
// missing record return database.ErrNotFound.
//
//	repo := NewWorkshopRepository(db)
//	w, err := repo.GetByID(ctx, "workshop:abc123")
//	if err != nil {
//	    return err
//	}
//	if w == nil {
//	    // not found
//	}
package repository
