// Package helpers holds small utilities shared by integration tests: access
// tokens signed with an in-memory key, a JSON request builder, response
// assertions and record checks against a live database.
//
//	tokens := helpers.NewTokenHelper(t)
//	req := helpers.NewRequest(t, "POST", "/v1/workshops").
//	    WithBody(body).
//	    WithAuth(tokens, organizer).
//	    Build()
package helpers
