package middleware

import (
	"net/http"
	"slices"

	"github.com/forgo/atelier/internal/model"
)

// RequireRole admits authenticated callers whose role claim is one of
// roles. It must run after Auth.
func RequireRole(required string, roles ...model.UserRole) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetUserID(r.Context()) == "" {
				model.NewUnauthorizedError("authentication required").WriteJSON(w)
				return
			}
			if !slices.Contains(roles, GetUserRole(r.Context())) {
				model.NewInsufficientRoleError(required).WriteJSON(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OrganizerAuth admits organizers and admins
func OrganizerAuth() Middleware {
	return RequireRole("organizer", model.UserRoleOrganizer, model.UserRoleAdmin)
}

// AdminAuth admits admins only
func AdminAuth() Middleware {
	return RequireRole("admin", model.UserRoleAdmin)
}
