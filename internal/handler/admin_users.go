package handler

import (
	"net/http"

	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/internal/service"
)

// AdminUsersHandler handles admin user management endpoints
type AdminUsersHandler struct {
	usersService *service.AdminUsersService
}

// NewAdminUsersHandler creates a new admin users handler
func NewAdminUsersHandler(usersService *service.AdminUsersService) *AdminUsersHandler {
	return &AdminUsersHandler{usersService: usersService}
}

// ListUsers handles GET /v1/admin/users
func (h *AdminUsersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.UserFilter{Search: q.Get("search")}
	filter.Limit, filter.Offset = pageParams(r)

	if raw := q.Get("role"); raw != "" {
		role := model.UserRole(raw)
		if !role.IsValid() {
			WriteError(w, model.NewValidationError([]model.FieldError{
				{Field: "role", Message: "role must be 'participant', 'organizer' or 'admin'"},
			}))
			return
		}
		filter.Role = &role
	}
	if clientID := q.Get("client"); clientID != "" {
		filter.ClientID = &clientID
	}

	users, err := h.usersService.ListUsers(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	WriteCollection(w, http.StatusOK, resp, pageOf(len(users), filter.Limit, filter.Offset), nil)
}

// GetUser handles GET /v1/admin/users/{userId}
func (h *AdminUsersHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	detail, err := h.usersService.GetUserDetail(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, struct {
		User  UserResponse           `json:"user"`
		Stats service.AdminUserStats `json:"stats"`
	}{toUserResponse(detail.User), detail.Stats}, map[string]string{
		"certification": "/v1/admin/users/" + userID + "/certification",
	})
}

// UpdateRole handles PATCH /v1/admin/users/{userId}/role
func (h *AdminUsersHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.UpdateUserRoleRequest
	if !decodeValid(w, r, &req) {
		return
	}

	user, err := h.usersService.UpdateUserRole(r.Context(), adminID, r.PathValue("userId"), req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusOK, toUserResponse(user), nil)
}

// AttachClient handles PATCH /v1/admin/users/{userId}/client
func (h *AdminUsersHandler) AttachClient(w http.ResponseWriter, r *http.Request) {
	var req model.AttachClientRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	user, err := h.usersService.AttachClient(r.Context(), r.PathValue("userId"), req.ClientID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusOK, toUserResponse(user), nil)
}

// DeleteUser handles DELETE /v1/admin/users/{userId}
func (h *AdminUsersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.usersService.DeleteUser(r.Context(), adminID, r.PathValue("userId")); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteNoContent(w)
}
