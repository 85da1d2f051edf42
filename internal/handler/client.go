package handler

import (
	"net/http"
	"strconv"

	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/internal/service"
)

// ClientHandler handles the admin client directory
type ClientHandler struct {
	clients *service.ClientService
}

// NewClientHandler creates a new client handler
func NewClientHandler(clients *service.ClientService) *ClientHandler {
	return &ClientHandler{clients: clients}
}

// List handles GET /v1/admin/clients
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := model.ClientFilter{Search: r.URL.Query().Get("q")}
	filter.Limit, filter.Offset = pageParams(r)
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			WriteError(w, model.NewValidationError([]model.FieldError{
				{Field: "active", Message: "active must be true or false"},
			}))
			return
		}
		filter.Active = &active
	}

	clients, err := h.clients.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteCollection(w, http.StatusOK, clients, pageOf(len(clients), filter.Limit, filter.Offset), nil)
}

// Get handles GET /v1/admin/clients/{clientId}
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	client, err := h.clients.Get(r.Context(), r.PathValue("clientId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusOK, client, nil)
}

// Create handles POST /v1/admin/clients
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateClientRequest
	if !decodeValid(w, r, &req) {
		return
	}

	client, err := h.clients.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/admin/clients/"+client.ID)
	WriteData(w, http.StatusCreated, client, nil)
}

// Update handles PATCH /v1/admin/clients/{clientId}
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateClientRequest
	if !decodeValid(w, r, &req) {
		return
	}

	client, err := h.clients.Update(r.Context(), r.PathValue("clientId"), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusOK, client, nil)
}

// Delete handles DELETE /v1/admin/clients/{clientId}
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.clients.Delete(r.Context(), r.PathValue("clientId")); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteNoContent(w)
}
