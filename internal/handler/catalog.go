package handler

import (
	"net/http"

	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/internal/service"
)

// CatalogHandler handles workshop families and types
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListFamilies handles GET /v1/catalog/families
func (h *CatalogHandler) ListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := h.catalog.ListFamilies(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteCollection(w, http.StatusOK, families, nil, nil)
}

// ListTypes handles GET /v1/catalog/families/{familyId}/types. Staff may
// pass include_inactive=true.
func (h *CatalogHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	includeInactive := viewerFrom(r).IsStaff() && r.URL.Query().Get("include_inactive") == "true"

	types, err := h.catalog.ListTypes(r.Context(), r.PathValue("familyId"), includeInactive)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteCollection(w, http.StatusOK, types, nil, map[string]string{
		"family": "/v1/catalog/families/" + r.PathValue("familyId"),
	})
}

// GetType handles GET /v1/catalog/types/{typeId}
func (h *CatalogHandler) GetType(w http.ResponseWriter, r *http.Request) {
	wt, err := h.catalog.GetType(r.Context(), r.PathValue("typeId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusOK, wt, nil)
}

// CreateFamily handles POST /v1/admin/families
func (h *CatalogHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	var req model.CreateFamilyRequest
	if !decodeValid(w, r, &req) {
		return
	}

	family, err := h.catalog.CreateFamily(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusCreated, family, nil)
}

// UpdateFamily handles PATCH /v1/admin/families/{familyId}
func (h *CatalogHandler) UpdateFamily(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateFamilyRequest
	if !decodeValid(w, r, &req) {
		return
	}

	family, err := h.catalog.UpdateFamily(r.Context(), r.PathValue("familyId"), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusOK, family, nil)
}

// DeleteFamily handles DELETE /v1/admin/families/{familyId}
func (h *CatalogHandler) DeleteFamily(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteFamily(r.Context(), r.PathValue("familyId")); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteNoContent(w)
}

// CreateType handles POST /v1/admin/types
func (h *CatalogHandler) CreateType(w http.ResponseWriter, r *http.Request) {
	var req model.CreateTypeRequest
	if !decodeValid(w, r, &req) {
		return
	}

	wt, err := h.catalog.CreateType(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusCreated, wt, nil)
}

// UpdateType handles PATCH /v1/admin/types/{typeId}
func (h *CatalogHandler) UpdateType(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateTypeRequest
	if !decodeValid(w, r, &req) {
		return
	}

	wt, err := h.catalog.UpdateType(r.Context(), r.PathValue("typeId"), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusOK, wt, nil)
}

// DeleteType handles DELETE /v1/admin/types/{typeId}
func (h *CatalogHandler) DeleteType(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteType(r.Context(), r.PathValue("typeId")); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteNoContent(w)
}
