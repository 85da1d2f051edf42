package handler

import (
	"net/http"

	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/internal/service"
)

// CertificationHandler handles role levels, requirements and progress
type CertificationHandler struct {
	certs *service.CertificationService
}

// NewCertificationHandler creates a new certification handler
func NewCertificationHandler(certs *service.CertificationService) *CertificationHandler {
	return &CertificationHandler{certs: certs}
}

// ListLevels handles GET /v1/role-levels
func (h *CertificationHandler) ListLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.certs.ListLevels(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteCollection(w, http.StatusOK, levels, nil, nil)
}

// CreateLevel handles POST /v1/admin/role-levels
func (h *CertificationHandler) CreateLevel(w http.ResponseWriter, r *http.Request) {
	var req model.CreateLevelRequest
	if !decodeValid(w, r, &req) {
		return
	}

	level, err := h.certs.CreateLevel(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusCreated, level, nil)
}

// UpdateLevel handles PATCH /v1/admin/role-levels/{levelId}
func (h *CertificationHandler) UpdateLevel(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateLevelRequest
	if !decodeValid(w, r, &req) {
		return
	}

	level, err := h.certs.UpdateLevel(r.Context(), r.PathValue("levelId"), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusOK, level, nil)
}

// DeleteLevel handles DELETE /v1/admin/role-levels/{levelId}
func (h *CertificationHandler) DeleteLevel(w http.ResponseWriter, r *http.Request) {
	if err := h.certs.DeleteLevel(r.Context(), r.PathValue("levelId")); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteNoContent(w)
}

// AddRequirement handles POST /v1/admin/role-levels/{levelId}/requirements
func (h *CertificationHandler) AddRequirement(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRequirementRequest
	if !decodeValid(w, r, &req) {
		return
	}

	requirement, err := h.certs.AddRequirement(r.Context(), r.PathValue("levelId"), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusCreated, requirement, nil)
}

// DeleteRequirement handles DELETE /v1/admin/requirements/{requirementId}
func (h *CertificationHandler) DeleteRequirement(w http.ResponseWriter, r *http.Request) {
	if err := h.certs.DeleteRequirement(r.Context(), r.PathValue("requirementId")); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteNoContent(w)
}

// MyStatus handles GET /v1/me/certification
func (h *CertificationHandler) MyStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	h.writeStatus(w, r, userID)
}

// UserStatus handles GET /v1/admin/users/{userId}/certification
func (h *CertificationHandler) UserStatus(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, r, r.PathValue("userId"))
}

func (h *CertificationHandler) writeStatus(w http.ResponseWriter, r *http.Request, userID string) {
	status, err := h.certs.Status(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusOK, status, nil)
}

// Eligibility handles GET /v1/workshops/{workshopId}/eligibility
func (h *CertificationHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	eligibility, err := h.certs.CheckWorkshop(r.Context(), userID, r.PathValue("workshopId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusOK, eligibility, nil)
}

// GrantLevel handles POST /v1/admin/users/{userId}/role-level. A null
// level_id clears the grant.
func (h *CertificationHandler) GrantLevel(w http.ResponseWriter, r *http.Request) {
	var req model.GrantLevelRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	status, err := h.certs.Grant(r.Context(), r.PathValue("userId"), req.LevelID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusOK, status, nil)
}
