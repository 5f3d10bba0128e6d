package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrWong99/ticketvox/internal/ticket"
)

type roleHandler struct {
	wf Workflow
}

type roleRequest struct {
	Name       string   `json:"name"`
	HourlyRate *float64 `json:"hourlyRate"`
}

func (req roleRequest) validate() string {
	if req.HourlyRate == nil {
		return "hourlyRate is required"
	}
	return ""
}

// List handles GET /api/roles
func (h *roleHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.wf.Roles())
}

// Create handles POST /api/roles
func (h *roleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	role, err := h.wf.AddRole(req.Name, *req.HourlyRate)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

// Replace handles PUT /api/roles with the whole table.
func (h *roleHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req []ticket.Role
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.wf.ReplaceRoles(req); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.wf.Roles())
}

// Update handles PUT /api/roles/{id}
func (h *roleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := roleID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	role, err := h.wf.UpdateRole(id, req.Name, *req.HourlyRate)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// Delete handles DELETE /api/roles/{id}
func (h *roleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := roleID(w, r)
	if !ok {
		return
	}
	if err := h.wf.RemoveRole(id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func roleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid role id")
		return uuid.Nil, false
	}
	return id, true
}
