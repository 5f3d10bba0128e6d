package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrWong99/ticketvox/internal/ticket"
)

type sessionHandler struct {
	wf Workflow
}

// Get handles GET /api/session
func (h *sessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.wf.Snapshot())
}

// Start handles POST /api/session/start
func (h *sessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.wf.Start(r.Context()); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.wf.Snapshot())
}

// Stop handles POST /api/session/stop. Processing runs to completion even
// if the client goes away; the processor has its own timeout.
func (h *sessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	snap, err := h.wf.Stop(context.WithoutCancel(r.Context()))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Reset handles POST /api/session/reset
func (h *sessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.wf.Reset()
	writeJSON(w, http.StatusOK, h.wf.Snapshot())
}

// Confirm handles POST /api/session/confirm
func (h *sessionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.wf.Confirm(context.WithoutCancel(r.Context()))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type transcriptRequest struct {
	Text string `json:"text"`
}

// Transcript handles POST /api/session/transcript
func (h *sessionHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	h.wf.Transcript(req.Text)
	writeJSON(w, http.StatusOK, h.wf.Snapshot())
}

type processRequest struct {
	Transcript string `json:"transcript"`
}

// Process handles POST /api/process: tickets and summary for a transcript
// without touching the session.
func (h *sessionHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}
	preview, err := h.wf.Estimate(r.Context(), req.Transcript)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

type estimateRequest struct {
	Tickets []ticket.Ticket `json:"tickets"`
}

// Estimate handles POST /api/estimate: prices the given tickets against the
// current roles.
func (h *sessionHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.wf.Price(req.Tickets, 0))
}
