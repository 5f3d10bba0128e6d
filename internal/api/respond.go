package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrWong99/ticketvox/internal/capture"
	"github.com/MrWong99/ticketvox/internal/fsm"
	"github.com/MrWong99/ticketvox/internal/processor"
	"github.com/MrWong99/ticketvox/internal/session"
	"github.com/MrWong99/ticketvox/internal/ticket"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeErr maps a domain error to its status code.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fsm.ErrInvalidTransition),
		errors.Is(err, session.ErrNothingToConfirm),
		errors.Is(err, capture.ErrAlreadyListening):
		return http.StatusConflict
	case errors.Is(err, ticket.ErrRoleNotFound):
		return http.StatusNotFound
	case errors.Is(err, ticket.ErrDuplicateRole),
		errors.Is(err, ticket.ErrEmptyName),
		errors.Is(err, ticket.ErrInvalidRate):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, processor.ErrGeneration),
		errors.Is(err, processor.ErrUnparsable),
		errors.Is(err, processor.ErrEmptyResponse):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decodeJSON strictly decodes a bounded request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
