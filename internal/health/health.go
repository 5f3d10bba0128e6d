// Package health serves the liveness and readiness probes.
//
// /healthz always answers 200 while the process can serve HTTP. /readyz
// runs every registered [Checker] concurrently and answers 503 when any of
// them fails. Both reply with {"status": "ok"|"fail", "checks": {...}}.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/ticketvox/internal/resilience"
)

const checkTimeout = 5 * time.Second

// Checker is a named readiness probe. Check returns nil when healthy and
// must respect context cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler is safe for concurrent use; the checker list is fixed at
// construction time.
type Handler struct {
	checkers []Checker
}

// New creates a Handler for checkers.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz answers 200 only when every checker passes within checkTimeout.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]string, len(h.checkers))
		allOK  = true
	)
	for _, c := range h.checkers {
		wg.Go(func() {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
				allOK = false
				return
			}
			checks[c.Name] = "ok"
		})
	}
	wg.Wait()

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register mounts /healthz and /readyz on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
}

// BreakerChecker fails while b is open. A nil breaker always passes.
func BreakerChecker(name string, b *resilience.Breaker) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		if b != nil && b.State() == resilience.StateOpen {
			return fmt.Errorf("circuit %q open", b.Name())
		}
		return nil
	}}
}

// Static is a checker whose result is fixed at construction, for
// configuration problems that only a restart can fix.
func Static(name string, err error) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return err }}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
