// Package api serves the ticket workflow over HTTP with chi.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrWong99/ticketvox/internal/health"
	"github.com/MrWong99/ticketvox/internal/observe"
	"github.com/MrWong99/ticketvox/internal/session"
	"github.com/MrWong99/ticketvox/internal/ticket"
)

// Workflow is the session surface the API drives. *session.Controller
// implements it.
type Workflow interface {
	Snapshot() session.Snapshot
	Start(ctx context.Context) error
	Stop(ctx context.Context) (session.Snapshot, error)
	Reset()
	Transcript(text string)
	Confirm(ctx context.Context) (session.Receipt, error)
	Estimate(ctx context.Context, transcript string) (session.Preview, error)
	Price(tickets []ticket.Ticket, invalid int) session.Preview

	Roles() []ticket.Role
	AddRole(name string, rate float64) (ticket.Role, error)
	UpdateRole(id uuid.UUID, name string, rate float64) (ticket.Role, error)
	RemoveRole(id uuid.UUID) error
	ReplaceRoles(roles []ticket.Role) error
}

// Option configures the router.
type Option func(*options)

type options struct {
	health  *health.Handler
	metrics *observe.Metrics
	promH   http.Handler
	mcpH    http.Handler
	logger  *slog.Logger
}

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(o *options) { o.health = h }
}

// WithMetrics sets the instruments used by the request middleware.
// Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPrometheus mounts h at /metrics.
func WithPrometheus(h http.Handler) Option {
	return func(o *options) { o.promH = h }
}

// WithMCP mounts an MCP streamable HTTP handler at /mcp.
func WithMCP(h http.Handler) Option {
	return func(o *options) { o.mcpH = h }
}

// WithLogger sets the logger for panics. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewRouter returns the HTTP handler for wf.
func NewRouter(wf Workflow, opts ...Option) *chi.Mux {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recovery(o.logger))
	r.Use(observe.Middleware(o.metrics))

	if o.health != nil {
		o.health.Register(r)
	}
	if o.promH != nil {
		r.Method(http.MethodGet, "/metrics", o.promH)
	}
	if o.mcpH != nil {
		r.Handle("/mcp", o.mcpH)
	}

	sh := &sessionHandler{wf: wf}
	rh := &roleHandler{wf: wf}

	r.Route("/api", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", sh.Get)
			r.Post("/start", sh.Start)
			r.Post("/stop", sh.Stop)
			r.Post("/reset", sh.Reset)
			r.Post("/confirm", sh.Confirm)
			r.Post("/transcript", sh.Transcript)
		})
		r.Route("/roles", func(r chi.Router) {
			r.Get("/", rh.List)
			r.Post("/", rh.Create)
			r.Put("/", rh.Replace)
			r.Put("/{id}", rh.Update)
			r.Delete("/{id}", rh.Delete)
		})
		r.Post("/process", sh.Process)
		r.Post("/estimate", sh.Estimate)
	})

	return r
}
