// Package session owns the single ticket workflow of the process: record a
// conversation, turn it into tickets, review and price them, and submit them
// to the board.
//
// The [Controller] drives the [fsm] transition table. Its mutex guards the
// workflow state only and is never held across capture, model or board
// calls.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/ticketvox/internal/board"
	"github.com/MrWong99/ticketvox/internal/capture"
	"github.com/MrWong99/ticketvox/internal/format"
	"github.com/MrWong99/ticketvox/internal/fsm"
	"github.com/MrWong99/ticketvox/internal/observe"
	"github.com/MrWong99/ticketvox/internal/processor"
	"github.com/MrWong99/ticketvox/internal/ticket"
)

// ErrNothingToConfirm is returned by Confirm when the batch has no tickets.
var ErrNothingToConfirm = errors.New("session: no tickets to confirm")

// Generator produces tickets from a transcript.
type Generator interface {
	Generate(ctx context.Context, transcript string, roles []ticket.Role) (processor.Result, error)
}

// Receipt describes one confirmed batch.
type Receipt struct {
	Summary   ticket.Summary  `json:"summary"`
	Total     string          `json:"total"`
	Outcomes  []board.Outcome `json:"outcomes"`
	Submitted int             `json:"submitted"`
	Failed    int             `json:"failed"`
	At        time.Time       `json:"at"`
}

// Preview is a priced ticket batch that did not touch the workflow.
type Preview struct {
	Tickets []ticket.Ticket `json:"tickets"`
	Summary ticket.Summary  `json:"summary"`
	Total   string          `json:"total"`
	Invalid int             `json:"invalid"`
}

// Snapshot is a consistent view of the controller.
type Snapshot struct {
	State       fsm.State       `json:"state"`
	Listening   bool            `json:"listening"`
	Transcript  string          `json:"transcript"`
	Interim     string          `json:"interim,omitempty"`
	Tickets     []ticket.Ticket `json:"tickets"`
	Summary     ticket.Summary  `json:"summary"`
	Total       string          `json:"total"`
	Roles       []ticket.Role   `json:"roles"`
	LastError   string          `json:"lastError,omitempty"`
	LastReceipt *Receipt        `json:"lastReceipt,omitempty"`
}

// Option configures a [Controller].
type Option func(*Controller)

// WithCaptureOptions sets the options of every listening run.
// Default: continuous, hu-HU.
func WithCaptureOptions(opts capture.Options) Option {
	return func(c *Controller) { c.captureOpts = opts }
}

// WithMoney sets the formatter of totals. Default: forints, hu-HU.
func WithMoney(m *format.Money) Option {
	return func(c *Controller) { c.money = m }
}

// WithMetrics sets the metric instruments. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller is safe for concurrent use.
type Controller struct {
	capture     capture.Capture
	gen         Generator
	sink        board.Sink
	roles       *ticket.RoleSet
	captureOpts capture.Options
	money       *format.Money
	metrics     *observe.Metrics
	logger      *slog.Logger

	mu          sync.Mutex
	state       fsm.State
	tickets     []ticket.Ticket
	summary     ticket.Summary
	lastErr     error
	lastReceipt *Receipt
}

// New returns a Controller in the idle state.
func New(c capture.Capture, gen Generator, sink board.Sink, roles *ticket.RoleSet, opts ...Option) (*Controller, error) {
	if c == nil || gen == nil || sink == nil || roles == nil {
		return nil, errors.New("session: capture, generator, sink and roles are required")
	}
	ctl := &Controller{
		capture:     c,
		gen:         gen,
		sink:        sink,
		roles:       roles,
		captureOpts: capture.Options{Continuous: true, Language: capture.DefaultLanguage},
		state:       fsm.StateIdle,
		tickets:     []ticket.Ticket{},
	}
	for _, o := range opts {
		o(ctl)
	}
	if ctl.money == nil {
		m, err := format.NewMoney(format.DefaultLocale, format.DefaultCurrency)
		if err != nil {
			return nil, err
		}
		ctl.money = m
	}
	if ctl.metrics == nil {
		ctl.metrics = observe.DefaultMetrics()
	}
	if ctl.logger == nil {
		ctl.logger = slog.Default()
	}
	return ctl, nil
}

// State returns the current workflow state.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// transition applies event. Must be called with c.mu held.
func (c *Controller) transition(ctx context.Context, event fsm.Event) error {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.metrics.RecordTransition(ctx, string(c.state), string(next))
	c.logger.DebugContext(ctx, "session transition", "from", c.state, "event", event, "to", next)
	c.state = next
	return nil
}

// Start begins listening.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	prev := c.state
	if err := c.transition(ctx, fsm.EventStart); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if err := c.capture.Start(ctx, c.captureOpts); err != nil {
		c.mu.Lock()
		c.state = prev
		c.lastErr = err
		c.mu.Unlock()
		return fmt.Errorf("session: start: %w", err)
	}
	c.logger.InfoContext(ctx, "recording started")
	return nil
}

// Stop halts listening, generates tickets from the transcript and prices
// them. It blocks for the model round trip. A generation failure is kept
// as the snapshot's LastError; the workflow still reaches reviewing with an
// empty batch.
func (c *Controller) Stop(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if err := c.transition(ctx, fsm.EventStop); err != nil {
		c.mu.Unlock()
		return Snapshot{}, err
	}
	c.mu.Unlock()

	var errs []error
	if err := c.capture.Stop(); err != nil {
		c.logger.WarnContext(ctx, "capture stop failed", "err", err)
		errs = append(errs, err)
	}
	transcript := c.capture.Transcript()

	res, err := c.gen.Generate(ctx, transcript, c.roles.List())
	if err != nil {
		c.logger.WarnContext(ctx, "ticket generation failed", "err", err)
		errs = append(errs, err)
	}
	if res.Tickets == nil {
		res.Tickets = []ticket.Ticket{}
	}
	summary := ticket.Aggregate(res.Tickets, c.roles)

	c.mu.Lock()
	c.tickets = res.Tickets
	c.summary = summary
	c.lastErr = errors.Join(errs...)
	// processing --processed--> reviewing always holds here: nothing else
	// leaves the processing state.
	_ = c.transition(ctx, fsm.EventProcessed)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "batch ready for review",
		"tickets", len(res.Tickets), "total", summary.Total, "unresolved", len(summary.Unresolved))
	return c.Snapshot(), nil
}

// Reset clears the captured transcript. It is allowed in every state.
func (c *Controller) Reset() {
	c.capture.Reset()
}

// Transcript appends typed text to the capture.
func (c *Controller) Transcript(text string) {
	c.capture.Append(text)
}

// Confirm submits the reviewed batch. The transcript is reset and the batch
// cleared before the cards are created; every ticket is submitted
// concurrently and the workflow reaches confirmed regardless of failures.
func (c *Controller) Confirm(ctx context.Context) (Receipt, error) {
	c.mu.Lock()
	if !fsm.Can(c.state, fsm.EventConfirm) {
		_, err := fsm.Transition(c.state, fsm.EventConfirm)
		c.mu.Unlock()
		return Receipt{}, err
	}
	if len(c.tickets) == 0 {
		c.mu.Unlock()
		return Receipt{}, ErrNothingToConfirm
	}
	_ = c.transition(ctx, fsm.EventConfirm)
	tickets, summary := c.tickets, c.summary
	c.tickets, c.summary = []ticket.Ticket{}, ticket.Summary{}
	c.mu.Unlock()

	c.capture.Reset()
	outcomes := c.sink.SubmitAll(ctx, tickets)

	r := Receipt{
		Summary:  summary,
		Total:    c.money.Format(summary.Total),
		Outcomes: outcomes,
		At:       time.Now().UTC(),
	}
	for _, o := range outcomes {
		if o.Card != nil {
			r.Submitted++
		} else {
			r.Failed++
		}
	}

	c.mu.Lock()
	_ = c.transition(ctx, fsm.EventSubmitted)
	c.lastReceipt = &r
	c.lastErr = nil
	if r.Failed > 0 {
		c.lastErr = fmt.Errorf("session: %d of %d cards failed", r.Failed, len(outcomes))
	}
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "batch submitted", "submitted", r.Submitted, "failed", r.Failed)
	return r, nil
}

// Estimate generates and prices tickets for transcript against the current
// roles without touching the workflow.
func (c *Controller) Estimate(ctx context.Context, transcript string) (Preview, error) {
	res, err := c.gen.Generate(ctx, transcript, c.roles.List())
	if err != nil {
		return Preview{}, err
	}
	return c.Price(res.Tickets, res.Invalid), nil
}

// Price aggregates tickets against the current roles.
func (c *Controller) Price(tickets []ticket.Ticket, invalid int) Preview {
	if tickets == nil {
		tickets = []ticket.Ticket{}
	}
	sum := ticket.Aggregate(tickets, c.roles)
	return Preview{Tickets: tickets, Summary: sum, Total: c.money.Format(sum.Total), Invalid: invalid}
}

// Roles returns the rate table.
func (c *Controller) Roles() []ticket.Role { return c.roles.List() }

// AddRole adds a role. Edits affect the next processing step.
func (c *Controller) AddRole(name string, rate float64) (ticket.Role, error) {
	return c.roles.Add(name, rate)
}

// UpdateRole renames or re-rates a role.
func (c *Controller) UpdateRole(id uuid.UUID, name string, rate float64) (ticket.Role, error) {
	return c.roles.Update(id, name, rate)
}

// RemoveRole deletes a role.
func (c *Controller) RemoveRole(id uuid.UUID) error {
	return c.roles.Remove(id)
}

// ReplaceRoles swaps the whole rate table.
func (c *Controller) ReplaceRoles(roles []ticket.Role) error {
	return c.roles.Replace(roles)
}

type interimer interface{ Interim() string }

// Snapshot returns the current view of the workflow.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Listening:  c.capture.Listening(),
		Transcript: c.capture.Transcript(),
		Roles:      c.roles.List(),
	}
	if in, ok := c.capture.(interimer); ok {
		s.Interim = in.Interim()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s.State = c.state
	s.Tickets = append([]ticket.Ticket{}, c.tickets...)
	s.Summary = c.summary
	s.Total = c.money.Format(c.summary.Total)
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	if c.lastReceipt != nil {
		r := *c.lastReceipt
		s.LastReceipt = &r
	}
	return s
}
