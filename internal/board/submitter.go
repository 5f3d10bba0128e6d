package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/ticketvox/internal/format"
	"github.com/MrWong99/ticketvox/internal/observe"
	"github.com/MrWong99/ticketvox/internal/ticket"
)

// Submission statuses recorded in metrics.
const (
	StatusCreated  = "created"
	StatusFailed   = "failed"
	StatusRejected = "rejected"
	StatusDryRun   = "dry_run"
)

// Outcome is the result of submitting one ticket.
type Outcome struct {
	Ticket ticket.Ticket `json:"ticket"`

	// Card is the board's reply, nil on failure.
	Card map[string]any `json:"card,omitempty"`

	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// OK reports whether the card was created.
func (o Outcome) OK() bool { return o.Err == nil && o.Card != nil }

// CardID returns the "id" field of the reply, or "".
func (o Outcome) CardID() string {
	id, _ := o.Card["id"].(string)
	return id
}

// URL returns the card's short URL, or "".
func (o Outcome) URL() string {
	for _, k := range []string{"shortUrl", "url"} {
		if u, ok := o.Card[k].(string); ok {
			return u
		}
	}
	return ""
}

// Sink receives confirmed tickets.
type Sink interface {
	// Submit creates one card. It returns nil on any failure.
	Submit(ctx context.Context, t ticket.Ticket) map[string]any

	// SubmitAll submits every ticket concurrently and reports each outcome in
	// input order. It never fails as a whole.
	SubmitAll(ctx context.Context, tickets []ticket.Ticket) []Outcome
}

// Option configures a [Submitter].
type Option func(*Submitter)

// WithMetrics sets the metric instruments. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Submitter) { s.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Submitter) { s.logger = l }
}

// WithTimeout bounds each card creation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Submitter) { s.timeout = d }
}

// Submitter sends tickets to a [CardCreator]. It is safe for concurrent use.
type Submitter struct {
	cards   CardCreator
	metrics *observe.Metrics
	logger  *slog.Logger
	timeout time.Duration
}

// NewSubmitter returns a Submitter writing to cards.
func NewSubmitter(cards CardCreator, opts ...Option) *Submitter {
	s := &Submitter{cards: cards}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Submit creates the card for t. Failures are logged and yield nil.
func (s *Submitter) Submit(ctx context.Context, t ticket.Ticket) map[string]any {
	card, err := s.create(ctx, t)
	if err != nil {
		return nil
	}
	return card
}

// SubmitAll dispatches every ticket at once. Each ticket gets exactly one
// creation call regardless of how its siblings fare. There is no ordering
// between the requests and no rollback when some of them fail.
func (s *Submitter) SubmitAll(ctx context.Context, tickets []ticket.Ticket) []Outcome {
	out := make([]Outcome, len(tickets))
	var g errgroup.Group
	for i, t := range tickets {
		g.Go(func() error {
			card, err := s.create(ctx, t)
			out[i] = Outcome{Ticket: t, Card: card, Err: err}
			if err != nil {
				out[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Submitter) create(ctx context.Context, t ticket.Ticket) (map[string]any, error) {
	ctx, span := observe.StartSpan(ctx, "board.create_card")
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	card := Card{Name: t.Title, Desc: format.BoardDescription(t)}
	start := time.Now()
	reply, err := s.cards.CreateCard(ctx, card)
	s.metrics.BoardDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		status := StatusFailed
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			status = StatusRejected
		}
		s.metrics.RecordSubmission(ctx, status)
		s.metrics.RecordProviderRequest(ctx, "board", "board", "error")
		s.metrics.RecordProviderError(ctx, "board", "board")
		s.logger.ErrorContext(ctx, "card creation failed", "title", t.Title, "err", err)
		return nil, fmt.Errorf("board: submit %q: %w", t.Title, err)
	}

	s.metrics.RecordSubmission(ctx, StatusCreated)
	s.metrics.RecordProviderRequest(ctx, "board", "board", "ok")
	s.logger.InfoContext(ctx, "card created", "title", t.Title, "id", reply["id"])
	return reply, nil
}

var _ Sink = (*Submitter)(nil)
