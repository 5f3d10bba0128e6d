// Package processor turns a conversation transcript into tickets with a
// single language model call.
//
// The [Processor] renders a project-manager prompt listing the configured
// roles, sends it to an [llm.Provider] through a circuit breaker, and parses
// the reply as a JSON ticket array. Role names in the reply are bound to the
// configured roles, exactly first and then by phonetic fuzzy match.
//
// [Processor.Process] never fails: any problem yields an empty slice.
// [Processor.Generate] reports the same problems as errors so callers can
// tell "no tickets" from "generation failed".
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/ticketvox/internal/observe"
	"github.com/MrWong99/ticketvox/internal/resilience"
	"github.com/MrWong99/ticketvox/internal/rolematch"
	"github.com/MrWong99/ticketvox/internal/ticket"
	"github.com/MrWong99/ticketvox/pkg/provider/llm"
)

var (
	// ErrGeneration wraps transport, provider and breaker failures.
	ErrGeneration = errors.New("processor: generation failed")

	// ErrUnparsable is returned when the reply is not a ticket array.
	ErrUnparsable = errors.New("processor: unparsable model response")

	// ErrEmptyResponse is returned when the model replied with no content.
	ErrEmptyResponse = errors.New("processor: empty model response")
)

const (
	defaultModel       = "gpt-4"
	defaultMaxTokens   = 1000
	defaultTemperature = 0.2
)

// Result is the outcome of one successful generation.
type Result struct {
	Tickets []ticket.Ticket

	// Raw is the unparsed model reply.
	Raw string

	// Invalid counts tickets with a seniority outside junior, medior, senior.
	Invalid int

	Usage llm.Usage
}

// Option is a functional option for configuring a [Processor].
type Option func(*Processor)

// WithModel sets the model label used in logs and metrics. The provider
// decides which model actually runs. Default: "gpt-4".
func WithModel(model string) Option {
	return func(p *Processor) { p.model = model }
}

// WithMaxTokens caps the completion length. It is further clamped to the
// provider's output budget. Default: 1000.
func WithMaxTokens(n int) Option {
	return func(p *Processor) { p.maxTokens = n }
}

// WithTemperature sets the sampling temperature. Default: 0.2.
func WithTemperature(temp float64) Option {
	return func(p *Processor) { p.temperature = temp }
}

// WithTimeout bounds the model round trip. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Processor) { p.timeout = d }
}

// WithMatcher sets the fuzzy role matcher. A nil matcher disables fuzzy
// resolution.
func WithMatcher(m *rolematch.Matcher) Option {
	return func(p *Processor) { p.matcher = m }
}

// WithBreaker guards the model call with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(p *Processor) { p.breaker = b }
}

// WithMetrics sets the metric instruments. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// Processor is safe for concurrent use.
type Processor struct {
	llm         llm.Provider
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	matcher     *rolematch.Matcher
	breaker     *resilience.Breaker
	metrics     *observe.Metrics
	logger      *slog.Logger
}

// New returns a Processor backed by provider.
func New(provider llm.Provider, opts ...Option) *Processor {
	p := &Processor{
		llm:         provider,
		model:       defaultModel,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
		matcher:     rolematch.New(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Process returns the tickets for transcript, or an empty slice when the
// transcript is blank or generation fails in any way. Failures are logged.
func (p *Processor) Process(ctx context.Context, transcript string, roles []ticket.Role) []ticket.Ticket {
	res, err := p.Generate(ctx, transcript, roles)
	if err != nil {
		p.logger.WarnContext(ctx, "ticket generation failed", "model", p.model, "err", err)
		return []ticket.Ticket{}
	}
	return res.Tickets
}

// Generate sends transcript to the model and parses the reply. A blank
// transcript returns an empty result without calling the model.
func (p *Processor) Generate(ctx context.Context, transcript string, roles []ticket.Role) (Result, error) {
	if strings.TrimSpace(transcript) == "" {
		return Result{Tickets: []ticket.Ticket{}}, nil
	}

	ctx, span := observe.StartSpan(ctx, "processor.generate")
	defer span.End()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req := llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: BuildPrompt(transcript, roles)},
		},
		Temperature: p.temperature,
		MaxTokens:   llm.ClampMaxTokens(p.maxTokens, p.llm.Capabilities()),
	}

	start := time.Now()
	resp, err := resilience.Call(ctx, p.breaker, func(ctx context.Context) (*llm.CompletionResponse, error) {
		return p.llm.Complete(ctx, req)
	})
	p.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		p.metrics.RecordProviderRequest(ctx, p.model, "llm", "error")
		p.metrics.RecordProviderError(ctx, p.model, "llm")
		return Result{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	p.metrics.RecordProviderRequest(ctx, p.model, "llm", "ok")

	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return Result{}, ErrEmptyResponse
	}

	raws, err := parseTickets(resp.Content)
	if err != nil {
		p.logger.DebugContext(ctx, "unparsable model reply", "content", resp.Content)
		return Result{Raw: resp.Content}, err
	}

	res := Result{
		Tickets: make([]ticket.Ticket, 0, len(raws)),
		Raw:     resp.Content,
		Usage:   resp.Usage,
	}
	for _, raw := range raws {
		t := p.toTicket(raw, roles)
		if !t.Seniority.IsValid() {
			res.Invalid++
			p.metrics.RecordInvalidTicket(ctx, "seniority")
			p.logger.WarnContext(ctx, "ticket has unknown seniority",
				"title", t.Title, "seniority", string(t.Seniority))
		}
		res.Tickets = append(res.Tickets, t)
	}
	p.metrics.RecordTickets(ctx, len(res.Tickets))
	p.logger.InfoContext(ctx, "tickets generated",
		"count", len(res.Tickets),
		"invalid", res.Invalid,
		"finish_reason", resp.FinishReason,
		"total_tokens", resp.Usage.TotalTokens,
	)
	return res, nil
}

func (p *Processor) toTicket(raw rawTicket, roles []ticket.Role) ticket.Ticket {
	t := ticket.Ticket{
		Title:             strings.TrimSpace(raw.Title),
		Description:       strings.TrimSpace(raw.Description),
		ExpectedWorkHours: raw.ExpectedWorkHours,
		Seniority:         ticket.Seniority(strings.TrimSpace(raw.Seniority)),
		Role:              strings.TrimSpace(raw.Role),
	}
	if norm := t.Seniority.Normalize(); norm.IsValid() {
		t.Seniority = norm
	}
	t.RoleID = p.resolveRole(t.Role, roles)
	return t
}

// resolveRole returns the ID of the configured role name refers to, or
// uuid.Nil.
func (p *Processor) resolveRole(name string, roles []ticket.Role) uuid.UUID {
	if name == "" {
		return uuid.Nil
	}
	for _, r := range roles {
		if strings.EqualFold(strings.TrimSpace(r.Name), name) {
			return r.ID
		}
	}
	if p.matcher == nil {
		return uuid.Nil
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	best, conf, ok := p.matcher.Match(name, names)
	if !ok {
		return uuid.Nil
	}
	for _, r := range roles {
		if r.Name == best {
			p.logger.Debug("role resolved by fuzzy match",
				"generated", name, "role", r.Name, "confidence", conf)
			return r.ID
		}
	}
	return uuid.Nil
}
