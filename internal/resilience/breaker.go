// Package resilience provides the circuit breaker that guards every outbound
// provider call (language model and board API).
//
// A [Breaker] is a three-state breaker (closed → open → half-open). It never
// retries: a rejected or failed call is reported to the caller immediately.
// Context cancellation is not counted as a provider failure.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call without running it.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until ResetTimeout elapses.
	StateOpen

	// StateHalfOpen lets up to HalfOpenMax probe calls through.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds tuning knobs for a [Breaker]. Zero values get defaults.
type Config struct {
	// Name labels log lines and state-change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful probes needed to close again,
	// and the number of probes allowed in flight. Default: 2.
	HalfOpenMax int

	// IsFailure decides whether an error counts against the breaker.
	// Default: any non-nil error except context cancellation.
	IsFailure func(error) bool

	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(name string, from, to State)

	// Logger receives transition logs. Default: slog.Default().
	Logger *slog.Logger
}

// Breaker implements the circuit breaker pattern. A nil *Breaker is valid
// and simply runs every call. It is safe for concurrent use.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probes    int
	probeWins int
}

// New creates a [Breaker] from cfg.
func New(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 2
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = defaultIsFailure
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Name returns the configured name.
func (b *Breaker) Name() string {
	if b == nil {
		return ""
	}
	return b.cfg.Name
}

// Do runs fn when the breaker admits the call and records the outcome. The
// error returned by fn is passed through unchanged.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if b == nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.record(probe, err)
	return err
}

// Call is the value-returning form of [Breaker.Do].
func Call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := b.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	var changed *[2]State
	defer func() {
		b.mu.Unlock()
		if changed != nil {
			b.notify(changed[0], changed[1])
		}
	}()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return false, ErrCircuitOpen
		}
		changed = &[2]State{StateOpen, StateHalfOpen}
		b.state = StateHalfOpen
		b.probes, b.probeWins = 0, 0
		fallthrough
	case StateHalfOpen:
		if b.probes >= b.cfg.HalfOpenMax {
			return false, ErrCircuitOpen
		}
		b.probes++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) record(probe bool, err error) {
	failed := b.cfg.IsFailure(err)

	b.mu.Lock()
	from := b.state
	switch {
	case failed && probe:
		b.trip()
	case failed:
		b.failures++
		if b.state == StateClosed && b.failures >= b.cfg.MaxFailures {
			b.trip()
		}
	case probe:
		b.probeWins++
		b.probes--
		if b.probeWins >= b.cfg.HalfOpenMax && b.state == StateHalfOpen {
			b.state = StateClosed
			b.failures = 0
		}
	default:
		b.failures = 0
	}
	to := b.state
	b.mu.Unlock()

	if from != to {
		b.notify(from, to)
	}
}

// trip opens the breaker. Must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
	b.probes, b.probeWins = 0, 0
}

func (b *Breaker) notify(from, to State) {
	level := slog.LevelInfo
	if to == StateOpen {
		level = slog.LevelWarn
	}
	b.cfg.Logger.Log(context.Background(), level, "circuit breaker state changed",
		"name", b.cfg.Name, "from", from.String(), "to", to.String())
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}

// State returns the current state. An open breaker whose timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the
// next call.
func (b *Breaker) State() State {
	if b == nil {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.probes, b.probeWins = 0, 0
	b.mu.Unlock()
	if from != StateClosed {
		b.notify(from, StateClosed)
	}
}
