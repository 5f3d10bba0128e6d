// Package app wires the ticketvox subsystems into a running application.
//
// New builds the rate table, processor, board sink, capture, session
// controller, MCP server and HTTP router from the config. Run serves HTTP
// until the context ends and Shutdown tears everything down in reverse
// construction order.
//
// For testing, inject doubles via functional options (WithSink,
// WithCapture, WithListener). When an option is not provided, New creates
// the real implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/ticketvox/internal/api"
	"github.com/MrWong99/ticketvox/internal/board"
	"github.com/MrWong99/ticketvox/internal/capture"
	"github.com/MrWong99/ticketvox/internal/config"
	"github.com/MrWong99/ticketvox/internal/format"
	"github.com/MrWong99/ticketvox/internal/health"
	"github.com/MrWong99/ticketvox/internal/mcpserver"
	"github.com/MrWong99/ticketvox/internal/observe"
	"github.com/MrWong99/ticketvox/internal/processor"
	"github.com/MrWong99/ticketvox/internal/resilience"
	"github.com/MrWong99/ticketvox/internal/session"
	"github.com/MrWong99/ticketvox/internal/ticket"
	"github.com/MrWong99/ticketvox/pkg/audio"
	"github.com/MrWong99/ticketvox/pkg/provider/llm"
	"github.com/MrWong99/ticketvox/pkg/provider/stt"
)

// Providers holds the external backends. LLM is required; STT and Source
// are only needed for live capture. Populated by main.go via the config
// registry.
type Providers struct {
	LLM    llm.Provider
	STT    stt.Provider
	Source audio.Source
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	logger    *slog.Logger
	level     *slog.LevelVar
	version   string

	roles      *ticket.RoleSet
	money      *format.Money
	llmBreaker *resilience.Breaker
	proc       *processor.Processor
	sink       board.Sink
	capture    capture.Capture
	ctl        *session.Controller
	health     *health.Handler
	mcp        *mcp.Server
	handler    http.Handler

	listener net.Listener
	server   *http.Server

	// closers run in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSink replaces the board sink built from the config.
func WithSink(s board.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithCapture replaces the capture built from the config.
func WithCapture(c capture.Capture) Option {
	return func(a *App) { a.capture = c }
}

// WithListener serves on l instead of listening on server.listen_addr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// WithMetrics sets the metric instruments. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithLevel lets config reloads adjust the log level.
func WithLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithVersion sets the version advertised over MCP.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// New creates an App by wiring all subsystems together.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil {
		return nil, errors.New("app: an llm provider is required")
	}
	a := &App{cfg: cfg, providers: providers, version: "dev"}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	var err error
	if a.roles, err = ticket.NewRoleSet(cfg.RoleTable()...); err != nil {
		return nil, fmt.Errorf("app: roles: %w", err)
	}
	if a.money, err = format.NewMoney(cfg.Pricing.Locale, cfg.Pricing.Currency); err != nil {
		return nil, fmt.Errorf("app: pricing: %w", err)
	}

	a.initProcessor()
	if err := a.initSink(); err != nil {
		return nil, fmt.Errorf("app: init board: %w", err)
	}
	a.initCapture(ctx)

	a.ctl, err = session.New(a.capture, a.proc, a.sink, a.roles,
		session.WithCaptureOptions(capture.Options{
			Continuous: cfg.Capture.IsContinuous(),
			Language:   cfg.Capture.Language,
		}),
		session.WithMoney(a.money),
		session.WithMetrics(a.metrics),
		session.WithLogger(a.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("app: init session: %w", err)
	}

	a.initHealth()
	a.mcp = mcpserver.New(a.ctl, mcpserver.WithVersion(a.version), mcpserver.WithLogger(a.logger))
	a.handler = api.NewRouter(a.ctl,
		api.WithHealth(a.health),
		api.WithMetrics(a.metrics),
		api.WithPrometheus(observe.MetricsHandler()),
		api.WithMCP(mcpserver.Handler(a.mcp)),
		api.WithLogger(a.logger),
	)
	return a, nil
}

func (a *App) initProcessor() {
	a.llmBreaker = resilience.New(resilience.Config{Name: "llm", Logger: a.logger})
	opts := []processor.Option{
		processor.WithModel(a.cfg.Providers.LLM.Model),
		processor.WithMaxTokens(a.cfg.LLM.MaxTokens),
		processor.WithTimeout(a.cfg.LLM.Timeout),
		processor.WithBreaker(a.llmBreaker),
		processor.WithMetrics(a.metrics),
		processor.WithLogger(a.logger),
	}
	if t := a.cfg.LLM.Temperature; t != nil {
		opts = append(opts, processor.WithTemperature(*t))
	}
	a.proc = processor.New(a.providers.LLM, opts...)
}

// initSink builds the Trello submitter, or the dry-run LogSink when the
// board is set to log or its credentials are incomplete.
func (a *App) initSink() error {
	if a.sink != nil {
		return nil
	}
	creds := a.cfg.BoardCredentials()
	if a.cfg.Board.Provider == config.BoardLog || !creds.Complete() {
		if a.cfg.Board.Provider != config.BoardLog {
			a.logger.Warn("board credentials incomplete, tickets will be logged instead of submitted")
		}
		a.sink = &board.LogSink{Logger: a.logger, Metrics: a.metrics}
		return nil
	}

	client, err := board.NewClient(creds,
		board.WithBaseURL(a.cfg.Board.BaseURL),
		board.WithHTTPClient(&http.Client{Timeout: a.cfg.Board.Timeout}),
	)
	if err != nil {
		return err
	}
	a.sink = board.NewSubmitter(client,
		board.WithMetrics(a.metrics),
		board.WithLogger(a.logger),
		board.WithTimeout(a.cfg.Board.Timeout),
	)
	return nil
}

// initCapture prefers live microphone capture and falls back to typed
// input when the source or the STT provider is missing.
func (a *App) initCapture(ctx context.Context) {
	if a.capture == nil {
		switch {
		case a.cfg.Capture.Source == config.SourceManual:
			a.capture = capture.NewManual()
		case a.providers.Source == nil || a.providers.STT == nil:
			a.logger.WarnContext(ctx, "live capture unavailable, accepting typed transcripts only",
				"source", a.providers.Source != nil, "stt", a.providers.STT != nil)
			a.capture = capture.NewManual()
		default:
			a.capture = capture.NewLive(a.providers.Source, a.providers.STT,
				capture.WithKeywords(a.roles.Names),
				capture.WithLogger(a.logger),
			)
		}
	}
	c := a.capture
	a.closers = append(a.closers, c.Stop)
}

type checker interface {
	Check(ctx context.Context) error
}

func (a *App) initHealth() {
	checks := []health.Checker{
		health.BreakerChecker("llm", a.llmBreaker),
	}
	if a.cfg.Board.Provider == config.BoardTrello && !a.cfg.BoardCredentials().Complete() {
		checks = append(checks, health.Static("board_credentials", board.ErrMissingCredentials))
	}
	if _, live := a.capture.(*capture.Live); live {
		if c, ok := a.providers.Source.(checker); ok {
			checks = append(checks, health.Checker{Name: "capture", Check: c.Check})
		}
	}
	a.health = health.New(checks...)
}

// Controller returns the session controller.
func (a *App) Controller() *session.Controller { return a.ctl }

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// MCPServer returns the MCP server, for stdio serving.
func (a *App) MCPServer() *mcp.Server { return a.mcp }

// Money returns the configured currency formatter.
func (a *App) Money() *format.Money { return a.money }

// Sink returns the board sink in use.
func (a *App) Sink() board.Sink { return a.sink }

// Reload applies the hot-reloadable parts of a changed config: the log
// level and the rate table.
func (a *App) Reload(_, new *config.Config, d config.ConfigDiff) {
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Slog())
		a.logger.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.RolesChanged {
		if err := a.ctl.ReplaceRoles(new.RoleTable()); err != nil {
			a.logger.Warn("reloaded roles rejected", "err", err)
			return
		}
		a.logger.Info("rate table reloaded", "roles", len(new.Roles))
	}
}

// Run serves HTTP until ctx is cancelled. It returns ctx.Err() on a clean
// stop.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
		}
	}
	a.server = &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		errCh <- err
	}()

	a.logger.Info("app running", "addr", ln.Addr().String())
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// Shutdown stops the HTTP server and runs the closers in reverse order.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				a.logger.Warn("http shutdown error", "err", err)
				shutdownErr = err
			}
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.logger.Warn("closer error", "index", i, "err", err)
			}
		}
		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}
