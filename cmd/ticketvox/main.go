// Command ticketvox turns spoken or typed meeting notes into priced work
// tickets and submits them to a Trello list.
//
// Usage:
//
//	ticketvox serve   [--config file]             HTTP API, MCP endpoint and live capture
//	ticketvox process [--config file] [--file f]  one-shot: transcript in, tickets out
//	ticketvox mcp     [--config file]             MCP over stdio
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/spf13/pflag"

	"github.com/MrWong99/ticketvox/internal/app"
	"github.com/MrWong99/ticketvox/internal/capture"
	"github.com/MrWong99/ticketvox/internal/config"
	"github.com/MrWong99/ticketvox/internal/format"
	"github.com/MrWong99/ticketvox/internal/mcpserver"
	"github.com/MrWong99/ticketvox/internal/observe"
	"github.com/MrWong99/ticketvox/pkg/audio/pulse"
	"github.com/MrWong99/ticketvox/pkg/provider/llm"
	"github.com/MrWong99/ticketvox/pkg/provider/llm/anyllm"
	"github.com/MrWong99/ticketvox/pkg/provider/llm/openai"
	"github.com/MrWong99/ticketvox/pkg/provider/stt"
	"github.com/MrWong99/ticketvox/pkg/provider/stt/deepgram"
	"github.com/MrWong99/ticketvox/pkg/provider/stt/whisper"
)

var version = "dev"

const usage = `usage: ticketvox <command> [flags]

commands:
  serve     run the HTTP API, MCP endpoint and live capture
  process   generate and price tickets from a transcript file or stdin
  mcp       serve MCP tools over stdio
`

func main() {
	os.Exit(run(os.Args[1:]))
}

// globals are the flags shared by every subcommand.
type globals struct {
	configPath string
	logLevel   string
	logFormat  string
}

func (g *globals) register(fs *pflag.FlagSet) {
	fs.StringVarP(&g.configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	fs.StringVar(&g.logLevel, "log-level", "", "override server.log_level (debug, info, warn, error)")
	fs.StringVar(&g.logFormat, "log-format", "text", "log output format (text, json)")
}

func run(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	cmd, args := args[0], args[1:]

	var g globals
	fs := pflag.NewFlagSet("ticketvox "+cmd, pflag.ContinueOnError)
	g.register(fs)

	var (
		file   string
		submit bool
	)
	switch cmd {
	case "serve", "mcp":
	case "process":
		fs.StringVarP(&file, "file", "f", "-", "transcript file, - for stdin")
		fs.BoolVar(&submit, "submit", false, "submit the generated tickets to the board")
	default:
		fmt.Fprintf(os.Stderr, "ticketvox: unknown command %q\n\n%s", cmd, usage)
		return 2
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(g.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ticketvox: %v\n", err)
		return 1
	}
	if g.logLevel != "" {
		cfg.Server.LogLevel = config.LogLevel(g.logLevel)
	}

	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Slog())
	logger := newLogger(os.Stderr, g.logFormat, level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	switch cmd {
	case "serve":
		return serve(ctx, g.configPath, cfg, providers, level, logger)
	case "process":
		return process(ctx, cfg, providers, logger, file, submit)
	default:
		return serveMCP(ctx, cfg, providers, logger)
	}
}

// loadConfig reads path, or falls back to the built-in defaults when the
// file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("config file not found, using defaults", "path", path)
		return config.Default()
	}
	return cfg, err
}

func serve(ctx context.Context, path string, cfg *config.Config, providers *app.Providers, level *slog.LevelVar, logger *slog.Logger) int {
	printStartupSummary(os.Stdout, cfg)

	application, err := app.New(ctx, cfg, providers,
		app.WithLogger(logger),
		app.WithLevel(level),
		app.WithVersion(version),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	if _, statErr := os.Stat(path); statErr == nil {
		watcher, err := config.NewWatcher(path, application.Reload, config.WithWatchLogger(logger))
		if err != nil {
			slog.Warn("config hot-reload disabled", "err", err)
		} else {
			defer watcher.Close()
		}
	}

	slog.Info("server ready, press Ctrl+C to shut down", "listen_addr", cfg.Server.ListenAddr)
	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func process(ctx context.Context, cfg *config.Config, providers *app.Providers, logger *slog.Logger, file string, submit bool) int {
	text, err := readTranscript(file)
	if err != nil {
		slog.Error("failed to read transcript", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers,
		app.WithLogger(logger),
		app.WithCapture(capture.NewManual()),
		app.WithVersion(version),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer application.Shutdown(context.Background())

	preview, err := application.Controller().Estimate(ctx, text)
	if err != nil {
		slog.Error("ticket generation failed", "err", err)
		return 1
	}
	if len(preview.Tickets) == 0 {
		fmt.Println("No tickets could be derived from the transcript.")
		return 0
	}
	for _, t := range preview.Tickets {
		fmt.Println(format.RenderCard(t))
	}
	fmt.Println(format.RenderSummary(preview.Summary, application.Money()))
	if preview.Invalid > 0 {
		fmt.Printf("%d ticket(s) carry an unrecognised seniority.\n", preview.Invalid)
	}

	if !submit {
		return 0
	}
	outcomes := application.Sink().SubmitAll(ctx, preview.Tickets)
	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
			fmt.Printf("FAILED  %s: %s\n", o.Ticket.Title, o.Error)
			continue
		}
		fmt.Printf("created %s %s\n", o.Ticket.Title, o.URL())
	}
	if failed > 0 {
		fmt.Printf("%d of %d cards failed\n", failed, len(outcomes))
		return 1
	}
	return 0
}

func serveMCP(ctx context.Context, cfg *config.Config, providers *app.Providers, logger *slog.Logger) int {
	application, err := app.New(ctx, cfg, providers,
		app.WithLogger(logger),
		app.WithCapture(capture.NewManual()),
		app.WithVersion(version),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer application.Shutdown(context.Background())

	if err := mcpserver.Run(ctx, application.MCPServer()); err != nil {
		slog.Error("mcp server error", "err", err)
		return 1
	}
	return 0
}

func readTranscript(file string) (string, error) {
	var (
		raw []byte
		err error
	)
	if file == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(file)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// The native OpenAI client supports organisations and request timeouts.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "ollama",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" && providerName != "ollama" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, deepgram.WithLanguage(entry.Language))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, whisper.WithLanguage(entry.Language))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	for _, kind := range []string{"llm", "stt"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// buildProviders instantiates the providers named in cfg. A missing STT
// provider is tolerated; the app then accepts typed transcripts only.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	p, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	ps.LLM = p
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)

	if cfg.Capture.Source != config.SourcePulse {
		return ps, nil
	}
	if name := cfg.Providers.STT.Name; name != "" {
		s, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			slog.Warn("stt provider unavailable", "name", name, "err", err)
		} else {
			ps.STT = s
			slog.Info("provider created", "kind", "stt", "name", name)
		}
	}
	ps.Source = &pulse.Source{Device: cfg.Capture.Device}
	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║        ticketvox startup summary      ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printRow(w, "LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printRow(w, "STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printRow(w, "Capture", string(cfg.Capture.Source), cfg.Capture.Language)
	board := string(cfg.Board.Provider)
	if cfg.Board.Provider == config.BoardTrello && !cfg.BoardCredentials().Complete() {
		board = "trello (dry run)"
	}
	printRow(w, "Board", board, "")
	fmt.Fprintf(w, "║  Roles           : %-19d ║\n", len(cfg.Roles))
	fmt.Fprintf(w, "║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func printRow(w io.Writer, kind, name, detail string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if detail != "" {
		value = name + " / " + detail
	}
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(w io.Writer, format string, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// optString extracts a string value from a provider Options map.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}
