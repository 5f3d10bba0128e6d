package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/ticketvox/internal/board"
	"github.com/MrWong99/ticketvox/internal/capture"
	"github.com/MrWong99/ticketvox/internal/format"
	"github.com/MrWong99/ticketvox/internal/ticket"
)

// Environment variables consulted when the file leaves a credential empty.
const (
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvDeepgramKey = "DEEPGRAM_API_KEY"
	EnvTrelloKey   = "TRELLO_API_KEY"
	EnvTrelloToken = "TRELLO_API_TOKEN"
	EnvTrelloList  = "TRELLO_LIST_ID"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr   = ":8080"
	DefaultLLMProvider  = "openai"
	DefaultLLMModel     = "gpt-4"
	DefaultMaxTokens    = 1000
	DefaultTemperature  = 0.2
	DefaultLLMTimeout   = 60 * time.Second
	DefaultSTTProvider  = "whisper"
	DefaultWhisperURL   = "http://localhost:8081"
	DefaultBoardTimeout = 15 * time.Second
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"deepgram", "whisper"},
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// lookupEnv is swapped in tests.
var lookupEnv = os.LookupEnv

// Load reads the YAML configuration file at path and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader expands ${VAR} references in r, decodes it strictly,
// applies defaults and environment fallbacks, and validates the result. An
// empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	raw = expandEnv(raw)

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a validated configuration built from defaults and the
// environment only.
func Default() (*Config, error) {
	return LoadFromReader(bytes.NewReader(nil))
}

// expandEnv replaces ${VAR} with the variable's value, or "" when unset.
// A bare $ is left alone.
func expandEnv(raw []byte) []byte {
	return envRef.ReplaceAllFunc(raw, func(m []byte) []byte {
		v, _ := lookupEnv(string(m[2 : len(m)-1]))
		return []byte(v)
	})
}

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(cfg *Config) {
	setDefault(&cfg.Server.ListenAddr, DefaultListenAddr)
	setDefault(&cfg.Server.LogLevel, LogInfo)

	setDefault(&cfg.Providers.LLM.Name, DefaultLLMProvider)
	setDefault(&cfg.Providers.LLM.Model, DefaultLLMModel)
	setDefault(&cfg.Providers.STT.Name, DefaultSTTProvider)
	if cfg.Providers.STT.Name == "whisper" {
		setDefault(&cfg.Providers.STT.BaseURL, DefaultWhisperURL)
	}

	setDefault(&cfg.LLM.MaxTokens, DefaultMaxTokens)
	if cfg.LLM.Temperature == nil {
		t := DefaultTemperature
		cfg.LLM.Temperature = &t
	}
	setDefault(&cfg.LLM.Timeout, DefaultLLMTimeout)

	setDefault(&cfg.Capture.Source, SourcePulse)
	setDefault(&cfg.Capture.Language, capture.DefaultLanguage)

	setDefault(&cfg.Board.Provider, BoardTrello)
	setDefault(&cfg.Board.BaseURL, board.DefaultBaseURL)
	setDefault(&cfg.Board.Timeout, DefaultBoardTimeout)

	setDefault(&cfg.Pricing.Locale, format.DefaultLocale)
	setDefault(&cfg.Pricing.Currency, format.DefaultCurrency)

	if len(cfg.Roles) == 0 {
		for _, r := range ticket.DefaultRoles() {
			cfg.Roles = append(cfg.Roles, RoleConfig{Name: r.Name, HourlyRate: r.HourlyRate})
		}
	}
}

func setDefault[T comparable](field *T, v T) {
	var zero T
	if *field == zero {
		*field = v
	}
}

// applyEnv fills empty credentials from the environment.
func applyEnv(cfg *Config) {
	fromEnv := func(field *string, key string) {
		if *field != "" {
			return
		}
		if v, ok := lookupEnv(key); ok {
			*field = v
		}
	}
	if cfg.Providers.LLM.Name == "openai" {
		fromEnv(&cfg.Providers.LLM.APIKey, EnvOpenAIKey)
	}
	if cfg.Providers.STT.Name == "deepgram" {
		fromEnv(&cfg.Providers.STT.APIKey, EnvDeepgramKey)
	}
	fromEnv(&cfg.Board.APIKey, EnvTrelloKey)
	fromEnv(&cfg.Board.Token, EnvTrelloToken)
	fromEnv(&cfg.Board.ListID, EnvTrelloList)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}

	if cfg.LLM.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("llm.max_tokens %d must not be negative", cfg.LLM.MaxTokens))
	}
	if t := cfg.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("llm.temperature %.2f is out of range [0, 2]", *t))
	}
	if cfg.LLM.Timeout < 0 {
		errs = append(errs, fmt.Errorf("llm.timeout %s must not be negative", cfg.LLM.Timeout))
	}

	if cfg.Capture.Source != "" && !cfg.Capture.Source.IsValid() {
		errs = append(errs, fmt.Errorf("capture.source %q is invalid; valid values: pulse, manual", cfg.Capture.Source))
	}

	if cfg.Board.Provider != "" && !cfg.Board.Provider.IsValid() {
		errs = append(errs, fmt.Errorf("board.provider %q is invalid; valid values: trello, log", cfg.Board.Provider))
	}
	if cfg.Board.Timeout < 0 {
		errs = append(errs, fmt.Errorf("board.timeout %s must not be negative", cfg.Board.Timeout))
	}
	if cfg.Board.Provider == BoardTrello && !cfg.BoardCredentials().Complete() {
		slog.Warn("board credentials incomplete; confirmed tickets will only be logged",
			"env", []string{EnvTrelloKey, EnvTrelloToken, EnvTrelloList})
	}

	if _, err := format.NewMoney(cfg.Pricing.Locale, cfg.Pricing.Currency); err != nil {
		errs = append(errs, fmt.Errorf("pricing: %w", err))
	}

	for i, r := range cfg.Roles {
		if _, err := ticket.NewRoleSet(ticket.Role{Name: r.Name, HourlyRate: r.HourlyRate}); err != nil {
			errs = append(errs, fmt.Errorf("roles[%d]: %w", i, err))
		}
	}
	if len(errs) == 0 {
		if _, err := ticket.NewRoleSet(cfg.RoleTable()...); err != nil {
			errs = append(errs, fmt.Errorf("roles: %w", err))
		}
	}

	return errors.Join(errs...)
}

// BoardCredentials returns the Trello credentials of cfg.
func (c *Config) BoardCredentials() board.Credentials {
	return board.Credentials{APIKey: c.Board.APIKey, Token: c.Board.Token, ListID: c.Board.ListID}
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
