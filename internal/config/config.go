// Package config provides the configuration schema, loader, and provider
// registry for ticketvox.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/ticketvox/internal/ticket"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l to the slog level. Unknown values map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CaptureSource selects where spoken input comes from.
type CaptureSource string

const (
	// SourcePulse records the microphone through PulseAudio or PipeWire.
	SourcePulse CaptureSource = "pulse"

	// SourceManual accepts typed transcript text only.
	SourceManual CaptureSource = "manual"
)

// IsValid reports whether s is a recognised capture source.
func (s CaptureSource) IsValid() bool {
	return s == SourcePulse || s == SourceManual
}

// BoardProvider selects where confirmed tickets go.
type BoardProvider string

const (
	BoardTrello BoardProvider = "trello"

	// BoardLog logs tickets instead of creating cards.
	BoardLog BoardProvider = "log"
)

// IsValid reports whether b is a recognised board provider.
func (b BoardProvider) IsValid() bool {
	return b == BoardTrello || b == BoardLog
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	LLM       LLMConfig       `yaml:"llm"`
	Capture   CaptureConfig   `yaml:"capture"`
	Board     BoardConfig     `yaml:"board"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Roles     []RoleConfig    `yaml:"roles"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the HTTP API (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`

	// TLS enables HTTPS when set.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds PEM certificate paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the language model and speech-to-text backends.
// Each Name is looked up in the [Registry].
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`
	STT ProviderEntry `yaml:"stt"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
type ProviderEntry struct {
	// Name selects the registered implementation (e.g., "openai", "whisper").
	Name string `yaml:"name"`

	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint. For whisper it is
	// the whisper.cpp server address.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider (e.g., "gpt-4o", "nova-2").
	Model string `yaml:"model"`

	// Language is the recognition language for speech providers.
	Language string `yaml:"language"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// LLMConfig tunes ticket generation.
type LLMConfig struct {
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is a pointer so an explicit 0 survives defaulting.
	Temperature *float64 `yaml:"temperature"`

	Timeout time.Duration `yaml:"timeout"`
}

// CaptureConfig configures speech capture.
type CaptureConfig struct {
	Source CaptureSource `yaml:"source"`

	// Device is a substring of the preferred input device. Empty picks the
	// server default.
	Device string `yaml:"device"`

	// Continuous keeps listening across pauses. Default: true.
	Continuous *bool `yaml:"continuous"`

	// Language is the BCP 47 recognition locale. Default: hu-HU.
	Language string `yaml:"language"`
}

// IsContinuous reports the effective continuous flag.
func (c CaptureConfig) IsContinuous() bool {
	return c.Continuous == nil || *c.Continuous
}

// BoardConfig holds the task board destination.
type BoardConfig struct {
	Provider BoardProvider `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	Token    string        `yaml:"token"`
	ListID   string        `yaml:"list_id"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// PricingConfig selects how totals are formatted.
type PricingConfig struct {
	Locale   string `yaml:"locale"`
	Currency string `yaml:"currency"`
}

// RoleConfig is one row of the starting rate table.
type RoleConfig struct {
	Name       string  `yaml:"name"`
	HourlyRate float64 `yaml:"hourly_rate"`
}

// RoleTable converts the configured roles to ticket roles. IDs are left
// zero for [ticket.NewRoleSet] to assign.
func (c *Config) RoleTable() []ticket.Role {
	out := make([]ticket.Role, len(c.Roles))
	for i, r := range c.Roles {
		out[i] = ticket.Role{Name: r.Name, HourlyRate: r.HourlyRate}
	}
	return out
}
