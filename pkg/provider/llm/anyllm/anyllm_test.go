package anyllm

import (
	"strings"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/ticketvox/pkg/provider/llm"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "m"); err == nil {
		t.Error("expected error for empty provider name")
	}
	if _, err := New("ollama", ""); err == nil {
		t.Error("expected error for empty model")
	}
	_, err := New("watson", "m")
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
	if !strings.Contains(err.Error(), "unsupported provider") {
		t.Errorf("unexpected error text: %v", err)
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "gpt-4"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "you are a project manager",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "conversation"}},
		Temperature:  0.3,
		MaxTokens:    1000,
	})

	if params.Model != "gpt-4" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first role = %q, want system", params.Messages[0].Role)
	}
	if params.Messages[1].ContentString() != "conversation" {
		t.Errorf("user content = %q", params.Messages[1].ContentString())
	}
	if params.MaxTokens == nil || *params.MaxTokens != 1000 {
		t.Errorf("max tokens = %v", params.MaxTokens)
	}
	if params.Temperature == nil || *params.Temperature != 0.3 {
		t.Errorf("temperature = %v", params.Temperature)
	}
}

func TestBuildParams_ZeroValuesOmitted(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "llama3"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
	})
	if params.Temperature != nil || params.MaxTokens != nil {
		t.Error("expected nil temperature and max tokens")
	}
}

func TestModelCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model   string
		context int
		output  int
	}{
		{"gpt-4", 8_192, 4_096},
		{"claude-3-5-sonnet-latest", 200_000, 8_192},
		{"gemini-2.0-flash", 1_048_576, 8_192},
		{"mistral-small", 128_000, 4_096},
	}
	for _, tc := range tests {
		got := modelCapabilities(tc.model)
		if got.ContextWindow != tc.context || got.MaxOutputTokens != tc.output {
			t.Errorf("%s: got %+v", tc.model, got)
		}
	}
}
