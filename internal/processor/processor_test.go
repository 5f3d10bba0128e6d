package processor_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/ticketvox/internal/observe"
	"github.com/MrWong99/ticketvox/internal/processor"
	"github.com/MrWong99/ticketvox/internal/resilience"
	"github.com/MrWong99/ticketvox/internal/ticket"
	"github.com/MrWong99/ticketvox/pkg/provider/llm"
	"github.com/MrWong99/ticketvox/pkg/provider/llm/mock"
)

const transcript = "Ügyfél: kell egy bejelentkező oldal és egy rendelés API."

const twoTickets = `[
  {"title": "Login page", "description": "Build the login form.", "expectedWorkHours": 3, "seniority": "medior", "role": "Frontend engineer"},
  {"title": "Orders API", "description": "REST endpoint for orders.", "expectedWorkHours": 4, "seniority": "Senior", "role": "backend engineer"}
]`

func testRoles() []ticket.Role {
	return []ticket.Role{
		{ID: uuid.New(), Name: "Frontend engineer", HourlyRate: 5000},
		{ID: uuid.New(), Name: "Backend engineer", HourlyRate: 4000},
		{ID: uuid.New(), Name: "Designer", HourlyRate: 3000},
	}
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newProcessor(t *testing.T, p llm.Provider, opts ...processor.Option) *processor.Processor {
	t.Helper()
	return processor.New(p, append([]processor.Option{processor.WithMetrics(testMetrics(t))}, opts...)...)
}

func reply(content string) *mock.Provider {
	return &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: content, FinishReason: "stop"}}
}

func TestGenerate_ParsesTicketsAndBindsRoles(t *testing.T) {
	t.Parallel()

	p := reply(twoTickets)
	roles := testRoles()
	res, err := newProcessor(t, p).Generate(context.Background(), transcript, roles)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Tickets) != 2 {
		t.Fatalf("tickets = %d, want 2", len(res.Tickets))
	}

	login, orders := res.Tickets[0], res.Tickets[1]
	if login.Title != "Login page" || login.ExpectedWorkHours != 3 || login.Seniority != ticket.Medior {
		t.Errorf("login = %+v", login)
	}
	if login.RoleID != roles[0].ID {
		t.Errorf("login role id = %v, want frontend", login.RoleID)
	}
	if orders.Seniority != ticket.Senior {
		t.Errorf("seniority not normalised: %q", orders.Seniority)
	}
	if orders.Role != "backend engineer" || orders.RoleID != roles[1].ID {
		t.Errorf("orders role = %q %v", orders.Role, orders.RoleID)
	}
	if res.Invalid != 0 {
		t.Errorf("invalid = %d", res.Invalid)
	}
}

func TestGenerate_PromptContent(t *testing.T) {
	t.Parallel()

	p := reply(`[]`)
	_, err := newProcessor(t, p, processor.WithMaxTokens(1000), processor.WithTemperature(0.3)).
		Generate(context.Background(), transcript, testRoles())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want exactly one", len(calls))
	}
	req := calls[0].Req
	if req.MaxTokens != 1000 || req.Temperature != 0.3 {
		t.Errorf("max tokens = %d, temperature = %v", req.MaxTokens, req.Temperature)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != llm.RoleUser {
		t.Fatalf("messages = %+v", req.Messages)
	}
	prompt := req.Messages[0].Content
	for _, want := range []string{
		"act as a project manager",
		"Available roles:",
		" - Frontend engineer\n",
		" - Designer\n",
		`seniority: "junior" | "medior" | "senior"`,
		"The raw conversation:\n" + transcript,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGenerate_ClampsMaxTokens(t *testing.T) {
	t.Parallel()

	p := reply(`[]`)
	p.ModelCapabilities = llm.ModelCapabilities{MaxOutputTokens: 512}
	_, _ = newProcessor(t, p, processor.WithMaxTokens(1000)).Generate(context.Background(), transcript, nil)
	if got := p.Calls()[0].Req.MaxTokens; got != 512 {
		t.Errorf("max tokens = %d, want 512", got)
	}
}

func TestGenerate_EmptyTranscriptSkipsModel(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   \n\t"} {
		p := reply(twoTickets)
		res, err := newProcessor(t, p).Generate(context.Background(), in, testRoles())
		if err != nil {
			t.Fatalf("Generate(%q): %v", in, err)
		}
		if len(res.Tickets) != 0 {
			t.Errorf("tickets = %d, want 0", len(res.Tickets))
		}
		if n := len(p.Calls()); n != 0 {
			t.Errorf("model called %d times for blank transcript", n)
		}
	}
}

func TestGenerate_Failures(t *testing.T) {
	t.Parallel()

	errNet := errors.New("connection reset")
	tests := []struct {
		name    string
		p       *mock.Provider
		wantErr error
	}{
		{"provider error", &mock.Provider{CompleteErr: errNet}, processor.ErrGeneration},
		{"nil response", &mock.Provider{}, processor.ErrEmptyResponse},
		{"blank content", reply("  \n"), processor.ErrEmptyResponse},
		{"prose", reply("Sure! Here are your tickets: none."), processor.ErrUnparsable},
		{"wrong field type", reply(`[{"title": "x", "expectedWorkHours": "three"}]`), processor.ErrUnparsable},
		{"object without tickets", reply(`{"issues": []}`), processor.ErrUnparsable},
		{"truncated", reply(`[{"title": "Login page", "desc`), processor.ErrUnparsable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			proc := newProcessor(t, tc.p)

			_, err := proc.Generate(context.Background(), transcript, testRoles())
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}

			got := proc.Process(context.Background(), transcript, testRoles())
			if got == nil || len(got) != 0 {
				t.Errorf("Process = %#v, want empty non-nil slice", got)
			}
		})
	}
}

func TestGenerate_ProviderErrorIsWrapped(t *testing.T) {
	t.Parallel()

	errNet := errors.New("connection reset")
	_, err := newProcessor(t, &mock.Provider{CompleteErr: errNet}).Generate(context.Background(), transcript, nil)
	if !errors.Is(err, errNet) {
		t.Errorf("err = %v, want wrapped cause", err)
	}
}

func TestGenerate_LenientFormats(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"fenced":          "```json\n" + twoTickets + "\n```",
		"bare fence":      "```\n" + twoTickets + "\n```",
		"trailing commas": `[{"title": "Login page", "expectedWorkHours": 3, "seniority": "medior", "role": "Frontend engineer",},]`,
		"comments":        "// tickets\n" + `[{"title": "Login page", /* hours */ "expectedWorkHours": 3, "seniority": "medior", "role": "Frontend engineer"}]`,
		"wrapped":         `{"tickets": [{"title": "Login page", "expectedWorkHours": 3, "seniority": "medior", "role": "Frontend engineer"}]}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			res, err := newProcessor(t, reply(content)).Generate(context.Background(), transcript, testRoles())
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if len(res.Tickets) == 0 || res.Tickets[0].Title != "Login page" {
				t.Errorf("tickets = %+v", res.Tickets)
			}
		})
	}
}

func TestGenerate_EmptyArrayIsNotAnError(t *testing.T) {
	t.Parallel()

	res, err := newProcessor(t, reply("[]")).Generate(context.Background(), transcript, testRoles())
	if err != nil || len(res.Tickets) != 0 {
		t.Errorf("got %+v, %v", res, err)
	}
}

func TestGenerate_UnknownSeniorityKept(t *testing.T) {
	t.Parallel()

	content := `[{"title": "Audit", "expectedWorkHours": 2, "seniority": "principal", "role": "Backend engineer"}]`
	res, err := newProcessor(t, reply(content)).Generate(context.Background(), transcript, testRoles())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Invalid != 1 {
		t.Errorf("invalid = %d, want 1", res.Invalid)
	}
	if got := res.Tickets[0].Seniority; got != "principal" {
		t.Errorf("seniority = %q, want it kept", got)
	}
}

func TestGenerate_RoleResolution(t *testing.T) {
	t.Parallel()

	roles := testRoles()
	tests := []struct {
		generated string
		want      uuid.UUID
	}{
		{"Frontend engineer", roles[0].ID},
		{"Back-end Engineer", roles[1].ID},
		{"Frontend developer", roles[0].ID},
		{"Desiner", roles[2].ID},
		{"QA engineer", uuid.Nil},
		{"", uuid.Nil},
	}
	for _, tc := range tests {
		content := `[{"title": "t", "expectedWorkHours": 1, "seniority": "junior", "role": "` + tc.generated + `"}]`
		res, err := newProcessor(t, reply(content)).Generate(context.Background(), transcript, roles)
		if err != nil {
			t.Fatalf("%q: %v", tc.generated, err)
		}
		if got := res.Tickets[0].RoleID; got != tc.want {
			t.Errorf("%q resolved to %v, want %v", tc.generated, got, tc.want)
		}
		if res.Tickets[0].Role != tc.generated {
			t.Errorf("generated role name changed: %q", res.Tickets[0].Role)
		}
	}
}

func TestGenerate_WithoutMatcherOnlyExact(t *testing.T) {
	t.Parallel()

	roles := testRoles()
	content := `[{"title": "t", "expectedWorkHours": 1, "seniority": "junior", "role": "Frontend developer"}]`
	res, err := newProcessor(t, reply(content), processor.WithMatcher(nil)).Generate(context.Background(), transcript, roles)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Tickets[0].Resolved() {
		t.Errorf("fuzzy match applied without matcher")
	}
}

func TestGenerate_OpenBreakerFailsFast(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteErr: errors.New("503")}
	b := resilience.New(resilience.Config{Name: "llm", MaxFailures: 1})
	proc := newProcessor(t, p, processor.WithBreaker(b))

	_, _ = proc.Generate(context.Background(), transcript, nil)
	_, err := proc.Generate(context.Background(), transcript, nil)
	if !errors.Is(err, resilience.ErrCircuitOpen) || !errors.Is(err, processor.ErrGeneration) {
		t.Errorf("err = %v, want open circuit generation error", err)
	}
	if n := len(p.Calls()); n != 1 {
		t.Errorf("provider calls = %d, want 1 (no retry)", n)
	}
}

func TestProcess_EndToEndSummary(t *testing.T) {
	t.Parallel()

	content := `[
		{"title": "Login page", "expectedWorkHours": 3, "seniority": "medior", "role": "Frontend engineer"},
		{"title": "Cart widget", "expectedWorkHours": 2, "seniority": "junior", "role": "Frontend engineer"},
		{"title": "Orders API", "expectedWorkHours": 4, "seniority": "senior", "role": "Backend engineer"}
	]`
	rs, err := ticket.NewRoleSet(testRoles()...)
	if err != nil {
		t.Fatal(err)
	}
	tickets := newProcessor(t, reply(content)).Process(context.Background(), transcript, rs.List())
	sum := ticket.Aggregate(tickets, rs)
	if sum.Total != 41000 {
		t.Errorf("total = %v, want 41000", sum.Total)
	}
}
