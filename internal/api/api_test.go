package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/ticketvox/internal/api"
	"github.com/MrWong99/ticketvox/internal/board/mock"
	"github.com/MrWong99/ticketvox/internal/capture"
	"github.com/MrWong99/ticketvox/internal/fsm"
	"github.com/MrWong99/ticketvox/internal/health"
	"github.com/MrWong99/ticketvox/internal/observe"
	"github.com/MrWong99/ticketvox/internal/processor"
	"github.com/MrWong99/ticketvox/internal/session"
	"github.com/MrWong99/ticketvox/internal/ticket"
)

type fakeGen struct {
	mu  sync.Mutex
	err error
}

func (g *fakeGen) Generate(_ context.Context, transcript string, roles []ticket.Role) (processor.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return processor.Result{}, g.err
	}
	if strings.TrimSpace(transcript) == "" {
		return processor.Result{}, nil
	}
	out := []ticket.Ticket{
		{Title: "Login page", ExpectedWorkHours: 4, Seniority: ticket.Medior, Role: "Frontend engineer"},
		{Title: "Auth API", ExpectedWorkHours: 3, Seniority: ticket.Senior, Role: "Backend engineer"},
	}
	for i := range out {
		for _, r := range roles {
			if strings.EqualFold(r.Name, out[i].Role) {
				out[i].RoleID = r.ID
			}
		}
	}
	return processor.Result{Tickets: out}, nil
}

type env struct {
	srv  *httptest.Server
	gen  *fakeGen
	sink *mock.Sink
}

func newEnv(t *testing.T) env {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	require.NoError(t, err)

	roles, err := ticket.NewRoleSet(ticket.DefaultRoles()...)
	require.NoError(t, err)

	e := env{gen: &fakeGen{}, sink: &mock.Sink{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctl, err := session.New(capture.NewManual(), e.gen, e.sink, roles,
		session.WithMetrics(m), session.WithLogger(logger))
	require.NoError(t, err)

	r := api.NewRouter(ctl,
		api.WithMetrics(m),
		api.WithLogger(logger),
		api.WithHealth(health.New()),
		api.WithPrometheus(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "# metrics\n")
		})),
	)
	e.srv = httptest.NewServer(r)
	t.Cleanup(e.srv.Close)
	return e
}

func (e env) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestSessionFlow(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	resp, data := e.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, fsm.StateIdle, decode[session.Snapshot](t, data).State)

	resp, _ = e.do(t, http.MethodPost, "/api/session/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data = e.do(t, http.MethodPost, "/api/session/transcript", map[string]string{"text": "Build a login page."})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Build a login page.", decode[session.Snapshot](t, data).Transcript)

	resp, data = e.do(t, http.MethodPost, "/api/session/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decode[session.Snapshot](t, data)
	assert.Equal(t, fsm.StateReviewing, snap.State)
	assert.Len(t, snap.Tickets, 2)
	assert.Equal(t, 32000.0, snap.Summary.Total)

	resp, data = e.do(t, http.MethodPost, "/api/session/confirm", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	receipt := decode[session.Receipt](t, data)
	assert.Equal(t, 2, receipt.Submitted)
	assert.Len(t, e.sink.Tickets(), 2)

	_, data = e.do(t, http.MethodGet, "/api/session", nil)
	snap = decode[session.Snapshot](t, data)
	assert.Equal(t, fsm.StateConfirmed, snap.State)
	assert.Empty(t, snap.Transcript)
	require.NotNil(t, snap.LastReceipt)
}

func TestSessionErrorsMapToStatus(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	resp, data := e.do(t, http.MethodPost, "/api/session/stop", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, decode[map[string]string](t, data)["error"], "invalid transition")

	resp, _ = e.do(t, http.MethodPost, "/api/session/confirm", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Reviewing with an empty batch.
	e.do(t, http.MethodPost, "/api/session/start", nil)
	e.do(t, http.MethodPost, "/api/session/stop", nil)
	resp, data = e.do(t, http.MethodPost, "/api/session/confirm", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(data), "no tickets")

	resp, _ = e.do(t, http.MethodPost, "/api/session/transcript", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/session/transcript", `{"txt": "x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRolesCRUD(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	resp, data := e.do(t, http.MethodGet, "/api/roles", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]ticket.Role](t, data), 3)

	resp, data = e.do(t, http.MethodPost, "/api/roles", map[string]any{"name": "QA engineer", "hourlyRate": 3500})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	qa := decode[ticket.Role](t, data)
	assert.Equal(t, "QA engineer", qa.Name)

	resp, _ = e.do(t, http.MethodPost, "/api/roles", map[string]any{"name": "qa engineer", "hourlyRate": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = e.do(t, http.MethodPost, "/api/roles", map[string]any{"name": "Ops"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = e.do(t, http.MethodPost, "/api/roles", map[string]any{"name": "Ops", "hourlyRate": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = e.do(t, http.MethodPut, "/api/roles/"+qa.ID.String(), map[string]any{"name": "Test engineer", "hourlyRate": 3600})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3600.0, decode[ticket.Role](t, data).HourlyRate)

	resp, _ = e.do(t, http.MethodPut, "/api/roles/not-a-uuid", map[string]any{"name": "x", "hourlyRate": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodDelete, "/api/roles/"+qa.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = e.do(t, http.MethodDelete, "/api/roles/"+qa.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data = e.do(t, http.MethodPut, "/api/roles", []ticket.Role{{Name: "Solo", HourlyRate: 1}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	roles := decode[[]ticket.Role](t, data)
	require.Len(t, roles, 1)
	assert.Equal(t, "Solo", roles[0].Name)
}

func TestProcessAndEstimate(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	resp, data := e.do(t, http.MethodPost, "/api/process", map[string]string{"transcript": "Build a login page."})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	preview := decode[session.Preview](t, data)
	assert.Len(t, preview.Tickets, 2)
	assert.Equal(t, 32000.0, preview.Summary.Total)
	assert.NotEmpty(t, preview.Total)

	_, data = e.do(t, http.MethodGet, "/api/session", nil)
	assert.Equal(t, fsm.StateIdle, decode[session.Snapshot](t, data).State, "process must not touch the session")

	resp, _ = e.do(t, http.MethodPost, "/api/process", map[string]string{"transcript": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = e.do(t, http.MethodPost, "/api/estimate", map[string]any{"tickets": []map[string]any{
		{"title": "x", "expectedWorkHours": 2, "role": "Designer"},
		{"title": "y", "expectedWorkHours": 1, "role": "Astronaut"},
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	preview = decode[session.Preview](t, data)
	assert.Equal(t, 6000.0, preview.Summary.Total)
	assert.Equal(t, []string{"Astronaut"}, preview.Summary.Unresolved)

	e.gen.mu.Lock()
	e.gen.err = processor.ErrGeneration
	e.gen.mu.Unlock()
	resp, _ = e.do(t, http.MethodPost, "/api/process", map[string]string{"transcript": "x"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestOperationalRoutes(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	for path, want := range map[string]int{
		"/healthz": http.StatusOK,
		"/readyz":  http.StatusOK,
		"/metrics": http.StatusOK,
		"/nope":    http.StatusNotFound,
	} {
		resp, _ := e.do(t, http.MethodGet, path, nil)
		assert.Equal(t, want, resp.StatusCode, path)
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodGet, "/healthz", nil)
	assert.Len(t, resp.Header.Get(api.RequestIDHeader), 8)

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(api.RequestIDHeader, "caller-id")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "caller-id", resp.Header.Get(api.RequestIDHeader))
}

func TestRecovery(t *testing.T) {
	t.Parallel()
	h := api.Recovery(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}
