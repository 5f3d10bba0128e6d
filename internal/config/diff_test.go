package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/ticketvox/internal/config"
)

func roles(rs ...config.RoleConfig) []config.RoleConfig { return rs }

var (
	fe = config.RoleConfig{Name: "Frontend engineer", HourlyRate: 5000}
	be = config.RoleConfig{Name: "Backend engineer", HourlyRate: 4000}
	de = config.RoleConfig{Name: "Designer", HourlyRate: 3000}
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Roles:  roles(fe, be, de),
	}
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged || d.RolesChanged || len(d.RestartRequired) != 0 {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_Roles(t *testing.T) {
	t.Parallel()
	cheaperBE := be
	cheaperBE.HourlyRate = 3800
	qa := config.RoleConfig{Name: "QA engineer", HourlyRate: 3500}

	tests := []struct {
		name        string
		old, new    []config.RoleConfig
		wantChanged bool
		wantDiffs   []config.RoleDiff
	}{
		{
			name: "rate changed",
			old:  roles(fe, be), new: roles(fe, cheaperBE),
			wantChanged: true,
			wantDiffs:   []config.RoleDiff{{Name: "Backend engineer", RateChanged: true}},
		},
		{
			name: "added and removed",
			old:  roles(fe, de), new: roles(fe, qa),
			wantChanged: true,
			wantDiffs: []config.RoleDiff{
				{Name: "Designer", Removed: true},
				{Name: "QA engineer", Added: true},
			},
		},
		{
			name: "reordered",
			old:  roles(fe, be), new: roles(be, fe),
			wantChanged: true,
		},
		{
			name: "case only",
			old:  roles(fe), new: roles(config.RoleConfig{Name: "frontend ENGINEER", HourlyRate: 5000}),
			wantChanged: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := config.Diff(&config.Config{Roles: tc.old}, &config.Config{Roles: tc.new})
			if d.RolesChanged != tc.wantChanged {
				t.Errorf("RolesChanged = %v, want %v", d.RolesChanged, tc.wantChanged)
			}
			if !slices.Equal(d.RoleChanges, tc.wantDiffs) {
				t.Errorf("RoleChanges = %+v, want %+v", d.RoleChanges, tc.wantDiffs)
			}
		})
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server:    config.ServerConfig{ListenAddr: ":8080"},
		Providers: config.ProvidersConfig{LLM: config.ProviderEntry{Name: "openai", Model: "gpt-4"}},
		Board:     config.BoardConfig{ListID: "a"},
	}
	new := &config.Config{
		Server:    config.ServerConfig{ListenAddr: ":9090"},
		Providers: config.ProvidersConfig{LLM: config.ProviderEntry{Name: "openai", Model: "gpt-4o"}},
		Board:     config.BoardConfig{ListID: "b"},
	}
	d := config.Diff(old, new)
	want := []string{"server.listen_addr", "providers.llm", "board"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, want)
	}
}
