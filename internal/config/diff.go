package config

import "strings"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RolesChanged is true when the rate table differs in names, rates or
	// order.
	RolesChanged bool
	RoleChanges  []RoleDiff

	// RestartRequired lists changed sections that only take effect after a
	// restart.
	RestartRequired []string
}

// RoleDiff describes one rate-table row that changed.
type RoleDiff struct {
	Name        string
	RateChanged bool
	Added       bool
	Removed     bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oldRoles := make(map[string]RoleConfig, len(old.Roles))
	for _, r := range old.Roles {
		oldRoles[roleKey(r.Name)] = r
	}
	newRoles := make(map[string]RoleConfig, len(new.Roles))
	for _, r := range new.Roles {
		newRoles[roleKey(r.Name)] = r
	}

	for _, r := range old.Roles {
		nr, ok := newRoles[roleKey(r.Name)]
		switch {
		case !ok:
			d.RoleChanges = append(d.RoleChanges, RoleDiff{Name: r.Name, Removed: true})
		case nr.HourlyRate != r.HourlyRate:
			d.RoleChanges = append(d.RoleChanges, RoleDiff{Name: nr.Name, RateChanged: true})
		}
	}
	for _, r := range new.Roles {
		if _, ok := oldRoles[roleKey(r.Name)]; !ok {
			d.RoleChanges = append(d.RoleChanges, RoleDiff{Name: r.Name, Added: true})
		}
	}
	d.RolesChanged = len(d.RoleChanges) > 0 || !sameOrder(old.Roles, new.Roles)

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !sameProvider(old.Providers.LLM, new.Providers.LLM) {
		d.RestartRequired = append(d.RestartRequired, "providers.llm")
	}
	if !sameProvider(old.Providers.STT, new.Providers.STT) {
		d.RestartRequired = append(d.RestartRequired, "providers.stt")
	}
	if old.Board != new.Board {
		d.RestartRequired = append(d.RestartRequired, "board")
	}
	if old.Pricing != new.Pricing {
		d.RestartRequired = append(d.RestartRequired, "pricing")
	}

	return d
}

func roleKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sameOrder(a, b []RoleConfig) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}

// sameProvider ignores Options, which may hold non-comparable values.
func sameProvider(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL &&
		a.Model == b.Model && a.Language == b.Language
}
