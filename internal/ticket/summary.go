package ticket

import "github.com/google/uuid"

// SummaryEntry is the aggregated work for one role across a ticket batch.
type SummaryEntry struct {
	RoleID     uuid.UUID `json:"roleId,omitempty"`
	Role       string    `json:"role"`
	WorkHours  float64   `json:"workHours"`
	HourlyRate float64   `json:"hourlyRate"`

	// Resolved is false when no configured role matched. Such entries carry
	// a zero rate and are left out of the total.
	Resolved bool `json:"resolved"`
}

// Cost returns WorkHours × HourlyRate, or 0 for unresolved entries.
func (e SummaryEntry) Cost() float64 {
	if !e.Resolved {
		return 0
	}
	return e.WorkHours * e.HourlyRate
}

// Summary is the cost breakdown of one ticket batch.
type Summary struct {
	Entries []SummaryEntry `json:"entries"`
	Total   float64        `json:"total"`

	// Unresolved names the role strings that matched no configured role.
	Unresolved []string `json:"unresolved,omitempty"`
}

// Empty reports whether the summary has no entries.
func (s Summary) Empty() bool { return len(s.Entries) == 0 }

// Aggregate groups tickets by role in first-seen order. The first ticket of
// a role fixes the entry's hourly rate from roles at that moment; later
// tickets of the same role only add hours.
//
// A ticket is keyed by its RoleID when that role still exists, otherwise by
// looking its name up in roles. Tickets whose role cannot be found are
// grouped by name as unresolved entries.
func Aggregate(tickets []Ticket, roles *RoleSet) Summary {
	var list []Role
	if roles != nil {
		list = roles.List()
	}

	type key struct {
		id   uuid.UUID
		name string
	}
	index := make(map[key]int, len(tickets))
	var sum Summary

	for _, t := range tickets {
		role, ok := resolve(t, list)
		k := key{id: role.ID}
		if !ok {
			k = key{name: normName(t.Role)}
		}

		if i, seen := index[k]; seen {
			sum.Entries[i].WorkHours += t.ExpectedWorkHours
			continue
		}

		entry := SummaryEntry{WorkHours: t.ExpectedWorkHours}
		if ok {
			entry.RoleID = role.ID
			entry.Role = role.Name
			entry.HourlyRate = role.HourlyRate
			entry.Resolved = true
		} else {
			entry.Role = t.Role
			sum.Unresolved = append(sum.Unresolved, t.Role)
		}
		index[k] = len(sum.Entries)
		sum.Entries = append(sum.Entries, entry)
	}

	for _, e := range sum.Entries {
		sum.Total += e.Cost()
	}
	return sum
}

func resolve(t Ticket, roles []Role) (Role, bool) {
	if t.RoleID != uuid.Nil {
		for _, r := range roles {
			if r.ID == t.RoleID {
				return r, true
			}
		}
	}
	return lookup(roles, t.Role)
}
