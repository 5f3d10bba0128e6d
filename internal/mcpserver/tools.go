package mcpserver

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/ticketvox/internal/session"
	"github.com/MrWong99/ticketvox/internal/ticket"
)

// Wire types keep role IDs as strings so the inferred schemas stay simple.

// Ticket is one unit of work as exchanged with MCP clients.
type Ticket struct {
	Title             string  `json:"title" jsonschema:"short ticket title"`
	Description       string  `json:"description,omitempty" jsonschema:"what needs to be done"`
	ExpectedWorkHours float64 `json:"expectedWorkHours" jsonschema:"estimated effort in hours"`
	Seniority         string  `json:"seniority,omitempty" jsonschema:"junior, medior or senior"`
	Role              string  `json:"role" jsonschema:"name of the role doing the work"`
	RoleID            string  `json:"roleId,omitempty" jsonschema:"ID of the configured role, if known"`
}

// Role is a rate table row.
type Role struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	HourlyRate float64 `json:"hourlyRate"`
}

// SummaryEntry is the aggregated effort and cost of one role.
type SummaryEntry struct {
	Role       string  `json:"role"`
	WorkHours  float64 `json:"workHours"`
	HourlyRate float64 `json:"hourlyRate"`
	Cost       float64 `json:"cost"`
	Resolved   bool    `json:"resolved"`
}

// Summary is the per-role cost breakdown with the formatted total. It is
// also the estimate_cost result.
type Summary struct {
	Entries        []SummaryEntry `json:"entries"`
	Total          float64        `json:"total"`
	FormattedTotal string         `json:"formattedTotal"`
	Unresolved     []string       `json:"unresolved,omitempty"`
}

// GenerateInput is the generate_tickets argument.
type GenerateInput struct {
	Transcript string `json:"transcript" jsonschema:"the raw conversation text"`
}

// GenerateOutput is the result of generate_tickets.
type GenerateOutput struct {
	Tickets []Ticket `json:"tickets"`
	Summary Summary  `json:"summary"`

	// Invalid counts tickets whose seniority was not recognised.
	Invalid int `json:"invalid"`
}

// EstimateInput is the estimate_cost argument.
type EstimateInput struct {
	Tickets []Ticket `json:"tickets" jsonschema:"tickets to price"`
}

// ListRolesOutput is the result of list_roles.
type ListRolesOutput struct {
	Roles []Role `json:"roles"`
}

type tools struct {
	est Estimator
}

func (t *tools) generate(ctx context.Context, _ *mcp.CallToolRequest, in GenerateInput) (*mcp.CallToolResult, GenerateOutput, error) {
	if strings.TrimSpace(in.Transcript) == "" {
		return nil, GenerateOutput{}, errors.New("transcript is required")
	}
	p, err := t.est.Estimate(ctx, in.Transcript)
	if err != nil {
		return nil, GenerateOutput{}, err
	}
	out := GenerateOutput{
		Tickets: make([]Ticket, len(p.Tickets)),
		Summary: toSummary(p),
		Invalid: p.Invalid,
	}
	for i, tk := range p.Tickets {
		out.Tickets[i] = Ticket{
			Title:             tk.Title,
			Description:       tk.Description,
			ExpectedWorkHours: tk.ExpectedWorkHours,
			Seniority:         string(tk.Seniority),
			Role:              tk.Role,
			RoleID:            idString(tk.RoleID),
		}
	}
	return nil, out, nil
}

func (t *tools) estimate(_ context.Context, _ *mcp.CallToolRequest, in EstimateInput) (*mcp.CallToolResult, Summary, error) {
	tickets := make([]ticket.Ticket, len(in.Tickets))
	for i, tk := range in.Tickets {
		tickets[i] = ticket.Ticket{
			Title:             tk.Title,
			Description:       tk.Description,
			ExpectedWorkHours: tk.ExpectedWorkHours,
			Seniority:         ticket.Seniority(tk.Seniority).Normalize(),
			Role:              tk.Role,
		}
		if id, err := uuid.Parse(tk.RoleID); err == nil {
			tickets[i].RoleID = id
		}
	}
	return nil, toSummary(t.est.Price(tickets, 0)), nil
}

func (t *tools) listRoles(context.Context, *mcp.CallToolRequest, struct{}) (*mcp.CallToolResult, ListRolesOutput, error) {
	roles := t.est.Roles()
	out := ListRolesOutput{Roles: make([]Role, len(roles))}
	for i, r := range roles {
		out.Roles[i] = Role{ID: r.ID.String(), Name: r.Name, HourlyRate: r.HourlyRate}
	}
	return nil, out, nil
}

func toSummary(p session.Preview) Summary {
	s := Summary{
		Entries:        make([]SummaryEntry, len(p.Summary.Entries)),
		Total:          p.Summary.Total,
		FormattedTotal: p.Total,
		Unresolved:     p.Summary.Unresolved,
	}
	for i, e := range p.Summary.Entries {
		s.Entries[i] = SummaryEntry{
			Role:       e.Role,
			WorkHours:  e.WorkHours,
			HourlyRate: e.HourlyRate,
			Cost:       e.Cost(),
			Resolved:   e.Resolved,
		}
	}
	return s
}
