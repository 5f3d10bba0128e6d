package format

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/MrWong99/ticketvox/internal/ticket"
)

// BoardDescription renders the card description sent to the board.
func BoardDescription(t ticket.Ticket) string {
	return fmt.Sprintf("**Role: ** %s\n**Expected work hours:** %s\n**Seniority:** %s\n\n**Description:** %s",
		t.Role, Hours(t.ExpectedWorkHours), t.Seniority, t.Description)
}

// TicketText renders a ticket as a readable block.
func TicketText(t ticket.Ticket) string {
	var sb strings.Builder
	sb.WriteString(t.Title)
	sb.WriteByte('\n')
	fmt.Fprintf(&sb, "Role: %s | Seniority: %s | Hours: %s\n", t.Role, t.Seniority, Hours(t.ExpectedWorkHours))
	if t.Description != "" {
		sb.WriteString(t.Description)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// SummaryText renders the summary as an aligned table with a total line,
// formatting money with m (the default forint formatter when nil).
func SummaryText(s ticket.Summary, m *Money) string {
	var sb strings.Builder
	WriteSummary(&sb, s, m)
	return sb.String()
}

// WriteSummary writes the [SummaryText] table to w.
func WriteSummary(w io.Writer, s ticket.Summary, m *Money) {
	if m == nil {
		m = defaultMoney
	}
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tHOURS\tRATE\tCOST")
	for _, e := range s.Entries {
		rate, cost := m.Format(e.HourlyRate), m.Format(e.Cost())
		if !e.Resolved {
			rate, cost = "unknown role", "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Role, Hours(e.WorkHours), rate, cost)
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t%s\n", m.Format(s.Total))
	_ = tw.Flush()
}
