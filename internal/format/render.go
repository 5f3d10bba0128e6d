package format

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/MrWong99/ticketvox/internal/ticket"
)

const cardWidth = 64

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(cardWidth)

	titleStyle = lipgloss.NewStyle().Bold(true)
	metaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	totalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
)

// RenderCard renders a ticket as a bordered terminal card.
func RenderCard(t ticket.Ticket) string {
	meta := fmt.Sprintf("%s · %s · %sh", t.Role, t.Seniority, Hours(t.ExpectedWorkHours))
	if !t.Resolved() {
		meta = warnStyle.Render(meta + " (unknown role)")
	} else {
		meta = metaStyle.Render(meta)
	}
	body := []string{titleStyle.Render(t.Title), meta}
	if t.Description != "" {
		body = append(body, "", t.Description)
	}
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, body...))
}

// RenderSummary renders the cost summary as a bordered block.
func RenderSummary(s ticket.Summary, m *Money) string {
	if m == nil {
		m = defaultMoney
	}
	table := strings.TrimRight(SummaryText(s, m), "\n")
	lines := strings.Split(table, "\n")
	if n := len(lines); n > 0 {
		lines[n-1] = totalStyle.Render(lines[n-1])
	}
	if len(s.Unresolved) > 0 {
		lines = append(lines, "", warnStyle.Render("Not priced: "+strings.Join(s.Unresolved, ", ")))
	}
	return cardStyle.Render(strings.Join(lines, "\n"))
}
