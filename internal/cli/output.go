package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/envelopezero/engine/internal/model"
)

// FormatCents renders an integer cent amount as a decimal string.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// StyleAmount renders a cent amount, colored when negative.
func StyleAmount(cents int64) string {
	s := FormatCents(cents)
	if cents < 0 {
		return NegativeStyle.Render(s)
	}
	return s
}

// RenderTable renders rows under a styled header with column alignment.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString(HeaderStyle.Render(pad(h, widths[i])))
		if i < len(headers)-1 {
			b.WriteString("  ")
		}
	}
	b.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			b.WriteString(pad(cell, widths[i]))
			if i < len(row)-1 {
				b.WriteString("  ")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// pad right-pads s to width, measuring with lipgloss so ANSI styling
// does not count toward the visible width.
func pad(s string, width int) string {
	gap := width - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}

// RenderProjections renders a month's per-category projections.
func RenderProjections(names map[string]string, projections []model.CategoryProjection) string {
	rows := make([][]string, 0, len(projections))
	for _, p := range projections {
		name := names[p.CategoryID]
		if name == "" {
			name = p.CategoryID
		}
		rows = append(rows, []string{
			name,
			StyleAmount(p.Assigned),
			StyleAmount(p.Activity),
			StyleAmount(p.Available),
		})
	}
	return RenderTable([]string{"CATEGORY", "ASSIGNED", "ACTIVITY", "AVAILABLE"}, rows)
}

// RenderDashboard renders the monthly dashboard summary box.
func RenderDashboard(budget *model.Budget, dash *model.Dashboard) string {
	lines := []string{
		TitleStyle.Render(fmt.Sprintf("%s — %s", budget.Name, dash.Month.String())),
		fmt.Sprintf("Inflow           %s", StyleAmount(dash.Inflow)),
		fmt.Sprintf("Outflow          %s", StyleAmount(dash.Outflow)),
		fmt.Sprintf("Ready to assign  %s", StyleAmount(dash.Available)),
	}
	return BoxStyle.Render(strings.Join(lines, "\n"))
}
