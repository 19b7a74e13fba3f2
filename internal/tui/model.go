package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/envelopezero/engine/internal/cli"
	"github.com/envelopezero/engine/internal/engine"
	"github.com/envelopezero/engine/internal/model"
)

// monthData is everything the browser needs to render one month.
type monthData struct {
	month       model.Month
	projections []model.CategoryProjection
	dashboard   *model.Dashboard
	names       map[string]string
}

type monthLoadedMsg struct {
	data monthData
}

type errMsg struct {
	err error
}

// Model is the month browser: a table of category projections for one month,
// with the dashboard line underneath, navigable a month at a time.
type Model struct {
	ctx         context.Context
	coordinator *engine.Coordinator
	budget      *model.Budget
	month       model.Month
	table       table.Model
	help        help.Model
	keymap      KeyMap
	startMonth  model.Month
	dashboard   *model.Dashboard
	err         error
	width       int
	height      int
	loading     bool
	quitting    bool
}

func newModel(ctx context.Context, coordinator *engine.Coordinator, budget *model.Budget, start model.Month) Model {
	columns := []table.Column{
		{Title: "Category", Width: 28},
		{Title: "Assigned", Width: 12},
		{Title: "Activity", Width: 12},
		{Title: "Available", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true).
		Foreground(cli.PrimaryColor)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("230")).
		Background(cli.PrimaryColor).
		Bold(false)
	t.SetStyles(styles)

	return Model{
		ctx:         ctx,
		coordinator: coordinator,
		budget:      budget,
		month:       start,
		startMonth:  start,
		table:       t,
		help:        help.New(),
		keymap:      DefaultKeyMap(),
		loading:     true,
	}
}

// Init kicks off the first load.
func (m Model) Init() tea.Cmd {
	return m.loadMonth(m.month)
}

// loadMonth fetches projections, the dashboard, and category names for one
// month off the Update loop.
func (m Model) loadMonth(month model.Month) tea.Cmd {
	ctx := m.ctx
	coordinator := m.coordinator
	budget := m.budget
	return func() tea.Msg {
		projections, err := coordinator.MonthProjections(ctx, budget.ID, month)
		if err != nil {
			return errMsg{err: err}
		}
		dashboard, err := coordinator.Dashboard(ctx, budget.ID, month)
		if err != nil {
			return errMsg{err: err}
		}
		categories, err := coordinator.Storage().ListCategories(ctx, budget.ID)
		if err != nil {
			return errMsg{err: err}
		}
		names := make(map[string]string, len(categories))
		for _, cat := range categories {
			names[cat.ID] = cat.Name
		}
		return monthLoadedMsg{data: monthData{
			month:       month,
			projections: projections,
			dashboard:   dashboard,
			names:       names,
		}}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if msg.Height > 10 {
			m.table.SetHeight(msg.Height - 8)
		}
		return m, nil

	case monthLoadedMsg:
		m.loading = false
		m.err = nil
		m.month = msg.data.month
		m.dashboard = msg.data.dashboard
		m.table.SetRows(projectionRows(msg.data.projections, msg.data.names))
		return m, nil

	case errMsg:
		m.loading = false
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keymap.PrevMonth):
			m.loading = true
			return m, m.loadMonth(m.month.Prev())
		case key.Matches(msg, m.keymap.NextMonth):
			m.loading = true
			return m, m.loadMonth(m.month.Next())
		case key.Matches(msg, m.keymap.Today):
			m.loading = true
			return m, m.loadMonth(m.startMonth)
		case key.Matches(msg, m.keymap.Refresh):
			m.loading = true
			return m, m.loadMonth(m.month)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the browser.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	title := cli.TitleStyle.Render(fmt.Sprintf("%s — %s", m.budget.Name, m.month))
	if m.loading {
		title += cli.SubtleStyle.Render("  loading…")
	}

	var body string
	switch {
	case m.err != nil:
		body = cli.ErrorStyle.Render(fmt.Sprintf("error: %v", m.err))
	default:
		body = m.table.View()
	}

	var summary string
	if m.dashboard != nil {
		summary = fmt.Sprintf("Inflow %s   Outflow %s   Ready to Assign %s",
			cli.StyleAmount(m.dashboard.Inflow),
			cli.StyleAmount(-m.dashboard.Outflow),
			cli.StyleAmount(m.dashboard.Available),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		body,
		"",
		summary,
		m.help.View(m.keymap),
	)
}

func projectionRows(projections []model.CategoryProjection, names map[string]string) []table.Row {
	rows := make([]table.Row, 0, len(projections))
	for _, proj := range projections {
		name := names[proj.CategoryID]
		if name == "" {
			name = proj.CategoryID
		}
		rows = append(rows, table.Row{
			name,
			cli.FormatCents(proj.Assigned),
			cli.FormatCents(proj.Activity),
			cli.FormatCents(proj.Available),
		})
	}
	return rows
}
