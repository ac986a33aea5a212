// Package tui implements the live trip view for td watch.
//
// The model is read-mostly: it renders the synchronizers' mirrors and
// repaints on change callbacks and a once-per-second countdown tick.
// The only mutation it performs is switching the active route.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tripdeck/tripdeck/internal/countdown"
	"github.com/tripdeck/tripdeck/internal/syncer"
	"github.com/tripdeck/tripdeck/internal/ui"
)

// RefreshMsg asks the view to repaint from the synchronizer mirrors.
// Send it from the synchronizers' change callback.
type RefreshMsg struct{}

// ToastMsg shows a transient notification.
type ToastMsg struct {
	Message string
}

// tickMsg drives the countdown once per second.
type tickMsg time.Time

// toastExpiredMsg clears a toast, identified by sequence number so a
// newer toast is not wiped by an older timer.
type toastExpiredMsg struct {
	seq int
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	sectionStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	countdownStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	toastStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11")).Padding(0, 1)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Model is the root Bubble Tea model for td watch.
type Model struct {
	details   *syncer.Details
	checklist *syncer.Checklist
	budget    *syncer.Budget
	routes    *syncer.Routes

	spinner  spinner.Model
	width    int
	toast    string
	toastSeq int
}

// New creates the watch model over started synchronizers.
func New(details *syncer.Details, checklist *syncer.Checklist, budget *syncer.Budget, routes *syncer.Routes) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		details:   details,
		checklist: checklist,
		budget:    budget,
		routes:    routes,
		spinner:   sp,
	}
}

// Init starts the countdown tick and the loading spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.spinner.Tick)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "left", "h":
			m.cycleRoute(-1)
			return m, nil
		case "right", "l":
			m.cycleRoute(1)
			return m, nil
		}
		return m, nil

	case tickMsg:
		return m, tick()

	case RefreshMsg:
		return m, nil

	case ToastMsg:
		m.toast = msg.Message
		m.toastSeq++
		seq := m.toastSeq
		return m, tea.Tick(syncer.ToastDuration, func(time.Time) tea.Msg {
			return toastExpiredMsg{seq: seq}
		})

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// cycleRoute moves the active selection forward or back in list order.
func (m *Model) cycleRoute(step int) {
	routes := m.routes.RoutesList()
	if len(routes) < 2 {
		return
	}
	active := m.routes.ActiveRouteID()
	idx := 0
	for i, rt := range routes {
		if rt.ID == active {
			idx = i
			break
		}
	}
	next := (idx + step + len(routes)) % len(routes)
	_ = m.routes.Select(context.Background(), routes[next].ID)
}

// View renders the full trip state.
func (m Model) View() string {
	trip, loaded := m.details.Snapshot()
	if !loaded {
		return fmt.Sprintf("\n  %s Connecting...\n", m.spinner.View())
	}

	var b strings.Builder

	b.WriteString("  " + titleStyle.Render(trip.Name) + "\n\n")
	b.WriteString(m.countdownView(trip.StartDate))
	b.WriteString(m.checklistView())
	b.WriteString(m.budgetView(trip.TotalBudget, trip.Participants))
	b.WriteString(m.routesView())

	if m.toast != "" {
		b.WriteString("\n  " + toastStyle.Render(m.toast) + "\n")
	}
	b.WriteString("\n  " + helpStyle.Render("←/→ switch route · q quit") + "\n")
	return b.String()
}

func (m Model) countdownView(startDate string) string {
	start, err := countdown.ParseStart(startDate)
	if err != nil {
		return "  " + ui.Warn("Start date unreadable: "+startDate) + "\n\n"
	}

	left, started := countdown.Until(start, time.Now())
	if started {
		return "  " + countdownStyle.Render("The trip has started! Have fun!") + "\n\n"
	}
	return fmt.Sprintf("  %s\n  %s\n\n",
		sectionStyle.Render("Countdown"),
		countdownStyle.Render(fmt.Sprintf("%dd %02dh %02dm %02ds",
			left.Days, left.Hours, left.Minutes, left.Seconds)))
}

func (m Model) checklistView() string {
	var b strings.Builder
	items := m.checklist.Items()

	b.WriteString(fmt.Sprintf("  %s  %s\n",
		sectionStyle.Render("Checklist"),
		ui.ProgressBar(int(math.Round(m.checklist.Progress())), 20)))
	if len(items) == 0 {
		b.WriteString("  " + ui.Dim("No tasks yet.") + "\n")
	}
	for _, item := range items {
		b.WriteString(fmt.Sprintf("  %s %s\n", ui.Checkbox(item.Completed), item.Text))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) budgetView(totalBudget float64, participants int) string {
	var b strings.Builder
	total := m.budget.TotalSpent()

	b.WriteString("  " + sectionStyle.Render("Budget") + "\n")
	b.WriteString(fmt.Sprintf("  Spent $%.2f of $%.2f · $%.2f per person\n",
		total, totalBudget, m.budget.SpentPerPerson(participants)))
	for _, e := range m.budget.Expenses() {
		b.WriteString(fmt.Sprintf("  · %s  $%.2f %s\n",
			e.Description, e.Amount, ui.Dim("("+e.Category+")")))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) routesView() string {
	var b strings.Builder
	active := m.routes.ActiveRouteID()

	b.WriteString("  " + sectionStyle.Render("Routes") + "\n")
	for _, rt := range m.routes.RoutesList() {
		marker := "  "
		name := rt.Name
		if rt.ID == active {
			marker = ui.Accent("▸ ")
			name = ui.Accent(name)
		}
		b.WriteString("  " + marker + name + "\n")
	}

	locations := m.routes.Locations()
	if len(locations) > 0 {
		b.WriteString("\n  " + sectionStyle.Render("Stops") + "\n")
		for _, loc := range locations {
			b.WriteString(fmt.Sprintf("  %d. %s %s\n",
				loc.Order, loc.Name, ui.Dim("("+loc.Type+")")))
		}
	}
	return b.String()
}
