// Package ui provides optional terminal interfaces.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nibzard/taskman/internal/config"
	"github.com/nibzard/taskman/internal/logging"
	"github.com/nibzard/taskman/internal/registry"
)

// RunTUI starts an interactive viewer over the registry file. The registry
// is reloaded on every refresh so changes made by other taskman invocations
// show up without restarting.
func RunTUI(ctx context.Context, cfg *config.Config) error {
	if !IsTTY(os.Stdout) {
		return fmt.Errorf("tui requires a TTY")
	}
	model := newTUIModel(cfg)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

type tuiModel struct {
	cfg          *config.Config
	loadErr      error
	data         *tuiData
	tickInterval time.Duration
	filter       registry.Status
	showHelp     bool
}

type tuiData struct {
	report   registry.Report
	users    int
	upcoming []taskRow
	overdue  []taskRow
	done     []taskRow
}

// taskRow is a task joined with its owner's name for display.
type taskRow struct {
	task  *registry.Task
	owner string
}

type tickMsg time.Time

func newTUIModel(cfg *config.Config) *tuiModel {
	return &tuiModel{
		cfg:          cfg,
		tickInterval: time.Second,
	}
}

func (m *tuiModel) Init() tea.Cmd {
	m.refresh()
	return tickCmd(m.tickInterval)
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r", "f5":
			m.refresh()
			return m, nil
		case "h", "?":
			m.showHelp = !m.showHelp
			return m, nil
		case "1":
			m.filter = registry.StatusPending
			return m, nil
		case "2":
			m.filter = registry.StatusDone
			return m, nil
		case "0":
			m.filter = ""
			return m, nil
		}
	case tickMsg:
		m.refresh()
		return m, tickCmd(m.tickInterval)
	}

	return m, nil
}

func (m *tuiModel) View() string {
	var b strings.Builder
	writeTitle(&b)

	if m.showHelp {
		writeHelp(&b)
		writeFooter(&b, m.tickInterval)
		return b.String()
	}

	if m.filter != "" {
		b.WriteString(fmt.Sprintf("Filter: %s (0 to clear)\n\n", m.filter))
	}

	if m.loadErr != nil {
		b.WriteString("Error loading registry file:\n")
		b.WriteString("  " + m.loadErr.Error() + "\n\n")
		writeFooter(&b, m.tickInterval)
		return b.String()
	}
	if m.data == nil {
		b.WriteString("Loading...\n\n")
		writeFooter(&b, m.tickInterval)
		return b.String()
	}

	writeOverview(&b, m.data)
	if m.filter != registry.StatusDone {
		writeOverdue(&b, m.data)
		writeUpcoming(&b, m.data)
	}
	if m.filter != registry.StatusPending {
		writeDone(&b, m.data)
	}
	writeConfig(&b, m.cfg)
	writeFooter(&b, m.tickInterval)
	return b.String()
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *tuiModel) refresh() {
	// Registry log output would corrupt the alternate screen, so load
	// with a discarded logger.
	reg := registry.New(registry.WithLogger(logging.NewWithWriter(io.Discard, logging.DefaultOptions())))
	if err := reg.LoadFromFile(m.cfg.RegistryFile); err != nil {
		m.loadErr = err
		m.data = nil
		return
	}
	m.loadErr = nil
	m.data = buildTUIData(reg, time.Now())
}

func buildTUIData(reg *registry.Registry, now time.Time) *tuiData {
	data := &tuiData{
		report: reg.Report(),
		users:  len(reg.Users()),
	}

	ownerName := func(id int) string {
		if u, ok := reg.User(id); ok {
			return u.Name
		}
		return fmt.Sprintf("user %d", id)
	}

	for _, task := range reg.ListTasks("pending") {
		row := taskRow{task: task, owner: ownerName(task.OwnerID)}
		if task.Overdue(now) {
			data.overdue = append(data.overdue, row)
		} else {
			data.upcoming = append(data.upcoming, row)
		}
	}

	// Earliest due date first, tasks without one last.
	sort.SliceStable(data.upcoming, func(i, j int) bool {
		left := data.upcoming[i].task.DueDate
		right := data.upcoming[j].task.DueDate
		if left == nil {
			return false
		}
		if right == nil {
			return true
		}
		return left.Before(*right)
	})

	for _, task := range reg.ListTasks("done") {
		data.done = append(data.done, taskRow{task: task, owner: ownerName(task.OwnerID)})
		if len(data.done) >= 5 {
			break
		}
	}

	return data
}

func writeTitle(b *strings.Builder) {
	title := "Taskman TUI"
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")
}

func writeOverview(b *strings.Builder, data *tuiData) {
	b.WriteString("Overview\n\n")
	b.WriteString(fmt.Sprintf("  Users: %d  Tasks: %d  Pending: %d  Done: %d\n\n",
		data.users,
		data.report.Total,
		data.report.Pending,
		data.report.Done,
	))
}

func writeOverdue(b *strings.Builder, data *tuiData) {
	if len(data.overdue) == 0 {
		return
	}
	b.WriteString("Overdue\n\n")
	for _, row := range data.overdue {
		b.WriteString(formatTask(row))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeUpcoming(b *strings.Builder, data *tuiData) {
	b.WriteString("Pending\n\n")
	if len(data.upcoming) == 0 {
		b.WriteString("  No pending tasks.\n\n")
		return
	}
	for _, row := range data.upcoming {
		b.WriteString(formatTask(row))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeDone(b *strings.Builder, data *tuiData) {
	b.WriteString("Recently Completed\n\n")
	if len(data.done) == 0 {
		b.WriteString("  No completed tasks yet.\n\n")
		return
	}
	for _, row := range data.done {
		b.WriteString(formatTask(row))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeConfig(b *strings.Builder, cfg *config.Config) {
	b.WriteString("Configuration\n\n")
	b.WriteString(fmt.Sprintf("  Registry File: %s\n\n", cfg.RegistryFile))
}

func writeHelp(b *strings.Builder) {
	b.WriteString("Keyboard Shortcuts\n\n")
	b.WriteString("  q, ctrl+c    Quit\n")
	b.WriteString("  r, F5        Refresh data\n")
	b.WriteString("  h, ?         Toggle this help screen\n")
	b.WriteString("  1            Show pending tasks only\n")
	b.WriteString("  2            Show completed tasks only\n")
	b.WriteString("  0            Clear filter\n\n")
}

func writeFooter(b *strings.Builder, interval time.Duration) {
	b.WriteString(fmt.Sprintf("Press h for help | q to quit | Refreshing every %s\n", interval))
}

func formatTask(row taskRow) string {
	t := row.task
	marker := " "
	if t.Done() {
		marker = "x"
	}
	line := fmt.Sprintf("  [%s] #%d (%s) %s - %s", marker, t.ID, t.Priority, t.Title, row.owner)
	if t.DueDate != nil {
		line += " (due " + t.DueDate.Format("2006-01-02") + ")"
	}
	return line
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, _ := f.Stat()
	return (info.Mode() & os.ModeCharDevice) != 0
}
