package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nibzard/todoapp-go/internal/tasks"
	"github.com/nibzard/todoapp-go/internal/utils"
)

const (
	refreshInterval = 2 * time.Second
	maxDescription  = 60
)

// RunTUI starts the task browser for an authenticated user.
func RunTUI(ctx context.Context, repo *tasks.Repository, userID int64, username string) error {
	if !IsTTY(os.Stdout) {
		return fmt.Errorf("tui requires a TTY")
	}
	model := newTUIModel(ctx, repo, userID, username)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

// tuiModel browses one user's tasks. Every action targets the task id under
// the cursor, so a refresh that shifts positions never retargets an action.
type tuiModel struct {
	ctx      context.Context
	repo     *tasks.Repository
	userID   int64
	username string

	list    []tasks.Task
	cursor  int
	loadErr error
	status  string

	adding   bool
	input    []rune
	showHelp bool

	tickInterval time.Duration
}

type tickMsg time.Time

var (
	tuiTitleStyle  = lipgloss.NewStyle().Bold(true)
	tuiCursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	tuiDoneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Strikethrough(true)
	tuiErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func newTUIModel(ctx context.Context, repo *tasks.Repository, userID int64, username string) *tuiModel {
	return &tuiModel{
		ctx:          ctx,
		repo:         repo,
		userID:       userID,
		username:     username,
		tickInterval: refreshInterval,
	}
}

func (m *tuiModel) Init() tea.Cmd {
	m.refresh()
	return tickCmd(m.tickInterval)
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.adding {
			return m.updateAdding(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r", "f5":
			m.refresh()
			m.status = "Refreshed."
		case "h", "?":
			m.showHelp = !m.showHelp
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.list)-1 {
				m.cursor++
			}
		case "c", "enter":
			m.completeSelected()
		case "d", "delete":
			m.deleteSelected()
		case "a":
			m.adding = true
			m.input = m.input[:0]
			m.status = ""
		}
	case tickMsg:
		if !m.adding {
			m.refresh()
		}
		return m, tickCmd(m.tickInterval)
	}
	return m, nil
}

func (m *tuiModel) updateAdding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.adding = false
		m.status = "Add cancelled."
	case tea.KeyEnter:
		description := strings.TrimSpace(string(m.input))
		if description == "" {
			m.status = "Description cannot be empty."
			return m, nil
		}
		m.adding = false
		if _, err := m.repo.Add(m.ctx, m.userID, description); err != nil {
			m.status = "Could not add task: " + err.Error()
			return m, nil
		}
		m.refresh()
		m.cursor = len(m.list) - 1
		m.status = "Task added."
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
	}
	return m, nil
}

func (m *tuiModel) selected() (tasks.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.list) {
		return tasks.Task{}, false
	}
	return m.list[m.cursor], true
}

func (m *tuiModel) completeSelected() {
	t, ok := m.selected()
	if !ok {
		return
	}
	done, err := m.repo.Complete(m.ctx, m.userID, t.ID)
	switch {
	case err != nil:
		m.status = "Could not complete task: " + err.Error()
	case !done:
		m.status = "Task no longer exists."
	default:
		m.status = "Task marked as completed."
	}
	m.refresh()
}

func (m *tuiModel) deleteSelected() {
	t, ok := m.selected()
	if !ok {
		return
	}
	deleted, err := m.repo.Delete(m.ctx, m.userID, t.ID)
	switch {
	case err != nil:
		m.status = "Could not delete task: " + err.Error()
	case !deleted:
		m.status = "Task no longer exists."
	default:
		m.status = "Task deleted."
	}
	m.refresh()
}

// refresh reloads the list and keeps the cursor on the same task id when it
// still exists.
func (m *tuiModel) refresh() {
	var selectedID int64
	if t, ok := m.selected(); ok {
		selectedID = t.ID
	}

	list, err := m.repo.List(m.ctx, m.userID)
	if err != nil {
		m.loadErr = err
		return
	}
	m.loadErr = nil
	m.list = list

	for i, t := range list {
		if t.ID == selectedID {
			m.cursor = i
			return
		}
	}
	if m.cursor >= len(list) {
		m.cursor = len(list) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *tuiModel) View() string {
	var b strings.Builder
	writeTitle(&b, m.username)

	if m.showHelp {
		writeHelp(&b)
		writeFooter(&b, m.tickInterval)
		return b.String()
	}

	if m.loadErr != nil {
		b.WriteString(tuiErrorStyle.Render("Error loading tasks:") + "\n")
		b.WriteString("  " + m.loadErr.Error() + "\n\n")
		writeFooter(&b, m.tickInterval)
		return b.String()
	}

	writeOverview(&b, m.list)
	writeTasks(&b, m.list, m.cursor)

	if m.adding {
		b.WriteString("New task: " + string(m.input) + "_\n")
		b.WriteString("  enter to save, esc to cancel\n\n")
	}
	if m.status != "" {
		b.WriteString(m.status + "\n\n")
	}
	writeFooter(&b, m.tickInterval)
	return b.String()
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func writeTitle(b *strings.Builder, username string) {
	title := "Tasks"
	if username != "" {
		title += " for " + username
	}
	b.WriteString(tuiTitleStyle.Render(title) + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")
}

func writeOverview(b *strings.Builder, list []tasks.Task) {
	done := 0
	for _, t := range list {
		if t.Completed {
			done++
		}
	}
	b.WriteString(fmt.Sprintf("  Open: %d  Done: %d\n\n", len(list)-done, done))
}

func writeTasks(b *strings.Builder, list []tasks.Task, cursor int) {
	if len(list) == 0 {
		b.WriteString("  You have no tasks. Press a to add one.\n\n")
		return
	}
	for i, t := range list {
		b.WriteString(formatTask(i+1, t, i == cursor))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeHelp(b *strings.Builder) {
	b.WriteString("Keyboard Shortcuts\n\n")
	b.WriteString("  q, ctrl+c    Quit\n")
	b.WriteString("  r, F5        Refresh tasks\n")
	b.WriteString("  h, ?         Toggle this help screen\n")
	b.WriteString("  up, k        Move up\n")
	b.WriteString("  down, j      Move down\n")
	b.WriteString("  c, enter     Mark selected task as completed\n")
	b.WriteString("  d            Delete selected task\n")
	b.WriteString("  a            Add a task\n\n")
}

func writeFooter(b *strings.Builder, interval time.Duration) {
	b.WriteString(fmt.Sprintf("Press h for help | q to quit | Refreshing every %s\n", interval))
}

func formatTask(n int, t tasks.Task, selected bool) string {
	pointer := " "
	if selected {
		pointer = tuiCursorStyle.Render(">")
	}
	mark := " "
	description := utils.Truncate(t.Description, maxDescription)
	if t.Completed {
		mark = "✓"
		description = tuiDoneStyle.Render(description)
	}
	return fmt.Sprintf("%s %d. [%s] %s", pointer, n, mark, description)
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
