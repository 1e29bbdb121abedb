// Package ui provides the interactive menu and the terminal task browser.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/nibzard/todoapp-go/internal/auth"
	"github.com/nibzard/todoapp-go/internal/logging"
	"github.com/nibzard/todoapp-go/internal/tasks"
	"github.com/nibzard/todoapp-go/internal/todo"
)

type menuState int

const (
	stateMain menuState = iota
	stateUser
	stateExit
)

type menuStyles struct {
	title   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	done    lipgloss.Style
}

func newMenuStyles(out io.Writer) menuStyles {
	r := lipgloss.NewRenderer(out)
	return menuStyles{
		title:   r.NewStyle().Bold(true),
		success: r.NewStyle().Foreground(lipgloss.Color("2")),
		failure: r.NewStyle().Foreground(lipgloss.Color("1")),
		done:    r.NewStyle().Foreground(lipgloss.Color("2")),
	}
}

// Menu is the numbered-menu front end. It moves between the anonymous main
// menu and the per-user menu until the user exits or input runs out.
type Menu struct {
	auth   *auth.Manager
	tasks  *tasks.Repository
	bridge *todo.Bridge
	p      *Prompter
	logger *log.Logger
	styles menuStyles

	state    menuState
	userID   int64
	username string
	session  *log.Logger
}

// NewMenu builds a menu over the given services. A nil logger discards output.
func NewMenu(a *auth.Manager, repo *tasks.Repository, bridge *todo.Bridge, p *Prompter, logger *log.Logger) *Menu {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Menu{
		auth:    a,
		tasks:   repo,
		bridge:  bridge,
		p:       p,
		logger:  logger,
		styles:  newMenuStyles(p.Out()),
		state:   stateMain,
		session: logger,
	}
}

// Run drives the menu until the user exits. Exhausted input ends the session
// cleanly; a cancelled context is returned as an error.
func (m *Menu) Run(ctx context.Context) error {
	m.p.bind(ctx)
	for m.state != stateExit {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch m.state {
		case stateMain:
			err = m.mainStep(ctx)
		case stateUser:
			err = m.userStep(ctx)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (m *Menu) mainStep(ctx context.Context) error {
	m.p.Clear()
	m.p.Println(m.styles.title.Render("=== ToDo App ==="))
	m.p.Println("1. Register")
	m.p.Println("2. Login")
	m.p.Println("3. Exit")
	choice, err := m.p.Line("Choose an option: ")
	if err != nil {
		return err
	}

	switch choice {
	case "1":
		m.p.Clear()
		if err := m.register(ctx); err != nil {
			return err
		}
		return m.p.Pause()
	case "2":
		m.p.Clear()
		ok, err := m.login(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return m.p.Pause()
		}
		return nil
	case "3":
		m.p.Println("Goodbye!")
		m.state = stateExit
		return nil
	default:
		m.p.Println("Unknown option. Please try again.")
		return m.p.Pause()
	}
}

func (m *Menu) userStep(ctx context.Context) error {
	m.p.Clear()
	header := m.styles.title.Render("=== User Menu ===")
	if n, err := m.tasks.Count(ctx, m.userID); err == nil {
		header += fmt.Sprintf(" (%s, %d tasks)", m.username, n)
	} else {
		header += " (" + m.username + ")"
	}
	m.p.Println(header)
	m.p.Println("1. Add task")
	m.p.Println("2. View tasks")
	m.p.Println("3. Edit task")
	m.p.Println("4. Delete task")
	m.p.Println("5. Mark task as completed")
	m.p.Println("6. Export tasks to file")
	m.p.Println("7. Import tasks from file")
	m.p.Println("8. Log out")
	choice, err := m.p.Line("Choose an option: ")
	if err != nil {
		return err
	}

	var action func(context.Context) error
	switch choice {
	case "1":
		action = m.addTask
	case "2":
		action = m.viewTasks
	case "3":
		action = m.editTask
	case "4":
		action = m.deleteTask
	case "5":
		action = m.completeTask
	case "6":
		action = m.exportTasks
	case "7":
		action = m.importTasks
	case "8":
		m.p.Println("Logged out.")
		m.session.Info("logged out", "user_id", m.userID)
		m.userID, m.username = 0, ""
		m.session = m.logger
		m.state = stateMain
		return nil
	default:
		m.p.Println("Unknown option. Please try again.")
		return m.p.Pause()
	}

	if err := action(ctx); err != nil {
		return err
	}
	return m.p.Pause()
}

func (m *Menu) register(ctx context.Context) error {
	username, err := m.p.Line("Username: ")
	if err != nil {
		return err
	}
	if username == "" {
		m.failf("Username cannot be empty.")
		return nil
	}
	exists, err := m.auth.Exists(ctx, username)
	if err != nil {
		m.operationFailed("register", err)
		return nil
	}
	if exists {
		m.failf("Error: username '%s' already exists. Please choose another.", username)
		return nil
	}

	password, err := m.p.Password("Password: ")
	if err != nil {
		return err
	}
	if _, err := m.auth.Register(ctx, username, password); err != nil {
		switch {
		case errors.Is(err, auth.ErrEmptyPassword):
			m.failf("Password cannot be empty.")
		case errors.Is(err, auth.ErrDuplicateUsername):
			m.failf("Error: username '%s' already exists. Please choose another.", username)
		default:
			m.operationFailed("register", err)
		}
		return nil
	}
	m.succeed("Registration successful!")
	return nil
}

func (m *Menu) login(ctx context.Context) (bool, error) {
	id, ok, err := Login(ctx, m.p, m.auth)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, err
		}
		m.operationFailed("log in", err)
		return false, nil
	}
	if !ok {
		m.failf("Invalid username or password.")
		return false, nil
	}

	m.userID = id
	m.username, err = m.auth.Username(ctx, id)
	if err != nil {
		m.logger.Warn("username lookup failed", "user_id", id, "err", err)
	}
	m.session, _ = logging.WithSession(m.logger)
	m.session.Info("logged in", "user_id", id)
	m.succeed("Login successful!")
	m.state = stateUser
	return true, nil
}

// Login prompts for credentials and authenticates them. It reports false
// for any unknown username or wrong password.
func Login(ctx context.Context, p *Prompter, a *auth.Manager) (int64, bool, error) {
	p.bind(ctx)
	username, err := p.Line("Username: ")
	if err != nil {
		return 0, false, err
	}
	password, err := p.Password("Password: ")
	if err != nil {
		return 0, false, err
	}
	return a.Authenticate(ctx, username, password)
}

func (m *Menu) addTask(ctx context.Context) error {
	description, err := m.p.Line("Task description: ")
	if err != nil {
		return err
	}
	if description == "" {
		m.failf("Description cannot be empty.")
		return nil
	}
	if _, err := m.tasks.Add(ctx, m.userID, description); err != nil {
		m.operationFailed("add task", err)
		return nil
	}
	m.succeed("Task added.")
	return nil
}

func (m *Menu) viewTasks(ctx context.Context) error {
	list, err := m.tasks.List(ctx, m.userID)
	if err != nil {
		m.operationFailed("view tasks", err)
		return nil
	}
	if len(list) == 0 {
		m.p.Println()
		m.p.Println("You have no tasks.")
		m.p.Println()
		return nil
	}
	m.p.Println()
	m.p.Println("Your tasks:")
	for i, t := range list {
		m.p.Printf("%d. [%s] %s\n", i+1, m.marker(t.Completed), t.Description)
	}
	m.p.Println()
	return nil
}

func (m *Menu) marker(completed bool) string {
	if completed {
		return m.styles.done.Render("✓")
	}
	return " "
}

// chooseTask lists the tasks, asks for a display number and resolves it.
// It returns false when the input is invalid or names no task; the reason
// has already been printed.
func (m *Menu) chooseTask(ctx context.Context, verb string) (int64, bool, error) {
	if err := m.viewTasks(ctx); err != nil {
		return 0, false, err
	}
	raw, err := m.p.Line(fmt.Sprintf("Task number to %s: ", verb))
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		m.failf("Invalid task number.")
		return 0, false, nil
	}
	id, ok, err := m.tasks.ResolvePosition(ctx, m.userID, n)
	if err != nil {
		m.operationFailed("look up task", err)
		return 0, false, nil
	}
	if !ok {
		m.failf("No task with that number.")
		return 0, false, nil
	}
	return id, true, nil
}

func (m *Menu) editTask(ctx context.Context) error {
	id, ok, err := m.chooseTask(ctx, "edit")
	if err != nil || !ok {
		return err
	}
	description, err := m.p.Line("New description: ")
	if err != nil {
		return err
	}
	if description == "" {
		m.failf("Description cannot be empty.")
		return nil
	}
	updated, err := m.tasks.Edit(ctx, m.userID, id, description)
	switch {
	case err != nil:
		m.operationFailed("edit task", err)
	case updated:
		m.succeed("Task updated.")
	default:
		m.failf("Could not update the task.")
	}
	return nil
}

func (m *Menu) deleteTask(ctx context.Context) error {
	id, ok, err := m.chooseTask(ctx, "delete")
	if err != nil || !ok {
		return err
	}
	deleted, err := m.tasks.Delete(ctx, m.userID, id)
	switch {
	case err != nil:
		m.operationFailed("delete task", err)
	case deleted:
		m.succeed("Task deleted.")
	default:
		m.failf("Task not found or not yours.")
	}
	return nil
}

func (m *Menu) completeTask(ctx context.Context) error {
	id, ok, err := m.chooseTask(ctx, "mark as completed")
	if err != nil || !ok {
		return err
	}
	completed, err := m.tasks.Complete(ctx, m.userID, id)
	switch {
	case err != nil:
		m.operationFailed("complete task", err)
	case completed:
		m.succeed("Task marked as completed.")
	default:
		m.failf("Task not found or not yours.")
	}
	return nil
}

func (m *Menu) exportTasks(ctx context.Context) error {
	filename, err := m.p.Line("File name to save to (e.g. tasks.json): ")
	if err != nil {
		return err
	}
	if filename == "" {
		m.failf("File name cannot be empty.")
		return nil
	}
	doc, err := m.bridge.Export(ctx, m.userID)
	if err != nil {
		m.operationFailed("export tasks", err)
		return nil
	}
	if err := doc.SaveFile(filename); err != nil {
		m.operationFailed("export tasks", err)
		return nil
	}
	m.session.Info("tasks exported", "user_id", m.userID, "count", len(doc), "file", filename)
	m.succeed(fmt.Sprintf("Tasks saved to '%s'.", filename))
	return nil
}

func (m *Menu) importTasks(ctx context.Context) error {
	filename, err := m.p.Line("File name to load from (e.g. tasks.json): ")
	if err != nil {
		return err
	}
	if filename == "" {
		m.failf("File name cannot be empty.")
		return nil
	}
	doc, err := todo.LoadFile(filename)
	if err != nil {
		if errors.Is(err, todo.ErrFileNotFound) {
			m.failf("File '%s' not found.", filename)
			return nil
		}
		m.operationFailed("import tasks", err)
		return nil
	}
	n, err := m.bridge.Import(ctx, m.userID, doc)
	if err != nil {
		m.operationFailed("import tasks", err)
		return nil
	}
	m.succeed(fmt.Sprintf("Loaded %d tasks from '%s'.", n, filename))
	return nil
}

func (m *Menu) succeed(msg string) {
	m.p.Println(m.styles.success.Render(msg))
}

func (m *Menu) failf(format string, args ...any) {
	m.p.Println(m.styles.failure.Render(fmt.Sprintf(format, args...)))
}

func (m *Menu) operationFailed(op string, err error) {
	m.session.Error(op+" failed", "user_id", m.userID, "err", err)
	m.failf("Could not %s: %v", op, err)
}
