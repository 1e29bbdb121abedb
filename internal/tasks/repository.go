// Package tasks stores a user's to-do items and maps display positions to task ids.
//
// Every mutation carries the owner in its WHERE clause, so a caller can never
// touch another user's row: a mismatched owner simply matches nothing.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/nibzard/todoapp-go/internal/store"
)

// ErrUnknownOwner is returned when adding a task for a user that does not exist.
var ErrUnknownOwner = errors.New("task owner does not exist")

// Task is a single to-do item.
type Task struct {
	ID          int64
	OwnerID     int64
	Description string
	Completed   bool
}

// Repository provides owner-scoped access to tasks.
type Repository struct {
	store  *store.Store
	logger *log.Logger
}

// NewRepository creates a task repository. A nil logger discards output.
func NewRepository(s *store.Store, logger *log.Logger) *Repository {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Repository{store: s, logger: logger}
}

// Add inserts a new, incomplete task and returns its id.
func (r *Repository) Add(ctx context.Context, userID int64, description string) (int64, error) {
	res, err := r.store.DB().ExecContext(ctx,
		"INSERT INTO tasks (owner_id, description, completed) VALUES (?, ?, 0)",
		userID, description)
	if err != nil {
		if store.IsForeignKeyViolation(err) {
			return 0, ErrUnknownOwner
		}
		return 0, fmt.Errorf("add task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read task id: %w", err)
	}
	r.logger.Debug("task added", "user_id", userID, "task_id", id)
	return id, nil
}

// List returns all of the user's tasks ordered by ascending id.
func (r *Repository) List(ctx context.Context, userID int64) ([]Task, error) {
	rows, err := r.store.DB().QueryContext(ctx,
		"SELECT id, owner_id, description, completed FROM tasks WHERE owner_id = ? ORDER BY id",
		userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]Task, 0)
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Description, &t.Completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Count returns the number of tasks the user owns.
func (r *Repository) Count(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.store.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE owner_id = ?", userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

// ResolvePosition maps a 1-based display position to a task id. Positions
// below 1 or past the end resolve to false.
//
// The mapping is recomputed on every call. A position taken from an earlier
// List can point at a different task if rows were added or deleted in
// between; callers should list again before acting on a position.
func (r *Repository) ResolvePosition(ctx context.Context, userID int64, position int) (int64, bool, error) {
	if position < 1 {
		return 0, false, nil
	}
	var id int64
	err := r.store.DB().QueryRowContext(ctx,
		"SELECT id FROM tasks WHERE owner_id = ? ORDER BY id LIMIT 1 OFFSET ?",
		userID, position-1).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolve position %d: %w", position, err)
	}
	return id, true, nil
}

// Edit replaces the description of the user's task. It reports whether a
// row matched.
func (r *Repository) Edit(ctx context.Context, userID, taskID int64, description string) (bool, error) {
	return r.exec(ctx, "edit task",
		"UPDATE tasks SET description = ? WHERE id = ? AND owner_id = ?",
		description, taskID, userID)
}

// Delete removes the user's task. It reports whether a row matched.
func (r *Repository) Delete(ctx context.Context, userID, taskID int64) (bool, error) {
	return r.exec(ctx, "delete task",
		"DELETE FROM tasks WHERE id = ? AND owner_id = ?",
		taskID, userID)
}

// Complete marks the user's task as done. Completing a done task still
// reports true.
func (r *Repository) Complete(ctx context.Context, userID, taskID int64) (bool, error) {
	return r.exec(ctx, "complete task",
		"UPDATE tasks SET completed = 1 WHERE id = ? AND owner_id = ?",
		taskID, userID)
}

func (r *Repository) exec(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := r.store.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	r.logger.Debug(op, "rows", n)
	return n > 0, nil
}
