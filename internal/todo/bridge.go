package todo

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/nibzard/todoapp-go/internal/store"
	"github.com/nibzard/todoapp-go/internal/tasks"
)

// Bridge moves tasks between the store and documents.
type Bridge struct {
	store  *store.Store
	repo   *tasks.Repository
	logger *log.Logger
}

// NewBridge creates a bridge over the store. A nil logger discards output.
func NewBridge(s *store.Store, repo *tasks.Repository, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Bridge{store: s, repo: repo, logger: logger}
}

// Export returns the user's tasks as a document, in id order.
func (b *Bridge) Export(ctx context.Context, userID int64) (Document, error) {
	list, err := b.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("export tasks: %w", err)
	}

	doc := make(Document, 0, len(list))
	for _, t := range list {
		doc = append(doc, Entry{Description: t.Description, Completed: t.Completed})
	}
	b.logger.Info("tasks exported", "user_id", userID, "count", len(doc))
	return doc, nil
}

// ExportTo writes the user's tasks to w in the given format.
func (b *Bridge) ExportTo(ctx context.Context, userID int64, w io.Writer, format Format) (int, error) {
	doc, err := b.Export(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := doc.Encode(w, format); err != nil {
		return 0, err
	}
	return len(doc), nil
}

// Import appends every entry of doc as a new task owned by userID. All
// entries are inserted in one transaction: either all are kept or none.
// It returns the number of tasks created.
func (b *Bridge) Import(ctx context.Context, userID int64, doc Document) (int, error) {
	err := b.store.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO tasks (owner_id, description, completed) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare import: %w", err)
		}
		defer stmt.Close()

		for i, e := range doc {
			if _, err := stmt.ExecContext(ctx, userID, e.Description, e.Completed); err != nil {
				if store.IsForeignKeyViolation(err) {
					err = tasks.ErrUnknownOwner
				}
				return fmt.Errorf("import entry %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		b.logger.Warn("import rolled back", "user_id", userID, "err", err)
		return 0, err
	}

	b.logger.Info("tasks imported", "user_id", userID, "count", len(doc))
	return len(doc), nil
}

// ImportFrom decodes a document from r and imports it.
func (b *Bridge) ImportFrom(ctx context.Context, userID int64, r io.Reader, format Format) (int, error) {
	doc, err := Decode(r, format)
	if err != nil {
		return 0, err
	}
	return b.Import(ctx, userID, doc)
}
