// Package sqlite stores the state document as a single-row JSON blob. It keeps
// the whole-document persistence model while giving deployments that cannot
// reach Google Sheets a local backend behind the same port.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"roomie/internal/core"
	"roomie/internal/store"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

var _ store.DocumentStore = (*Repository)(nil)

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load reads the single document row. A missing row means no prior state.
func (r *Repository) Load(ctx context.Context) (core.Document, error) {
	var body string
	err := r.db.QueryRowContext(ctx,
		`SELECT body FROM state_document WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewDocument(), nil
	}
	if err != nil {
		return core.Document{}, fmt.Errorf("read state document: %w", err)
	}

	doc, err := core.DecodeDocument([]byte(body))
	if err != nil {
		return core.Document{}, fmt.Errorf("stored state document: %w", err)
	}
	return doc, nil
}

// Save replaces the document row entirely.
func (r *Repository) Save(ctx context.Context, doc core.Document) error {
	data, err := doc.Encode()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO state_document (id, body, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write state document: %w", err)
	}

	slog.InfoContext(ctx, "State document saved to SQLite", "bytes", len(data))
	return nil
}
