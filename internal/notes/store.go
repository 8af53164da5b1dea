// Package notes is the per-user note store the assistant saves case notes
// into: benefits paperwork deadlines, housing correspondence, and so on.
package notes

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultCategory is applied when the caller does not name one.
const DefaultCategory = "general"

// Note is one saved note.
type Note struct {
	UserID    string    `json:"userId"`
	NoteID    string    `json:"noteId"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is a SQLite-backed note store.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the note store at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS notes (
			user_id TEXT NOT NULL,
			note_id TEXT NOT NULL,
			content TEXT NOT NULL,
			category TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, note_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_user ON notes(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_category ON notes(user_id, category)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Add saves one note and returns it with its generated id.
func (s *Store) Add(ctx context.Context, userID, content, category string) (*Note, error) {
	if category == "" {
		category = DefaultCategory
	}

	note := &Note{
		UserID:    userID,
		NoteID:    uuid.New().String(),
		Content:   content,
		Category:  category,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (user_id, note_id, content, category, created_at) VALUES (?, ?, ?, ?, ?)`,
		note.UserID, note.NoteID, note.Content, note.Category, note.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert note: %w", err)
	}
	return note, nil
}

// List returns a user's notes, optionally filtered by category, newest first.
func (s *Store) List(ctx context.Context, userID, category string) ([]*Note, error) {
	query := `SELECT user_id, note_id, content, category, created_at FROM notes WHERE user_id = ?`
	args := []any{userID}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.UserID, &n.NoteID, &n.Content, &n.Category, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

// Delete removes one note. Deleting a missing note is not an error.
func (s *Store) Delete(ctx context.Context, userID, noteID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM notes WHERE user_id = ? AND note_id = ?`,
		userID, noteID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
