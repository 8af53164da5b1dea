// Package profile looks up user profiles for prompt personalization.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no profile exists for an id.
var ErrNotFound = errors.New("profile not found")

// Profile is stored user context: identity plus whatever the onboarding flow
// captured. Preferences is kept as raw JSON text.
type Profile struct {
	ID                  string `json:"id"`
	UserID              string `json:"userId"`
	Name                string `json:"name,omitempty"`
	Email               string `json:"email,omitempty"`
	Address             string `json:"address,omitempty"`
	Notes               string `json:"notes,omitempty"`
	Preferences         string `json:"preferences,omitempty"`
	OnboardingCompleted bool   `json:"onboardingCompleted"`
}

// Store is a SQLite-backed profile store.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the profile store at dbPath.
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
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT,
		email TEXT,
		address TEXT,
		notes TEXT,
		preferences TEXT,
		onboarding_completed INTEGER NOT NULL DEFAULT 0
	)`)
	return err
}

// Get fetches a profile by primary key, falling back to a lookup on the
// userId column. Historic records were keyed inconsistently, so both paths
// are tried before reporting absence.
func (s *Store) Get(ctx context.Context, id string) (*Profile, error) {
	p, err := s.queryOne(ctx, `SELECT id, user_id, name, email, address, notes, preferences, onboarding_completed
		FROM profiles WHERE id = ?`, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return s.queryOne(ctx, `SELECT id, user_id, name, email, address, notes, preferences, onboarding_completed
		FROM profiles WHERE user_id = ? LIMIT 1`, id)
}

func (s *Store) queryOne(ctx context.Context, query, arg string) (*Profile, error) {
	var p Profile
	var name, email, address, notes, prefs sql.NullString

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.UserID, &name, &email, &address, &notes, &prefs, &p.OnboardingCompleted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	p.Name = name.String
	p.Email = email.String
	p.Address = address.String
	p.Notes = notes.String
	p.Preferences = prefs.String
	return &p, nil
}

// Put inserts or replaces a profile.
func (s *Store) Put(ctx context.Context, p *Profile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO profiles (id, user_id, name, email, address, notes, preferences, onboarding_completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.Email, p.Address, p.Notes, p.Preferences, p.OnboardingCompleted,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
