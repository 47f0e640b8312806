// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     history
// Description: SQLite recording history store and clip archive
// License:     MIT
// ============================================================================

package history

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Recording statuses
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Recording is one completed (or failed) dictation session
type Recording struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	Mode         string        `json:"mode"`
	Provider     string        `json:"provider"`
	Text         string        `json:"text"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Status       string        `json:"status"`
	Duration     time.Duration `json:"duration"`
	WordCount    int           `json:"word_count"`
	ClipPath     string        `json:"clip_path,omitempty"`
}

// Store persists recordings and archives their audio clips
type Store interface {
	// SaveRecording inserts one recording row
	SaveRecording(ctx context.Context, rec *Recording) error

	// ListRecordings returns the most recent recordings, newest first
	ListRecordings(ctx context.Context, limit int) ([]*Recording, error)

	// GetRecording fetches one recording by id
	GetRecording(ctx context.Context, id string) (*Recording, error)

	// ArchiveClip moves a temporary clip file into durable storage and
	// returns its new path
	ArchiveClip(tempPath string) (string, error)

	// AddWords updates the running word-count total
	AddWords(ctx context.Context, n int) error

	// TotalWords returns the running word-count total
	TotalWords(ctx context.Context) (int, error)

	// Close releases the store
	Close() error
}

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db      *sql.DB
	clipDir string
	mu      sync.RWMutex
}

// Config holds store configuration
type Config struct {
	// Path is the database file location
	Path string

	// ClipDir is where archived clips live
	ClipDir string
}

// DefaultConfig returns default store configuration rooted under the
// user's config directory
func DefaultConfig() Config {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	root := filepath.Join(base, "voxkey")
	return Config{
		Path:    filepath.Join(root, "history.db"),
		ClipDir: filepath.Join(root, "recordings"),
	}
}

// NewSQLiteStore opens (or creates) the history database
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.MkdirAll(cfg.ClipDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create clip directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, clipDir: cfg.ClipDir}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates the necessary tables
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS recordings (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		mode TEXT NOT NULL DEFAULT '',
		provider TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		word_count INTEGER NOT NULL DEFAULT 0,
		clip_path TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS stats (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_recordings_created ON recordings(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRecording inserts one recording row
func (s *SQLiteStore) SaveRecording(ctx context.Context, rec *Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		return fmt.Errorf("recording ID is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recordings
			(id, created_at, mode, provider, text, error_message, status, duration_ms, word_count, clip_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt, rec.Mode, rec.Provider, rec.Text,
		rec.ErrorMessage, rec.Status, rec.Duration.Milliseconds(),
		rec.WordCount, rec.ClipPath,
	)
	if err != nil {
		return fmt.Errorf("failed to save recording: %w", err)
	}
	return nil
}

// ListRecordings returns the most recent recordings, newest first
func (s *SQLiteStore) ListRecordings(ctx context.Context, limit int) ([]*Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, mode, provider, text, error_message, status, duration_ms, word_count, clip_path
		FROM recordings ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recordings: %w", err)
	}
	defer rows.Close()

	var recs []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// GetRecording fetches one recording by id
func (s *SQLiteStore) GetRecording(ctx context.Context, id string) (*Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, mode, provider, text, error_message, status, duration_ms, word_count, clip_path
		FROM recordings WHERE id = ?`, id)

	rec, err := scanRecording(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("recording %s not found", id)
	}
	return rec, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (*Recording, error) {
	var rec Recording
	var durationMs int64
	err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.Mode, &rec.Provider,
		&rec.Text, &rec.ErrorMessage, &rec.Status, &durationMs,
		&rec.WordCount, &rec.ClipPath)
	if err != nil {
		return nil, err
	}
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	return &rec, nil
}

// ArchiveClip moves a temporary clip into the archive directory. A
// cross-device rename falls back to copy-then-remove.
func (s *SQLiteStore) ArchiveClip(tempPath string) (string, error) {
	dest := filepath.Join(s.clipDir, filepath.Base(tempPath))

	if err := os.Rename(tempPath, dest); err == nil {
		return dest, nil
	}

	src, err := os.Open(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to open clip: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create archived clip: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dest)
		return "", fmt.Errorf("failed to copy clip: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	os.Remove(tempPath)
	return dest, nil
}

// AddWords updates the running word-count total
func (s *SQLiteStore) AddWords(ctx context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stats (key, value) VALUES ('total_words', ?)
		ON CONFLICT(key) DO UPDATE SET value = value + excluded.value`, n)
	if err != nil {
		return fmt.Errorf("failed to update word count: %w", err)
	}
	return nil
}

// TotalWords returns the running word-count total
func (s *SQLiteStore) TotalWords(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM stats WHERE key = 'total_words'`).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read word count: %w", err)
	}
	return total, nil
}

// Close releases the store
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
