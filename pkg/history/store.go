package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/quillhq/quill/pkg/dispatch"
)

// Entry is one transcript row joined with its reply, if any.
type Entry struct {
	PromptID   string
	Prompt     string
	Status     dispatch.Status
	Error      string
	Reply      string
	RunID      string
	EnqueuedAt time.Time
}

// Store is a SQLite-backed transcript store.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Config holds store configuration.
type Config struct {
	Path   string
	Logger zerolog.Logger
}

// NewStore opens (or creates) the transcript database at cfg.Path.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("history: database path is required")
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL keeps writers from blocking the REPL's reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, logger: cfg.Logger.With().Str("component", "history").Logger()}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Debug().Str("path", cfg.Path).Msg("history store opened")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS prompts (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			enqueued_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_prompts_enqueued ON prompts(enqueued_at);

		CREATE TABLE IF NOT EXISTS replies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prompt_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (prompt_id) REFERENCES prompts(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_replies_prompt ON replies(prompt_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordPrompt inserts a new transcript row for an enqueued prompt.
func (s *Store) RecordPrompt(p dispatch.Prompt) error {
	_, err := s.db.Exec(
		`INSERT INTO prompts (id, text, status, error, enqueued_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Text, string(p.Status), p.Err, p.EnqueuedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record prompt: %w", err)
	}
	return nil
}

// RecordReply stores the assistant's final text for a completed run.
func (s *Store) RecordReply(promptID, runID, text string) error {
	_, err := s.db.Exec(
		`INSERT INTO replies (prompt_id, run_id, text, created_at) VALUES (?, ?, ?, ?)`,
		promptID, runID, text, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record reply: %w", err)
	}
	return nil
}

// RecordStatus updates the status column for an existing prompt.
func (s *Store) RecordStatus(promptID string, status dispatch.Status, errText string) error {
	_, err := s.db.Exec(
		`UPDATE prompts SET status = ?, error = ? WHERE id = ?`,
		string(status), errText, promptID,
	)
	if err != nil {
		return fmt.Errorf("failed to record status: %w", err)
	}
	return nil
}

// Recent returns the latest limit transcript entries, oldest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT p.id, p.text, p.status, p.error, p.enqueued_at,
		       COALESCE(r.text, ''), COALESCE(r.run_id, '')
		FROM prompts p
		LEFT JOIN replies r ON r.prompt_id = p.id
		ORDER BY p.enqueued_at DESC, p.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var enqueued int64
		var status string
		if err := rows.Scan(&e.PromptID, &e.Prompt, &status, &e.Error, &enqueued, &e.Reply, &e.RunID); err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		e.Status = dispatch.Status(status)
		e.EnqueuedAt = time.Unix(enqueued, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order for display.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Count returns the number of stored prompts.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM prompts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count prompts: %w", err)
	}
	return n, nil
}

// Clear removes every transcript row.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM replies; DELETE FROM prompts;`); err != nil {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
