// Package journal keeps an append-only diagnostic record of what the bot
// did: generation attempts, deliveries and admin commands. It is never read
// back to rebuild conversation state.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// EntryType identifies what kind of journal entry this is
type EntryType string

const (
	EntryAttempt  EntryType = "attempt"  // One backend call (summary or reply)
	EntryDelivery EntryType = "delivery" // A reply was sent to the channel
	EntryCommand  EntryType = "command"  // An admin command ran
)

// Entry represents a single journal entry
type Entry struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"ts"`
	Type      EntryType      `json:"type"`
	Summary   string         `json:"summary,omitempty"` // Brief description
	Outcome   string         `json:"outcome,omitempty"` // What resulted
	Data      map[string]any `json:"data,omitempty"`    // Flexible extra data
}

// Journal writes entries to a SQLite database
type Journal struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the journal database at path
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	j := &Journal{db: db, path: path}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return j, nil
}

func (j *Journal) migrate() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			ts      DATETIME NOT NULL,
			type    TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL DEFAULT '',
			data    TEXT NOT NULL DEFAULT '{}'
		);
		CREATE INDEX IF NOT EXISTS idx_entries_ts ON entries(ts);
	`)
	return err
}

// Close closes the database
func (j *Journal) Close() error {
	return j.db.Close()
}

// Log writes an entry to the journal
func (j *Journal) Log(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	// Set timestamp if not provided
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	data := []byte("{}")
	if len(entry.Data) > 0 {
		var err error
		if data, err = json.Marshal(entry.Data); err != nil {
			return fmt.Errorf("marshal entry data: %w", err)
		}
	}

	_, err := j.db.Exec(`INSERT INTO entries (ts, type, summary, outcome, data) VALUES (?, ?, ?, ?, ?)`,
		entry.Timestamp.UTC(), string(entry.Type), entry.Summary, entry.Outcome, string(data))
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// LogAttempt records one backend call. kind is "summary" or "reply".
func (j *Journal) LogAttempt(kind string, attempt int, accepted bool, output string, callErr error, took time.Duration) error {
	outcome := "rejected"
	switch {
	case callErr != nil:
		outcome = "error: " + callErr.Error()
	case accepted:
		outcome = "accepted"
	}
	return j.Log(Entry{
		Type:    EntryAttempt,
		Summary: kind,
		Outcome: outcome,
		Data: map[string]any{
			"attempt":     attempt,
			"output":      output,
			"duration_ms": took.Milliseconds(),
		},
	})
}

// LogDelivery records a reply sent to the channel
func (j *Journal) LogDelivery(text string, sendErr error) error {
	outcome := "sent"
	if sendErr != nil {
		outcome = "error: " + sendErr.Error()
	}
	return j.Log(Entry{
		Type:    EntryDelivery,
		Summary: text,
		Outcome: outcome,
	})
}

// LogCommand records an admin command
func (j *Journal) LogCommand(command, speaker, result string) error {
	return j.Log(Entry{
		Type:    EntryCommand,
		Summary: command,
		Outcome: result,
		Data:    map[string]any{"speaker": speaker},
	})
}

// Recent returns the last n entries, oldest first
func (j *Journal) Recent(n int) ([]Entry, error) {
	return j.query(`SELECT id, ts, type, summary, outcome, data FROM (
		SELECT * FROM entries ORDER BY id DESC LIMIT ?
	) ORDER BY id ASC`, n)
}

// Since returns entries at or after t, oldest first
func (j *Journal) Since(t time.Time) ([]Entry, error) {
	return j.query(`SELECT id, ts, type, summary, outcome, data FROM entries
		WHERE ts >= ? ORDER BY id ASC`, t.UTC())
}

// Today returns entries from today
func (j *Journal) Today() ([]Entry, error) {
	now := time.Now()
	return j.Since(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()))
}

func (j *Journal) query(q string, args ...any) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			typ  string
			data string
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &typ, &e.Summary, &e.Outcome, &data); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Type = EntryType(typ)
		if data != "" && data != "{}" {
			if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
				continue // skip malformed entries
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
