// Package journal provides transcript journal adapters.
// Adapter implementing ports.TranscriptJournal.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DBFile is the database file created inside the data directory.
const DBFile = "transcripts.db"

// SQLiteJournal implements ports.TranscriptJournal with SQLite persistence.
type SQLiteJournal struct {
	mu      sync.Mutex
	db      *sql.DB
	dataDir string
}

// NewSQLiteJournal opens (or creates) the journal under dataDir.
func NewSQLiteJournal(dataDir string) (*SQLiteJournal, error) {
	if dataDir == "" {
		dataDir = "./data"
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataDir, DBFile))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps seq assignment serialized.
	db.SetMaxOpenConns(1)

	j := &SQLiteJournal{
		db:      db,
		dataDir: dataDir,
	}

	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		sources TEXT,
		confidence REAL,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_session_seq ON messages(session_id, seq);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record appends msg to the session transcript. Recording the same message
// ID twice is a no-op.
func (j *SQLiteJournal) Record(ctx context.Context, sessionID string, msg entities.Message) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var sources []byte
	if len(msg.Sources) > 0 {
		var err error
		if sources, err = json.Marshal(msg.Sources); err != nil {
			return fmt.Errorf("encoding sources: %w", err)
		}
	}

	var confidence sql.NullFloat64
	if msg.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *msg.Confidence, Valid: true}
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages (id, session_id, seq, type, content, sources, confidence, created_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), -1) + 1 FROM messages WHERE session_id = ?), ?, ?, ?, ?, ?)
	`,
		msg.ID,
		sessionID,
		sessionID,
		string(msg.Type),
		msg.Content,
		nullableText(sources),
		confidence,
		msg.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// Load returns the session transcript in append order.
func (j *SQLiteJournal) Load(ctx context.Context, sessionID string) ([]entities.Message, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, type, content, sources, confidence, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []entities.Message
	for rows.Next() {
		var (
			msg        entities.Message
			typ        string
			sources    sql.NullString
			confidence sql.NullFloat64
			createdAt  string
		)
		if err := rows.Scan(&msg.ID, &typ, &msg.Content, &sources, &confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		msg.Type = entities.MessageType(typ)
		if sources.Valid && sources.String != "" {
			if err := json.Unmarshal([]byte(sources.String), &msg.Sources); err != nil {
				return nil, fmt.Errorf("decoding sources of %s: %w", msg.ID, err)
			}
		}
		if confidence.Valid {
			c := confidence.Float64
			msg.Confidence = &c
		}
		if msg.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing timestamp of %s: %w", msg.ID, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// Sessions lists recorded session IDs, most recently written first.
func (j *SQLiteJournal) Sessions(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session_id
		FROM messages
		GROUP BY session_id
		ORDER BY MAX(rowid) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func nullableText(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
