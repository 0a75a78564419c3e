package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/karenos/fusion-chat/internal/chat"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Schema for the conversation database.
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    name TEXT,
    system_prompt TEXT,
    model TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role TEXT NOT NULL CHECK (role IN ('system', 'user', 'assistant', 'error')),
    content TEXT NOT NULL,
    reasoning TEXT,
    model TEXT,
    ttft REAL,
    attachment TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    sequence INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, sequence);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);
`

// schemaVersion is the current schema version. Fresh databases get the full
// schema and start here; increment when adding migrations.
const schemaVersion = 1

// GetDBPath returns the conversation database location.
func GetDBPath() (string, error) {
	dataDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "fusion-chat", "chats.db"), nil
}

// NewSQLiteStore opens (or creates) the conversation database.
func NewSQLiteStore(logger *slog.Logger) (*SQLiteStore, error) {
	dbPath, err := GetDBPath()
	if err != nil {
		return nil, fmt.Errorf("get db path: %w", err)
	}
	return OpenSQLiteStore(dbPath, logger)
}

// OpenSQLiteStore opens a store at an explicit path.
func OpenSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// initSchema creates the schema and records its version. The common case
// (schema already current) is a single SELECT.
func initSchema(db *sql.DB) error {
	var current int
	err := db.QueryRow("SELECT version FROM schema_version").Scan(&current)
	if err == nil && current >= schemaVersion {
		return nil
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create base schema: %w", err)
	}
	if _, err := db.Exec("DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("reset schema version: %w", err)
	}
	if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveConversation upserts conversation metadata.
func (s *SQLiteStore) SaveConversation(conv *chat.Conversation) error {
	_, err := s.db.Exec(`
		INSERT INTO conversations (id, name, system_prompt, model, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			system_prompt = excluded.system_prompt,
			model = excluded.model
	`, conv.ID, conv.Name, conv.SystemPrompt, conv.ActiveModel, conv.CreatedAt)
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// AppendTurns persists turns starting at sequence startSeq, in one
// transaction so a completed pair is stored atomically.
func (s *SQLiteStore) AppendTurns(conversationID string, startSeq int, turns ...chat.Turn) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for i, turn := range turns {
		var ttft sql.NullFloat64
		if turn.TTFT > 0 {
			ttft = sql.NullFloat64{Float64: turn.TTFT, Valid: true}
		}
		_, err := tx.Exec(`
			INSERT INTO turns (conversation_id, role, content, reasoning, model, ttft, attachment, created_at, sequence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, conversationID, string(turn.Role), turn.Content, nullable(turn.Reasoning),
			nullable(turn.Model), ttft, nullable(turn.Attachment), turn.Timestamp, startSeq+i)
		if err != nil {
			return fmt.Errorf("insert turn %d: %w", startSeq+i, err)
		}
	}
	return tx.Commit()
}

// TruncateFrom deletes every persisted turn at or after seq, mirroring
// chat.Log.TruncateFrom.
func (s *SQLiteStore) TruncateFrom(conversationID string, seq int) error {
	if seq < 0 {
		return fmt.Errorf("truncate from %d: %w", seq, chat.ErrIndexOutOfRange)
	}
	_, err := s.db.Exec(`DELETE FROM turns WHERE conversation_id = ? AND sequence >= ?`, conversationID, seq)
	if err != nil {
		return fmt.Errorf("truncate turns: %w", err)
	}
	return nil
}

// Load rebuilds a conversation and its turns.
func (s *SQLiteStore) Load(conversationID string) (*chat.Conversation, error) {
	var (
		name, systemPrompt, model sql.NullString
		createdAt                 time.Time
	)
	err := s.db.QueryRow(`
		SELECT name, system_prompt, model, created_at FROM conversations WHERE id = ?
	`, conversationID).Scan(&name, &systemPrompt, &model, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}

	rows, err := s.db.Query(`
		SELECT role, content, reasoning, model, ttft, attachment, created_at
		FROM turns WHERE conversation_id = ? ORDER BY sequence
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	defer rows.Close()

	var turns []chat.Turn
	for rows.Next() {
		var (
			role, content                    string
			reasoning, turnModel, attachment sql.NullString
			ttft                             sql.NullFloat64
			ts                               time.Time
		)
		if err := rows.Scan(&role, &content, &reasoning, &turnModel, &ttft, &attachment, &ts); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, chat.Turn{
			Role:       chat.Role(role),
			Content:    content,
			Reasoning:  reasoning.String,
			Model:      turnModel.String,
			TTFT:       ttft.Float64,
			Attachment: attachment.String,
			Timestamp:  ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read turns: %w", err)
	}

	return chat.RestoreConversation(conversationID, name.String, systemPrompt.String, model.String, createdAt, turns), nil
}

// List returns all conversation slots, newest first.
func (s *SQLiteStore) List() ([]ConversationInfo, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.name, c.model, COUNT(t.id)
		FROM conversations c
		LEFT JOIN turns t ON t.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var infos []ConversationInfo
	for rows.Next() {
		var info ConversationInfo
		var name, model sql.NullString
		if err := rows.Scan(&info.ID, &name, &model, &info.TurnCount); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		info.Name = name.String
		info.Model = model.String
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Delete removes a conversation and its turns.
func (s *SQLiteStore) Delete(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
