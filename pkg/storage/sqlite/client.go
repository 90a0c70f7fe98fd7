// Package sqlite provides the SQLite implementation of storage.MemoryStore.
//
// SQLite is a lightweight, file-based database suitable for local development
// and single-node deployments. Tags are stored as JSON text and timestamps as
// fixed-width ISO-8601 text.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oceanbase/recallmem-go/pkg/storage"
)

// Client implements MemoryStore using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// collectionName is the name of the table storing entries.
	collectionName string

	// ids assigns ids to new entries.
	ids *storage.IDGenerator
}

// Config contains configuration for creating a SQLite MemoryStore.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CollectionName is the name of the table to use (default: "memory_entries").
	CollectionName string

	// NodeID is the snowflake node used for id generation.
	NodeID int64
}

// NewClient creates a new SQLite MemoryStore client.
//
// Parameters:
//   - cfg: Configuration containing database path and table name
//
// Returns:
//   - *Client: The SQLite client instance
//   - error: Error if database connection or table creation fails
func NewClient(cfg *Config) (*Client, error) {
	if cfg.CollectionName == "" {
		cfg.CollectionName = "memory_entries"
	}

	// Create parent directory if it doesn't exist
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	ids, err := storage.NewIDGenerator(cfg.NodeID)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	client := &Client{
		db:             db,
		collectionName: cfg.CollectionName,
		ids:            ids,
	}

	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table structure.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			entry_type TEXT NOT NULL,
			input TEXT,
			summary TEXT,
			context TEXT,
			tags TEXT NOT NULL DEFAULT '[]',
			relevance_score REAL NOT NULL DEFAULT 0,
			frequency INTEGER NOT NULL DEFAULT 1,
			goal_id TEXT NOT NULL DEFAULT '',
			goal_summary TEXT NOT NULL DEFAULT '',
			goal_status TEXT NOT NULL DEFAULT '',
			session_id TEXT,
			corrects_id TEXT,
			created_at TEXT NOT NULL,
			last_accessed TEXT NOT NULL
		)
	`, c.collectionName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_scope ON %s(agent_id, user_id)
	`, c.collectionName, c.collectionName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Put inserts or replaces an entry.
func (c *Client) Put(ctx context.Context, entry *storage.Entry) (string, error) {
	storage.Prepare(entry, c.ids)

	values, err := storage.Values(entry)
	if err != nil {
		return "", fmt.Errorf("Put: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.collectionName, storage.Columns)

	if _, err := c.db.ExecContext(ctx, query, values...); err != nil {
		return "", fmt.Errorf("Put: %w", err)
	}

	return entry.ID, nil
}

// Get retrieves an entry by id within the scope.
func (c *Client) Get(ctx context.Context, scope storage.Scope, id string) (*storage.Entry, error) {
	whereClause, args := buildWhereClause(scope)
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s AND id = ?
	`, storage.Columns, c.collectionName, whereClause)
	args = append(args, id)

	entry, err := storage.ScanEntry(c.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	return entry, nil
}

// ListByScope returns a lazy sequence over the entries of a scope.
func (c *Client) ListByScope(ctx context.Context, scope storage.Scope) iter.Seq2[*storage.Entry, error] {
	return func(yield func(*storage.Entry, error) bool) {
		whereClause, args := buildWhereClause(scope)
		query := fmt.Sprintf(`
			SELECT %s
			FROM %s
			%s
		`, storage.Columns, c.collectionName, whereClause)

		rows, err := c.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("ListByScope: %w", err))
			return
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			entry, err := storage.ScanEntry(rows)
			if err != nil {
				yield(nil, fmt.Errorf("ListByScope: %w", err))
				return
			}
			if !yield(entry, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("ListByScope: %w", err))
		}
	}
}

// ListScopes returns the distinct scopes holding entries of the agent.
func (c *Client) ListScopes(ctx context.Context, agentID string) ([]storage.Scope, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT user_id FROM %s WHERE agent_id = ? ORDER BY user_id
	`, c.collectionName)

	rows, err := c.db.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("ListScopes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scopes []storage.Scope
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("ListScopes: %w", err)
		}
		scopes = append(scopes, storage.Scope{AgentID: agentID, UserID: userID})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListScopes: %w", err)
	}

	return scopes, nil
}

// Touch increments frequency and moves last_accessed forward.
func (c *Client) Touch(ctx context.Context, scope storage.Scope, id string, at time.Time) (bool, error) {
	whereClause, args := buildWhereClause(scope)
	accessed := storage.FormatTime(at)
	query := fmt.Sprintf(`
		UPDATE %s
		SET frequency = frequency + 1,
		    last_accessed = CASE WHEN last_accessed < ? THEN ? ELSE last_accessed END
		%s AND id = ?
	`, c.collectionName, whereClause)
	args = append([]any{accessed, accessed}, args...)
	args = append(args, id)

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("Touch: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Touch: %w", err)
	}

	return rowsAffected > 0, nil
}

// Delete removes an entry from the scope.
func (c *Client) Delete(ctx context.Context, scope storage.Scope, id string) (bool, error) {
	whereClause, args := buildWhereClause(scope)
	query := fmt.Sprintf("DELETE FROM %s %s AND id = ?", c.collectionName, whereClause)
	args = append(args, id)

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("Delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Delete: %w", err)
	}

	return rowsAffected > 0, nil
}

// DeleteBatch deletes each id independently and reports per-id outcomes.
func (c *Client) DeleteBatch(ctx context.Context, scope storage.Scope, ids []string) (*storage.DeleteBatchResult, error) {
	return storage.DeleteEach(ctx, scope, ids, c.Delete), nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
