package oceanbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/oceanbase/recallmem-go/pkg/storage"
)

// Client is an OceanBase client. It also works against MySQL.
type Client struct {
	db             *sql.DB
	config         *Config
	collectionName string
	ids            *storage.IDGenerator
}

// Config contains OceanBase configuration.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	CollectionName string
	NodeID         int64
}

// NewClient creates a new OceanBase client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.CollectionName == "" {
		cfg.CollectionName = "memory_entries"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	ids, err := storage.NewIDGenerator(cfg.NodeID)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	client := &Client{
		db:             db,
		config:         cfg,
		collectionName: cfg.CollectionName,
		ids:            ids,
	}

	// Initialize table structure
	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(32) PRIMARY KEY,
			agent_id VARCHAR(128) NOT NULL,
			user_id VARCHAR(128) NOT NULL DEFAULT '',
			entry_type VARCHAR(32) NOT NULL,
			input LONGTEXT,
			summary LONGTEXT,
			context LONGTEXT,
			tags JSON NOT NULL,
			relevance_score DOUBLE NOT NULL DEFAULT 0,
			frequency INT NOT NULL DEFAULT 1,
			goal_id VARCHAR(128) NOT NULL DEFAULT '',
			goal_summary TEXT NOT NULL,
			goal_status VARCHAR(32) NOT NULL DEFAULT '',
			session_id VARCHAR(128),
			corrects_id VARCHAR(32),
			created_at VARCHAR(40) NOT NULL,
			last_accessed VARCHAR(40) NOT NULL,
			hash VARCHAR(32),
			INDEX idx_scope (agent_id, user_id),
			INDEX idx_hash (agent_id, user_id, hash)
		)
	`, c.collectionName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Put inserts or replaces an entry. The summary hash is stored alongside the
// row for FindBySummary.
func (c *Client) Put(ctx context.Context, entry *storage.Entry) (string, error) {
	storage.Prepare(entry, c.ids)

	values, err := storage.Values(entry)
	if err != nil {
		return "", fmt.Errorf("Put: %w", err)
	}
	values = append(values, generateHash(entry.Summary))

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, hash)
		VALUES (%s)
		ON DUPLICATE KEY UPDATE %s
	`, c.collectionName, storage.Columns, placeholders(len(values)), upsertAssignments())

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

// FindBySummary returns the entries of the scope whose summary hashes equal
// that of summary.
func (c *Client) FindBySummary(ctx context.Context, scope storage.Scope, summary string) ([]*storage.Entry, error) {
	whereClause, args := buildWhereClause(scope)
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s AND hash = ?
	`, storage.Columns, c.collectionName, whereClause)
	args = append(args, generateHash(summary))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("FindBySummary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*storage.Entry
	for rows.Next() {
		entry, err := storage.ScanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("FindBySummary: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindBySummary: %w", err)
	}

	return entries, nil
}

// ListByScope returns a lazy sequence over the entries of a scope.
func (c *Client) ListByScope(ctx context.Context, scope storage.Scope) iter.Seq2[*storage.Entry, error] {
	return func(yield func(*storage.Entry, error) bool) {
		whereClause, args := buildWhereClause(scope)
		query := fmt.Sprintf(`SELECT %s FROM %s %s`, storage.Columns, c.collectionName, whereClause)

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
	query := fmt.Sprintf(`SELECT DISTINCT user_id FROM %s WHERE agent_id = ? ORDER BY user_id`, c.collectionName)

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
	query := fmt.Sprintf(`
		UPDATE %s
		SET frequency = frequency + 1,
		    last_accessed = GREATEST(last_accessed, ?)
		%s AND id = ?
	`, c.collectionName, whereClause)
	args = append([]any{storage.FormatTime(at)}, args...)
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

// Drop removes the collection table and every entry in it.
func (c *Client) Drop(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+c.collectionName); err != nil {
		return fmt.Errorf("Drop: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
