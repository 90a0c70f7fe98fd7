package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	_ "github.com/lib/pq"
	"github.com/oceanbase/recallmem-go/pkg/storage"
)

// Client is a PostgreSQL MemoryStore.
type Client struct {
	db             *sql.DB
	collectionName string
	ids            *storage.IDGenerator
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	CollectionName string
	SSLMode        string
	NodeID         int64
}

// NewClient creates a new PostgreSQL client.
func NewClient(cfg *Config) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	collection := cfg.CollectionName
	if collection == "" {
		collection = "memory_entries"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	ids, err := storage.NewIDGenerator(cfg.NodeID)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	client := &Client{
		db:             db,
		collectionName: collection,
		ids:            ids,
	}

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
			agent_id VARCHAR(255) NOT NULL,
			user_id VARCHAR(255) NOT NULL DEFAULT '',
			entry_type VARCHAR(32) NOT NULL,
			input TEXT,
			summary TEXT,
			context TEXT,
			tags JSONB NOT NULL DEFAULT '[]',
			relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			frequency INTEGER NOT NULL DEFAULT 1,
			goal_id VARCHAR(255) NOT NULL DEFAULT '',
			goal_summary TEXT NOT NULL DEFAULT '',
			goal_status VARCHAR(32) NOT NULL DEFAULT '',
			session_id VARCHAR(255),
			corrects_id VARCHAR(32),
			created_at VARCHAR(40) NOT NULL,
			last_accessed VARCHAR(40) NOT NULL
		)
	`, c.collectionName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: create table: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_scope ON %s(agent_id, user_id)
	`, c.collectionName, c.collectionName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: create index: %w", err)
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
		INSERT INTO %s (%s)
		VALUES (%s)
		ON CONFLICT (id) DO UPDATE SET %s
	`, c.collectionName, storage.Columns, placeholders(1, len(values)), upsertAssignments())

	if _, err := c.db.ExecContext(ctx, query, values...); err != nil {
		return "", fmt.Errorf("Put: %w", err)
	}

	return entry.ID, nil
}

// Get retrieves an entry by id within the scope.
func (c *Client) Get(ctx context.Context, scope storage.Scope, id string) (*storage.Entry, error) {
	whereClause, args := buildWhereClause(scope, 1)
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s AND id = $%d
	`, storage.Columns, c.collectionName, whereClause, len(args)+1)
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
		whereClause, args := buildWhereClause(scope, 1)
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
	query := fmt.Sprintf(`SELECT DISTINCT user_id FROM %s WHERE agent_id = $1 ORDER BY user_id`, c.collectionName)

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
	whereClause, args := buildWhereClause(scope, 2)
	query := fmt.Sprintf(`
		UPDATE %s
		SET frequency = frequency + 1,
		    last_accessed = GREATEST(last_accessed, $1)
		%s AND id = $%d
	`, c.collectionName, whereClause, len(args)+2)
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
	whereClause, args := buildWhereClause(scope, 1)
	query := fmt.Sprintf("DELETE FROM %s %s AND id = $%d", c.collectionName, whereClause, len(args)+1)
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
