package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Columns is the column list shared by the SQL backends, in scan order.
const Columns = `id, agent_id, user_id, entry_type, input, summary, context, tags,
	relevance_score, frequency, goal_id, goal_summary, goal_status,
	session_id, corrects_id, created_at, last_accessed`

// TimeLayout is the ISO-8601 layout used for persisted timestamps. It is fixed
// width (always UTC, nine fractional digits) so stored values compare
// correctly as strings.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// NormalizeTags trims, lower-cases, de-duplicates and sorts tags.
// Empty tags are dropped; nil is returned when none remain.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// FormatTime renders t as a UTC ISO-8601 string.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a timestamp written by FormatTime. Any RFC 3339 value is
// accepted.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// EncodeTags renders tags as a JSON string array.
func EncodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeTags parses a JSON string array written by EncodeTags.
func DecodeTags(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, nil
	}
	return tags, nil
}

// Values returns the column values of an entry in Columns order.
func Values(e *Entry) ([]any, error) {
	tags, err := EncodeTags(e.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	var goalID, goalSummary, goalStatus string
	if e.Goal != nil {
		goalID = e.Goal.ID
		goalSummary = e.Goal.Summary
		goalStatus = string(e.Goal.Status)
	}
	return []any{
		e.ID,
		e.AgentID,
		e.UserID,
		string(e.Type),
		e.Input,
		e.Summary,
		e.Context,
		tags,
		e.RelevanceScore,
		e.Frequency,
		goalID,
		goalSummary,
		goalStatus,
		e.SessionID,
		e.CorrectsID,
		FormatTime(e.CreatedAt),
		FormatTime(e.LastAccessed),
	}, nil
}

// ScanEntry scans one row selected with Columns.
func ScanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var entryType, tags, createdAt, lastAccessed string
	var goalID, goalSummary, goalStatus string
	var userID, input, summary, context sql.NullString
	var sessionID, correctsID sql.NullString

	err := row.Scan(
		&e.ID,
		&e.AgentID,
		&userID,
		&entryType,
		&input,
		&summary,
		&context,
		&tags,
		&e.RelevanceScore,
		&e.Frequency,
		&goalID,
		&goalSummary,
		&goalStatus,
		&sessionID,
		&correctsID,
		&createdAt,
		&lastAccessed,
	)
	if err != nil {
		return nil, err
	}

	e.UserID = userID.String
	e.Type = EntryType(entryType)
	e.Input = input.String
	e.Summary = summary.String
	e.Context = context.String
	e.SessionID = sessionID.String
	e.CorrectsID = correctsID.String

	if e.Tags, err = DecodeTags(tags); err != nil {
		return nil, fmt.Errorf("parse tags: %w", err)
	}
	if goalID != "" || goalStatus != "" {
		e.Goal = &Goal{ID: goalID, Summary: goalSummary, Status: GoalStatus(goalStatus)}
	}
	if e.CreatedAt, err = ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if e.LastAccessed, err = ParseTime(lastAccessed); err != nil {
		return nil, fmt.Errorf("parse last_accessed: %w", err)
	}
	return &e, nil
}

// Prepare fills in store-assigned fields before a Put: the id (when empty),
// a frequency of at least 1 and a LastAccessed no earlier than CreatedAt.
func Prepare(e *Entry, ids *IDGenerator) {
	if e.ID == "" {
		e.ID = ids.Next()
	}
	if e.Frequency < 1 {
		e.Frequency = 1
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.LastAccessed.Before(e.CreatedAt) {
		e.LastAccessed = e.CreatedAt
	}
	e.Tags = NormalizeTags(e.Tags)
}

// Chunk splits ids into slices of at most size elements.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
