package oceanbase

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/oceanbase/recallmem-go/pkg/storage"
)

// buildWhereClause builds the scope filter.
func buildWhereClause(scope storage.Scope) (string, []any) {
	return "WHERE agent_id = ? AND user_id = ?", []any{scope.AgentID, scope.UserID}
}

// placeholders returns n comma-separated "?" markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// upsertAssignments returns the ON DUPLICATE KEY UPDATE list for every
// column except the primary key.
func upsertAssignments() string {
	var parts []string
	for _, col := range strings.Split(storage.Columns+", hash", ",") {
		col = strings.TrimSpace(col)
		if col == "id" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = VALUES(%s)", col, col))
	}
	return strings.Join(parts, ", ")
}

// generateHash generates an MD5 hash of a normalized summary.
func generateHash(summary string) string {
	normalized := storage.NormalizeSummary(summary)
	hash := md5.Sum([]byte(normalized))
	return hex.EncodeToString(hash[:])
}
