package postgres

import (
	"fmt"
	"strings"

	"github.com/oceanbase/recallmem-go/pkg/storage"
)

// buildWhereClause builds the scope filter with placeholders starting at
// startIndex.
func buildWhereClause(scope storage.Scope, startIndex int) (string, []any) {
	clause := fmt.Sprintf("WHERE agent_id = $%d AND user_id = $%d", startIndex, startIndex+1)
	return clause, []any{scope.AgentID, scope.UserID}
}

// placeholders returns "$start, ..., $start+n-1".
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

// upsertAssignments returns the SET list for ON CONFLICT, covering every
// column except the primary key.
func upsertAssignments() string {
	var parts []string
	for _, col := range strings.Split(storage.Columns, ",") {
		col = strings.TrimSpace(col)
		if col == "id" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	return strings.Join(parts, ", ")
}
