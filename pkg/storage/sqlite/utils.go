package sqlite

import (
	"github.com/oceanbase/recallmem-go/pkg/storage"
)

// buildWhereClause builds the scope filter. The agent-global scope matches
// user_id = '' only.
func buildWhereClause(scope storage.Scope) (string, []any) {
	return "WHERE agent_id = ? AND user_id = ?", []any{scope.AgentID, scope.UserID}
}
