package storage

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator produces entry ids from a snowflake node.
//
// Ids are zero-padded to 19 digits so that lexicographic order matches
// creation order.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator creates a generator for the given snowflake node (0-1023).
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("NewIDGenerator: %w", err)
	}
	return &IDGenerator{node: node}, nil
}

// Next returns a new unique id.
func (g *IDGenerator) Next() string {
	return fmt.Sprintf("%019d", g.node.Generate().Int64())
}
