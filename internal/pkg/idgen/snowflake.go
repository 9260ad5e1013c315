package idgen

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	mu   sync.Mutex
	node *snowflake.Node
)

// Initialize sets up the Snowflake ID generator with a node ID (0-1023).
// Each running instance needs its own node ID.
func Initialize(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return fmt.Errorf("invalid snowflake node %d: %w", nodeID, err)
	}

	mu.Lock()
	node = n
	mu.Unlock()
	return nil
}

// GenerateID generates a new Snowflake ID as a string
func GenerateID() string {
	mu.Lock()
	if node == nil {
		// Node 1 is always valid
		node, _ = snowflake.NewNode(1)
	}
	n := node
	mu.Unlock()

	return n.Generate().String()
}
