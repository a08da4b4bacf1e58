package util

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// NewID returns a fresh opaque record identifier.
func NewID() string {
	return uuid.NewString()
}

// IsValidID reports whether id looks like an identifier produced by NewID.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Sequencer hands out strictly increasing int64 sequence numbers.
// Values are snowflake ids, so they also increase across restarts of the same node.
type Sequencer struct {
	mu   sync.Mutex
	node *snowflake.Node
	last int64
}

// NewSequencer creates a Sequencer for the given snowflake node number (0-1023).
func NewSequencer(node int64) (*Sequencer, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", node, err)
	}
	return &Sequencer{node: n}, nil
}

// Next returns the next sequence number.
func (s *Sequencer) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.node.Generate().Int64()
	if v <= s.last {
		// clock moved backwards
		v = s.last + 1
	}
	s.last = v
	return v
}
