package query

import (
	"fmt"
	"sync/atomic"
)

// IDGenerator issues request ids: "QS" followed by a monotonically
// increasing sequence number.
type IDGenerator struct {
	counter atomic.Int64
}

// DefaultIDGenerator is shared by every runner not configured with its own
// generator, keeping ids unique across a scene.
var DefaultIDGenerator = NewIDGenerator()

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

func (g *IDGenerator) Next() string {
	return fmt.Sprintf("QS%d", g.counter.Add(1))
}
