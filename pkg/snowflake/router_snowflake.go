// Package snowflake generates time-ordered 64-bit ids for requests and
// learning jobs.
//
// Layout (64 bits): sign(1) | ms since 2024-01-01 (41) | node (10) | sequence (12).
package snowflake

import (
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"
)

const (
	epoch int64 = 1704067200000

	nodeBits     = 10
	sequenceBits = 12

	maxNode     = (1 << nodeBits) - 1
	maxSequence = (1 << sequenceBits) - 1

	timestampShift = nodeBits + sequenceBits
	nodeShift      = sequenceBits
)

var (
	ErrInvalidNode    = errors.New("snowflake: node must be between 0 and 1023")
	ErrClockMovedBack = errors.New("snowflake: clock moved backwards")
)

// Generator is safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	node     int64
	sequence int64
	lastTime int64
	now      func() int64
}

// NewGenerator creates a generator for node.
func NewGenerator(node int64) (*Generator, error) {
	if node < 0 || node > maxNode {
		return nil, ErrInvalidNode
	}
	return &Generator{node: node, now: func() int64 { return time.Now().UnixMilli() }}, nil
}

// NodeFor hashes a worker name such as "host-1234" into a node number.
func NodeFor(name string) int64 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return int64(h.Sum32() & maxNode)
}

// Generate returns the next id.
func (g *Generator) Generate() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now < g.lastTime {
		return 0, ErrClockMovedBack
	}

	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			for now <= g.lastTime {
				time.Sleep(100 * time.Microsecond)
				now = g.now()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = now

	return ((now - epoch) << timestampShift) | (g.node << nodeShift) | g.sequence, nil
}

// String returns the next id in base 36, or "" if the clock moved back.
func (g *Generator) String() string {
	id, err := g.Generate()
	if err != nil {
		return ""
	}
	return strconv.FormatInt(id, 36)
}

// Parse splits an id into its components.
func Parse(id int64) (ts time.Time, node, sequence int64) {
	ts = time.UnixMilli((id >> timestampShift) + epoch)
	node = (id >> nodeShift) & maxNode
	sequence = id & maxSequence
	return
}
