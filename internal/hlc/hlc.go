// Package hlc implements the Hybrid Logical Clock primitive: a monotonic
// timestamp combining wall-clock milliseconds, a tie-breaking counter, and a
// process-stable node identifier, encoded so that lexicographic string order
// equals logical order.
package hlc

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	physicalWidth = 15
	counterWidth  = 9
	nodeWidth     = 36
)

// Stamp is a single HLC value: (physical_ms, counter, node_id).
type Stamp struct {
	Physical uint64
	Counter  uint32
	NodeID   string
}

// Compare orders two stamps lexicographically over (physical, counter,
// node_id, giving a total order that favors recency over raw insertion
// sequence.
func (s Stamp) Compare(o Stamp) int {
	if s.Physical != o.Physical {
		if s.Physical < o.Physical {
			return -1
		}
		return 1
	}
	if s.Counter != o.Counter {
		if s.Counter < o.Counter {
			return -1
		}
		return 1
	}
	return strings.Compare(s.NodeID, o.NodeID)
}

// Greater reports whether s is strictly greater than o.
func (s Stamp) Greater(o Stamp) bool { return s.Compare(o) > 0 }

// String renders the fixed-width textual form: 15 digits of milliseconds,
// ":", 9 digits of counter, ":", the node id right-padded with '0' or
// truncated to 36 characters. String order over this form equals Compare order.
func (s Stamp) String() string {
	node := s.NodeID
	if len(node) > nodeWidth {
		node = node[:nodeWidth]
	} else if len(node) < nodeWidth {
		node = node + strings.Repeat("0", nodeWidth-len(node))
	}
	return fmt.Sprintf("%0*d:%0*d:%s", physicalWidth, s.Physical, counterWidth, s.Counter, node)
}

// Zero reports whether the stamp is the unset zero value.
func (s Stamp) Zero() bool { return s.Physical == 0 && s.Counter == 0 && s.NodeID == "" }

// Parse decodes the fixed-width textual form produced by String. It fails on
// malformed input.
func Parse(text string) (Stamp, error) {
	parts := strings.SplitN(text, ":", 3)
	if len(parts) != 3 {
		return Stamp{}, fmt.Errorf("hlc: malformed stamp %q: expected 3 colon-separated fields", text)
	}
	if len(parts[0]) != physicalWidth || len(parts[1]) != counterWidth || len(parts[2]) != nodeWidth {
		return Stamp{}, fmt.Errorf("hlc: malformed stamp %q: field widths must be %d:%d:%d", text, physicalWidth, counterWidth, nodeWidth)
	}
	physical, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Stamp{}, fmt.Errorf("hlc: malformed physical component in %q: %w", text, err)
	}
	counter, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Stamp{}, fmt.Errorf("hlc: malformed counter component in %q: %w", text, err)
	}
	return Stamp{Physical: physical, Counter: uint32(counter), NodeID: parts[2]}, nil
}

// Clock is a process-wide HLC generator. NodeID is assigned once at
// construction and never changes; state is protected by mu so that
// concurrent Now() calls are serialized, matching the "updated atomically
// under an internal mutex.
type Clock struct {
	mu     sync.Mutex
	nodeID string
	last   Stamp
	wallMS func() uint64
}

// NewClock creates a Clock with a fresh process-stable GUID node id.
func NewClock() *Clock {
	return NewClockWithNode(uuid.NewString())
}

// NewClockWithNode creates a Clock pinned to an explicit node id (useful for
// deterministic tests and for replicas that must keep a stable identity
// across restarts).
func NewClockWithNode(nodeID string) *Clock {
	return &Clock{nodeID: nodeID, wallMS: defaultWallMS}
}

// NodeID returns the clock's process-stable node identifier.
func (c *Clock) NodeID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodeID
}

// Now returns a new Stamp with physical = max(wall_ms, last.physical); the
// counter resets to 0 when the wall clock has advanced and otherwise
// increments, guaranteeing strict monotonicity even under repeated calls
// within the same millisecond.
func (c *Clock) Now() Stamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	wall := c.wallMS()
	next := Stamp{NodeID: c.nodeID}
	if wall > c.last.Physical {
		next.Physical = wall
		next.Counter = 0
	} else {
		next.Physical = c.last.Physical
		next.Counter = c.last.Counter + 1
	}
	c.last = next
	return next
}

// Observe folds an externally-received stamp into the clock's state so that
// a subsequent Now() is guaranteed greater than both the local clock and the
// observed remote stamp. Used when applying remote writes.
func (c *Clock) Observe(remote Stamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if remote.Compare(c.last) > 0 {
		c.last = remote
	}
}
