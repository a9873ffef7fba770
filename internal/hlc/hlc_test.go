package hlc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	s := Stamp{Physical: 1700000000123, Counter: 42, NodeID: "node-abcdefghijklmnopqrstuvwxyz01234"}
	text := s.String()
	parsed, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, s, parsed)
}

func TestStringOrderMatchesLogicalOrder(t *testing.T) {
	a := Stamp{Physical: 1000, Counter: 0, NodeID: "a"}
	b := Stamp{Physical: 1000, Counter: 1, NodeID: "a"}
	c := Stamp{Physical: 1001, Counter: 0, NodeID: "a"}

	assert.Less(t, a.String(), b.String())
	assert.Less(t, b.String(), c.String())
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, -1, b.Compare(c))
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse("not-a-stamp")
	assert.Error(t, err)

	_, err = Parse("123:456:abc")
	assert.Error(t, err)
}

func TestClockMonotonic(t *testing.T) {
	c := NewClockWithNode("N1")
	var calls int
	fixed := []uint64{1000, 1000, 1000, 1001}
	c.wallMS = func() uint64 {
		v := fixed[calls]
		if calls < len(fixed)-1 {
			calls++
		}
		return v
	}

	s1 := c.Now()
	s2 := c.Now()
	s3 := c.Now()
	s4 := c.Now()

	assert.True(t, s2.Greater(s1))
	assert.True(t, s3.Greater(s2))
	assert.True(t, s4.Greater(s3))
	assert.Equal(t, uint64(1000), s1.Physical)
	assert.Equal(t, uint32(0), s1.Counter)
	assert.Equal(t, uint32(1), s2.Counter)
	assert.Equal(t, uint32(2), s3.Counter)
	assert.Equal(t, uint64(1001), s4.Physical)
	assert.Equal(t, uint32(0), s4.Counter)
}

func TestClockObserve(t *testing.T) {
	c := NewClockWithNode("N1")
	c.wallMS = func() uint64 { return 500 }

	future := Stamp{Physical: 10000, Counter: 5, NodeID: "N2"}
	c.Observe(future)

	next := c.Now()
	assert.True(t, next.Greater(future))
}
