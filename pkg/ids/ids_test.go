package ids

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntentIDOrdering(t *testing.T) {
	a := NewIntentID(1, 0)
	b := NewIntentID(1, 1)
	c := NewIntentID(2, 0)

	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
	assert.False(t, a.Less(a))
}

func TestIntentIDString(t *testing.T) {
	assert.Equal(t, "3.7", NewIntentID(3, 7).String())
}

func TestNewEventIDMonotonic(t *testing.T) {
	a := NewEventID()
	b := NewEventID()
	assert.Less(t, uint64(a), uint64(b))
}

func TestNewSessionIDUniqueAndPrefixed(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(string(a), "ses_"))
}

func TestNewWorkerIDMonotonic(t *testing.T) {
	a := NewWorkerID()
	b := NewWorkerID()
	assert.Less(t, uint64(a), uint64(b))
}

func TestNextLogicalClockMonotonic(t *testing.T) {
	a := NextLogicalClock()
	b := NextLogicalClock()
	assert.Less(t, uint64(a), uint64(b))
}
