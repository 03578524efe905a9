package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGridMarkAndOccupied(t *testing.T) {
	g := NewGrid(10, 5)

	assert.True(t, g.InBounds(9, 4))
	assert.False(t, g.InBounds(10, 4))
	assert.False(t, g.InBounds(9, 5))

	assert.False(t, g.Occupied(3, 2))
	g.Mark(3, 2)
	assert.True(t, g.Occupied(3, 2))
	assert.False(t, g.Occupied(3, 3))
}

func TestNewGridIsFreshEachTime(t *testing.T) {
	g1 := NewGrid(4, 4)
	g1.Mark(1, 1)

	g2 := NewGrid(4, 4)
	assert.False(t, g2.Occupied(1, 1))
}
