package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextAdvancesAndPeekDoesNot(t *testing.T) {
	g := NewSeeded(42)

	first := g.Peek()
	assert.Equal(t, first, g.Peek(), "peek must not advance state")

	got := g.Next()
	assert.Equal(t, first, got, "next must return the pre-advance state")
	assert.NotEqual(t, first, g.Peek(), "next must advance state")
}

func TestSameSeedYieldsSameSequence(t *testing.T) {
	a := NewSeeded(42)
	b := NewSeeded(42)

	for i := 0; i < 1000; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a := NewSeeded(1)
	b := NewSeeded(2)

	diverged := false
	for i := 0; i < 10; i++ {
		if a.Next() != b.Next() {
			diverged = true
			break
		}
	}
	assert.True(t, diverged)
}

func TestSetSeedReseeds(t *testing.T) {
	g := NewSeeded(1)
	g.Next()
	g.SetSeed(7)
	assert.Equal(t, uint64(7), g.Peek())
}
