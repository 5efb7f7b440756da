package garden

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/mini-garden/internal/entropy"
)

func TestRandomLayoutMapping(t *testing.T) {
	got := RandomLayout(1, 7, &entropy.Fixed{Values: []int{0, 1, 2, 3, 4, 5, 6}})
	want := []Species{Empty, Carrot, Cherry, Corn, Pumpkin, Sunflower, Empty}
	for i, pl := range got {
		assert.Equal(t, Pos{0, i}, pl.Pos)
		assert.Equal(t, want[i], pl.Species)
	}
}

func TestNoiseLayoutDeterministic(t *testing.T) {
	a := NoiseLayout(5, 5, DefaultNoiseConfig(99))
	b := NoiseLayout(5, 5, DefaultNoiseConfig(99))
	assert.Len(t, a, 25)
	assert.Equal(t, a, b)
	for _, pl := range a {
		assert.LessOrEqual(t, int(pl.Species), int(Sunflower))
	}
}

func TestNoiseLayoutBareThreshold(t *testing.T) {
	cfg := DefaultNoiseConfig(3)
	cfg.Bare = 1.1
	for _, pl := range NoiseLayout(3, 3, cfg) {
		assert.Equal(t, Empty, pl.Species)
	}
	cfg.Bare = -1
	for _, pl := range NoiseLayout(3, 3, cfg) {
		assert.NotEqual(t, Empty, pl.Species)
	}
}
