package gardener

import (
	"github.com/talgya/mini-garden/internal/engine"
	"github.com/talgya/mini-garden/internal/garden"
)

// Crisis levels, most severe first.
const (
	Critical = "CRITICAL"
	Warning  = "WARNING"
	Watch    = "WATCH"
	Healthy  = "HEALTHY"
)

// GardenHealth holds derived diagnostic signals computed from a snapshot.
// Runs before any decision; deterministic and free.
type GardenHealth struct {
	Cycle    uint64
	Cells    int
	Live     int
	Empty    int
	Pending  int // empty cells waiting on a respawn
	Thirsty  int
	Infested int
	Weak     int // live plants under WeakHealth

	Temperature int
	Cold        bool
	Hot         bool

	CrisisLevel string
}

// WeakHealth marks a plant as struggling.
const WeakHealth = 30

// Triage computes a GardenHealth from the snapshot.
func Triage(snap *engine.Snapshot) *GardenHealth {
	h := &GardenHealth{
		Cycle:       snap.Cycle,
		Cells:       snap.Rows * snap.Cols,
		Temperature: snap.Temperature,
		Cold:        snap.Temperature < garden.IdealTempLower,
		Hot:         snap.Temperature > garden.IdealTempUpper,
	}

	for _, c := range snap.Cells {
		if c.Species == garden.Empty {
			h.Empty++
			if c.ReplantIn >= 0 {
				h.Pending++
			}
			continue
		}
		h.Live++
		if c.Thirsty() {
			h.Thirsty++
		}
		if c.Pest != "" {
			h.Infested++
		}
		if c.Health < WeakHealth {
			h.Weak++
		}
	}

	h.CrisisLevel = Healthy
	switch {
	case h.Cells > 0 && h.Live == 0:
		h.CrisisLevel = Critical
	case h.Live > 0 && h.Weak*2 >= h.Live:
		h.CrisisLevel = Critical
	case h.Infested >= InfestedThreshold:
		h.CrisisLevel = Warning
	case h.Live > 0 && h.Thirsty*2 >= h.Live:
		h.CrisisLevel = Warning
	case h.Cold || h.Hot || h.Infested > 0:
		h.CrisisLevel = Watch
	}

	return h
}

// Sparse reports whether fewer than a third of the cells hold live plants
// while some soil is free and not already waiting on a respawn.
func (h *GardenHealth) Sparse() bool {
	return h.Empty > h.Pending && h.Live*3 < h.Cells
}
