package engine

import (
	"time"

	"github.com/talgya/mini-garden/internal/defense"
	"github.com/talgya/mini-garden/internal/garden"
)

// CellView is one cell as published to readers.
type CellView struct {
	Row        int            `json:"row"`
	Col        int            `json:"col"`
	Species    garden.Species `json:"species"`
	Health     int            `json:"health"`
	Moisture   int            `json:"moisture"`
	Pest       string         `json:"pest,omitempty"`
	PestHealth int            `json:"pest_health,omitempty"`
	Stage      garden.Stage   `json:"stage"`
	ReplantIn  int            `json:"replant_in"` // -1 when no respawn is pending
}

// Thirsty reports whether the plant is below the thirst threshold.
func (c CellView) Thirsty() bool {
	return c.Species != garden.Empty && c.Moisture < garden.ThirstyMoisture
}

// Counters are the garden-wide statistics.
type Counters struct {
	Live     int                    `json:"live"`
	Dead     int                    `json:"dead"`
	Empty    int                    `json:"empty"`
	Planted  int                    `json:"planted"`
	Watered  int                    `json:"watered"`
	Infested int                    `json:"infested"`
	Species  map[garden.Species]int `json:"species"`
}

// Snapshot is an immutable view of the whole garden after one command.
// Readers must not modify it.
type Snapshot struct {
	Version     uint64             `json:"version"`
	Cycle       uint64             `json:"cycle"`
	Rows        int                `json:"rows"`
	Cols        int                `json:"cols"`
	Cells       []CellView         `json:"cells"`
	Temperature int                `json:"temperature"`
	Counters    Counters           `json:"counters"`
	Spray       defense.Spray      `json:"spray"`
	Insulation  defense.Insulation `json:"insulation"`
	Automated   bool               `json:"automated"`
	NextEvent   string             `json:"next_event,omitempty"` // Queued event override
	TakenAt     time.Time          `json:"taken_at"`
	GameTime    string             `json:"game_time"`
}

// Cell returns the view of (r, c).
func (s *Snapshot) Cell(r, c int) (CellView, bool) {
	if r < 0 || r >= s.Rows || c < 0 || c >= s.Cols {
		return CellView{}, false
	}
	return s.Cells[r*s.Cols+c], true
}

// snapshot builds a Snapshot from worker-owned state. Worker only.
func (s *Simulation) snapshot() *Snapshot {
	g := s.grid
	snap := &Snapshot{
		Version:     s.version,
		Cycle:       s.cycle,
		Rows:        g.Rows(),
		Cols:        g.Cols(),
		Cells:       make([]CellView, 0, g.Rows()*g.Cols()),
		Temperature: g.Temperature(),
		Spray:       s.spray,
		Insulation:  s.ins,
		Automated:   s.automated,
		TakenAt:     s.now(),
	}
	snap.GameTime = GameTime(snap.TakenAt.Sub(s.born))
	if k, ok := s.events.Forced(); ok {
		snap.NextEvent = k.Slug()
	}

	infested := 0
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			p, _ := g.At(r, c)
			if p.HasPest() {
				infested++
			}
			snap.Cells = append(snap.Cells, CellView{
				Row:        r,
				Col:        c,
				Species:    p.Species,
				Health:     p.Health,
				Moisture:   p.Moisture,
				Pest:       p.Pest.Kind,
				PestHealth: p.Pest.Health,
				Stage:      p.Stage(),
				ReplantIn:  g.ReplantIn(r, c),
			})
		}
	}

	snap.Counters = Counters{
		Live:     g.LiveCount(),
		Dead:     g.DeadCount(),
		Empty:    g.EmptyCount(),
		Planted:  g.PlantedCount(),
		Watered:  g.WateredCount(),
		Infested: infested,
		Species:  g.SpeciesCounts(),
	}
	return snap
}
