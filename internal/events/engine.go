// Package events implements the garden's random one-shot events. The
// engine mutates the garden and returns a Summary describing what
// happened; it performs no I/O.
package events

import (
	"fmt"
	"sort"
	"strings"

	"github.com/talgya/mini-garden/internal/defense"
	"github.com/talgya/mini-garden/internal/entropy"
	"github.com/talgya/mini-garden/internal/garden"
)

// Event tuning.
const (
	SunnyMinTemp  = garden.IdealTempUpper + 1 // 76
	SunnyMaxTemp  = 90
	ChillyMaxTemp = garden.IdealTempLower - 1 // 64
	ChillyMinTemp = 55

	InfestationOdds = 10 // 1 in N live plants catch a pest
)

// Summary describes the outcome of one event.
type Summary struct {
	Kind        Kind         `json:"kind"`
	Message     string       `json:"message"`
	Warn        bool         `json:"warn"`
	Temperature int          `json:"temperature"`
	Affected    []garden.Pos `json:"affected,omitempty"`

	Watered      int            `json:"watered,omitempty"`
	Dried        int            `json:"dried,omitempty"`
	Stressed     int            `json:"stressed,omitempty"`
	PestsAdded   int            `json:"pests_added,omitempty"`
	PestsRemoved int            `json:"pests_removed,omitempty"`
	PestTally    map[string]int `json:"pest_tally,omitempty"`

	SprayArmed         bool `json:"spray_armed,omitempty"`
	SprayCanceled      bool `json:"spray_canceled,omitempty"`
	InsulationArmed    bool `json:"insulation_armed,omitempty"`
	InsulationCanceled bool `json:"insulation_canceled,omitempty"`
}

// Engine draws and applies events. Not safe for concurrent use.
type Engine struct {
	rng    entropy.Source
	forced *Kind
}

// NewEngine creates an engine drawing from rng.
func NewEngine(rng entropy.Source) *Engine {
	return &Engine{rng: rng}
}

// Force queues kind as the next event instead of a random draw.
func (e *Engine) Force(kind Kind) {
	e.forced = &kind
}

// Forced returns the queued override, if any.
func (e *Engine) Forced() (Kind, bool) {
	if e.forced == nil {
		return 0, false
	}
	return *e.forced, true
}

// Unforce drops any queued override.
func (e *Engine) Unforce() {
	e.forced = nil
}

// Next returns the queued override, consuming it, or a uniform draw.
func (e *Engine) Next() Kind {
	if e.forced != nil {
		k := *e.forced
		e.forced = nil
		return k
	}
	return All[e.rng.Intn(len(All))]
}

// Trigger draws the next event and applies it.
func (e *Engine) Trigger(g *garden.Grid, spray *defense.Spray, ins *defense.Insulation) Summary {
	return e.Apply(e.Next(), g, spray, ins)
}

// Apply runs a specific event against the garden.
func (e *Engine) Apply(kind Kind, g *garden.Grid, spray *defense.Spray, ins *defense.Insulation) Summary {
	s := Summary{Kind: kind}
	switch kind {
	case SunnyDay:
		e.sunny(&s, g, ins)
	case ChillyDay:
		e.chilly(&s, g, ins)
	case RainyDay:
		s.Watered = g.Rain()
		s.Affected = g.LivePositions()
		s.Message = fmt.Sprintf("Rainy day: %d plants watered", s.Watered)
	case PestInfestation:
		e.infest(&s, g, spray)
	case PerfectGrowth:
		s.Affected = g.LivePositions()
		for _, pos := range s.Affected {
			for i := 0; i < 2; i++ {
				if ok, _ := g.Water(pos.Row, pos.Col); ok {
					s.Watered++
				}
			}
		}
		g.ApplyTemperature(garden.IdealTemp)
		s.Message = fmt.Sprintf("Perfect growing conditions: %d plants thriving, temperature restored to %d°F",
			len(s.Affected), garden.IdealTemp)
	case GardenerVisit:
		s.Affected = g.LivePositions()
		s.PestsRemoved = g.ClearPests()
		if !spray.Idle() {
			s.SprayCanceled = true
		}
		spray.Cancel()
		for _, pos := range s.Affected {
			if ok, _ := g.Water(pos.Row, pos.Col); ok {
				s.Watered++
			}
		}
		s.Message = fmt.Sprintf("Gardener visit: %d pests removed, %d plants watered", s.PestsRemoved, s.Watered)
	default:
		s.Message = fmt.Sprintf("no such event %s", kind)
		s.Warn = true
	}
	s.Temperature = g.Temperature()
	return s
}

func (e *Engine) sunny(s *Summary, g *garden.Grid, ins *defense.Insulation) {
	s.Dried = g.DryAll()
	temp := SunnyMinTemp + e.rng.Intn(SunnyMaxTemp-SunnyMinTemp+1)
	s.Stressed = g.ApplyTemperature(temp)
	s.Affected = g.LivePositions()
	if !ins.Idle() {
		ins.Cancel()
		s.InsulationCanceled = true
	}
	s.Message = fmt.Sprintf("Sunny day: temperature rose to %d°F, plants are drying faster", temp)
}

func (e *Engine) chilly(s *Summary, g *garden.Grid, ins *defense.Insulation) {
	temp := ChillyMaxTemp - e.rng.Intn(ChillyMaxTemp-ChillyMinTemp+1)
	s.Stressed = g.ApplyTemperature(temp)
	s.Affected = g.LivePositions()
	ins.Arm(defense.InsulationBudget)
	s.InsulationArmed = true
	s.Message = fmt.Sprintf("Chilly day: temperature dropped to %d°F, insulation cover engages next cycle (%d cycles)",
		temp, defense.InsulationBudget)
}

func (e *Engine) infest(s *Summary, g *garden.Grid, spray *defense.Spray) {
	s.PestTally = make(map[string]int)
	for _, pos := range g.LivePositions() {
		if !entropy.Chance(e.rng, InfestationOdds) {
			continue
		}
		p, _ := g.At(pos.Row, pos.Col)
		kinds := garden.DefaultPests(p.Species)
		if len(kinds) == 0 {
			continue
		}
		kind := kinds[e.rng.Intn(len(kinds))]
		if ok, _ := g.SetPest(pos, kind); ok {
			s.PestsAdded++
			s.PestTally[kind]++
			s.Affected = append(s.Affected, pos)
		}
	}
	s.Warn = true
	if s.PestsAdded > 0 {
		spray.Arm()
		s.SprayArmed = true
	}
	s.Message = fmt.Sprintf("Pest infestation: %d plants infested%s", s.PestsAdded, tally(s.PestTally))
}

// tally formats a pest count map as " (aphid x2, locust x1)" in name order.
func tally(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s x%d", n, counts[n])
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
