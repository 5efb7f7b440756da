// Package defense implements the garden's two delayed countermeasures:
// the pest spray and the insulation cover. Both are small state machines
// stepped once per tick by the simulation.
package defense

import "github.com/talgya/mini-garden/internal/garden"

// Spray schedule.
const (
	SprayCycles      = 5
	SprayFirstDamage = 8 // Pest damage on the first active cycle
	SprayDamage      = 3 // Pest damage on every later cycle
)

// Spray is the pest defense. An infestation arms it; the next tick
// activates it and it then damages every pest for SprayCycles ticks.
type Spray struct {
	Pending    bool `json:"pending"`
	Active     bool `json:"active"`
	CyclesLeft int  `json:"cycles_left"`

	// Set when an infestation arrives mid-round. The next round is armed
	// when the current one ends.
	rearm bool
}

// SprayResult reports one Apply step.
type SprayResult struct {
	Sprayed []garden.Pos `json:"sprayed"`
	Cleared []garden.Pos `json:"cleared"`
	Damage  int          `json:"damage"`
	Ended   bool         `json:"ended"`
}

// Arm schedules a spray round for the next tick.
func (s *Spray) Arm() {
	if s.Active {
		s.rearm = true
		return
	}
	s.Pending = true
}

// Activate starts a pending round. Reports whether it did.
func (s *Spray) Activate() bool {
	if !s.Pending {
		return false
	}
	s.Pending = false
	s.Active = true
	s.CyclesLeft = SprayCycles
	return true
}

// Apply runs one spray cycle against every infested cell.
func (s *Spray) Apply(g *garden.Grid) SprayResult {
	var res SprayResult
	if !s.Active || s.CyclesLeft <= 0 {
		return res
	}

	res.Damage = SprayDamage
	if s.CyclesLeft == SprayCycles {
		res.Damage = SprayFirstDamage
	}
	for _, pos := range g.Infested() {
		res.Sprayed = append(res.Sprayed, pos)
		if g.DamagePest(pos, res.Damage) {
			res.Cleared = append(res.Cleared, pos)
		}
	}

	s.CyclesLeft--
	if s.CyclesLeft == 0 {
		s.Active = false
		res.Ended = true
		if s.rearm {
			s.rearm = false
			s.Pending = true
		}
	}
	return res
}

// Cancel stops any pending or running round.
func (s *Spray) Cancel() {
	*s = Spray{}
}

// Idle reports whether the spray is neither pending nor running.
func (s *Spray) Idle() bool {
	return !s.Pending && !s.Active
}
