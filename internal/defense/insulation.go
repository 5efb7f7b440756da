package defense

import "github.com/talgya/mini-garden/internal/garden"

// InsulationBudget is the nominal number of cycles a cover is armed for.
const InsulationBudget = 6

// Insulation is the thermal regulator. A chilly day arms it; the next
// tick engages the cover, which then warms the garden by 1°F per tick
// until the ideal band is reached.
type Insulation struct {
	Pending bool `json:"pending"`
	Active  bool `json:"active"`
	Budget  int  `json:"budget"`
}

// InsulationResult reports one Apply step.
type InsulationResult struct {
	Frosted     int  `json:"frosted"`     // Plants hurt by the cold this tick
	Temperature int  `json:"temperature"` // Garden temperature after the step
	Warmed      bool `json:"warmed"`
	Completed   bool `json:"completed"`
}

// Arm schedules a cover with the given budget for the next tick. A cover
// that is already on keeps running with a refreshed budget.
func (in *Insulation) Arm(budget int) {
	in.Budget = budget
	if in.Active {
		return
	}
	in.Pending = true
}

// Activate engages a pending cover. Reports whether it did.
func (in *Insulation) Activate() bool {
	if !in.Pending {
		return false
	}
	in.Pending = false
	in.Active = true
	return true
}

// Apply runs one regulation step: frost damage while the garden is below
// the ideal band, then the warming ramp if the cover is on. The cover
// comes off as soon as the band is reached; the budget does not cut it
// short.
func (in *Insulation) Apply(g *garden.Grid) InsulationResult {
	var res InsulationResult
	if g.Temperature() < garden.IdealTempLower {
		res.Frosted = g.Frost()
	}

	if in.Active {
		if t := g.Temperature(); t < garden.IdealTempLower {
			g.SetTemperatureSilently(min(t+1, garden.IdealTempLower))
			res.Warmed = true
		}
		in.Budget = max(0, in.Budget-1)
		if g.Temperature() >= garden.IdealTempLower {
			in.Active = false
			in.Budget = 0
			res.Completed = true
		}
	}

	res.Temperature = g.Temperature()
	return res
}

// Cancel removes any pending or active cover.
func (in *Insulation) Cancel() {
	*in = Insulation{}
}

// Idle reports whether no cover is pending or on.
func (in *Insulation) Idle() bool {
	return !in.Pending && !in.Active
}
