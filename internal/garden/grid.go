package garden

import (
	"errors"
	"fmt"

	"github.com/talgya/mini-garden/internal/entropy"
)

// Grid constants.
const (
	DefaultRows        = 5
	DefaultCols        = 5
	DefaultTemperature = 70

	IdealTempLower = 65
	IdealTempUpper = 75
	IdealTemp      = (IdealTempLower + IdealTempUpper) / 2

	ReplantDelay = 3 // Cycles between a death and the automatic respawn
	noReplant    = -1
)

// ErrOutOfBounds is returned for cell coordinates outside the grid.
var ErrOutOfBounds = errors.New("cell out of bounds")

// Pos is a cell coordinate.
type Pos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Pos) String() string {
	return fmt.Sprintf("[%d,%d]", p.Row, p.Col)
}

// Death records a plant that died and was cleared to soil.
type Death struct {
	Pos     Pos     `json:"pos"`
	Species Species `json:"species"`
}

// Respawn records an automatic replanting after a death.
type Respawn struct {
	Pos     Pos     `json:"pos"`
	Species Species `json:"species"`
}

// UpdateResult summarizes one Update cycle.
type UpdateResult struct {
	Deaths    []Death   `json:"deaths"`
	Respawns  []Respawn `json:"respawns"`
	PestBites []Pos     `json:"pest_bites"`
}

// Grid is the garden: a fixed rectangle of plants plus garden-wide state.
// Not safe for concurrent use; the owner serializes access.
type Grid struct {
	rows, cols int
	cells      [][]Plant
	replant    [][]int

	temperature int
	dead        int
	planted     int
	watered     int

	// Deaths since the last DrainDeaths, from any path.
	deaths []Death

	rng entropy.Source
}

// NewGrid creates an all-soil grid at the default temperature.
func NewGrid(rows, cols int, rng entropy.Source) *Grid {
	if rows <= 0 || cols <= 0 {
		panic(fmt.Sprintf("garden: invalid grid size %dx%d", rows, cols))
	}
	g := &Grid{
		rows:        rows,
		cols:        cols,
		cells:       make([][]Plant, rows),
		replant:     make([][]int, rows),
		temperature: DefaultTemperature,
		rng:         rng,
	}
	for r := range g.cells {
		g.cells[r] = make([]Plant, cols)
		g.replant[r] = make([]int, cols)
		for c := range g.replant[r] {
			g.replant[r][c] = noReplant
		}
	}
	return g
}

// Rows returns the row count.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the column count.
func (g *Grid) Cols() int { return g.cols }

// InBounds reports whether (r, c) is a valid cell.
func (g *Grid) InBounds(r, c int) bool {
	return r >= 0 && r < g.rows && c >= 0 && c < g.cols
}

func (g *Grid) check(r, c int) error {
	if !g.InBounds(r, c) {
		return fmt.Errorf("%w: [%d,%d] in %dx%d grid", ErrOutOfBounds, r, c, g.rows, g.cols)
	}
	return nil
}

// At returns a copy of the plant at (r, c).
func (g *Grid) At(r, c int) (Plant, error) {
	if err := g.check(r, c); err != nil {
		return Plant{}, err
	}
	return g.cells[r][c], nil
}

// ReplantIn returns the respawn countdown for a cell, or -1 when inactive.
func (g *Grid) ReplantIn(r, c int) int {
	if !g.InBounds(r, c) {
		return noReplant
	}
	return g.replant[r][c]
}

// AddPlant places a fresh plant of species s at (r, c), replacing whatever
// is there and cancelling any pending respawn for that cell.
func (g *Grid) AddPlant(r, c int, s Species) error {
	if err := g.check(r, c); err != nil {
		return err
	}
	g.cells[r][c] = NewPlant(s)
	g.replant[r][c] = noReplant
	if s != Empty {
		g.planted++
	}
	return nil
}

// Water waters a live plant. Reports whether anything was watered.
func (g *Grid) Water(r, c int) (bool, error) {
	if err := g.check(r, c); err != nil {
		return false, err
	}
	return g.water(r, c), nil
}

// WaterSilently is Water for automated passes; callers skip the user
// notification but the watering is still counted.
func (g *Grid) WaterSilently(r, c int) (bool, error) {
	if err := g.check(r, c); err != nil {
		return false, err
	}
	return g.water(r, c), nil
}

func (g *Grid) water(r, c int) bool {
	p := &g.cells[r][c]
	if !p.Alive() {
		return false
	}
	p.Water()
	g.watered++
	return true
}

// Update advances every cell by one cycle: drying, pest bites, deaths,
// then respawn countdowns once all deaths are resolved.
func (g *Grid) Update() UpdateResult {
	var res UpdateResult

	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			p := &g.cells[r][c]
			if p.IsEmpty() {
				continue
			}
			p.DryOut()
			// Pests bite half the time, rolled per cell.
			if p.HasPest() && entropy.Chance(g.rng, 2) {
				p.ApplyPestDamage()
				res.PestBites = append(res.PestBites, Pos{r, c})
			}
			if d, ok := g.reap(r, c); ok {
				res.Deaths = append(res.Deaths, d)
			}
		}
	}

	// Cells that died this cycle start counting down on the next one.
	fresh := make(map[Pos]bool, len(res.Deaths))
	for _, d := range res.Deaths {
		fresh[d.Pos] = true
	}

	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if g.replant[r][c] <= noReplant || fresh[Pos{r, c}] {
				continue
			}
			g.replant[r][c]--
			if g.replant[r][c] > 0 {
				continue
			}
			s := g.randomSpecies()
			g.cells[r][c] = NewPlant(s)
			g.replant[r][c] = noReplant
			g.planted++
			res.Respawns = append(res.Respawns, Respawn{Pos: Pos{r, c}, Species: s})
		}
	}

	return res
}

// reap clears a dead plant to soil and schedules its respawn.
func (g *Grid) reap(r, c int) (Death, bool) {
	p := &g.cells[r][c]
	if p.IsEmpty() || p.Health > 0 {
		return Death{}, false
	}
	d := Death{Pos: Pos{r, c}, Species: p.Species}
	g.cells[r][c] = Plant{}
	g.dead++
	g.replant[r][c] = ReplantDelay
	g.deaths = append(g.deaths, d)
	return d, true
}

// DrainDeaths returns and forgets every death recorded since the last call.
func (g *Grid) DrainDeaths() []Death {
	d := g.deaths
	g.deaths = nil
	return d
}

// Rain waters every live plant and returns how many were watered.
func (g *Grid) Rain() int {
	count := 0
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if g.water(r, c) {
				count++
			}
		}
	}
	return count
}

// DryAll applies an extra DryOut to every plant and returns how many dried.
func (g *Grid) DryAll() int {
	count := 0
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			p := &g.cells[r][c]
			if p.IsEmpty() {
				continue
			}
			p.DryOut()
			count++
			g.reap(r, c)
		}
	}
	return count
}

// ApplyTemperature sets the garden temperature and applies heat or cold
// stress to every live plant. Returns the number of plants affected.
func (g *Grid) ApplyTemperature(temp int) int {
	g.temperature = temp
	affected := 0
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			p := &g.cells[r][c]
			if !p.Alive() {
				continue
			}
			switch {
			case temp > IdealTempUpper:
				p.ApplyHeatDamage(temp)
				p.DryOut()
			case temp < IdealTempLower:
				p.ApplyColdDamage(temp)
			default:
				continue
			}
			affected++
			g.reap(r, c)
		}
	}
	return affected
}

// Frost applies cold damage to every live plant at the current
// temperature without changing it. Returns the number affected.
func (g *Grid) Frost() int {
	affected := 0
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			p := &g.cells[r][c]
			if !p.Alive() {
				continue
			}
			p.ApplyColdDamage(g.temperature)
			affected++
			g.reap(r, c)
		}
	}
	return affected
}

// SetTemperatureSilently changes the temperature with no stress pass.
func (g *Grid) SetTemperatureSilently(temp int) {
	g.temperature = temp
}

// Temperature returns the current garden temperature in °F.
func (g *Grid) Temperature() int { return g.temperature }

// SetPest infests the plant at pos with kind. Reports whether it applied
// (soil and dead plants cannot host pests).
func (g *Grid) SetPest(pos Pos, kind string) (bool, error) {
	if err := g.check(pos.Row, pos.Col); err != nil {
		return false, err
	}
	p := &g.cells[pos.Row][pos.Col]
	if !p.Alive() {
		return false, nil
	}
	p.SetPest(kind)
	return true, nil
}

// DamagePest hurts the pest at pos. Reports whether the pest was cleared.
func (g *Grid) DamagePest(pos Pos, amount int) bool {
	if !g.InBounds(pos.Row, pos.Col) {
		return false
	}
	return g.cells[pos.Row][pos.Col].DamagePest(amount)
}

// ClearPests removes every pest and returns how many were removed.
func (g *Grid) ClearPests() int {
	count := 0
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if g.cells[r][c].HasPest() {
				g.cells[r][c].SetPest("")
				count++
			}
		}
	}
	return count
}

// Infested returns the positions of every infested plant in row-major order.
func (g *Grid) Infested() []Pos {
	var out []Pos
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if g.cells[r][c].HasPest() {
				out = append(out, Pos{r, c})
			}
		}
	}
	return out
}

// LivePositions returns the positions of every live plant in row-major order.
func (g *Grid) LivePositions() []Pos {
	var out []Pos
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if g.cells[r][c].Alive() {
				out = append(out, Pos{r, c})
			}
		}
	}
	return out
}

// PlantRandom plants a random species in a random empty cell.
// Reports false when the garden has no bare soil.
func (g *Grid) PlantRandom() (Pos, Species, bool) {
	var empty []Pos
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if g.cells[r][c].IsEmpty() {
				empty = append(empty, Pos{r, c})
			}
		}
	}
	if len(empty) == 0 {
		return Pos{}, Empty, false
	}
	pos := empty[g.rng.Intn(len(empty))]
	s := g.randomSpecies()
	g.AddPlant(pos.Row, pos.Col, s)
	return pos, s, true
}

func (g *Grid) randomSpecies() Species {
	return Planted[g.rng.Intn(len(Planted))]
}

// Clear resets every cell to soil and zeroes the counters.
func (g *Grid) Clear() {
	for r := range g.cells {
		for c := range g.cells[r] {
			g.cells[r][c] = Plant{}
			g.replant[r][c] = noReplant
		}
	}
	g.deaths = nil
	g.ResetStats()
}

// ResetStats zeroes the cumulative counters.
func (g *Grid) ResetStats() {
	g.dead = 0
	g.planted = 0
	g.watered = 0
}

// LiveCount returns the number of non-Empty cells.
func (g *Grid) LiveCount() int {
	n := 0
	g.each(func(_ Pos, p *Plant) {
		if !p.IsEmpty() {
			n++
		}
	})
	return n
}

// EmptyCount returns the number of bare-soil cells.
func (g *Grid) EmptyCount() int {
	return g.rows*g.cols - g.LiveCount()
}

// DeadCount returns the cumulative number of deaths.
func (g *Grid) DeadCount() int { return g.dead }

// PlantedCount returns the cumulative number of plantings, respawns included.
func (g *Grid) PlantedCount() int { return g.planted }

// WateredCount returns the cumulative number of waterings.
func (g *Grid) WateredCount() int { return g.watered }

// SpeciesCounts returns how many cells hold each species, Empty included.
func (g *Grid) SpeciesCounts() map[Species]int {
	counts := make(map[Species]int, len(Planted)+1)
	g.each(func(_ Pos, p *Plant) {
		counts[p.Species]++
	})
	return counts
}

func (g *Grid) each(fn func(Pos, *Plant)) {
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			fn(Pos{r, c}, &g.cells[r][c])
		}
	}
}

// Clone returns a deep copy sharing only the random source.
func (g *Grid) Clone() *Grid {
	cp := *g
	cp.cells = make([][]Plant, g.rows)
	cp.replant = make([][]int, g.rows)
	for r := range g.cells {
		cp.cells[r] = append([]Plant(nil), g.cells[r]...)
		cp.replant[r] = append([]int(nil), g.replant[r]...)
	}
	cp.deaths = append([]Death(nil), g.deaths...)
	return &cp
}
