// Package garden holds the plant model and the grid that owns it.
// A Plant is a value: the Grid replaces cells wholesale on death and
// replanting, and clones are cheap.
package garden

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Plant and pest constants.
const (
	MaxHealth   = 100
	MaxMoisture = 100

	NewPlantHealth   = 100
	NewPlantMoisture = 70

	WaterMoisture = 20 // Moisture restored per watering
	WaterHealth   = 5  // Health restored per watering

	DryRate         = 1  // Moisture lost per DryOut
	ThirstyMoisture = 30 // Below this, DryOut also damages health
	PestPlantDamage = 10 // Flat, not species-scaled
	PestStartHealth = 20

	BaseHeatDamage    = 8
	BaseColdDamage    = 2
	SunflowerHeatGain = 3
)

// ErrUnknownSpecies is returned when a species name cannot be parsed.
var ErrUnknownSpecies = errors.New("unknown species")

// Species identifies what grows in a cell. Empty is bare soil.
type Species uint8

const (
	Empty Species = iota
	Carrot
	Cherry
	Corn
	Pumpkin
	Sunflower
)

// Planted lists every non-Empty species in table order.
var Planted = []Species{Carrot, Cherry, Corn, Pumpkin, Sunflower}

var speciesNames = [...]string{
	Empty:     "Empty",
	Carrot:    "Carrot",
	Cherry:    "Cherry",
	Corn:      "Corn",
	Pumpkin:   "Pumpkin",
	Sunflower: "Sunflower",
}

// String returns the display name.
func (s Species) String() string {
	if int(s) < len(speciesNames) {
		return speciesNames[s]
	}
	return fmt.Sprintf("Species(%d)", s)
}

// MarshalText implements encoding.TextMarshaler so snapshots carry names.
func (s Species) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Species) UnmarshalText(b []byte) error {
	sp, err := ParseSpecies(string(b))
	if err != nil {
		return err
	}
	*s = sp
	return nil
}

// ParseSpecies maps a name to a Species, case-insensitively.
func ParseSpecies(name string) (Species, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "empty", "empty soil", "noplant", "none":
		return Empty, nil
	case "carrot":
		return Carrot, nil
	case "cherry":
		return Cherry, nil
	case "corn":
		return Corn, nil
	case "pumpkin":
		return Pumpkin, nil
	case "sunflower":
		return Sunflower, nil
	}
	return Empty, fmt.Errorf("%w: %q", ErrUnknownSpecies, name)
}

// Traits is the per-species resistance table. Multipliers scale base
// damage; lower is more resistant.
type Traits struct {
	Drought float64
	Heat    float64
	Cold    float64

	// HeatResponse, when set, replaces the default heat rule. It returns
	// the signed health delta for the given temperature and whether it
	// handled the case; unhandled temperatures fall back to the default.
	HeatResponse func(temp int) (delta int, handled bool)
}

var traitTable = map[Species]Traits{
	Carrot:    {Drought: 1.2, Heat: 1.5, Cold: 0.7},
	Cherry:    {Drought: 0.8, Heat: 1.0, Cold: 1.5},
	Corn:      {Drought: 1.7, Heat: 0.6, Cold: 1.8},
	Pumpkin:   {Drought: 1.3, Heat: 0.8, Cold: 0.9},
	Sunflower: {Drought: 0.6, Heat: 0.5, Cold: 1.6, HeatResponse: sunflowerHeat},
}

// sunflowerHeat: moderate heat feeds sunflowers, extreme heat hurts them.
func sunflowerHeat(temp int) (int, bool) {
	switch {
	case temp > 85:
		return 0, false
	case temp > 75:
		return SunflowerHeatGain, true
	default:
		return 0, true
	}
}

// TraitsOf returns the trait row for a species. Empty has none.
func TraitsOf(s Species) (Traits, bool) {
	t, ok := traitTable[s]
	return t, ok
}

// Pest is an infestation attached to a plant. The zero value means none.
type Pest struct {
	Kind   string `json:"kind"`
	Health int    `json:"health"`
}

// Stage is a coarse growth stage derived from moisture and health.
type Stage uint8

const (
	StageBare Stage = iota
	StageWilting
	StageGrowing
	StageGrown
)

var stageNames = [...]string{"bare", "wilting", "growing", "grown"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(b []byte) error {
	for i, name := range stageNames {
		if name == string(b) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", b)
}

// Plant is one cell's living content.
type Plant struct {
	Species  Species `json:"species"`
	Health   int     `json:"health"`
	Moisture int     `json:"moisture"`
	Pest     Pest    `json:"pest"`
}

// NewPlant returns a fresh plant of the given species. Empty yields bare soil.
func NewPlant(s Species) Plant {
	if s == Empty {
		return Plant{}
	}
	return Plant{Species: s, Health: NewPlantHealth, Moisture: NewPlantMoisture}
}

// IsEmpty reports whether the cell is bare soil.
func (p *Plant) IsEmpty() bool {
	return p.Species == Empty
}

// Alive reports whether the plant is a living non-Empty plant.
func (p *Plant) Alive() bool {
	return p.Species != Empty && p.Health > 0
}

// HasPest reports whether the plant is infested.
func (p *Plant) HasPest() bool {
	return p.Pest.Kind != ""
}

// Water adds moisture and a little health.
func (p *Plant) Water() {
	if p.IsEmpty() {
		return
	}
	p.Moisture = min(MaxMoisture, p.Moisture+WaterMoisture)
	p.Health = min(MaxHealth, p.Health+WaterHealth)
}

// DryOut drains moisture; a thirsty plant also loses health scaled by
// its drought resistance.
func (p *Plant) DryOut() {
	if p.IsEmpty() {
		return
	}
	p.Moisture = max(0, p.Moisture-DryRate)
	if p.Moisture >= ThirstyMoisture {
		return
	}
	base := (ThirstyMoisture-p.Moisture)/10 + 1
	t, _ := TraitsOf(p.Species)
	p.damage(scale(base, t.Drought))
}

// ThirstDamage returns the health DryOut would remove at the given moisture.
func ThirstDamage(s Species, moisture int) int {
	t, ok := TraitsOf(s)
	if !ok || moisture >= ThirstyMoisture {
		return 0
	}
	return scale((ThirstyMoisture-moisture)/10+1, t.Drought)
}

// ApplyPestDamage removes a flat amount of health if infested.
func (p *Plant) ApplyPestDamage() {
	if p.HasPest() {
		p.damage(PestPlantDamage)
	}
}

// ApplyHeatDamage applies heat stress and returns the signed health delta
// (negative for damage, positive when the species thrives in the heat).
func (p *Plant) ApplyHeatDamage(temp int) int {
	t, ok := TraitsOf(p.Species)
	if !ok {
		return 0
	}
	if t.HeatResponse != nil {
		if delta, handled := t.HeatResponse(temp); handled {
			before := p.Health
			p.Health = min(MaxHealth, max(0, p.Health+delta))
			return p.Health - before
		}
	}
	return -p.damage(scale(BaseHeatDamage, t.Heat))
}

// ApplyColdDamage applies frost stress and returns the damage dealt.
func (p *Plant) ApplyColdDamage(temp int) int {
	t, ok := TraitsOf(p.Species)
	if !ok {
		return 0
	}
	return p.damage(scale(BaseColdDamage, t.Cold))
}

// SetPest infests the plant with kind; an empty kind clears the pest.
func (p *Plant) SetPest(kind string) {
	if kind == "" {
		p.Pest = Pest{}
		return
	}
	p.Pest = Pest{Kind: kind, Health: PestStartHealth}
}

// DamagePest hurts the pest and clears it once its health is gone.
// Reports whether the pest was cleared.
func (p *Plant) DamagePest(amount int) bool {
	if !p.HasPest() {
		return false
	}
	p.Pest.Health -= amount
	if p.Pest.Health <= 0 {
		p.Pest = Pest{}
		return true
	}
	return false
}

// Stage derives the growth stage.
func (p *Plant) Stage() Stage {
	switch {
	case p.IsEmpty():
		return StageBare
	case p.Moisture > 60 && p.Health > 80:
		return StageGrown
	case p.Moisture < ThirstyMoisture || p.Health < 50:
		return StageWilting
	default:
		return StageGrowing
	}
}

// damage subtracts n (>= 0) from health, floored at 0, and returns the
// amount actually removed.
func (p *Plant) damage(n int) int {
	if n <= 0 {
		return 0
	}
	before := p.Health
	p.Health = max(0, p.Health-n)
	return before - p.Health
}

// scale multiplies a base amount by a resistance multiplier, rounding down.
func scale(base int, mult float64) int {
	v := int(math.Floor(float64(base)*mult + 1e-9))
	return max(0, v)
}
