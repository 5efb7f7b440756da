// Initial garden layouts for when no seed file is supplied.
package garden

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/mini-garden/internal/entropy"
)

// Planting is one initial (position, species) assignment.
type Planting struct {
	Pos     Pos     `json:"pos"`
	Species Species `json:"species"`
}

// RandomLayout fills each cell independently: bare soil with probability
// 2/7, otherwise one of the five species uniformly.
func RandomLayout(rows, cols int, rng entropy.Source) []Planting {
	out := make([]Planting, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			s := Empty
			// 0 and 6 stay soil, 1..5 map onto the species table.
			if n := rng.Intn(7); n >= 1 && n <= len(Planted) {
				s = Planted[n-1]
			}
			out = append(out, Planting{Pos: Pos{r, c}, Species: s})
		}
	}
	return out
}

// NoiseConfig tunes NoiseLayout.
type NoiseConfig struct {
	Seed       int64
	Scale      float64 // Noise frequency; smaller values give larger beds
	Bare       float64 // Noise threshold (0..1) below which a cell stays soil
	Octaves    int
	Lacunarity float64
}

// DefaultNoiseConfig returns settings that give beds of two to four cells
// on a 5×5 garden.
func DefaultNoiseConfig(seed int64) NoiseConfig {
	return NoiseConfig{
		Seed:       seed,
		Scale:      0.35,
		Bare:       0.3,
		Octaves:    2,
		Lacunarity: 2.0,
	}
}

// NoiseLayout plants species in clustered beds. A species field and a
// soil field are sampled from independent simplex noise so neighbouring
// cells tend to share a species and bare patches form clearings.
func NoiseLayout(rows, cols int, cfg NoiseConfig) []Planting {
	speciesNoise := opensimplex.NewNormalized(cfg.Seed)
	soilNoise := opensimplex.NewNormalized(cfg.Seed + 1)

	out := make([]Planting, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, y := float64(c), float64(r)
			soil := octaveNoise(soilNoise, x, y, cfg.Octaves, cfg.Scale, cfg.Lacunarity)
			if soil < cfg.Bare {
				out = append(out, Planting{Pos: Pos{r, c}, Species: Empty})
				continue
			}
			v := octaveNoise(speciesNoise, x, y, cfg.Octaves, cfg.Scale, cfg.Lacunarity)
			idx := int(math.Floor(v * float64(len(Planted))))
			idx = min(max(idx, 0), len(Planted)-1)
			out = append(out, Planting{Pos: Pos{r, c}, Species: Planted[idx]})
		}
	}
	return out
}

// octaveNoise sums octaves of normalized noise and renormalizes to [0, 1].
func octaveNoise(n opensimplex.Noise, x, y float64, octaves int, freq, lacunarity float64) float64 {
	if octaves < 1 {
		octaves = 1
	}
	total, amp, norm := 0.0, 1.0, 0.0
	for i := 0; i < octaves; i++ {
		total += n.Eval2(x*freq, y*freq) * amp
		norm += amp
		amp *= 0.5
		freq *= lacunarity
	}
	return total / norm
}
