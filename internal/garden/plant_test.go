package garden

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaterCapsAndSkipsSoil(t *testing.T) {
	p := NewPlant(Corn)
	p.Moisture = 95
	p.Health = 98
	p.Water()
	assert.Equal(t, 100, p.Moisture)
	assert.Equal(t, 100, p.Health)

	soil := NewPlant(Empty)
	soil.Water()
	assert.Equal(t, Plant{}, soil)
}

func TestDryOutThirstThreshold(t *testing.T) {
	tests := []struct {
		name       string
		species    Species
		moisture   int
		wantHealth int
	}{
		{"wet enough", Carrot, 31, 100},
		{"just thirsty carrot", Carrot, 30, 99},
		{"mid thirsty corn", Corn, 16, 97},
		{"parched pumpkin", Pumpkin, 1, 95},
		{"parched sunflower", Sunflower, 0, 98},
		{"dry cherry", Cherry, 5, 98},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlant(tt.species)
			p.Moisture = tt.moisture
			p.DryOut()
			assert.Equal(t, max(0, tt.moisture-1), p.Moisture)
			assert.Equal(t, tt.wantHealth, p.Health)
		})
	}
}

func TestDryOutNeverHurtsAboveThreshold(t *testing.T) {
	for _, s := range Planted {
		p := NewPlant(s)
		p.Moisture = 100
		for i := 0; i < 70; i++ {
			p.DryOut()
		}
		assert.Equal(t, 30, p.Moisture, s.String())
		assert.Equal(t, 100, p.Health, s.String())
	}
}

func TestHeatDamageBySpecies(t *testing.T) {
	want := map[Species]int{
		Carrot:    -12, // 8*1.5
		Cherry:    -8,
		Corn:      -4, // 8*0.6 = 4.8
		Pumpkin:   -6, // 8*0.8 = 6.4
		Sunflower: 3,  // thrives at 80°F
	}
	for s, delta := range want {
		p := NewPlant(s)
		p.Health = 90
		got := p.ApplyHeatDamage(80)
		assert.Equal(t, delta, got, s.String())
		assert.Equal(t, 90+delta, p.Health, s.String())
	}
}

func TestSunflowerExtremeHeat(t *testing.T) {
	p := NewPlant(Sunflower)
	assert.Equal(t, -4, p.ApplyHeatDamage(90))
	assert.Equal(t, 96, p.Health)

	p.Health = 99
	assert.Equal(t, 1, p.ApplyHeatDamage(85), "gain is capped at max health")
	assert.Equal(t, 100, p.Health)
}

func TestColdDamageBySpecies(t *testing.T) {
	want := map[Species]int{
		Carrot:    1, // 2*0.7
		Cherry:    3,
		Corn:      3, // 3.6
		Pumpkin:   1, // 1.8
		Sunflower: 3, // 3.2
	}
	for s, dmg := range want {
		p := NewPlant(s)
		assert.Equal(t, dmg, p.ApplyColdDamage(60), s.String())
		assert.Equal(t, 100-dmg, p.Health, s.String())
	}

	soil := NewPlant(Empty)
	assert.Zero(t, soil.ApplyColdDamage(40))
	assert.Zero(t, soil.ApplyHeatDamage(100))
}

func TestPestLifecycle(t *testing.T) {
	p := NewPlant(Carrot)
	p.ApplyPestDamage()
	assert.Equal(t, 100, p.Health, "clean plant takes no pest damage")

	p.SetPest("aphid")
	require.True(t, p.HasPest())
	assert.Equal(t, PestStartHealth, p.Pest.Health)

	p.ApplyPestDamage()
	assert.Equal(t, 90, p.Health)

	assert.False(t, p.DamagePest(8))
	assert.Equal(t, 12, p.Pest.Health)
	assert.False(t, p.DamagePest(3))
	assert.True(t, p.DamagePest(9))
	assert.False(t, p.HasPest())
	assert.Equal(t, Pest{}, p.Pest)

	p.SetPest("caterpillar")
	p.SetPest("")
	assert.False(t, p.HasPest())
}

func TestHealthFloorsAtZero(t *testing.T) {
	p := NewPlant(Carrot)
	p.Health = 5
	p.SetPest("aphid")
	p.ApplyPestDamage()
	assert.Equal(t, 0, p.Health)
	assert.False(t, p.Alive())
}

func TestParseSpecies(t *testing.T) {
	for _, s := range append([]Species{Empty}, Planted...) {
		got, err := ParseSpecies(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	got, err := ParseSpecies("  sunFLOWER ")
	require.NoError(t, err)
	assert.Equal(t, Sunflower, got)

	got, err = ParseSpecies("Empty Soil")
	require.NoError(t, err)
	assert.Equal(t, Empty, got)

	_, err = ParseSpecies("tomato")
	assert.ErrorIs(t, err, ErrUnknownSpecies)

	for _, blank := range []string{"", "   "} {
		_, err = ParseSpecies(blank)
		assert.ErrorIs(t, err, ErrUnknownSpecies, "%q must not clear a cell", blank)
	}
}

func TestStage(t *testing.T) {
	p := NewPlant(Carrot)
	assert.Equal(t, StageGrown, p.Stage())
	p.Moisture = 50
	assert.Equal(t, StageGrowing, p.Stage())
	p.Moisture = 20
	assert.Equal(t, StageWilting, p.Stage())
	soil := NewPlant(Empty)
	assert.Equal(t, StageBare, soil.Stage())
}

func TestDefaultPests(t *testing.T) {
	assert.Equal(t, []string{"aphid", "caterpillar"}, DefaultPests(Carrot))
	assert.Equal(t, []string{"bird", "weevil"}, DefaultPests(Cherry))
	assert.Equal(t, []string{"locust"}, DefaultPests(Corn))
	assert.Equal(t, []string{"squashBug"}, DefaultPests(Pumpkin))
	assert.Equal(t, []string{"aphid"}, DefaultPests(Sunflower))
	assert.Empty(t, DefaultPests(Empty))

	// Callers cannot corrupt the table.
	got := DefaultPests(Corn)
	got[0] = "mutated"
	assert.Equal(t, []string{"locust"}, DefaultPests(Corn))

	assert.True(t, Vulnerable(Pumpkin, "squashBug"))
	assert.False(t, Vulnerable(Pumpkin, "aphid"))
	assert.True(t, KnownPest("weevil"))
	assert.False(t, KnownPest("dragon"))
}

func TestFormatPestName(t *testing.T) {
	assert.Equal(t, "Squash Bug", FormatPestName("squashBug"))
	assert.Equal(t, "Aphid", FormatPestName("aphid"))
	assert.Equal(t, "", FormatPestName(""))
}
