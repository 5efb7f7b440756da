package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talgya/mini-garden/internal/events"
	"github.com/talgya/mini-garden/internal/garden"
	"github.com/talgya/mini-garden/internal/seed"
)

// Initialize replaces the garden with an all-soil rows×cols grid and
// plants the seed entries. Entries that name an unknown species, fall
// outside the grid or repeat an earlier entry's cell are skipped and
// reported; they never fail the call.
func (s *Simulation) Initialize(ctx context.Context, rows, cols int, entries []seed.Entry) (InitResult, error) {
	if rows <= 0 || cols <= 0 {
		return InitResult{}, fmt.Errorf("%w: %dx%d", ErrInvalidSize, rows, cols)
	}
	return call(ctx, s, "initialize", func() (InitResult, error) {
		g := garden.NewGrid(rows, cols, s.rng)
		res := InitResult{Rows: rows, Cols: cols}
		var info PlantsInfo
		seeded := make(map[garden.Pos]bool, len(entries))
		for i, e := range entries {
			pos := garden.Pos{Row: e.Row, Col: e.Col}
			sp, err := e.Resolve()
			if err == nil && seeded[pos] {
				err = ErrDuplicateCell
			}
			if err == nil {
				err = g.AddPlant(e.Row, e.Col, sp)
			}
			if err != nil {
				msg := fmt.Sprintf("entry %d (%d,%d,%s): %v", i+1, e.Row, e.Col, e.Plant, err)
				res.Skipped = append(res.Skipped, msg)
				s.record(slog.LevelWarn, "config", "Skipped seed "+msg, nil)
				continue
			}
			seeded[pos] = true
			if sp == garden.Empty {
				continue
			}
			res.Planted++
			info.Plants = append(info.Plants, sp.String())
			info.WaterRequirement = append(info.WaterRequirement, garden.WaterRequirement(sp))
			info.Parasites = append(info.Parasites, garden.DefaultPests(sp))
		}

		s.grid = g
		s.spray.Cancel()
		s.ins.Cancel()
		s.mu.Lock()
		s.plants = info
		s.mu.Unlock()

		s.record(slog.LevelInfo, "garden",
			fmt.Sprintf("Garden initialized: %dx%d, %d plants, %d entries skipped", rows, cols, res.Planted, len(res.Skipped)), nil)
		return res, nil
	})
}

// Plant places a fresh plant, replacing whatever grows there. Planting
// Empty clears the cell.
func (s *Simulation) Plant(ctx context.Context, r, c int, species garden.Species) error {
	return s.do(ctx, "plant", func() error {
		if err := s.grid.AddPlant(r, c, species); err != nil {
			return err
		}
		pos := garden.Pos{Row: r, Col: c}
		if species == garden.Empty {
			s.record(slog.LevelInfo, "manual", "Cleared "+cellName(pos), nil)
			return nil
		}
		s.record(slog.LevelInfo, "manual", fmt.Sprintf("Planted %s at %s", species, cellName(pos)), nil)
		return nil
	})
}

// Water waters one cell. Reports false for soil.
func (s *Simulation) Water(ctx context.Context, r, c int) (bool, error) {
	return call(ctx, s, "water", func() (bool, error) {
		ok, err := s.grid.Water(r, c)
		if err != nil || !ok {
			return false, err
		}
		p, _ := s.grid.At(r, c)
		s.record(slog.LevelInfo, "water",
			fmt.Sprintf("Watered %s at %s", p.Species, cellName(garden.Pos{Row: r, Col: c})), nil)
		return true, nil
	})
}

// WaterAll waters every live plant and returns how many were watered.
func (s *Simulation) WaterAll(ctx context.Context) (int, error) {
	return call(ctx, s, "water-all", func() (int, error) {
		n := 0
		for _, pos := range s.grid.LivePositions() {
			if ok, _ := s.grid.Water(pos.Row, pos.Col); ok {
				n++
			}
		}
		s.record(slog.LevelInfo, "water", fmt.Sprintf("Watered all %d plants", n), nil)
		return n, nil
	})
}

// AddPest infests target, or a random clean live plant when target is
// nil, with one of the species' pests. The spray arms for the next tick.
func (s *Simulation) AddPest(ctx context.Context, target *garden.Pos) (PestResult, error) {
	return call(ctx, s, "add-pest", func() (PestResult, error) {
		if target != nil {
			p, err := s.grid.At(target.Row, target.Col)
			if err != nil {
				return PestResult{}, err
			}
			if !p.Alive() {
				return PestResult{}, fmt.Errorf("%w: %s is bare soil", ErrNoHost, cellName(*target))
			}
			return s.infest(*target, p.Species), nil
		}

		var hosts []garden.Pos
		for _, pos := range s.grid.LivePositions() {
			if p, _ := s.grid.At(pos.Row, pos.Col); !p.HasPest() {
				hosts = append(hosts, pos)
			}
		}
		if len(hosts) == 0 {
			return PestResult{}, ErrNoHost
		}
		pos := hosts[s.rng.Intn(len(hosts))]
		p, _ := s.grid.At(pos.Row, pos.Col)
		return s.infest(pos, p.Species), nil
	})
}

// RemoveAllPests clears every pest and cancels the spray.
func (s *Simulation) RemoveAllPests(ctx context.Context) (int, error) {
	return call(ctx, s, "remove-pests", func() (int, error) {
		n := s.grid.ClearPests()
		s.spray.Cancel()
		s.record(LevelEvent, "pest", fmt.Sprintf("Removed %d pests, pest spray stopped", n), nil)
		return n, nil
	})
}

// TriggerEvent runs kind now, or the next random event when kind is nil.
func (s *Simulation) TriggerEvent(ctx context.Context, kind *events.Kind) (events.Summary, error) {
	return call(ctx, s, "event", func() (events.Summary, error) {
		if kind != nil {
			s.events.Force(*kind)
		}
		sum := s.events.Trigger(s.grid, &s.spray, &s.ins)
		s.applyEvent(sum)
		return sum, nil
	})
}

// ForceNextEvent makes kind the next automatic event.
func (s *Simulation) ForceNextEvent(ctx context.Context, kind events.Kind) error {
	return s.do(ctx, "force-event", func() error {
		s.events.Force(kind)
		s.record(slog.LevelInfo, "event", fmt.Sprintf("Next event set to %s", kind), nil)
		return nil
	})
}

// Rain waters every live plant.
func (s *Simulation) Rain(ctx context.Context) (int, error) {
	return call(ctx, s, "rain", func() (int, error) {
		n := s.grid.Rain()
		s.record(LevelEvent, "event", fmt.Sprintf("It's raining! %d plants have been watered", n), nil)
		return n, nil
	})
}

// SetTemperature applies a temperature with heat or cold stress and
// returns how many plants were affected.
func (s *Simulation) SetTemperature(ctx context.Context, temp int) (int, error) {
	return call(ctx, s, "temperature", func() (int, error) {
		n := s.grid.ApplyTemperature(temp)
		switch {
		case temp > garden.IdealTempUpper:
			s.record(slog.LevelWarn, "temperature",
				fmt.Sprintf("Heat wave! %d plants dried out and took heat damage at %d°F", n, temp), nil)
		case temp < garden.IdealTempLower:
			s.record(slog.LevelWarn, "temperature",
				fmt.Sprintf("Frost damage! %d plants lost health at %d°F", n, temp), nil)
		default:
			s.record(LevelEvent, "temperature", fmt.Sprintf("Ideal temperature: %d°F, no stress applied", temp), nil)
		}
		return n, nil
	})
}

// Parasite infests every live plant vulnerable to pestName.
func (s *Simulation) Parasite(ctx context.Context, pestName string) (int, error) {
	if !garden.KnownPest(pestName) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPest, pestName)
	}
	return call(ctx, s, "parasite", func() (int, error) {
		n := 0
		for _, pos := range s.grid.LivePositions() {
			p, _ := s.grid.At(pos.Row, pos.Col)
			if !garden.Vulnerable(p.Species, pestName) {
				continue
			}
			if ok, _ := s.grid.SetPest(pos, pestName); ok {
				n++
			}
		}
		if n > 0 {
			s.spray.Arm()
		}
		s.record(slog.LevelWarn, "pest",
			fmt.Sprintf("Parasite %s infested %d plants", garden.FormatPestName(pestName), n), nil)
		return n, nil
	})
}

// PlantRandom plants a random species in a random empty cell.
func (s *Simulation) PlantRandom(ctx context.Context) (garden.Planting, error) {
	return call(ctx, s, "plant-random", func() (garden.Planting, error) {
		pos, sp, ok := s.grid.PlantRandom()
		if !ok {
			return garden.Planting{}, ErrNoSoil
		}
		s.record(slog.LevelInfo, "manual", fmt.Sprintf("Planted %s at %s", sp, cellName(pos)), nil)
		return garden.Planting{Pos: pos, Species: sp}, nil
	})
}

// Update advances the garden by one Grid.Update outside the automation
// schedule.
func (s *Simulation) Update(ctx context.Context) (garden.UpdateResult, error) {
	return call(ctx, s, "update", func() (garden.UpdateResult, error) {
		res := s.grid.Update()
		s.journalUpdate(res)
		return res, nil
	})
}

// ResetStats zeroes the cumulative counters.
func (s *Simulation) ResetStats(ctx context.Context) error {
	return s.do(ctx, "reset-stats", func() error {
		s.grid.ResetStats()
		s.record(slog.LevelInfo, "manual", "Statistics reset", nil)
		return nil
	})
}

// SetAutomation starts or stops the attached engine. Reports whether the
// state changed.
func (s *Simulation) SetAutomation(running bool) (bool, error) {
	if s.engine == nil {
		return false, fmt.Errorf("no automation engine attached")
	}
	if running {
		return s.engine.Start(), nil
	}
	return s.engine.Stop(), nil
}

// Layout exports the current garden as seed entries.
func (s *Simulation) Layout() []seed.Entry {
	snap := s.Snapshot()
	out := make([]seed.Entry, 0, len(snap.Cells))
	for _, c := range snap.Cells {
		if c.Species == garden.Empty {
			continue
		}
		out = append(out, seed.Entry{Row: c.Row, Col: c.Col, Plant: c.Species.String()})
	}
	return out
}
