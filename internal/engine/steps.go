package engine

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/mini-garden/internal/entropy"
	"github.com/talgya/mini-garden/internal/events"
	"github.com/talgya/mini-garden/internal/garden"
)

// tick applies one automation cycle. Each step is isolated: a failing
// step is rolled back and the tick moves on to the next one.
func (s *Simulation) tick() {
	s.cycle++

	s.step("update", s.stepUpdate)
	s.step("spray-activate", s.stepSprayActivate)
	s.step("spray", s.stepSpray)
	if every(s.cycle, s.opts.WaterEvery) {
		s.step("auto-water", s.stepAutoWater)
	}
	s.step("infest", s.stepInfest)
	s.step("thermal", s.stepThermal)
	if every(s.cycle, s.opts.EventEvery) {
		s.step("event", func() error {
			s.applyEvent(s.events.Trigger(s.grid, &s.spray, &s.ins))
			return nil
		})
	}

	if every(s.cycle, s.opts.WaterBatchTicks) && s.waterBatch > 0 {
		s.record(slog.LevelInfo, "water",
			fmt.Sprintf("Auto-watered %d plants over the last %d cycles", s.waterBatch, s.opts.WaterBatchTicks), nil)
		s.waterBatch = 0
	}
	if every(s.cycle, s.opts.ReportTicks) {
		s.report()
	}
}

func (s *Simulation) stepUpdate() error {
	s.journalUpdate(s.grid.Update())
	return nil
}

func (s *Simulation) journalUpdate(res garden.UpdateResult) {
	for _, r := range res.Respawns {
		s.record(slog.LevelInfo, "respawn",
			fmt.Sprintf("A new %s sprouted at %s", r.Species, cellName(r.Pos)),
			map[string]any{"row": r.Pos.Row, "col": r.Pos.Col, "species": r.Species.String()})
	}
}

func (s *Simulation) stepSprayActivate() error {
	if s.spray.Activate() {
		s.record(LevelEvent, "spray", fmt.Sprintf("Deploying anti-pest spray for %d cycles", s.spray.CyclesLeft), nil)
	}
	return nil
}

func (s *Simulation) stepSpray() error {
	res := s.spray.Apply(s.grid)
	if len(res.Sprayed) > 0 {
		s.record(slog.LevelInfo, "spray",
			fmt.Sprintf("Sprayed %d infested plants for %d damage", len(res.Sprayed), res.Damage),
			map[string]any{"sprayed": res.Sprayed, "cleared": len(res.Cleared)})
	}
	if res.Ended {
		s.record(LevelEvent, "spray", "Pest spray ended", nil)
	}
	return nil
}

func (s *Simulation) stepAutoWater() error {
	if s.opts.WaterOdds <= 0 {
		return nil
	}
	for _, pos := range s.grid.LivePositions() {
		if !entropy.Chance(s.rng, s.opts.WaterOdds) {
			continue
		}
		if ok, _ := s.grid.WaterSilently(pos.Row, pos.Col); ok {
			s.waterBatch++
		}
	}
	return nil
}

func (s *Simulation) stepInfest() error {
	if s.opts.InfestOdds <= 0 || !entropy.Chance(s.rng, s.opts.InfestOdds) {
		return nil
	}
	pos := garden.Pos{Row: s.rng.Intn(s.grid.Rows()), Col: s.rng.Intn(s.grid.Cols())}
	p, _ := s.grid.At(pos.Row, pos.Col)
	if !p.Alive() || p.HasPest() {
		return nil
	}
	s.infest(pos, p.Species)
	return nil
}

// infest puts a species-appropriate pest on a live plant and arms the spray.
func (s *Simulation) infest(pos garden.Pos, species garden.Species) PestResult {
	kinds := garden.DefaultPests(species)
	kind := kinds[s.rng.Intn(len(kinds))]
	s.grid.SetPest(pos, kind)
	s.spray.Arm()
	s.record(slog.LevelWarn, "pest",
		fmt.Sprintf("Parasite '%s' appeared on %s at %s", kind, species, cellName(pos)),
		map[string]any{"row": pos.Row, "col": pos.Col, "pest": kind})
	return PestResult{Pos: pos, Species: species, Kind: kind}
}

func (s *Simulation) stepThermal() error {
	if s.ins.Activate() {
		s.record(LevelEvent, "insulation", fmt.Sprintf("Insulation cover engaged for %d cycles", s.ins.Budget), nil)
	}
	res := s.ins.Apply(s.grid)
	if res.Frosted > 0 {
		s.record(slog.LevelWarn, "frost",
			fmt.Sprintf("%d plants took frost damage at %d°F", res.Frosted, s.grid.Temperature()), nil)
	}
	if res.Warmed {
		s.record(slog.LevelInfo, "insulation",
			fmt.Sprintf("Insulation cover raised the temperature to %d°F", res.Temperature), nil)
	}
	if res.Completed {
		s.record(LevelEvent, "insulation", "Insulation cover effect ended, temperature regulation normal", nil)
	}
	return nil
}

// applyEvent journals an event summary.
func (s *Simulation) applyEvent(sum events.Summary) {
	level := LevelEvent
	if sum.Warn {
		level = slog.LevelWarn
	}
	s.record(level, "event", sum.Message, map[string]any{
		"kind":        sum.Kind.Slug(),
		"temperature": sum.Temperature,
		"affected":    len(sum.Affected),
	})
	if sum.InsulationCanceled {
		s.record(LevelEvent, "insulation", "Insulation cover canceled due to sunny day", nil)
	}
	if sum.SprayCanceled {
		s.record(LevelEvent, "spray", "Pest spray canceled", nil)
	}
}

// report logs a garden summary and samples stats for the history.
func (s *Simulation) report() {
	g := s.grid
	sample := StatsSample{
		Cycle:       s.cycle,
		Time:        s.now(),
		Temperature: g.Temperature(),
		Live:        g.LiveCount(),
		Dead:        g.DeadCount(),
		Empty:       g.EmptyCount(),
		Planted:     g.PlantedCount(),
		Watered:     g.WateredCount(),
		Infested:    len(g.Infested()),
	}
	s.record(slog.LevelInfo, "report",
		fmt.Sprintf("Garden state: %d°F, %d living, %s dead, %d empty, %s planted, %s watered",
			sample.Temperature, sample.Live,
			humanize.Comma(int64(sample.Dead)), sample.Empty,
			humanize.Comma(int64(sample.Planted)), humanize.Comma(int64(sample.Watered))),
		map[string]any{"species": speciesTally(g.SpeciesCounts())})
	s.toSink("stats", func(sink Sink) { sink.SaveStats(sample) })
}

func speciesTally(counts map[garden.Species]int) map[string]int {
	out := make(map[string]int, len(counts))
	for sp, n := range counts {
		out[sp.String()] = n
	}
	return out
}
