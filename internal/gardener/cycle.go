package gardener

import (
	"context"
	"log/slog"
	"time"
)

// Steward runs observe, triage, decide and act cycles and remembers them.
type Steward struct {
	Observer *Observer
	Actor    *Actor
	Memory   *CycleMemory
	Logger   *slog.Logger
	Now      func() time.Time
}

// RunCycle executes one cycle and records it. Observation and action
// failures are logged and recorded, never returned.
func (s *Steward) RunCycle(ctx context.Context) CycleRecord {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	rec := CycleRecord{At: now().UTC(), Action: ActionNone}
	defer func() {
		if s.Memory == nil {
			return
		}
		s.Memory.Record(rec)
		if err := s.Memory.Save(); err != nil {
			log.Error("failed to save gardener memory", "error", err)
		}
	}()

	snap, err := s.Observer.Observe(ctx)
	if err != nil {
		log.Error("observation failed", "error", err)
		rec.Error = err.Error()
		return rec
	}

	h := Triage(snap)
	rec.Cycle = h.Cycle
	rec.Live = h.Live
	rec.Thirsty = h.Thirsty
	rec.Infested = h.Infested
	rec.Temperature = h.Temperature
	rec.CrisisLevel = h.CrisisLevel
	log.Info("observation complete",
		"cycle", h.Cycle,
		"live", h.Live,
		"thirsty", h.Thirsty,
		"infested", h.Infested,
		"temperature", h.Temperature,
		"crisis", h.CrisisLevel,
	)

	d := Decide(h)
	rec.Action = d.Action
	rec.Rationale = d.Rationale
	log.Info("decision made", "action", d.Action, "rationale", d.Rationale)

	if d.Action == ActionNone {
		log.Info("gardener cycle complete, no intervention")
		return rec
	}

	result, err := s.Actor.Act(ctx, d)
	if err != nil {
		log.Error("intervention failed", "action", d.Action, "error", err)
		rec.Error = err.Error()
		return rec
	}
	log.Info("intervention executed", "action", d.Action, "result", result)
	return rec
}
