package gardener

import (
	"fmt"
)

// Decision thresholds.
const (
	InfestedThreshold = 3 // Remove pests once this many plants are infested
)

// Actions the gardener may take.
const (
	ActionNone        = "none"
	ActionRemovePests = "remove_pests"
	ActionWaterAll    = "water_all"
	ActionPlant       = "plant"
)

// Decision is the recommended action with a one-line rationale.
type Decision struct {
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
}

// Decide picks at most one action from the triaged health. Rules are
// checked in priority order; when nothing applies the gardener does
// nothing.
func Decide(h *GardenHealth) Decision {
	switch {
	case h.Infested >= InfestedThreshold:
		return Decision{
			Action:    ActionRemovePests,
			Rationale: fmt.Sprintf("%d plants infested", h.Infested),
		}
	case h.Live > 0 && h.Thirsty*2 >= h.Live:
		return Decision{
			Action:    ActionWaterAll,
			Rationale: fmt.Sprintf("%d of %d plants thirsty", h.Thirsty, h.Live),
		}
	case h.Sparse():
		return Decision{
			Action:    ActionPlant,
			Rationale: fmt.Sprintf("only %d of %d cells growing", h.Live, h.Cells),
		}
	}
	return Decision{Action: ActionNone, Rationale: "garden is " + h.CrisisLevel}
}
