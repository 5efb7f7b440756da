package events

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned when an event name cannot be parsed.
var ErrUnknownKind = errors.New("unknown event kind")

// Kind is one of the six garden events.
type Kind uint8

const (
	SunnyDay Kind = iota
	RainyDay
	PestInfestation
	PerfectGrowth
	GardenerVisit
	ChillyDay
)

// All lists every kind in draw order.
var All = []Kind{SunnyDay, RainyDay, PestInfestation, PerfectGrowth, GardenerVisit, ChillyDay}

var kindInfo = [...]struct {
	name, slug string
	aliases    []string
}{
	SunnyDay:        {"Sunny Day", "sunny_day", []string{"sunny", "sun", "heat"}},
	RainyDay:        {"Rainy Day", "rainy_day", []string{"rain", "rainy"}},
	PestInfestation: {"Pest Infestation", "pest_infestation", []string{"pests", "pest", "infestation"}},
	PerfectGrowth:   {"Perfect Growth", "perfect_growth", []string{"perfect", "growth"}},
	GardenerVisit:   {"Gardener Visit", "gardener_visit", []string{"gardener", "visit"}},
	ChillyDay:       {"Chilly Day", "chilly_day", []string{"chilly", "cold", "frost"}},
}

// String returns the display name.
func (k Kind) String() string {
	if int(k) < len(kindInfo) {
		return kindInfo[k].name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Slug returns the snake_case wire name.
func (k Kind) Slug() string {
	if int(k) < len(kindInfo) {
		return kindInfo[k].slug
	}
	return ""
}

// MarshalText implements encoding.TextMarshaler using the slug.
func (k Kind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindInfo) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, k)
	}
	return []byte(k.Slug()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseKind accepts display names, slugs and a few short aliases,
// case-insensitively.
func ParseKind(s string) (Kind, error) {
	norm := normalize(s)
	for _, k := range All {
		info := kindInfo[k]
		if norm == normalize(info.name) {
			return k, nil
		}
		for _, a := range info.aliases {
			if norm == a {
				return k, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}
