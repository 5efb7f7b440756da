package engine

import (
	"log/slog"
	"strings"
	"time"
)

// LevelEvent sits between Info and Warn and marks garden events in the log.
const LevelEvent = slog.LevelInfo + 2

// Journal levels as they appear on Event records.
const (
	LevelNameInfo    = "info"
	LevelNameEvent   = "event"
	LevelNameWarning = "warning"
	LevelNameError   = "error"
)

// Event is one journal entry: something that happened in the garden.
type Event struct {
	Tick        uint64         `json:"tick"`
	Time        time.Time      `json:"time"`
	Level       string         `json:"level"`
	Category    string         `json:"category"` // "death", "pest", "spray", "event", "water", ...
	Description string         `json:"description"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// levelName maps a slog level onto the journal's level names.
func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return LevelNameError
	case l >= slog.LevelWarn:
		return LevelNameWarning
	case l >= LevelEvent:
		return LevelNameEvent
	default:
		return LevelNameInfo
	}
}

// ParseLevel is the inverse of levelName. Unknown names map to Info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case LevelNameError:
		return slog.LevelError
	case LevelNameWarning, "warn":
		return slog.LevelWarn
	case LevelNameEvent:
		return LevelEvent
	default:
		return slog.LevelInfo
	}
}

// ReplaceLevel renders LevelEvent as "EVENT". Use it as
// slog.HandlerOptions.ReplaceAttr.
func ReplaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if l, ok := a.Value.Any().(slog.Level); ok && l == LevelEvent {
		a.Value = slog.StringValue("EVENT")
	}
	return a
}

// DiscardLogger returns a logger that writes nothing.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
