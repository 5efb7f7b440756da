package engine

import (
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameTime(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{0, "Day 1, 6:00 AM"},
		{-time.Second, "Day 1, 6:00 AM"},
		{time.Minute, "Day 1, 7:00 AM"},
		{90 * time.Second, "Day 1, 7:30 AM"},
		{6 * time.Minute, "Day 1, 12:00 PM"},
		{17*time.Minute + 30*time.Second, "Day 1, 11:30 PM"},
		{18 * time.Minute, "Day 1, 12:00 AM"},
		{24 * time.Minute, "Day 2, 6:00 AM"},
		{49 * time.Minute, "Day 3, 7:00 AM"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GameTime(tt.elapsed), tt.elapsed.String())
	}
}

func TestSessionTime(t *testing.T) {
	assert.Equal(t, "Session: 0h 0m", SessionTime(59*time.Second))
	assert.Equal(t, "Session: 1h 35m", SessionTime(95*time.Minute))
	assert.Equal(t, "Session: 26h 0m", SessionTime(26*time.Hour))
}

func TestEngineStartStop(t *testing.T) {
	e := NewEngine(2 * time.Millisecond)
	var ticks, starts, stops atomic.Int32
	e.OnTick = func() { ticks.Add(1) }
	e.OnStart = func() { starts.Add(1) }
	e.OnStop = func() { stops.Add(1) }

	assert.False(t, e.Stop(), "not running yet")
	require.True(t, e.Start())
	assert.False(t, e.Start())
	assert.True(t, e.Running())

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)
	require.True(t, e.Stop())
	assert.False(t, e.Running())

	fired := e.Fired()
	assert.EqualValues(t, ticks.Load(), fired)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, fired, e.Fired(), "no ticks after Stop returns")

	require.True(t, e.Start())
	require.True(t, e.Stop())
	assert.EqualValues(t, 2, starts.Load())
	assert.EqualValues(t, 2, stops.Load())
}

func TestEngineUsesInjectedLogger(t *testing.T) {
	var buf strings.Builder
	e := NewEngine(time.Hour)
	e.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	require.True(t, e.Start())
	require.True(t, e.Stop())
	assert.Contains(t, buf.String(), "automation started")
	assert.Contains(t, buf.String(), "automation stopped")

	s := newSim(t, quietOptions())
	adopted := NewEngine(time.Hour)
	s.Automate(adopted)
	assert.Same(t, s.log, adopted.Logger)

	own := NewEngine(time.Hour)
	own.Logger = e.Logger
	s.Automate(own)
	assert.Same(t, e.Logger, own.Logger, "an explicit logger is kept")
}

func TestNewEngineDefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultInterval, NewEngine(0).Interval)
}

func TestLevels(t *testing.T) {
	assert.Equal(t, LevelNameEvent, levelName(LevelEvent))
	assert.Equal(t, LevelNameWarning, levelName(slog.LevelWarn))
	assert.Equal(t, LevelNameError, levelName(slog.LevelError))
	assert.Equal(t, LevelNameInfo, levelName(slog.LevelDebug))

	for _, l := range []slog.Level{slog.LevelInfo, LevelEvent, slog.LevelWarn, slog.LevelError} {
		assert.Equal(t, l, ParseLevel(levelName(l)))
	}
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))

	var buf strings.Builder
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{ReplaceAttr: ReplaceLevel}))
	log.Log(t.Context(), LevelEvent, "rainy day")
	assert.Contains(t, buf.String(), "level=EVENT")
}
