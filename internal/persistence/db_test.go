package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-garden/internal/engine"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "garden.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEventsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.SaveEvents(nil))
	require.NoError(t, db.SaveEvents([]engine.Event{
		{Tick: 1, Time: at, Level: engine.LevelNameInfo, Category: "water", Description: "Watered Carrot"},
		{Tick: 2, Time: at.Add(time.Second), Level: engine.LevelNameWarning, Category: "death",
			Description: "Corn died", Meta: map[string]any{"row": 1, "col": 2}},
		{Tick: 3, Time: at.Add(2 * time.Second), Level: engine.LevelNameEvent, Category: "event", Description: "Rainy day"},
	}))

	got, err := db.RecentEvents(2, "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[0].Tick, "oldest first")
	assert.Equal(t, "Corn died", got[0].Description)
	assert.Equal(t, at.Add(time.Second), got[0].Time)
	assert.Equal(t, map[string]any{"row": float64(1), "col": float64(2)}, got[0].Meta)
	assert.Equal(t, engine.LevelNameEvent, got[1].Level)

	deaths, err := db.RecentEvents(10, "death")
	require.NoError(t, err)
	require.Len(t, deaths, 1)
	assert.Nil(t, got[1].Meta)

	n, err := db.CountEvents()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRunsAreSeparate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garden.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.SaveStats(engine.StatsSample{Cycle: 1200, Time: time.Now()}))
	require.NoError(t, first.SaveEvents([]engine.Event{{Tick: 1, Category: "water", Description: "a"}}))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()
	assert.NotEqual(t, first.RunID(), second.RunID())

	runID, err := second.GetMeta("run_id")
	require.NoError(t, err)
	assert.Equal(t, second.RunID(), runID)

	history, err := second.LoadStatsHistory(10)
	require.NoError(t, err)
	assert.Empty(t, history, "stats history is per run")

	n, err := second.CountEvents()
	require.NoError(t, err)
	assert.Zero(t, n)
	all, err := second.RecentEvents(10, "")
	require.NoError(t, err)
	assert.Len(t, all, 1, "the journal spans runs")
}

func TestStatsHistory(t *testing.T) {
	db := openTestDB(t)
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		require.NoError(t, db.SaveStats(engine.StatsSample{
			Cycle: uint64(i * 1200), Time: at.Add(time.Duration(i) * time.Hour),
			Temperature: 70, Live: 20 - i, Dead: i, Empty: 5 + i, Planted: 25, Watered: 100 * i,
		}))
	}

	got, err := db.LoadStatsHistory(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2400), got[0].Cycle)
	assert.Equal(t, engine.StatsSample{
		Cycle: 3600, Time: at.Add(3 * time.Hour), Temperature: 70,
		Live: 17, Dead: 3, Empty: 8, Planted: 25, Watered: 300,
	}, got[1])
}

func TestMetaOverwrite(t *testing.T) {
	db := openTestDB(t)

	runID, err := db.GetMeta("run_id")
	require.NoError(t, err)
	assert.Equal(t, db.RunID(), runID)

	require.NoError(t, db.SaveMeta("last_cycle", "41"))
	require.NoError(t, db.SaveMeta("last_cycle", "42"))
	cycle, err := db.GetMeta("last_cycle")
	require.NoError(t, err)
	assert.Equal(t, "42", cycle)
}

func TestGetMetaMissing(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetMeta("nope")
	assert.ErrorIs(t, err, ErrNoMeta)
}
