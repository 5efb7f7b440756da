// Package persistence provides SQLite-based storage for the garden: an
// append-only event journal, periodic stats samples and key/value
// metadata. Grid state itself is never saved.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/mini-garden/internal/engine"
)

// DB wraps a SQLite connection for garden persistence. Every row written
// through it is tagged with the process run id.
type DB struct {
	conn  *sqlx.DB
	runID string
}

// Open opens or creates a SQLite database at the given path and starts a
// new run.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn, runID: uuid.NewString()}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := db.SaveMeta("run_id", db.runID); err != nil {
		conn.Close()
		return nil, fmt.Errorf("save run id: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// RunID identifies this process's rows.
func (db *DB) RunID() string {
	return db.runID
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		at_ms INTEGER NOT NULL,
		level TEXT NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL,
		meta_json TEXT
	);

	CREATE TABLE IF NOT EXISTS stats_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		cycle INTEGER NOT NULL,
		at_ms INTEGER NOT NULL,
		temperature INTEGER NOT NULL,
		live INTEGER NOT NULL,
		dead INTEGER NOT NULL,
		empty INTEGER NOT NULL,
		planted INTEGER NOT NULL,
		watered INTEGER NOT NULL,
		infested INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS garden_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_events_category ON events(category);
	CREATE INDEX IF NOT EXISTS idx_stats_run ON stats_history(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveEvents appends journal entries.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO events
		(run_id, tick, at_ms, level, category, description, meta_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		var meta sql.NullString
		if len(e.Meta) > 0 {
			b, err := json.Marshal(e.Meta)
			if err != nil {
				return fmt.Errorf("encode meta for tick %d: %w", e.Tick, err)
			}
			meta = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := stmt.Exec(db.runID, e.Tick, e.Time.UnixMilli(), e.Level, e.Category, e.Description, meta); err != nil {
			return fmt.Errorf("insert event at tick %d: %w", e.Tick, err)
		}
	}

	return tx.Commit()
}

type eventRow struct {
	RunID       string         `db:"run_id"`
	Tick        uint64         `db:"tick"`
	AtMS        int64          `db:"at_ms"`
	Level       string         `db:"level"`
	Category    string         `db:"category"`
	Description string         `db:"description"`
	MetaJSON    sql.NullString `db:"meta_json"`
}

func (r eventRow) event() engine.Event {
	e := engine.Event{
		Tick:        r.Tick,
		Time:        time.UnixMilli(r.AtMS).UTC(),
		Level:       r.Level,
		Category:    r.Category,
		Description: r.Description,
	}
	if r.MetaJSON.Valid {
		if err := json.Unmarshal([]byte(r.MetaJSON.String), &e.Meta); err != nil {
			slog.Warn("dropping unreadable event meta", "tick", r.Tick, "error", err)
		}
	}
	return e
}

// RecentEvents returns the most recent limit events across all runs,
// oldest first. An empty category matches every event.
func (db *DB) RecentEvents(limit int, category string) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows, `
		SELECT run_id, tick, at_ms, level, category, description, meta_json FROM events
		WHERE ? = '' OR category = ?
		ORDER BY id DESC LIMIT ?`,
		category, category, limit,
	)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Event, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r.event()
	}
	return out, nil
}

// CountEvents returns how many events this run has journalled.
func (db *DB) CountEvents() (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM events WHERE run_id = ?", db.runID)
	return n, err
}

type statsRow struct {
	Cycle       uint64 `db:"cycle"`
	AtMS        int64  `db:"at_ms"`
	Temperature int    `db:"temperature"`
	Live        int    `db:"live"`
	Dead        int    `db:"dead"`
	Empty       int    `db:"empty"`
	Planted     int    `db:"planted"`
	Watered     int    `db:"watered"`
	Infested    int    `db:"infested"`
}

// SaveStats appends one stats sample.
func (db *DB) SaveStats(s engine.StatsSample) error {
	_, err := db.conn.NamedExec(`INSERT INTO stats_history
		(run_id, cycle, at_ms, temperature, live, dead, empty, planted, watered, infested)
		VALUES (:run_id, :cycle, :at_ms, :temperature, :live, :dead, :empty, :planted, :watered, :infested)`,
		map[string]any{
			"run_id":      db.runID,
			"cycle":       s.Cycle,
			"at_ms":       s.Time.UnixMilli(),
			"temperature": s.Temperature,
			"live":        s.Live,
			"dead":        s.Dead,
			"empty":       s.Empty,
			"planted":     s.Planted,
			"watered":     s.Watered,
			"infested":    s.Infested,
		})
	return err
}

// LoadStatsHistory returns up to limit of this run's latest samples,
// oldest first.
func (db *DB) LoadStatsHistory(limit int) ([]engine.StatsSample, error) {
	var rows []statsRow
	err := db.conn.Select(&rows, `
		SELECT cycle, at_ms, temperature, live, dead, empty, planted, watered, infested
		FROM stats_history WHERE run_id = ? ORDER BY id DESC LIMIT ?`,
		db.runID, limit,
	)
	if err != nil {
		return nil, err
	}
	out := make([]engine.StatsSample, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = engine.StatsSample{
			Cycle:       r.Cycle,
			Time:        time.UnixMilli(r.AtMS).UTC(),
			Temperature: r.Temperature,
			Live:        r.Live,
			Dead:        r.Dead,
			Empty:       r.Empty,
			Planted:     r.Planted,
			Watered:     r.Watered,
			Infested:    r.Infested,
		}
	}
	return out, nil
}

// SaveMeta stores a key-value pair in garden metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO garden_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// ErrNoMeta is returned by GetMeta for a missing key.
var ErrNoMeta = errors.New("no such meta key")

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM garden_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNoMeta, key)
	}
	return value, err
}
