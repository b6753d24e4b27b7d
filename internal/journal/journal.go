// Package journal provides SQLite-based diagnostic storage: the event
// stream and daily statistics. It is write-mostly; nothing in the
// simulation ever reads it back to restore state.
package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/mossfield/villagesim/internal/engine"
)

// Journal wraps a SQLite connection for event and stats storage.
type Journal struct {
	conn *sqlx.DB
}

// Open opens or creates a journal database at the given path.
func Open(path string) (*Journal, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{conn: conn}
	if err := j.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.conn.Close()
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		tick INTEGER NOT NULL,
		day INTEGER NOT NULL,
		kind TEXT NOT NULL,
		description TEXT NOT NULL,
		meta_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_stats (
		day INTEGER PRIMARY KEY,
		tick INTEGER NOT NULL,
		population INTEGER NOT NULL,
		buildings INTEGER NOT NULL,
		avg_energy REAL NOT NULL,
		avg_hunger REAL NOT NULL,
		avg_happiness REAL NOT NULL,
		total_money REAL NOT NULL,
		shop_income REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_day ON events(day);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	`
	_, err := j.conn.Exec(schema)
	return err
}

// Append writes a batch of events, assigning each a fresh id.
func (j *Journal) Append(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := j.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO events
		(id, tick, day, kind, description, meta_json)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		meta, _ := json.Marshal(e.Meta)
		if _, err := stmt.Exec(
			uuid.NewString(), e.Tick, e.Day, string(e.Kind), e.Description, string(meta),
		); err != nil {
			return fmt.Errorf("insert event %s: %w", e.Kind, err)
		}
	}
	return tx.Commit()
}

// RecordStats upserts one day's aggregate statistics.
func (j *Journal) RecordStats(stats engine.SimStats) error {
	_, err := j.conn.Exec(`INSERT OR REPLACE INTO daily_stats
		(day, tick, population, buildings, avg_energy, avg_hunger,
		 avg_happiness, total_money, shop_income)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stats.Day, stats.Tick, stats.Population, stats.Buildings,
		stats.AvgEnergy, stats.AvgHunger, stats.AvgHappiness,
		stats.TotalMoney, stats.ShopIncome,
	)
	return err
}

// SetMeta stores a key-value pair in journal metadata.
func (j *Journal) SetMeta(key, value string) error {
	_, err := j.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (j *Journal) GetMeta(key string) (string, error) {
	var value string
	err := j.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// EventRow is one stored event.
type EventRow struct {
	ID          string `db:"id" json:"id"`
	Tick        uint64 `db:"tick" json:"tick"`
	Day         int    `db:"day" json:"day"`
	Kind        string `db:"kind" json:"kind"`
	Description string `db:"description" json:"description"`
	MetaJSON    string `db:"meta_json" json:"meta_json,omitempty"`
}

// RecentEvents returns the most recently appended events, newest first.
func (j *Journal) RecentEvents(limit int) ([]EventRow, error) {
	var rows []EventRow
	err := j.conn.Select(&rows,
		"SELECT id, tick, day, kind, description, meta_json FROM events ORDER BY rowid DESC LIMIT ?",
		limit,
	)
	return rows, err
}

// EventsForDay returns every stored event for one day, oldest first.
func (j *Journal) EventsForDay(day int) ([]EventRow, error) {
	var rows []EventRow
	err := j.conn.Select(&rows,
		"SELECT id, tick, day, kind, description, meta_json FROM events WHERE day = ? ORDER BY rowid",
		day,
	)
	return rows, err
}

// Attach subscribes the journal to a simulation's event stream and records
// daily statistics at each rollover. Write failures are logged, never fatal.
func (j *Journal) Attach(sim *engine.Simulation) {
	sim.Subscribe(func(e engine.Event) {
		if err := j.Append([]engine.Event{e}); err != nil {
			slog.Warn("journal append failed", "kind", e.Kind, "error", err)
		}
		if e.Kind == engine.EventDayChanged {
			if err := j.RecordStats(sim.StatsView()); err != nil {
				slog.Warn("journal stats write failed", "error", err)
			}
		}
	})
}
