package journal

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordEvent(e EventRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO events
		(event_id, symbol, state, reason, direction, entry_price, exit_price, pnl, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.Symbol, e.State, e.Reason, e.Direction,
		e.EntryPrice, e.ExitPrice, e.PnL, e.Time,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, equity, realized_pnl_today, total_pnl, open_positions)
		VALUES (?, ?, ?, ?, ?)`,
		e.Time, e.Equity, e.RealizedPnLToday, e.TotalPnL, e.OpenPositions,
	)
	return err
}

// ListEventsBetween returns events in [start, end) ordered by time, for
// reporting and backtest summaries.
func (j *SQLite) ListEventsBetween(start, end time.Time) ([]EventRecord, error) {
	rows, err := j.db.Query(`
		SELECT event_id, symbol, state, reason, direction, entry_price, exit_price, pnl, time
		FROM events
		WHERE time >= ? AND time < ?
		ORDER BY time`,
		start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var e EventRecord
		if err := rows.Scan(&e.EventID, &e.Symbol, &e.State, &e.Reason, &e.Direction,
			&e.EntryPrice, &e.ExitPrice, &e.PnL, &e.Time); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastEquity returns the most recent equity snapshot, or ok=false when the
// journal is empty.
func (j *SQLite) LastEquity() (EquitySnapshot, bool, error) {
	row := j.db.QueryRow(`
		SELECT time, equity, realized_pnl_today, total_pnl, open_positions
		FROM equity ORDER BY time DESC LIMIT 1`)

	var e EquitySnapshot
	err := row.Scan(&e.Time, &e.Equity, &e.RealizedPnLToday, &e.TotalPnL, &e.OpenPositions)
	if err == sql.ErrNoRows {
		return EquitySnapshot{}, false, nil
	}
	if err != nil {
		return EquitySnapshot{}, false, err
	}
	return e, true, nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
