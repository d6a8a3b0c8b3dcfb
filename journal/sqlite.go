package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	ticker TEXT NOT NULL,
	side TEXT NOT NULL,
	units REAL NOT NULL,
	entry_date DATETIME,
	exit_date DATETIME NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	return_frac REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	date DATETIME NOT NULL,
	value REAL NOT NULL,
	state INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_exit ON trades(exit_date);
CREATE INDEX IF NOT EXISTS idx_equity_date ON equity(date);
`

// SQLiteJournal persists trades and equity to a SQLite database.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRow) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, ticker, side, units, entry_date, exit_date, entry_price, exit_price, return_frac, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Ticker, t.Side, t.Units, t.EntryDate, t.ExitDate,
		t.EntryPrice, t.ExitPrice, t.Return, t.Reason,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquityRow) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (date, value, state)
		VALUES (?, ?, ?)`,
		e.Date, e.Value, e.State,
	)
	return err
}

// GetTrade returns a single trade row by ID.
func (j *SQLiteJournal) GetTrade(tradeID string) (TradeRow, error) {
	row := j.db.QueryRow(`
		SELECT trade_id, ticker, side, units, entry_date, exit_date, entry_price, exit_price, return_frac, reason
		FROM trades
		WHERE trade_id = ?`, tradeID)

	var rec TradeRow
	err := scanTrade(row.Scan, &rec)
	if err != nil {
		if err == sql.ErrNoRows {
			return TradeRow{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return TradeRow{}, err
	}
	return rec, nil
}

// ListTradesBetween returns trades whose exit_date is within [start, end),
// ordered by exit date.
func (j *SQLiteJournal) ListTradesBetween(start, end time.Time) ([]TradeRow, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, ticker, side, units, entry_date, exit_date, entry_price, exit_price, return_frac, reason
		FROM trades
		WHERE exit_date >= ? AND exit_date < ?
		ORDER BY exit_date ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRow
	for rows.Next() {
		var rec TradeRow
		if err := scanTrade(rows.Scan, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityBetween returns equity rows within [start, end), ordered by date.
func (j *SQLiteJournal) ListEquityBetween(start, end time.Time) ([]EquityRow, error) {
	rows, err := j.db.Query(`
		SELECT date, value, state
		FROM equity
		WHERE date >= ? AND date < ?
		ORDER BY date ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityRow
	for rows.Next() {
		var rec EquityRow
		if err := rows.Scan(&rec.Date, &rec.Value, &rec.State); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func scanTrade(scan func(...any) error, rec *TradeRow) error {
	var entry sql.NullTime
	err := scan(
		&rec.ID,
		&rec.Ticker,
		&rec.Side,
		&rec.Units,
		&entry,
		&rec.ExitDate,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.Return,
		&rec.Reason,
	)
	if err != nil {
		return err
	}
	if entry.Valid {
		rec.EntryDate = entry.Time
	}
	return nil
}
