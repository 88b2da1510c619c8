package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists screening history to a SQLite database.
// It also serves as the cache.KV backend through its kv table.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id        TEXT PRIMARY KEY,
			kind      TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			month     INTEGER,
			purchase  TEXT,
			sale      TEXT,
			threshold REAL,
			from_day  TEXT,
			to_day    TEXT,
			profit    REAL,
			stop      REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS win_rates (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL REFERENCES runs(id),
			code        TEXT NOT NULL,
			name        TEXT,
			credit_type TEXT,
			win_rate    REAL,
			trials      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_win_rates_code ON win_rates(code)`,

		`CREATE TABLE IF NOT EXISTS trailing_results (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id  TEXT NOT NULL REFERENCES runs(id),
			code    TEXT NOT NULL,
			outcome TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS fcf_yields (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id         TEXT NOT NULL REFERENCES runs(id),
			code           TEXT NOT NULL,
			name           TEXT,
			disclosed_date TEXT,
			operating_cf   REAL,
			investing_cf   REAL,
			shares         REAL,
			price          REAL,
			yield          REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fcf_code ON fcf_yields(code)`,

		`CREATE TABLE IF NOT EXISTS reminders (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			rights_day TEXT NOT NULL,
			sent       INTEGER NOT NULL,
			note       TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func newRunID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// inTx runs fn in a transaction under the recorder lock.
func (r *SQLiteRecorder) inTx(fn func(tx *sql.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordWinRates(run *WinRateRun) error {
	newRunID(&run.ID)
	return r.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO runs (id, kind, timestamp, month, purchase, sale, threshold)
			VALUES (?,?,?,?,?,?,?)`,
			run.ID, "winrate", r.now().Unix(), int(run.Month),
			run.Purchase.String(), run.Sale.String(), run.Threshold,
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for _, res := range run.Results {
			if _, err := tx.Exec(`INSERT INTO win_rates (run_id, code, name, credit_type, win_rate, trials)
				VALUES (?,?,?,?,?,?)`,
				run.ID, res.Code, res.Name, res.CreditType,
				res.Result.WinRatePercent, res.Result.TrialCount,
			); err != nil {
				return fmt.Errorf("insert win rate %s: %w", res.Code, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRecorder) RecordTrailing(run *TrailingRun) error {
	newRunID(&run.ID)
	return r.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO runs (id, kind, timestamp, from_day, to_day, profit, stop)
			VALUES (?,?,?,?,?,?,?)`,
			run.ID, "trailing", r.now().Unix(),
			run.From.Format("2006-01-02"), run.To.Format("2006-01-02"),
			run.ProfitPct, run.StopPct,
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for _, res := range run.Results {
			if _, err := tx.Exec(`INSERT INTO trailing_results (run_id, code, outcome) VALUES (?,?,?)`,
				run.ID, res.Code, string(res.Outcome),
			); err != nil {
				return fmt.Errorf("insert trailing %s: %w", res.Code, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRecorder) RecordFCF(run *FCFRun) error {
	newRunID(&run.ID)
	return r.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO runs (id, kind, timestamp, threshold) VALUES (?,?,?,?)`,
			run.ID, "fcf", r.now().Unix(), run.MinYield,
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for _, rec := range run.Records {
			if _, err := tx.Exec(`INSERT INTO fcf_yields
				(run_id, code, name, disclosed_date, operating_cf, investing_cf, shares, price, yield)
				VALUES (?,?,?,?,?,?,?,?,?)`,
				run.ID, rec.Code, rec.Name, rec.DisclosedDate,
				rec.OperatingCashFlow, rec.InvestingCashFlow, rec.SharesOutstanding,
				rec.ClosingPrice, rec.FCFYieldPercent,
			); err != nil {
				return fmt.Errorf("insert fcf %s: %w", rec.Code, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRecorder) RecordReminder(evt *ReminderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sent := 0
	if evt.Sent {
		sent = 1
	}
	_, err := r.db.Exec(`INSERT INTO reminders (timestamp, rights_day, sent, note) VALUES (?,?,?,?)`,
		r.now().Unix(), evt.RightsDay.Format("2006-01-02"), sent, evt.Note,
	)
	return err
}

// ReminderSent reports whether a reminder for day was already delivered.
func (r *SQLiteRecorder) ReminderSent(day time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM reminders WHERE rights_day = ? AND sent = 1`,
		day.Format("2006-01-02")).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// WinRateHistory returns the recorded win rates for code, newest run first.
func (r *SQLiteRecorder) WinRateHistory(code string, limit int) ([]HistoryRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT runs.timestamp, runs.purchase, runs.sale, w.win_rate, w.trials
		FROM win_rates w JOIN runs ON runs.id = w.run_id
		WHERE w.code = ? ORDER BY runs.timestamp DESC, w.id DESC LIMIT ?`, code, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var (
			h  HistoryRow
			ts int64
		)
		if err := rows.Scan(&ts, &h.Purchase, &h.Sale, &h.WinRatePercent, &h.TrialCount); err != nil {
			return nil, err
		}
		h.RecordedAt = time.Unix(ts, 0)
		out = append(out, h)
	}
	return out, rows.Err()
}

// HistoryRow is one recorded win rate for a code.
type HistoryRow struct {
	RecordedAt     time.Time
	Purchase       string
	Sale           string
	WinRatePercent float64
	TrialCount     int
}

func (r *SQLiteRecorder) Get(key string) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var v []byte
	err := r.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *SQLiteRecorder) Set(key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO kv (key, value, updated_at) VALUES (?,?,?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, r.now().Unix())
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

func (r *SQLiteRecorder) Delete(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
