package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists the audit log to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the status endpoint read while ticks are being written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tick_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			seq         INTEGER NOT NULL,
			symbol      TEXT NOT NULL,
			trigger_src TEXT,
			outcome     TEXT NOT NULL,
			bars        INTEGER,
			last_close  REAL,
			duration_ms INTEGER,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tick_ts ON tick_log(timestamp)`,

		`CREATE TABLE IF NOT EXISTS symbol_changes (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			from_symbol TEXT,
			to_symbol   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbol_ts ON symbol_changes(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func unixOrNow(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().Unix()
	}
	return t.Unix()
}

func (r *SQLiteRecorder) RecordTick(evt *TickEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO tick_log
		(timestamp, seq, symbol, trigger_src, outcome, bars, last_close, duration_ms, error)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		unixOrNow(evt.At), int64(evt.Seq), evt.Symbol, evt.Trigger, evt.Outcome,
		evt.Bars, evt.LastClose, evt.Duration.Milliseconds(), evt.Error,
	)
	return err
}

func (r *SQLiteRecorder) RecordSymbolChange(evt *SymbolChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO symbol_changes (timestamp, from_symbol, to_symbol) VALUES (?,?,?)`,
		unixOrNow(evt.At), evt.From, evt.To,
	)
	return err
}

// OutcomeCounts tallies recorded ticks by outcome.
func (r *SQLiteRecorder) OutcomeCounts() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT outcome, COUNT(*) FROM tick_log GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
