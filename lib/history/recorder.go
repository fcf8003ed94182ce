// Package history persists vault events to SQLite.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/ftchann/uniswap-vault/lib/vault"

	ui "github.com/holiman/uint256"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Recorder is a vault.EventSink writing one row per event.
type Recorder struct {
	db *sql.DB
	mu sync.Mutex
	lg zerolog.Logger
}

var _ vault.EventSink = (*Recorder)(nil)

// Open opens or creates the database at path and runs migrations.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &Recorder{
		db: db,
		lg: zerolog.New(os.Stdout).With().Str("Module", "History").Timestamp().Logger(),
	}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	r.lg.Info().Str("Path", path).Msg("History opened")
	return r, nil
}

func (r *Recorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vault_events (
			id           TEXT PRIMARY KEY,
			kind         TEXT NOT NULL,
			block        INTEGER NOT NULL,
			timestamp    INTEGER NOT NULL,
			account      TEXT,
			recipient    TEXT,
			shares       TEXT,
			amount0      TEXT,
			amount1      TEXT,
			total_supply TEXT,
			base_lower   INTEGER,
			base_upper   INTEGER,
			limit_lower  INTEGER,
			limit_upper  INTEGER,
			tick         INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vault_events_kind ON vault_events(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_vault_events_block ON vault_events(block)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func dec(x *ui.Int) any {
	if x == nil {
		return nil
	}
	return x.Dec()
}

func (r *Recorder) Record(e vault.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO vault_events
		(id, kind, block, timestamp, account, recipient, shares, amount0, amount1, total_supply,
		 base_lower, base_upper, limit_lower, limit_upper, tick)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID.String(), string(e.Kind), int64(e.Block), e.Time.Unix(),
		e.Account.Hex(), e.Recipient.Hex(),
		dec(e.Shares), dec(e.Amount0), dec(e.Amount1), dec(e.TotalSupply),
		e.Base.TickLower, e.Base.TickUpper, e.Limit.TickLower, e.Limit.TickUpper, e.Tick,
	)
	if err != nil {
		return fmt.Errorf("insert %s event: %w", e.Kind, err)
	}
	return nil
}

// Count returns the number of recorded events of kind.
func (r *Recorder) Count(kind vault.EventKind) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM vault_events WHERE kind = ?`, string(kind)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Row is a recorded event as stored.
type Row struct {
	ID          string
	Kind        vault.EventKind
	Block       uint64
	Timestamp   int64
	Shares      sql.NullString
	Amount0     sql.NullString
	Amount1     sql.NullString
	TotalSupply sql.NullString
}

// Recent returns up to limit events, newest block first.
func (r *Recorder) Recent(limit int) ([]Row, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, kind, block, timestamp, shares, amount0, amount1, total_supply
		FROM vault_events ORDER BY block DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		var kind string
		var block int64
		if err := rows.Scan(&row.ID, &kind, &block, &row.Timestamp, &row.Shares, &row.Amount0, &row.Amount1, &row.TotalSupply); err != nil {
			return nil, err
		}
		row.Kind = vault.EventKind(kind)
		row.Block = uint64(block)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Recorder) Close() error {
	r.lg.Info().Msg("History closed")
	return r.db.Close()
}
