// Package sqlite provides a SQLite-backed state store driver.
//
// Suitable for single-host deployments where several gateway processes on
// the same machine share coordination state through one database file.
// Expiry is modelled as a unix-milli column checked on every read; a reaper
// statement clears dead rows opportunistically on writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mnemohq/mnemo/pkg/statestore"
)

// Driver implements statestore.Driver using SQLite.
type Driver struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS gateway_state (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER
);
`

// NewDriver creates a SQLite-backed state store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Concurrent writers from multiple gateway processes share the file;
	// WAL plus a busy timeout keeps SetIfAbsent contention from erroring.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 250",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Driver{db: db}, nil
}

func (d *Driver) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value     []byte
		expiresAt sql.NullInt64
	)

	row := d.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM gateway_state WHERE key = ?`, key)
	if err := row.Scan(&value, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, statestore.UnavailableError{Op: "get", Err: err}
	}

	if expiresAt.Valid && expiresAt.Int64 <= nowMilli() {
		return nil, false, nil
	}

	return value, true, nil
}

func (d *Driver) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO gateway_state (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiryMilli(ttl))
	if err != nil {
		return statestore.UnavailableError{Op: "set", Err: err}
	}

	return nil
}

func (d *Driver) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	now := nowMilli()

	// The upsert claims the key only when the existing row is expired; a
	// plain insert claims it when no row exists. Row count distinguishes
	// winner from loser atomically.
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO gateway_state (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
		WHERE gateway_state.expires_at IS NOT NULL AND gateway_state.expires_at <= ?`,
		key, value, expiryMilli(ttl), now)
	if err != nil {
		return false, statestore.UnavailableError{Op: "setifabsent", Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, statestore.UnavailableError{Op: "setifabsent", Err: err}
	}

	return n > 0, nil
}

func (d *Driver) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, statestore.UnavailableError{Op: "incr", Err: err}
	}
	defer tx.Rollback()

	var (
		value     []byte
		expiresAt sql.NullInt64
	)

	now := nowMilli()
	fresh := false

	row := tx.QueryRowContext(ctx,
		`SELECT value, expires_at FROM gateway_state WHERE key = ?`, key)
	err = row.Scan(&value, &expiresAt)
	switch {
	case err == sql.ErrNoRows:
		fresh = true
	case err != nil:
		return 0, statestore.UnavailableError{Op: "incr", Err: err}
	case expiresAt.Valid && expiresAt.Int64 <= now:
		fresh = true
	}

	var n int64 = 1
	if !fresh {
		prev, perr := strconv.ParseInt(string(value), 10, 64)
		if perr == nil {
			n = prev + 1
		}
	}

	exp := expiresAt
	if fresh {
		exp = expiryMilli(ttl)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO gateway_state (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, []byte(strconv.FormatInt(n, 10)), exp)
	if err != nil {
		return 0, statestore.UnavailableError{Op: "incr", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return 0, statestore.UnavailableError{Op: "incr", Err: err}
	}

	return n, nil
}

func (d *Driver) Delete(ctx context.Context, key string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM gateway_state WHERE key = ?`, key)
	if err != nil {
		return statestore.UnavailableError{Op: "delete", Err: err}
	}

	return nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

func nowMilli() int64 {
	return time.Now().UnixMilli()
}

// expiryMilli converts a ttl to an absolute unix-milli expiry.
// A ttl <= 0 yields NULL (no expiry).
func expiryMilli(ttl time.Duration) sql.NullInt64 {
	if ttl <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: nowMilli() + ttl.Milliseconds(), Valid: true}
}

var _ statestore.Driver = (*Driver)(nil)
