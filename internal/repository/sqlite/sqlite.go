// Package sqlite implements the repository interfaces on top of SQLite.
//
// modernc.org/sqlite is a pure Go port of SQLite, so the binary builds without
// CGo. All access goes through database/sql.
//
// Transactions: SQLite only offers serializable isolation, so
// repository.Serializable and repository.ReadWrite behave the same. Write
// transactions are opened with BEGIN IMMEDIATE (the _txlock DSN parameter) so
// two concurrent writers queue on busy_timeout instead of failing on lock
// upgrade halfway through.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/sakif/weather-diary/internal/repository"
)

// busyTimeoutMillis is how long a writer waits for another writer's lock.
const busyTimeoutMillis = 5000

// querier is the subset of *sql.DB and *sql.Tx the repository methods use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a sql.DB connection pool and provides repository methods.
//
// A DB returned by New runs each method on the pool. Inside WithTx the callback
// receives a DB whose methods run on the open transaction instead.
type DB struct {
	conn *sql.DB
	q    querier
}

var (
	_ repository.Store      = (*DB)(nil)
	_ repository.Transactor = (*DB)(nil)
)

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/diary.db" → file-based database (persistent)
//   - ":memory:"      → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" would be its own empty database.
	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn, q: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_txlock=immediate&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		dbPath, sep, busyTimeoutMillis)
}

func isMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// WithTx runs fn inside a single transaction.
//
// Calling WithTx on a DB that is already bound to a transaction runs fn in
// that same transaction.
func (db *DB) WithTx(ctx context.Context, opts repository.TxOptions, fn func(repository.Store) error) (err error) {
	if _, inTx := db.q.(*sql.Tx); inTx {
		return fn(db)
	}

	switch opts.Isolation {
	case sql.LevelDefault, sql.LevelSerializable:
	default:
		return fmt.Errorf("sqlite: isolation level %s not supported", opts.Isolation)
	}

	tx, err := db.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: opts.ReadOnly})
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("sqlite: rolling back: %w", rbErr))
		}
	}()

	if err := fn(&DB{conn: db.conn, q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	committed = true
	return nil
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it safe to rerun.
//
// Neither table has a date uniqueness constraint: several snapshots and several
// entries per date are allowed. "First for a date" means lowest rowid.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS weather_snapshots (
			id           TEXT PRIMARY KEY,
			date         TEXT NOT NULL,
			weather_main TEXT NOT NULL DEFAULT '',
			weather_icon TEXT NOT NULL DEFAULT '',
			temperature  REAL NOT NULL,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_weather_snapshots_date ON weather_snapshots(date);
	`)
	if err != nil {
		return fmt.Errorf("creating weather_snapshots table: %w", err)
	}

	// The weather columns are a copy taken at creation time. weather_id is empty
	// when the copy came from a live fetch that was never stored, so it is not a
	// foreign key.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS diaries (
			id           TEXT PRIMARY KEY,
			date         TEXT NOT NULL,
			text         TEXT NOT NULL DEFAULT '',
			weather_id   TEXT NOT NULL DEFAULT '',
			weather_date TEXT NOT NULL,
			weather_main TEXT NOT NULL DEFAULT '',
			weather_icon TEXT NOT NULL DEFAULT '',
			temperature  REAL NOT NULL,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_diaries_date ON diaries(date);
	`)
	if err != nil {
		return fmt.Errorf("creating diaries table: %w", err)
	}

	return nil
}
