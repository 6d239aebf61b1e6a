// Package sqldb implements the repository interfaces on a relational engine.
//
// ENGINES:
// The same queries run on SQLite (modernc.org/sqlite, pure Go) and on
// PostgreSQL (pgx through its database/sql driver). Queries are written with
// "?" placeholders and passed through sqlx's Rebind, which rewrites them to
// "$1, $2, ..." for PostgreSQL and leaves them alone for SQLite.
//
//	Open(ctx, "data/inkwell.db")               → SQLite file
//	Open(ctx, "sqlite://data/inkwell.db")      → SQLite file
//	Open(ctx, ":memory:")                      → private in-memory SQLite (tests)
//	Open(ctx, "postgres://user:pw@host/db")    → PostgreSQL
//
// TRANSACTIONS:
// Every mutation that touches more than one row, or that checks before it
// writes, runs inside withTx. The callback sees only the transaction handle;
// any error or panic rolls everything back before it propagates.
package sqldb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) String() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

func init() {
	// sqlx only knows "sqlite3" for question-mark binds.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// sqlitePragmas are applied by the driver to every pooled connection.
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite&_txlock=immediate"

// DB wraps a sqlx connection pool and implements the repositories.
type DB struct {
	conn    *sqlx.DB
	dialect dialect
	now     func() time.Time
}

// Option configures a DB.
type Option func(*DB)

// WithClock overrides the time source used for date_posted, created_at and
// last_seen defaults.
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

// Open connects to dsn, verifies the connection and creates any missing
// tables and indexes.
func Open(ctx context.Context, dsn string, opts ...Option) (*DB, error) {
	driver, source, d, memory := parseDSN(dsn)

	conn, err := sqlx.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("sqldb: opening %s database: %w", d, err)
	}

	// Each connection to ":memory:" is a separate database.
	if memory {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqldb: pinging %s database: %w", d, err)
	}

	db := &DB{conn: conn, dialect: d, now: time.Now}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqldb: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Engine names the backing engine, "sqlite" or "postgres".
func (db *DB) Engine() string {
	return db.dialect.String()
}

// parseDSN maps a DATABASE_URL value onto a driver name and data source.
func parseDSN(dsn string) (driver, source string, d dialect, memory bool) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", dsn, dialectPostgres, false
	case dsn == ":memory:", dsn == "sqlite://:memory:":
		return "sqlite", ":memory:?" + sqlitePragmas, dialectSQLite, true
	}

	path := strings.TrimPrefix(dsn, "sqlite://")
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "sqlite", path + sep + sqlitePragmas + "&_pragma=journal_mode(WAL)", dialectSQLite, false
}

// timestamp returns the current time in the form every table stores.
func (db *DB) timestamp() time.Time {
	return storedTime(db.now())
}

// storedTime converts t to UTC at the microsecond precision both engines
// keep. Sub-microsecond remainders round up, so a stored time is never
// earlier than the moment it was taken.
func storedTime(t time.Time) time.Time {
	t = t.UTC()
	if r := t.Truncate(time.Microsecond); r.Before(t) {
		return r.Add(time.Microsecond)
	}
	return t
}

// withTx runs fn inside a transaction. fn's error (or a panic) rolls the
// transaction back; a nil return commits it.
func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// exists reports whether table has a row with the given id. table is always
// a constant from this package.
func exists(ctx context.Context, q sqlx.ExtContext, table string, id int64) (bool, error) {
	var n int
	query := q.Rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE id = ?`, table))
	if err := sqlx.GetContext(ctx, q, &n, query, id); err != nil {
		return false, fmt.Errorf("checking %s %d: %w", table, id, err)
	}
	return n > 0, nil
}

// insertID runs an INSERT ... RETURNING id statement.
func insertID(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (int64, error) {
	var id int64
	if err := q.QueryRowxContext(ctx, q.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
