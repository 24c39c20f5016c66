// Package backend selects a store implementation by driver name.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/entitle/store"
	"github.com/xraph/entitle/store/memory"
	"github.com/xraph/entitle/store/mongo"
	"github.com/xraph/entitle/store/postgres"
	"github.com/xraph/entitle/store/sqlite"
)

// Driver names accepted by New and Open.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Normalize maps common aliases onto the driver constants.
func Normalize(driver string) string {
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "", "mem", DriverMemory:
		return DriverMemory
	case "pg", "postgresql", DriverPostgres:
		return DriverPostgres
	case "sqlite3", DriverSQLite:
		return DriverSQLite
	case "mongodb", DriverMongo:
		return DriverMongo
	default:
		return d
	}
}

// New wraps an open grove database in the store for driver.
func New(driver string, db *grove.DB) (store.Store, error) {
	switch Normalize(driver) {
	case DriverPostgres:
		return postgres.New(db), nil
	case DriverSQLite:
		return sqlite.New(db), nil
	case DriverMongo:
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("entitle/backend: unsupported grove driver %q", driver)
	}
}

// Open connects to dsn and returns the store for driver. The memory driver
// ignores dsn.
func Open(ctx context.Context, driver, dsn string) (store.Store, error) {
	driver = Normalize(driver)
	if driver == DriverMemory {
		return memory.New(), nil
	}
	if dsn == "" {
		return nil, fmt.Errorf("entitle/backend: %s driver requires a dsn", driver)
	}

	db, err := connect(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("entitle/backend: connect %s: %w", driver, err)
	}
	if err := db.Ping(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("entitle/backend: ping %s: %w", driver, err)
	}
	return New(driver, db)
}

// connect opens a grove database for one of the grove-backed drivers.
func connect(ctx context.Context, driver, dsn string) (*grove.DB, error) {
	switch driver {
	case DriverPostgres:
		drv := pgdriver.New()
		if err := drv.Open(ctx, dsn); err != nil {
			return nil, err
		}
		return grove.Open(drv)
	case DriverSQLite:
		drv := sqlitedriver.New()
		if err := drv.Open(ctx, SQLiteDSN(dsn)); err != nil {
			return nil, err
		}
		return grove.Open(drv)
	case DriverMongo:
		drv := mongodriver.New()
		if err := drv.Open(ctx, dsn); err != nil {
			return nil, err
		}
		return grove.Open(drv)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// SQLiteBusyTimeout is how long a SQLite connection waits on a locked
// database before returning SQLITE_BUSY.
const SQLiteBusyTimeout = 5000

// SQLiteDSN adds a busy timeout pragma to dsn unless one is set already.
// The driver enables WAL on open; every pooled connection still needs the
// timeout so concurrent meter writes queue instead of failing.
func SQLiteDSN(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)", dsn, sep, SQLiteBusyTimeout)
}
