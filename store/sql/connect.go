package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Open connects the named driver and pairs it with the matching bun dialect.
// The returned handle is ready to hand to the persistence client or to
// NewStoreFactoryFromDB.
func Open(driver, dsn string) (*sql.DB, schema.Dialect, error) {
	driver = strings.TrimSpace(strings.ToLower(driver))
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	return db, dialect, nil
}

// DialectFor maps a database/sql driver name to its bun dialect.
func DialectFor(driver string) (schema.Dialect, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case DriverPostgres:
		return pgdialect.New(), nil
	case DriverSQLite:
		return sqlitedialect.New(), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// OpenBun opens the connection and wraps it in a *bun.DB directly, for
// callers that skip the persistence client.
func OpenBun(driver, dsn string) (*bun.DB, error) {
	db, dialect, err := Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(db, dialect), nil
}
