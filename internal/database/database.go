package database

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var (
	//go:embed schema_sqlite.sql
	sqliteSchema string

	//go:embed schema_postgres.sql
	postgresSchema string
)

var (
	// ErrCreation is returned when an insert does not hand back a row id.
	ErrCreation = errors.New("database: insert returned no id")

	// ErrVersionConflict is returned when a versioned write finds the row
	// at a different version than the caller last saw.
	ErrVersionConflict = errors.New("database: version conflict")
)

// InitDB opens the database for driver ("sqlite3" or "postgres"), checks the
// connection and applies the schema.
func InitDB(driver, dataSourceName string) (*sql.DB, error) {
	schema, err := schemaFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite3" {
		// sqlite serialises writers anyway, and every new connection to
		// ":memory:" would see an empty database.
		db.SetMaxOpenConns(1)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return db, nil
}

func schemaFor(driver string) (string, error) {
	switch driver {
	case "sqlite3":
		return sqliteSchema, nil
	case "postgres":
		return postgresSchema, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}
