package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	duckdbDriver "github.com/marcboeker/go-duckdb"
)

// Open opens (creating if needed) the DuckDB database at path. An empty
// path or ":memory:" opens an in-memory database.
func Open(path string) (*sql.DB, error) {
	return open(path, false)
}

// OpenReadOnly opens an existing database file without taking the write
// lock, so reports can be rendered while a run is still writing.
func OpenReadOnly(path string) (*sql.DB, error) {
	if path == "" || path == ":memory:" {
		return nil, fmt.Errorf("read-only mode requires a database file")
	}
	return open(path, true)
}

func open(path string, readOnly bool) (*sql.DB, error) {
	if path != "" && path != ":memory:" && !readOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path
	if readOnly {
		dsn = withQueryParam(dsn, "access_mode", "READ_ONLY")
	}

	connector, err := duckdbDriver.NewConnector(dsn, func(execer driver.ExecerContext) error {
		// Progress bars write to stdout from inside the driver.
		_, err := execer.ExecContext(context.Background(), "SET enable_progress_bar = false", nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb %q: %w", path, err)
	}

	return sql.OpenDB(connector), nil
}

// withQueryParam sets key in the DSN query string unless already present.
func withQueryParam(dsn, key, value string) string {
	path, query, _ := strings.Cut(dsn, "?")

	params, err := url.ParseQuery(query)
	if err != nil {
		return dsn
	}
	if !params.Has(key) {
		params.Set(key, value)
	}
	return path + "?" + params.Encode()
}
