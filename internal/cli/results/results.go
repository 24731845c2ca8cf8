// Package results implements the commands that read stored runs: report
// renders the samples of a run, runs lists and deletes runs.
package results

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/stackprof/internal/duckdb"
	errs "github.com/coral-mesh/stackprof/internal/errors"
	"github.com/coral-mesh/stackprof/internal/storage"
)

// openStorage opens the results database at path. Read-only opens do not
// take the write lock, so a run may keep writing meanwhile.
func openStorage(path string, readOnly bool, logger zerolog.Logger) (*storage.Storage, func(), error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("no results database at %s (store runs with 'stackprof run --store')", path)
	}

	open, newStorage := duckdb.Open, storage.NewStorage
	if readOnly {
		open, newStorage = duckdb.OpenReadOnly, storage.NewReader
	}

	db, err := open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open results database: %w", err)
	}
	closeDB := func() { errs.DeferClose(logger, db, "Failed to close results database") }

	s, err := newStorage(db, logger)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return s, closeDB, nil
}

// databaseFlag registers --db.
func databaseFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVar(path, "db", "", "Results database (default: storage.path from the configuration)")
}
