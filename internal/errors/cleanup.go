// Package errors holds cleanup helpers shared by stackprof's storage and
// command layers.
package errors

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes closer and logs a failure at warn level. Use it in
// defer statements where the close error cannot change the outcome.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// CloseInto closes closer and folds its error into *errp, so a failed
// flush on a written file is reported to the caller.
func CloseInto(errp *error, closer io.Closer, what string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		*errp = stderrors.Join(*errp, fmt.Errorf("failed to close %s: %w", what, err))
	}
}

// DeferRollback rolls back tx, ignoring sql.ErrTxDone after a commit.
func DeferRollback(logger zerolog.Logger, tx *sql.Tx) {
	if tx == nil {
		return
	}
	if err := tx.Rollback(); err != nil && !stderrors.Is(err, sql.ErrTxDone) {
		logger.Warn().Err(err).Msg("Transaction rollback failed")
	}
}

// Must panics if err is not nil. Only for wiring that cannot fail at runtime.
func Must(err error, msg string) {
	if err != nil {
		panic(fmt.Sprintf("%s: %v", msg, err))
	}
}
