package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/coral-mesh/stackprof/internal/retry"
)

// Execer matches both *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conflictRetry is used for writes that can hit DuckDB's optimistic
// concurrency conflicts when several iterations are stored concurrently.
var conflictRetry = retry.Config{
	MaxRetries:     10,
	InitialBackoff: 10 * time.Millisecond,
	MaxBackoff:     500 * time.Millisecond,
	Jitter:         0.1,
}

// Table maps struct type T onto a database table. Fields are bound through
// `duckdb:"column[,pk]"` tags; untagged fields are ignored. Only scalar
// columns are supported: the driver cannot bind Go slices, so array columns
// are written with Int64ArrayToString literals by hand.
type Table[T any] struct {
	db        Execer
	tableName string
	columns   []string
	pkColumns []string
	fieldMap  map[string]int
}

// NewTable creates a Table[T]. It panics if T is not a struct.
func NewTable[T any](db Execer, tableName string) *Table[T] {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		panic("duckdb: Table type parameter must be a struct")
	}

	table := &Table[T]{
		db:        db,
		tableName: tableName,
		fieldMap:  make(map[string]int),
	}
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("duckdb")
		if tag == "" || tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		name = strings.TrimSpace(name)
		table.columns = append(table.columns, name)
		table.fieldMap[name] = i
		if strings.TrimSpace(opts) == "pk" {
			table.pkColumns = append(table.pkColumns, name)
		}
	}
	return table
}

func (t *Table[T]) insertQuery() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ")
	// #nosec G201 - table and column names come from struct tags, not input.
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.tableName, strings.Join(t.columns, ", "), placeholders)
}

func (t *Table[T]) values(item *T) []any {
	val := reflect.ValueOf(item).Elem()
	values := make([]any, len(t.columns))
	for i, col := range t.columns {
		values[i] = val.Field(t.fieldMap[col]).Interface()
	}
	return values
}

// Insert inserts one row. Duplicate keys are an error.
func (t *Table[T]) Insert(ctx context.Context, item *T) error {
	query := t.insertQuery()
	values := t.values(item)

	return retry.Do(ctx, conflictRetry, func() error {
		_, err := t.db.ExecContext(ctx, query, values...)
		return err
	}, isTransactionConflict)
}

// BatchInsert inserts items with one prepared statement inside a
// transaction. When db is already a *sql.Tx the caller owns commit.
func (t *Table[T]) BatchInsert(ctx context.Context, items []*T) (err error) {
	if len(items) == 0 {
		return nil
	}

	var tx *sql.Tx
	switch d := t.db.(type) {
	case *sql.Tx:
		tx = d
	case *sql.DB:
		tx, err = d.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()
	default:
		return fmt.Errorf("unsupported Execer type for BatchInsert: %T", t.db)
	}

	stmt, err := tx.PrepareContext(ctx, t.insertQuery())
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, item := range items {
		if _, err = stmt.ExecContext(ctx, t.values(item)...); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}

	if _, owned := t.db.(*sql.DB); owned {
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	return nil
}

// Get retrieves the row whose first primary key column equals id. It
// returns sql.ErrNoRows when there is none.
func (t *Table[T]) Get(ctx context.Context, id any) (*T, error) {
	if len(t.pkColumns) == 0 {
		return nil, errors.New("no primary key defined for table")
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		strings.Join(t.columns, ", "), t.tableName, t.pkColumns[0])

	item, dest := t.scanTarget()
	if err := t.db.QueryRowContext(ctx, query, id).Scan(dest...); err != nil {
		return nil, err
	}
	return item, nil
}

// Select starts a query over the mapped columns, in the order Query scans
// them. Callers add conditions, ordering and limits.
func (t *Table[T]) Select() *Builder {
	return NewQueryBuilder(t.tableName).Select(t.columns...)
}

// List retrieves rows matching all "column = value" filters, ordered by
// orderBy when given.
func (t *Table[T]) List(ctx context.Context, filters map[string]any, orderBy ...string) ([]*T, error) {
	b := t.Select()

	cols := make([]string, 0, len(filters))
	for col := range filters {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		if _, ok := t.fieldMap[col]; !ok {
			return nil, fmt.Errorf("column %s does not exist in table %s", col, t.tableName)
		}
		b.Where(col+" = ?", filters[col])
	}
	b.OrderBy(orderBy...)

	return t.Query(ctx, b)
}

// Query runs b and scans each row into a T. b must select exactly the
// mapped columns, as builders from Select do.
func (t *Table[T]) Query(ctx context.Context, b *Builder) ([]*T, error) {
	query, args, err := b.Build()
	if err != nil {
		return nil, err
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []*T
	for rows.Next() {
		item, dest := t.scanTarget()
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// scanTarget allocates a T and the scan destinations for its columns.
func (t *Table[T]) scanTarget() (*T, []any) {
	item := new(T)
	val := reflect.ValueOf(item).Elem()
	dest := make([]any, len(t.columns))
	for i, col := range t.columns {
		dest[i] = val.Field(t.fieldMap[col]).Addr().Interface()
	}
	return item, dest
}

func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Conflict on update") ||
		strings.Contains(msg, "TransactionContext Error") ||
		strings.Contains(msg, "serialization")
}
