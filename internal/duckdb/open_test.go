package duckdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRun struct {
	ID    string `duckdb:"run_id,pk"`
	Name  string `duckdb:"name"`
	Forks int    `duckdb:"forks"`
	Note  string
}

func createRuns(t *testing.T, db *sql.DB) *Table[testRun] {
	t.Helper()
	_, err := db.Exec(`CREATE TABLE runs (run_id TEXT PRIMARY KEY, name TEXT NOT NULL, forks INTEGER NOT NULL)`)
	require.NoError(t, err)
	return NewTable[testRun](db, "runs")
}

func TestOpen_FileAndReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "results.duckdb")

	db, err := Open(path)
	require.NoError(t, err)
	runs := createRuns(t, db)
	require.NoError(t, runs.Insert(context.Background(), &testRun{ID: "a", Name: "spin", Forks: 2}))
	require.NoError(t, db.Close())

	ro, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer func() { _ = ro.Close() }()

	got, err := NewTable[testRun](ro, "runs").Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "spin", got.Name)

	_, err = ro.Exec(`INSERT INTO runs VALUES ('b', 'lock', 1)`)
	assert.Error(t, err, "read-only handle rejects writes")
}

func TestOpenReadOnly_RequiresFile(t *testing.T) {
	_, err := OpenReadOnly("")
	assert.Error(t, err)
}

func TestTable_InsertGetList(t *testing.T) {
	db, err := Open("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	runs := createRuns(t, db)

	require.NoError(t, runs.BatchInsert(ctx, []*testRun{
		{ID: "r2", Name: "lock", Forks: 0},
		{ID: "r1", Name: "spin", Forks: 3},
		{ID: "r3", Name: "spin", Forks: 5},
	}))

	got, err := runs.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "spin", got.Name)

	_, err = runs.Get(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	spins, err := runs.List(ctx, map[string]any{"name": "spin"}, "-run_id")
	require.NoError(t, err)
	require.Len(t, spins, 2)
	assert.Equal(t, "r3", spins[0].ID)
	assert.Equal(t, "r1", spins[1].ID)

	_, err = runs.List(ctx, map[string]any{"nope": 1})
	assert.Error(t, err)

	err = runs.Insert(ctx, &testRun{ID: "r1", Name: "dup", Forks: 0})
	assert.Error(t, err, "duplicate primary key")
}

func TestTable_Query(t *testing.T) {
	db, err := Open("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	runs := createRuns(t, db)

	q, _, err := runs.Select().Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT run_id, name, forks FROM runs", q, "untagged fields are not selected")

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, NewTable[testRun](tx, "runs").BatchInsert(ctx, []*testRun{
		{ID: "r1", Name: "spin", Forks: 1},
		{ID: "r2", Name: "spin", Forks: 4},
		{ID: "r3", Name: "spin", Forks: 7},
		{ID: "r4", Name: "lock", Forks: 9},
	}))
	require.NoError(t, tx.Commit())

	got, err := runs.Query(ctx, runs.Select().
		Eq("name", "spin").
		Gte("forks", 2).
		OrderBy("-forks").
		Limit(1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r3", got[0].ID)

	all, err := runs.Query(ctx, runs.Select().Eq("name", "").OrderBy("run_id"))
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = runs.Query(ctx, NewQueryBuilder(""))
	assert.Error(t, err)
}
