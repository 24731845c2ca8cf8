// Package duckdb provides DuckDB helpers for result storage: opening
// databases, array literal encoding, a small struct-tag table mapper and a
// SELECT query builder.
//
// # Table mapper
//
//	type Run struct {
//	    ID        string `duckdb:"run_id,pk"`
//	    Benchmark string `duckdb:"benchmark"`
//	}
//
//	runs := duckdb.NewTable[Run](db, "runs")
//	err := runs.Insert(ctx, &Run{...})
//
// # Query builder
//
//	query, args, err := duckdb.NewQueryBuilder("stack_samples").
//	    Select("state", "stack_hash", "SUM(sample_count) AS total").
//	    Eq("run_id", runID).
//	    Eq("phase", "measurement").
//	    GroupBy("state", "stack_hash").
//	    OrderBy("-total").
//	    Build()
//
// The builder only generates SQL; callers execute it.
package duckdb
