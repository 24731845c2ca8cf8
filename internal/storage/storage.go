// Package storage persists sampled stack tables in DuckDB so runs can be
// reported again later. Stacks are stored integer-encoded against a shared
// frame dictionary.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"github.com/coral-mesh/stackprof/internal/duckdb"
	errs "github.com/coral-mesh/stackprof/internal/errors"
	"github.com/coral-mesh/stackprof/internal/stacks"
)

// Phase names used for stored iterations.
const (
	PhaseWarmup      = "warmup"
	PhaseMeasurement = "measurement"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run describes one benchmark run.
type Run struct {
	ID           string    `duckdb:"run_id,pk"`
	Benchmark    string    `duckdb:"benchmark"`
	Workload     string    `duckdb:"workload"`
	Profiler     string    `duckdb:"profiler"`
	Params       string    `duckdb:"params"` // resolved parameters as JSON
	Host         string    `duckdb:"host"`
	StartedAt    time.Time `duckdb:"started_at"`
	TotalSamples int64     `duckdb:"total_samples"`
}

// frameEntry is one row of the frame dictionary.
type frameEntry struct {
	ID   int64  `duckdb:"frame_id,pk"`
	Name string `duckdb:"frame_name"`
}

// SampleKey identifies the iteration a table was sampled in.
type SampleKey struct {
	RunID     string
	Fork      int
	Iteration int
	Phase     string
}

// Filter selects stored samples. Zero fields match everything.
type Filter struct {
	RunID string
	Phase string
	Forks []int
}

// Storage handles persistence of runs and their samples.
type Storage struct {
	db     *sql.DB
	logger zerolog.Logger
	runs   *duckdb.Table[Run]
	mu     sync.RWMutex

	// Frame dictionary cache: frame_name -> frame_id and back.
	frameIDs    map[string]int64
	frameNames  map[int64]string
	nextFrameID int64
	pending     []string // names inserted by the open transaction
}

// NewStorage initializes the schema and loads the frame dictionary.
func NewStorage(db *sql.DB, logger zerolog.Logger) (*Storage, error) {
	return newStorage(db, logger, true)
}

// NewReader opens storage over a database that already holds the schema,
// such as one opened with duckdb.OpenReadOnly. Writes fail.
func NewReader(db *sql.DB, logger zerolog.Logger) (*Storage, error) {
	return newStorage(db, logger, false)
}

func newStorage(db *sql.DB, logger zerolog.Logger, writable bool) (*Storage, error) {
	s := &Storage{
		db:         db,
		logger:     logger.With().Str("component", "stack_storage").Logger(),
		runs:       duckdb.NewTable[Run](db, "runs"),
		frameIDs:   make(map[string]int64),
		frameNames: make(map[int64]string),
	}

	if writable {
		if err := s.initSchema(); err != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	if err := s.loadFrameDictionary(); err != nil {
		return nil, fmt.Errorf("failed to load frame dictionary: %w", err)
	}
	return s, nil
}

func (s *Storage) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS frame_dictionary (
			frame_id   BIGINT PRIMARY KEY,
			frame_name TEXT UNIQUE NOT NULL
		);

		CREATE TABLE IF NOT EXISTS runs (
			run_id        TEXT PRIMARY KEY,
			benchmark     TEXT      NOT NULL,
			workload      TEXT      NOT NULL,
			profiler      TEXT      NOT NULL,
			params        TEXT      NOT NULL,
			host          TEXT      NOT NULL,
			started_at    TIMESTAMP NOT NULL,
			total_samples BIGINT    NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS stack_samples (
			run_id          TEXT     NOT NULL,
			fork            INTEGER  NOT NULL,
			iteration       INTEGER  NOT NULL,
			phase           TEXT     NOT NULL,
			state           TEXT     NOT NULL,
			stack_hash      TEXT     NOT NULL,
			stack_frame_ids BIGINT[] NOT NULL,
			sample_count    BIGINT   NOT NULL,
			PRIMARY KEY (run_id, fork, iteration, phase, state, stack_hash)
		);
		CREATE INDEX IF NOT EXISTS idx_stack_samples_run ON stack_samples (run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *Storage) loadFrameDictionary() error {
	rows, err := s.db.Query("SELECT frame_id, frame_name FROM frame_dictionary")
	if err != nil {
		return fmt.Errorf("failed to query frame dictionary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	maxID := int64(0)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("failed to scan frame dictionary row: %w", err)
		}
		s.frameIDs[name] = id
		s.frameNames[id] = name
		maxID = max(maxID, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating frame dictionary: %w", err)
	}

	s.nextFrameID = maxID + 1
	s.logger.Debug().Int("frame_count", len(s.frameIDs)).Msg("Loaded frame dictionary")
	return nil
}

// CreateRun records a new run. A missing ID or start time is filled in.
func (s *Storage) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if err := s.runs.Insert(ctx, run); err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the final sample total of a run.
func (s *Storage) FinishRun(ctx context.Context, runID string, total int64) error {
	res, err := s.db.ExecContext(ctx, "UPDATE runs SET total_samples = ? WHERE run_id = ?", total, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun returns one run.
func (s *Storage) GetRun(ctx context.Context, runID string) (*Run, error) {
	run, err := s.runs.Get(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return run, nil
}

// RunQuery restricts ListRuns. Zero fields match every run.
type RunQuery struct {
	Benchmark string
	Since     time.Time // runs started at or after
	Limit     int
}

// ListRuns returns the runs matching q, newest first.
func (s *Storage) ListRuns(ctx context.Context, q RunQuery) ([]*Run, error) {
	b := s.runs.Select().Eq("benchmark", q.Benchmark)
	if !q.Since.IsZero() {
		b.Gte("started_at", q.Since.UTC())
	}
	b.OrderBy("-started_at").Limit(q.Limit)

	runs, err := s.runs.Query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recent run, or ErrRunNotFound.
func (s *Storage) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := s.ListRuns(ctx, RunQuery{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no runs stored", ErrRunNotFound)
	}
	return runs[0], nil
}

// StoreTable stores the samples of one iteration in a single transaction.
// Storing the same key twice adds the counts.
func (s *Storage) StoreTable(ctx context.Context, key SampleKey, table *stacks.Table) (err error) {
	if table == nil || table.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer errs.DeferRollback(s.logger, tx)

	table.Each(func(state stacks.ThreadState, record stacks.Record, count int64) {
		if err != nil {
			return
		}
		var ids []int64
		ids, err = s.encodeFrames(ctx, tx, record.Lines())
		if err != nil {
			return
		}

		// #nosec G202 - the array literal is built from integers, not input.
		query := `
			INSERT INTO stack_samples (
				run_id, fork, iteration, phase, state, stack_hash, stack_frame_ids, sample_count
			) VALUES (?, ?, ?, ?, ?, ?, ` + duckdb.Int64ArrayToString(ids) + `, ?)
			ON CONFLICT (run_id, fork, iteration, phase, state, stack_hash)
			DO UPDATE SET sample_count = stack_samples.sample_count + EXCLUDED.sample_count
		`
		_, err = tx.ExecContext(ctx, query,
			key.RunID, key.Fork, key.Iteration, key.Phase,
			state.String(), StackHash(record), count)
		if err != nil {
			err = fmt.Errorf("failed to store sample: %w", err)
		}
	})
	if err != nil {
		s.forgetUncommitted()
		return err
	}

	if err := tx.Commit(); err != nil {
		s.forgetUncommitted()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.pending = nil
	return nil
}

// LoadTable aggregates the stored samples matching f into one table.
func (s *Storage) LoadTable(ctx context.Context, f Filter) (*stacks.Table, error) {
	b := duckdb.NewQueryBuilder("stack_samples").
		Select("state", "stack_hash", "ANY_VALUE(stack_frame_ids) AS frames", "SUM(sample_count) AS total").
		Eq("run_id", f.RunID).
		Eq("phase", f.Phase)
	forks := make([]any, len(f.Forks))
	for i, fork := range f.Forks {
		forks[i] = fork
	}
	b.In("fork", forks...).GroupBy("state", "stack_hash")

	query, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("query", duckdb.InterpolateQuery(query, args)).Msg("Loading samples")

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	table := stacks.NewTable()
	for rows.Next() {
		var (
			stateName string
			hash      string
			frames    any
			total     int64
		)
		if err := rows.Scan(&stateName, &hash, &frames, &total); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		state, err := stacks.ParseThreadState(stateName)
		if err != nil {
			s.logger.Warn().Str("state", stateName).Msg("Skipping samples with unknown state")
			continue
		}
		ids, err := duckdb.Int64Array(frames)
		if err != nil {
			return nil, fmt.Errorf("failed to decode stack %s: %w", hash, err)
		}
		table.Add(state, stacks.NewRecord(s.decodeFrames(ids)...), total)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return table.Seal(), nil
}

// DeleteRun removes a run and its samples.
func (s *Storage) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer errs.DeferRollback(s.logger, tx)

	if _, err := tx.ExecContext(ctx, "DELETE FROM stack_samples WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("failed to delete samples of run %s: %w", runID, err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE run_id = ?", runID)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return tx.Commit()
}

// encodeFrames converts frame names to dictionary ids, inserting unknown
// names within tx. Must be called with mu held.
func (s *Storage) encodeFrames(ctx context.Context, tx *sql.Tx, names []string) ([]int64, error) {
	ids := make([]int64, len(names))
	var added []*frameEntry
	for i, name := range names {
		id, ok := s.frameIDs[name]
		if !ok {
			id = s.nextFrameID
			s.nextFrameID++
			s.frameIDs[name] = id
			s.frameNames[id] = name
			s.pending = append(s.pending, name)
			added = append(added, &frameEntry{ID: id, Name: name})
		}
		ids[i] = id
	}

	if err := duckdb.NewTable[frameEntry](tx, "frame_dictionary").BatchInsert(ctx, added); err != nil {
		return nil, fmt.Errorf("failed to insert frames: %w", err)
	}
	return ids, nil
}

// forgetUncommitted drops dictionary entries added by a rolled back
// transaction. Must be called with mu held.
func (s *Storage) forgetUncommitted() {
	for _, name := range s.pending {
		id := s.frameIDs[name]
		delete(s.frameIDs, name)
		delete(s.frameNames, id)
	}
	s.pending = nil
}

func (s *Storage) decodeFrames(ids []int64) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		if name, ok := s.frameNames[id]; ok {
			names[i] = name
		} else {
			names[i] = "unknown_frame_" + strconv.FormatInt(id, 10)
		}
	}
	return names
}

// StackHash returns the deduplication key of a record.
func StackHash(record stacks.Record) string {
	return strconv.FormatUint(xxh3.HashString(string(record)), 16)
}
