// Package postgres stores scenario results in PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/bodyleak/internal/utils"
	"github.com/and161185/bodyleak/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTable = `
CREATE TABLE IF NOT EXISTS scenario_results (
	id              BIGSERIAL PRIMARY KEY,
	run_id          TEXT        NOT NULL,
	scenario        TEXT        NOT NULL,
	status          TEXT        NOT NULL,
	error           TEXT        NOT NULL DEFAULT '',
	leak_mb         BIGINT,
	start_memory    BIGINT,
	peak_memory     BIGINT,
	end_memory      BIGINT,
	memory_examples BIGINT[],
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL
)`

const insertResult = `
INSERT INTO scenario_results
	(run_id, scenario, status, error, leak_mb, start_memory, peak_memory, end_memory, memory_examples, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const selectResults = `
SELECT run_id, scenario, status, error, leak_mb, start_memory, peak_memory, end_memory, memory_examples, started_at, finished_at
FROM scenario_results
ORDER BY id`

type PostgresStorage struct {
	db *pgxpool.Pool
}

// NewPostgresStorage connects to DatabaseDsn and makes sure the results table exists.
func NewPostgresStorage(ctx context.Context, DatabaseDsn string) (*PostgresStorage, error) {
	db, err := pgxpool.New(ctx, DatabaseDsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	store := &PostgresStorage{db: db}
	err = utils.WithRetry(ctx, func() error {
		_, err := db.Exec(ctx, createTable)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return store, nil
}

func (store *PostgresStorage) Save(ctx context.Context, r *model.ScenarioResult) error {
	var leak, start, peak, end *int64
	var examples []int64
	if r.Report != nil {
		leak, start, peak, end = &r.Report.Leak, &r.Report.StartMemory, &r.Report.PeakMemory, &r.Report.EndMemory
		examples = r.Report.MemoryExamples
	}

	err := utils.WithRetry(ctx, func() error {
		_, err := store.db.Exec(ctx, insertResult,
			r.RunID, r.Scenario, string(r.Status), r.Error,
			leak, start, peak, end, examples,
			r.StartedAt, r.FinishedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

func (store *PostgresStorage) GetAll(ctx context.Context) ([]*model.ScenarioResult, error) {
	var rows pgx.Rows
	err := utils.WithRetry(ctx, func() error {
		var err error
		rows, err = store.db.Query(ctx, selectResults)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []*model.ScenarioResult
	for rows.Next() {
		var (
			r                      model.ScenarioResult
			status                 string
			leak, start, peak, end *int64
			examples               []int64
		)
		if err := rows.Scan(&r.RunID, &r.Scenario, &status, &r.Error,
			&leak, &start, &peak, &end, &examples,
			&r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Status = model.Status(status)
		if leak != nil && start != nil && peak != nil && end != nil {
			r.Report = &model.LeakReport{
				Leak:           *leak,
				StartMemory:    *start,
				PeakMemory:     *peak,
				EndMemory:      *end,
				MemoryExamples: examples,
			}
			if r.Report.MemoryExamples == nil {
				r.Report.MemoryExamples = []int64{}
			}
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return results, nil
}

func (store *PostgresStorage) Ping(ctx context.Context) error {
	return store.db.Ping(ctx)
}

func (store *PostgresStorage) Close() {
	store.db.Close()
}
