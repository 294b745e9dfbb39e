// Package report persists scenario run outcomes to PostgreSQL for CI
// history and emits run-finished events.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScenarioRun is one persisted scenario outcome.
type ScenarioRun struct {
	ID         uuid.UUID `json:"id"`
	Scenario   string    `json:"scenario"`
	Target     string    `json:"target"`
	Passed     bool      `json:"passed"`
	Failure    string    `json:"failure,omitempty"`
	StepsTotal int       `json:"steps_total"`
	StepsRun   int       `json:"steps_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the pgx-backed run-result repository.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// SaveRun inserts a scenario outcome and fills in its generated id.
func (s *Store) SaveRun(ctx context.Context, run *ScenarioRun) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO scenario_runs
		  (scenario, target, passed, failure, steps_total, steps_run, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		run.Scenario, run.Target, run.Passed, run.Failure,
		run.StepsTotal, run.StepsRun, run.StartedAt, run.FinishedAt)

	if err := row.Scan(&run.ID, &run.CreatedAt); err != nil {
		return fmt.Errorf("insert scenario run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs for a scenario, newest first. An
// empty scenario name lists across all scenarios.
func (s *Store) ListRuns(ctx context.Context, scenario string, limit int) ([]ScenarioRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var (
		rows pgx.Rows
		err  error
	)
	if scenario != "" {
		rows, err = s.pool.Query(ctx, `
			SELECT id, scenario, target, passed, failure, steps_total, steps_run,
			       started_at, finished_at, created_at
			FROM scenario_runs
			WHERE scenario = $1
			ORDER BY created_at DESC
			LIMIT $2`, scenario, limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, scenario, target, passed, failure, steps_total, steps_run,
			       started_at, finished_at, created_at
			FROM scenario_runs
			ORDER BY created_at DESC
			LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query scenario runs: %w", err)
	}
	defer rows.Close()

	var runs []ScenarioRun
	for rows.Next() {
		var run ScenarioRun
		if err := rows.Scan(
			&run.ID, &run.Scenario, &run.Target, &run.Passed, &run.Failure,
			&run.StepsTotal, &run.StepsRun,
			&run.StartedAt, &run.FinishedAt, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan scenario run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// PassRate returns the fraction of passed runs for a scenario over its most
// recent runs.
func (s *Store) PassRate(ctx context.Context, scenario string, window int) (float64, error) {
	if window <= 0 {
		window = 50
	}
	var passed, total int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN passed THEN 1 ELSE 0 END), 0), COUNT(*)
		FROM (
			SELECT passed FROM scenario_runs
			WHERE scenario = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent`, scenario, window).Scan(&passed, &total)
	if err != nil {
		return 0, fmt.Errorf("query pass rate: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(passed) / float64(total), nil
}
