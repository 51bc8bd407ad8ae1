package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Auphere/places/internal/core/domain"
)

// SyncRunRepo implements ports.SyncRunRepository with pgx.
type SyncRunRepo struct {
	db *DB
}

// NewSyncRunRepo creates a new SyncRunRepo.
func NewSyncRunRepo(db *DB) *SyncRunRepo {
	return &SyncRunRepo{db: db}
}

// Create persists a freshly started run and fills in its assigned id.
func (r *SyncRunRepo) Create(ctx context.Context, run *domain.SyncRun) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO sync_runs (region, category, status, started_at)
		VALUES ($1, NULLIF($2, ''), $3, $4)
		RETURNING id
	`, run.Region, string(run.Category), string(run.Status), run.StartedAt,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("create sync run: %w", err)
	}
	return nil
}

// Finalize persists the terminal counters and status of a run.
func (r *SyncRunRepo) Finalize(ctx context.Context, run *domain.SyncRun) error {
	failures, err := json.Marshal(run.Failures)
	if err != nil {
		return fmt.Errorf("encode failures: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE sync_runs
		SET requested = $2, created = $3, skipped = $4, failed = $5,
		    failures = $6, completed_at = $7, status = $8
		WHERE id = $1
	`, run.ID, run.Requested, run.Created, run.Skipped, run.Failed,
		failures, run.CompletedAt, string(run.Status))
	if err != nil {
		return fmt.Errorf("finalize sync run %s: %w", run.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const syncRunColumns = `
	id, region, COALESCE(category, ''), requested, created, skipped, failed,
	COALESCE(failures, '[]'), started_at, completed_at, status`

func scanSyncRun(row pgx.Row) (*domain.SyncRun, error) {
	var (
		run      domain.SyncRun
		failures []byte
	)
	err := row.Scan(
		&run.ID, &run.Region, &run.Category,
		&run.Requested, &run.Created, &run.Skipped, &run.Failed,
		&failures, &run.StartedAt, &run.CompletedAt, &run.Status,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(failures, &run.Failures); err != nil {
		return nil, fmt.Errorf("decode failures: %w", err)
	}
	return &run, nil
}

// GetByID returns one run by UUID.
func (r *SyncRunRepo) GetByID(ctx context.Context, id string) (*domain.SyncRun, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+syncRunColumns+` FROM sync_runs WHERE id = $1`, id)
	run, err := scanSyncRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sync run %s: %w", id, err)
	}
	return run, nil
}

// ListRecent returns the most recently started runs.
func (r *SyncRunRepo) ListRecent(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+syncRunColumns+` FROM sync_runs ORDER BY started_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}
