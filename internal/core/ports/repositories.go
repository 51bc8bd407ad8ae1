package ports

import (
	"context"

	"github.com/Auphere/places/internal/core/domain"
)

// PlaceRepository persists places. Upsert is idempotent on the external id:
// re-ingesting unchanged source data never creates a duplicate row, mutable
// fields are refreshed, and the internal id and creation time are preserved.
// Concurrent upserts racing on one external id must resolve to exactly one
// logical record; the store's uniqueness constraint is authoritative.
type PlaceRepository interface {
	Exists(ctx context.Context, externalID string) (bool, error)
	Upsert(ctx context.Context, place *domain.Place) (domain.UpsertResult, error)
	GetByID(ctx context.Context, id string) (*domain.Place, error)
	// Search returns one page of matches plus the total match count
	// before pagination. Only active records are eligible.
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.Place, int, error)
	// Deactivate soft-deletes a place.
	Deactivate(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// SyncRunRepository persists sync run audit records.
type SyncRunRepository interface {
	// Create persists a freshly started run and assigns its ID.
	Create(ctx context.Context, run *domain.SyncRun) error
	// Finalize persists the terminal counters and status of a run.
	Finalize(ctx context.Context, run *domain.SyncRun) error
	GetByID(ctx context.Context, id string) (*domain.SyncRun, error)
	ListRecent(ctx context.Context, limit int) ([]domain.SyncRun, error)
}
