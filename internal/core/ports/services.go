package ports

import (
	"context"

	"github.com/Auphere/places/internal/core/domain"
)

// NearbyPager lazily walks the paginated results of one nearby search,
// following upstream pagination tokens up to the client's safety cap. Next
// returns a nil slice once the sequence is exhausted (or the cap is hit).
// The pager keeps its token between calls, so a failed Next may be retried.
type NearbyPager interface {
	Next(ctx context.Context) ([]domain.Candidate, error)
}

// DirectoryClient wraps the external business-directory service. All
// failures surface as *domain.UpstreamError; raw transport errors never
// escape this interface.
type DirectoryClient interface {
	Nearby(center domain.GeoPoint, radiusMeters int, category domain.Category) NearbyPager
	// Details fetches the full record for a candidate and maps it onto
	// the domain model. A vanished candidate yields UpstreamNotFound.
	Details(ctx context.Context, externalID string) (*domain.Place, error)
}

// CallGate serializes upstream calls and enforces the minimum inter-call
// delay. Every caller sharing one upstream credential must share one gate.
type CallGate interface {
	Wait(ctx context.Context) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// EventPublisher publishes ingestion events to a message broker. All
// publishes are best-effort from the orchestrator's point of view.
type EventPublisher interface {
	PublishRunFinished(ctx context.Context, run *domain.SyncRun) error
	PublishPlaceUpserted(ctx context.Context, place *domain.Place, outcome domain.UpsertOutcome) error
}
