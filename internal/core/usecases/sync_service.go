package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Auphere/places/internal/core/domain"
	"github.com/Auphere/places/internal/core/ports"
	"github.com/Auphere/places/internal/pkg/geospatial"
	"github.com/Auphere/places/internal/pkg/metrics"
)

// SyncPolicy holds the grid geometry defaults and the retry policy applied
// to upstream calls. Zero fields fall back to conservative defaults.
type SyncPolicy struct {
	CellSizeKM      float64
	RadiusMeters    int
	OverlapFraction float64

	// MaxRetries bounds transient-failure retries per upstream call.
	MaxRetries  int
	BackoffBase time.Duration

	// RateLimitBudget bounds how many extended backoffs one run may spend
	// before aborting; prolonged lockout is worse than a failed run.
	RateLimitBudget  int
	RateLimitBackoff time.Duration
}

func (p SyncPolicy) withDefaults() SyncPolicy {
	if p.CellSizeKM <= 0 {
		p.CellSizeKM = 1.5
	}
	if p.RadiusMeters <= 0 {
		p.RadiusMeters = 1000
	}
	if p.OverlapFraction <= 0 {
		p.OverlapFraction = 0.3
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = 500 * time.Millisecond
	}
	if p.RateLimitBudget <= 0 {
		p.RateLimitBudget = 2
	}
	if p.RateLimitBackoff <= 0 {
		p.RateLimitBackoff = 30 * time.Second
	}
	return p
}

// RunOptions are the per-trigger overrides of one ingestion run.
type RunOptions struct {
	Category     domain.Category
	CellSizeKM   float64
	RadiusMeters int
}

// SyncService orchestrates region ingestion runs: it tessellates the region
// into search cells, walks the upstream directory cell by cell through the
// shared call gate, deduplicates candidates, and persists both the place
// records and a terminal SyncRun audit record.
type SyncService struct {
	places  ports.PlaceRepository
	runs    ports.SyncRunRepository
	client  ports.DirectoryClient
	gate    ports.CallGate
	events  ports.EventPublisher
	regions domain.RegionRegistry
	policy  SyncPolicy
}

// NewSyncService creates a new SyncService. events may be nil.
func NewSyncService(
	places ports.PlaceRepository,
	runs ports.SyncRunRepository,
	client ports.DirectoryClient,
	gate ports.CallGate,
	events ports.EventPublisher,
	regions domain.RegionRegistry,
	policy SyncPolicy,
) *SyncService {
	return &SyncService{
		places:  places,
		runs:    runs,
		client:  client,
		gate:    gate,
		events:  events,
		regions: regions,
		policy:  policy.withDefaults(),
	}
}

// Run executes one ingestion run against one named region and returns its
// terminal SyncRun. An unknown region is a ValidationError and no run is
// created. Once a run exists it is always finalized and persisted, including
// when the run aborts or the process is shutting down: an aborted run comes
// back with status Failed, not as a Go error.
func (s *SyncService) Run(ctx context.Context, regionName string, opts RunOptions) (*domain.SyncRun, error) {
	region, ok := s.regions.Resolve(regionName)
	if !ok {
		return nil, domain.NewValidationError("unknown region %q", regionName)
	}

	cellSize := s.policy.CellSizeKM
	if opts.CellSizeKM > 0 {
		cellSize = opts.CellSizeKM
	}
	radius := s.policy.RadiusMeters
	if opts.RadiusMeters > 0 {
		radius = opts.RadiusMeters
	}

	cells, err := geospatial.GenerateGrid(region.Bounds, cellSize, s.policy.OverlapFraction, radius)
	if err != nil {
		return nil, err
	}

	run := domain.NewSyncRun(region.Name, opts.Category)
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run record: %w", err)
	}
	run.Start()
	metrics.SyncRunsStarted.WithLabelValues(region.Name).Inc()
	slog.Info("sync run started",
		"run_id", run.ID, "region", region.Name,
		"category", string(opts.Category), "cells", len(cells),
		"area_km2", fmt.Sprintf("%.1f", geospatial.GridArea(region.Bounds)))

	// Finalization must survive abort paths and process shutdown, so it
	// runs deferred and detached from the request context. A run that is
	// not terminal by now was interrupted mid-flight.
	defer func() {
		run.Finish(domain.RunFailed)
		s.finalize(context.WithoutCancel(ctx), run)
	}()

	s.ingest(ctx, run, cells, opts.Category)
	return run, nil
}

// RunMany executes several regions strictly sequentially: the rate limit is
// global to the upstream credential, so regions must not overlap in time.
// Every region name is validated before the first run starts; one region
// finalizing Failed does not stop the rest.
func (s *SyncService) RunMany(ctx context.Context, regionNames []string, opts RunOptions) (domain.BatchSummary, []*domain.SyncRun, error) {
	if len(regionNames) == 0 {
		return domain.BatchSummary{}, nil, domain.NewValidationError("no regions given")
	}
	for _, name := range regionNames {
		if _, ok := s.regions.Resolve(name); !ok {
			return domain.BatchSummary{}, nil, domain.NewValidationError("unknown region %q", name)
		}
	}

	runs := make([]*domain.SyncRun, 0, len(regionNames))
	for _, name := range regionNames {
		run, err := s.Run(ctx, name, opts)
		if err != nil {
			return domain.BatchSummary{}, nil, fmt.Errorf("run region %s: %w", name, err)
		}
		runs = append(runs, run)
		if ctx.Err() != nil {
			break
		}
	}
	return domain.Summarize(runs), runs, nil
}

// GetRun returns one run's audit record.
func (s *SyncService) GetRun(ctx context.Context, id string) (*domain.SyncRun, error) {
	return s.runs.GetByID(ctx, id)
}

// RecentRuns returns the most recently started runs.
func (s *SyncService) RecentRuns(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.runs.ListRecent(ctx, limit)
}

// ingest walks the cells in order and mutates run until it is terminal or
// all cells are exhausted. Per-candidate failures are recorded and the walk
// continues; Permanent upstream errors, an exhausted rate-limit budget, and
// an unreachable store abort the whole run.
func (s *SyncService) ingest(ctx context.Context, run *domain.SyncRun, cells []domain.GridCell, category domain.Category) {
	// Candidates seen earlier in this run. Overlapping cells return the
	// same place more than once; the persisted dedup check alone would
	// still spend a details call on each repeat.
	seen := make(map[string]bool)
	rateLimitBudget := s.policy.RateLimitBudget

	for i, cell := range cells {
		cellTag := fmt.Sprintf("cell %d (%.5f,%.5f)", i, cell.Center.Lat, cell.Center.Lon)
		pager := s.client.Nearby(cell.Center, cell.RadiusMeters, category)

		for {
			var candidates []domain.Candidate
			err := s.callUpstream(ctx, &rateLimitBudget, func(c context.Context) error {
				var e error
				candidates, e = pager.Next(c)
				return e
			})
			if err != nil {
				if s.abortOn(run, err, domain.FailureNote{Cell: cellTag, Reason: err.Error()}) {
					return
				}
				run.RecordFailure(domain.FailureNote{Cell: cellTag, Reason: err.Error()})
				break // give up on this cell, move to the next
			}
			if candidates == nil {
				break
			}
			run.Requested += len(candidates)

			for _, cand := range candidates {
				if seen[cand.ExternalID] {
					run.Skipped++
					metrics.CandidatesSkipped.WithLabelValues("duplicate").Inc()
					continue
				}
				seen[cand.ExternalID] = true

				if !s.processCandidate(ctx, run, &rateLimitBudget, cand, cellTag) {
					return
				}
			}
		}
	}

	run.FinishFromCounters()
}

// processCandidate ingests one candidate. It returns false when the run
// aborted and the walk must stop.
func (s *SyncService) processCandidate(ctx context.Context, run *domain.SyncRun, rateLimitBudget *int, cand domain.Candidate, cellTag string) bool {
	exists, err := s.places.Exists(ctx, cand.ExternalID)
	if err != nil {
		return s.failOrAbortPersistence(ctx, run, cand.ExternalID, fmt.Errorf("exists check: %w", err))
	}
	if exists {
		run.Skipped++
		metrics.CandidatesSkipped.WithLabelValues("persisted").Inc()
		return true
	}

	var place *domain.Place
	err = s.callUpstream(ctx, rateLimitBudget, func(c context.Context) error {
		var e error
		place, e = s.client.Details(c, cand.ExternalID)
		return e
	})
	if err != nil {
		note := domain.FailureNote{ExternalID: cand.ExternalID, Cell: cellTag, Reason: err.Error()}
		if s.abortOn(run, err, note) {
			return false
		}
		run.RecordFailure(note)
		return true
	}

	result, err := s.places.Upsert(ctx, place)
	if err != nil {
		return s.failOrAbortPersistence(ctx, run, cand.ExternalID, err)
	}

	switch result.Outcome {
	case domain.UpsertInserted:
		run.Created++
	default:
		// Lost a race against a concurrent writer: the record was already
		// persisted, same as the exists-check skip.
		run.Skipped++
		metrics.CandidatesSkipped.WithLabelValues("persisted").Inc()
	}
	metrics.PlacesUpserted.WithLabelValues(result.Outcome.String()).Inc()

	if s.events != nil {
		if err := s.events.PublishPlaceUpserted(ctx, place, result.Outcome); err != nil {
			slog.Warn("publish place event", "external_id", place.ExternalID, "error", err)
		}
	}
	return true
}

// abortOn finishes the run as Failed for non-retryable upstream failures:
// Permanent errors and an exhausted rate-limit budget. NotFound and
// retry-exhausted Transient errors are per-candidate problems and do not
// abort.
func (s *SyncService) abortOn(run *domain.SyncRun, err error, note domain.FailureNote) bool {
	kind, ok := domain.UpstreamKindOf(err)
	if !ok {
		// Context cancellation lands here: shutdown mid-run.
		run.RecordFailure(note)
		run.Finish(domain.RunFailed)
		return true
	}
	if kind == domain.UpstreamPermanent || kind == domain.UpstreamRateLimited {
		run.RecordFailure(note)
		run.Finish(domain.RunFailed)
		slog.Error("sync run aborted", "run_id", run.ID, "kind", kind.String(), "reason", note.Reason)
		return true
	}
	return false
}

// failOrAbortPersistence records a store error against the candidate, or
// aborts the run when the store itself has become unreachable. Returns false
// when the run aborted.
func (s *SyncService) failOrAbortPersistence(ctx context.Context, run *domain.SyncRun, externalID string, err error) bool {
	if pingErr := s.places.Ping(ctx); pingErr != nil {
		run.RecordFailure(domain.FailureNote{
			ExternalID: externalID,
			Reason:     fmt.Sprintf("store unreachable: %v", err),
		})
		run.Finish(domain.RunFailed)
		slog.Error("sync run aborted, store unreachable", "run_id", run.ID, "error", err)
		return false
	}
	run.RecordFailure(domain.FailureNote{ExternalID: externalID, Reason: err.Error()})
	return true
}

// callUpstream funnels one upstream call through the shared gate and applies
// the retry policy: Transient failures retry MaxRetries times with doubling
// backoff, RateLimited failures take an extended backoff charged against the
// run's budget, Permanent and NotFound return immediately.
func (s *SyncService) callUpstream(ctx context.Context, rateLimitBudget *int, fn func(context.Context) error) error {
	retries := 0
	for {
		waitStart := time.Now()
		if err := s.gate.Wait(ctx); err != nil {
			return err
		}
		metrics.GateWaitDuration.Observe(time.Since(waitStart).Seconds())

		err := fn(ctx)
		if err == nil {
			return nil
		}

		kind, ok := domain.UpstreamKindOf(err)
		if !ok {
			return err
		}
		switch kind {
		case domain.UpstreamTransient:
			if retries >= s.policy.MaxRetries {
				return err
			}
			backoff := s.policy.BackoffBase << retries
			retries++
			metrics.UpstreamRetries.WithLabelValues(kind.String()).Inc()
			if err := sleepCtx(ctx, backoff); err != nil {
				return err
			}
		case domain.UpstreamRateLimited:
			if *rateLimitBudget <= 0 {
				return err
			}
			*rateLimitBudget--
			metrics.UpstreamRetries.WithLabelValues(kind.String()).Inc()
			slog.Warn("upstream rate limited, backing off",
				"backoff", s.policy.RateLimitBackoff, "budget_left", *rateLimitBudget)
			if err := sleepCtx(ctx, s.policy.RateLimitBackoff); err != nil {
				return err
			}
		default:
			return err
		}
	}
}

// finalize persists the terminal run record and emits the run-finished
// event. It must not be skipped: a run left Running forever would poison the
// audit trail.
func (s *SyncService) finalize(ctx context.Context, run *domain.SyncRun) {
	if err := s.runs.Finalize(ctx, run); err != nil {
		slog.Error("finalize sync run", "run_id", run.ID, "error", err)
	}
	metrics.SyncRunsFinished.WithLabelValues(run.Region, string(run.Status)).Inc()
	if run.CompletedAt != nil {
		metrics.SyncRunDuration.WithLabelValues(run.Region).
			Observe(run.CompletedAt.Sub(run.StartedAt).Seconds())
	}
	slog.Info("sync run finished",
		"run_id", run.ID, "region", run.Region, "status", string(run.Status),
		"requested", run.Requested, "created", run.Created,
		"skipped", run.Skipped, "failed", run.Failed)

	if s.events != nil {
		if err := s.events.PublishRunFinished(ctx, run); err != nil {
			slog.Warn("publish run event", "run_id", run.ID, "error", err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
