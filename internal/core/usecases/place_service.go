package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Auphere/places/internal/core/domain"
	"github.com/Auphere/places/internal/core/ports"
	"github.com/Auphere/places/internal/pkg/metrics"
)

// SearchLimits bounds pagination.
type SearchLimits struct {
	MaxPageSize     int
	DefaultPageSize int
	CacheTTLSeconds int
}

func (l SearchLimits) withDefaults() SearchLimits {
	if l.MaxPageSize <= 0 {
		l.MaxPageSize = 100
	}
	if l.DefaultPageSize <= 0 {
		l.DefaultPageSize = 20
	}
	if l.CacheTTLSeconds <= 0 {
		l.CacheTTLSeconds = 300
	}
	return l
}

// PlaceService serves reads against the place store: multi-criteria search
// and id lookup. It is stateless and safe for arbitrarily many concurrent
// callers.
type PlaceService struct {
	places ports.PlaceRepository
	cache  ports.CacheService
	limits SearchLimits
}

// NewPlaceService creates a new PlaceService. cache may be nil.
func NewPlaceService(places ports.PlaceRepository, cache ports.CacheService, limits SearchLimits) *PlaceService {
	return &PlaceService{places: places, cache: cache, limits: limits.withDefaults()}
}

// Search validates and normalizes the query, then returns one result page.
// page_size is clamped to the configured maximum, a non-positive page means
// the first, and a page beyond the data comes back empty with has_more
// false, never as an error.
func (s *PlaceService) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchPage, error) {
	if err := validateQuery(&q, s.limits); err != nil {
		return nil, err
	}
	metrics.SearchQueries.WithLabelValues(queryShape(q)).Inc()

	cacheKey := searchCacheKey(q)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var page domain.SearchPage
			if err := json.Unmarshal(data, &page); err == nil {
				metrics.CacheHits.WithLabelValues("search").Inc()
				return &page, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("search").Inc()
	}

	items, total, err := s.places.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search places: %w", err)
	}
	if items == nil {
		items = []domain.Place{}
	}

	page := &domain.SearchPage{
		Items:      items,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		HasMore:    q.Page*q.PageSize < total,
	}

	if s.cache != nil {
		if data, err := json.Marshal(page); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.limits.CacheTTLSeconds)
		}
	}
	return page, nil
}

// GetByID returns a single place by internal id.
func (s *PlaceService) GetByID(ctx context.Context, id string) (*domain.Place, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.NewValidationError("place id must not be empty")
	}

	cacheKey := "places:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var place domain.Place
			if err := json.Unmarshal(data, &place); err == nil {
				metrics.CacheHits.WithLabelValues("get").Inc()
				return &place, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("get").Inc()
	}

	place, err := s.places.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(place); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.limits.CacheTTLSeconds)
		}
	}
	return place, nil
}

// Deactivate soft-deletes a place and drops its cache entry.
func (s *PlaceService) Deactivate(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.NewValidationError("place id must not be empty")
	}
	if err := s.places.Deactivate(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "places:id:"+id)
	}
	return nil
}

func validateQuery(q *domain.SearchQuery, limits SearchLimits) error {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = limits.DefaultPageSize
	}
	if q.PageSize > limits.MaxPageSize {
		q.PageSize = limits.MaxPageSize
	}

	// Near and radius only make sense together. A zero radius is valid and
	// matches exact coincidence only.
	if q.Near != nil && q.RadiusMeters == nil {
		return domain.NewValidationError("near requires a radius")
	}
	if q.RadiusMeters != nil {
		if q.Near == nil {
			return domain.NewValidationError("radius requires a center point")
		}
		if *q.RadiusMeters < 0 {
			return domain.NewValidationError("radius must not be negative, got %f", *q.RadiusMeters)
		}
	}
	if q.Near != nil {
		if q.Near.Lat < -90 || q.Near.Lat > 90 || q.Near.Lon < -180 || q.Near.Lon > 180 {
			return domain.NewValidationError("center out of range: (%f, %f)", q.Near.Lat, q.Near.Lon)
		}
	}
	if q.MinRating != nil && (*q.MinRating < 0 || *q.MinRating > 5) {
		return domain.NewValidationError("min rating must be in [0,5], got %f", *q.MinRating)
	}
	return nil
}

// queryShape labels a query for metrics by its dominant criteria.
func queryShape(q domain.SearchQuery) string {
	switch {
	case q.Text != "" && q.Near != nil:
		return "text_geo"
	case q.Text != "":
		return "text"
	case q.Near != nil:
		return "geo"
	case !q.HasFilters():
		return "browse"
	default:
		return "filtered"
	}
}

func searchCacheKey(q domain.SearchQuery) string {
	var b strings.Builder
	b.WriteString("places:search:")
	fmt.Fprintf(&b, "t=%s|c=%s|d=%s|", q.Text, q.City, q.District)
	for _, c := range q.Categories {
		b.WriteString(string(c))
		b.WriteByte(',')
	}
	if q.Near != nil && q.RadiusMeters != nil {
		fmt.Fprintf(&b, "|n=%.5f:%.5f:%.0f", q.Near.Lat, q.Near.Lon, *q.RadiusMeters)
	}
	if q.MinRating != nil {
		fmt.Fprintf(&b, "|r=%.1f", *q.MinRating)
	}
	fmt.Fprintf(&b, "|p=%d:%d", q.Page, q.PageSize)
	return b.String()
}
