package http

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Auphere/places/internal/core/domain"
	"github.com/Auphere/places/internal/core/usecases"
)

// syncRequest carries the per-trigger overrides of an ingestion run.
type syncRequest struct {
	Category     string  `json:"category"`
	CellSizeKM   float64 `json:"cell_size_km"`
	RadiusMeters int     `json:"radius_meters"`
}

// batchSyncRequest triggers several regions in one call.
type batchSyncRequest struct {
	Regions []string `json:"regions"`
	syncRequest
}

// batchSyncResponse pairs the aggregate summary with each region's run.
type batchSyncResponse struct {
	Summary domain.BatchSummary `json:"summary"`
	Runs    []*domain.SyncRun   `json:"runs"`
}

func parseCategory(req syncRequest) (domain.Category, error) {
	if req.Category == "" {
		return "", nil
	}
	cat, ok := domain.ParseCategory(req.Category)
	if !ok {
		return "", domain.NewValidationError("unknown category %q", req.Category)
	}
	return cat, nil
}

func runOptions(cat domain.Category, req syncRequest) usecases.RunOptions {
	return usecases.RunOptions{
		Category:     cat,
		CellSizeKM:   req.CellSizeKM,
		RadiusMeters: req.RadiusMeters,
	}
}

// TriggerSyncHandler starts one ingestion run for a named region and returns
// its terminal audit record. The run executes within the request: callers
// should budget for long requests on large regions.
func TriggerSyncHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req syncRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body: "+err.Error())
			}
		}
		cat, err := parseCategory(req)
		if err != nil {
			return domainError(c, err)
		}

		run, err := deps.Sync.Run(c.UserContext(), c.Params("region"), runOptions(cat, req))
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(run)
	}
}

// TriggerBatchSyncHandler runs several regions strictly sequentially and
// returns the aggregate summary plus each region's run.
func TriggerBatchSyncHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req batchSyncRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body: "+err.Error())
		}
		cat, err := parseCategory(req.syncRequest)
		if err != nil {
			return domainError(c, err)
		}

		summary, runs, err := deps.Sync.RunMany(c.UserContext(), req.Regions, runOptions(cat, req.syncRequest))
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(batchSyncResponse{Summary: summary, Runs: runs})
	}
}

// GetRunHandler returns one run's audit record.
func GetRunHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		run, err := deps.Sync.GetRun(c.UserContext(), c.Params("id"))
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(run)
	}
}

// ListRunsHandler returns the most recently started runs.
func ListRunsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		runs, err := deps.Sync.RecentRuns(c.UserContext(), c.QueryInt("limit", 20))
		if err != nil {
			return domainError(c, err)
		}
		if runs == nil {
			runs = []domain.SyncRun{}
		}
		return c.JSON(fiber.Map{"runs": runs})
	}
}

// SearchPlacesHandler runs one multi-criteria search.
// Query parameters: q, city, district, category (comma-separated), lat, lon,
// radius, min_rating, page, page_size.
func SearchPlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := domain.SearchQuery{
			Text:     strings.TrimSpace(c.Query("q")),
			City:     strings.TrimSpace(c.Query("city")),
			District: strings.TrimSpace(c.Query("district")),
			Page:     c.QueryInt("page", 1),
			PageSize: c.QueryInt("page_size", 0),
		}

		if raw := c.Query("category"); raw != "" {
			for _, part := range strings.Split(raw, ",") {
				cat, ok := domain.ParseCategory(part)
				if !ok {
					return errBadRequest(c, "unknown category "+part)
				}
				q.Categories = append(q.Categories, cat)
			}
		}

		// lat/lon/radius travel together; strict parsing on the raw values
		// so a malformed coordinate is a 400, not a silent search at 0.
		if c.Query("lat") != "" || c.Query("lon") != "" || c.Query("radius") != "" {
			if c.Query("lat") == "" || c.Query("lon") == "" || c.Query("radius") == "" {
				return errBadRequest(c, "lat, lon and radius must be supplied together")
			}
			lat, err := strconv.ParseFloat(c.Query("lat"), 64)
			if err != nil {
				return errBadRequest(c, "invalid lat: "+c.Query("lat"))
			}
			lon, err := strconv.ParseFloat(c.Query("lon"), 64)
			if err != nil {
				return errBadRequest(c, "invalid lon: "+c.Query("lon"))
			}
			radius, err := strconv.ParseFloat(c.Query("radius"), 64)
			if err != nil {
				return errBadRequest(c, "invalid radius: "+c.Query("radius"))
			}
			q.Near = &domain.GeoPoint{Lat: lat, Lon: lon}
			q.RadiusMeters = &radius
		}

		if raw := c.Query("min_rating"); raw != "" {
			minRating, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return errBadRequest(c, "invalid min_rating: "+raw)
			}
			q.MinRating = &minRating
		}

		page, err := deps.Places.Search(c.UserContext(), q)
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(page)
	}
}

// GetPlaceHandler returns one place by internal id.
func GetPlaceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		place, err := deps.Places.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(place)
	}
}

// DeactivatePlaceHandler soft-deletes a place.
func DeactivatePlaceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Places.Deactivate(c.UserContext(), c.Params("id")); err != nil {
			return domainError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// PlaceStats holds row counts over the place tables.
type PlaceStats struct {
	Places     int    `json:"places"`
	Active     int    `json:"active"`
	SyncRuns   int    `json:"sync_runs"`
	LastIngest string `json:"last_ingest,omitempty"`
}

// StatsHandler returns row counts from the place tables.
func StatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.DB == nil {
			return errInternal(c, "database not available")
		}

		var stats PlaceStats
		row := deps.DB.Pool.QueryRow(c.Context(), `
			SELECT
				(SELECT count(*) FROM places),
				(SELECT count(*) FROM places WHERE active),
				(SELECT count(*) FROM sync_runs),
				COALESCE((SELECT max(completed_at)::text FROM sync_runs), '')
		`)
		if err := row.Scan(&stats.Places, &stats.Active, &stats.SyncRuns, &stats.LastIngest); err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}
