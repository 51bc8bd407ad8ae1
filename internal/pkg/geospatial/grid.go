package geospatial

import (
	"math"

	"github.com/Auphere/places/internal/core/domain"
)

// kmPerDegreeLat is the ground distance of one degree of latitude. One
// degree of longitude spans kmPerDegreeLat*cos(lat) km instead: equal ground
// distance corresponds to a smaller longitude delta away from the equator.
const kmPerDegreeLat = 111.0

// GenerateGrid tessellates a bounding box into an ordered grid of search
// cells. Cell centers are spaced cellSizeKM apart on the ground, shrunk by
// overlapFraction so that adjacent search circles overlap and a square
// tiling of circles leaves no coverage gaps at cell corners.
//
// Cells are emitted row-major, south to north and west to east, anchored at
// the box's south-west corner, so a run over the same box is deterministic
// and resumable from a known cell index.
func GenerateGrid(bounds domain.Bounds, cellSizeKM, overlapFraction float64, radiusMeters int) ([]domain.GridCell, error) {
	if !bounds.Valid() {
		return nil, domain.NewValidationError(
			"degenerate bounding box: [%f,%f]..[%f,%f]",
			bounds.MinLat, bounds.MinLon, bounds.MaxLat, bounds.MaxLon)
	}
	if cellSizeKM <= 0 {
		return nil, domain.NewValidationError("cell size must be positive, got %f km", cellSizeKM)
	}
	if overlapFraction < 0 || overlapFraction >= 1 {
		return nil, domain.NewValidationError("overlap fraction must be in [0,1), got %f", overlapFraction)
	}
	if radiusMeters <= 0 {
		return nil, domain.NewValidationError("search radius must be positive, got %d m", radiusMeters)
	}

	step := cellSizeKM * (1 - overlapFraction)
	latStep := step / kmPerDegreeLat

	center := bounds.Center()
	lonStep := step / (kmPerDegreeLat * math.Cos(center.Lat*math.Pi/180))

	latSpan := bounds.MaxLat - bounds.MinLat
	lonSpan := bounds.MaxLon - bounds.MinLon

	// A box smaller than one cell collapses to a single cell at the centroid.
	if latSpan <= latStep && lonSpan <= lonStep {
		return []domain.GridCell{{Center: center, RadiusMeters: radiusMeters}}, nil
	}

	var cells []domain.GridCell
	// Index-based stepping avoids float accumulation drift across rows. Rows
	// and columns run half a step past the box edge so boundary points stay
	// within one half-step of some center in each axis.
	for row := 0; ; row++ {
		lat := bounds.MinLat + float64(row)*latStep
		if lat > bounds.MaxLat+latStep/2 {
			break
		}
		for col := 0; ; col++ {
			lon := bounds.MinLon + float64(col)*lonStep
			if lon > bounds.MaxLon+lonStep/2 {
				break
			}
			cells = append(cells, domain.GridCell{
				Center:       domain.GeoPoint{Lat: lat, Lon: lon},
				RadiusMeters: radiusMeters,
			})
		}
	}
	return cells, nil
}

// GridArea estimates the ground area of a bounding box in km². Rough
// equirectangular approximation, good enough for logging.
func GridArea(bounds domain.Bounds) float64 {
	center := bounds.Center()
	latKM := (bounds.MaxLat - bounds.MinLat) * kmPerDegreeLat
	lonKM := (bounds.MaxLon - bounds.MinLon) * kmPerDegreeLat * math.Cos(center.Lat*math.Pi/180)
	return latKM * lonKM
}
