package directory

import (
	"fmt"
	"strings"

	"github.com/Auphere/places/internal/core/domain"
)

// mapPlace converts one upstream detail record into the domain model.
func mapPlace(w wirePlace) (*domain.Place, error) {
	if w.PlaceID == "" {
		return nil, fmt.Errorf("record has no place_id")
	}
	if strings.TrimSpace(w.Name) == "" {
		return nil, fmt.Errorf("record %s has no name", w.PlaceID)
	}

	category := domain.PrimaryCategoryForTypes(w.Types)

	place := &domain.Place{
		ExternalID:   w.PlaceID,
		Name:         w.Name,
		Location:     domain.GeoPoint{Lat: w.Geometry.Location.Lat, Lon: w.Geometry.Location.Lng},
		Address:      pickAddress(w),
		Category:     category,
		Categories:   domain.CategorySetForTypes(w.Types),
		PriceTier:    w.PriceLevel,
		Rating:       w.Rating,
		RatingCount:  w.UserRatingsTotal,
		Phone:        w.Phone,
		Website:      w.Website,
		DirectoryURL: w.URL,
		Active:       w.BusinessStatus == "" || w.BusinessStatus == "OPERATIONAL",
	}

	if w.OpeningHours != nil {
		place.OpenNow = w.OpeningHours.OpenNow
	}
	if category == domain.CategoryRestaurant || category == domain.CategoryCafe {
		place.Cuisines = domain.CuisinesFor(w.Types, w.Name)
	}
	if place.DirectoryURL == "" {
		place.DirectoryURL = "https://www.google.com/maps/place/?q=place_id:" + w.PlaceID
	}

	place.City = componentValue(w.AddressComponents, "locality")
	place.District = firstComponentValue(w.AddressComponents,
		"sublocality_level_1", "sublocality", "neighborhood", "administrative_area_level_3")
	place.PostalCode = componentValue(w.AddressComponents, "postal_code")

	return place, nil
}

// pickAddress prefers the full formatted address over the short vicinity.
func pickAddress(w wirePlace) string {
	if w.FormattedAddress != "" {
		return w.FormattedAddress
	}
	return w.Vicinity
}

func componentValue(components []addressComponent, typ string) string {
	for _, c := range components {
		for _, t := range c.Types {
			if t == typ {
				return c.LongName
			}
		}
	}
	return ""
}

// firstComponentValue returns the value of the first component type that is
// present, trying types in the order given.
func firstComponentValue(components []addressComponent, types ...string) string {
	for _, typ := range types {
		if v := componentValue(components, typ); v != "" {
			return v
		}
	}
	return ""
}
