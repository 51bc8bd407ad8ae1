package domain

import "time"

// Place is a point-of-interest record ingested from the external directory.
// ExternalID is the upstream identifier and the dedup key: it determines at
// most one record, and a second ingestion of the same external id updates the
// existing record in place, preserving ID and CreatedAt.
type Place struct {
	ID           string     `json:"id"`
	ExternalID   string     `json:"external_id"`
	Name         string     `json:"name"`
	Location     GeoPoint   `json:"location"`
	Address      string     `json:"address,omitempty"`
	City         string     `json:"city,omitempty"`
	District     string     `json:"district,omitempty"`
	PostalCode   string     `json:"postal_code,omitempty"`
	Category     Category   `json:"category"`
	Categories   []Category `json:"categories"`
	Cuisines     []Cuisine  `json:"cuisines,omitempty"`
	PriceTier    *int       `json:"price_tier,omitempty"` // 0 (free) .. 4 (very expensive)
	OpenNow      *bool      `json:"open_now,omitempty"`
	Rating       *float64   `json:"rating,omitempty"` // 0..5
	RatingCount  *int       `json:"rating_count,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Website      string     `json:"website,omitempty"`
	DirectoryURL string     `json:"directory_url,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Distance     *float64   `json:"distance,omitempty"` // computed field, meters
}

// Candidate is the summary the upstream nearby search returns for one place.
// Full records are fetched separately through the detail lookup.
type Candidate struct {
	ExternalID string   `json:"external_id"`
	Name       string   `json:"name"`
	Location   GeoPoint `json:"location"`
}

// UpsertOutcome reports what an idempotent upsert did.
type UpsertOutcome int

const (
	UpsertInserted UpsertOutcome = iota
	UpsertUpdated
)

func (o UpsertOutcome) String() string {
	if o == UpsertInserted {
		return "inserted"
	}
	return "updated"
}

// UpsertResult is the outcome of an upsert keyed by external id.
type UpsertResult struct {
	Outcome    UpsertOutcome
	InternalID string
}
