package domain

// SearchQuery describes one multi-criteria query against the place store.
// All supplied filters combine conjunctively. Zero values mean "not set",
// except RadiusMeters, which is a pointer because a zero radius is a valid
// filter matching only exact coincidence with Near.
type SearchQuery struct {
	Text         string     `json:"text,omitempty"`
	City         string     `json:"city,omitempty"`
	District     string     `json:"district,omitempty"`
	Categories   []Category `json:"categories,omitempty"`
	Near         *GeoPoint  `json:"near,omitempty"`
	RadiusMeters *float64   `json:"radius_meters,omitempty"`
	MinRating    *float64   `json:"min_rating,omitempty"`
	Page         int        `json:"page"`
	PageSize     int        `json:"page_size"`
}

// HasFilters reports whether any filter beyond pagination is set.
func (q SearchQuery) HasFilters() bool {
	return q.Text != "" || q.City != "" || q.District != "" ||
		len(q.Categories) > 0 || q.Near != nil || q.MinRating != nil
}

// SearchPage is one page of search results. TotalCount is the number of
// matching records before pagination.
type SearchPage struct {
	Items      []Place `json:"items"`
	TotalCount int     `json:"total_count"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	HasMore    bool    `json:"has_more"`
}
