package directory

// Wire types for the upstream directory API. Field layout follows the
// nearby-search and detail-lookup JSON payloads.

type searchResponse struct {
	Results       []wirePlace `json:"results"`
	Status        string      `json:"status"`
	NextPageToken string      `json:"next_page_token,omitempty"`
	ErrorMessage  string      `json:"error_message,omitempty"`
}

type detailsResponse struct {
	Result       wirePlace `json:"result"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

type wirePlace struct {
	PlaceID           string             `json:"place_id"`
	Name              string             `json:"name"`
	Types             []string           `json:"types"`
	Geometry          wireGeometry       `json:"geometry"`
	FormattedAddress  string             `json:"formatted_address,omitempty"`
	Vicinity          string             `json:"vicinity,omitempty"`
	AddressComponents []addressComponent `json:"address_components,omitempty"`
	Rating            *float64           `json:"rating,omitempty"`
	UserRatingsTotal  *int               `json:"user_ratings_total,omitempty"`
	PriceLevel        *int               `json:"price_level,omitempty"`
	BusinessStatus    string             `json:"business_status,omitempty"`
	OpeningHours      *wireOpeningHours  `json:"opening_hours,omitempty"`
	Phone             string             `json:"formatted_phone_number,omitempty"`
	Website           string             `json:"website,omitempty"`
	URL               string             `json:"url,omitempty"`
}

type wireGeometry struct {
	Location wireLocation `json:"location"`
}

type wireLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type wireOpeningHours struct {
	OpenNow *bool `json:"open_now,omitempty"`
}

// Upstream status strings.
const (
	statusOK             = "OK"
	statusZeroResults    = "ZERO_RESULTS"
	statusOverQueryLimit = "OVER_QUERY_LIMIT"
	statusRequestDenied  = "REQUEST_DENIED"
	statusInvalidRequest = "INVALID_REQUEST"
	statusNotFound       = "NOT_FOUND"
)
