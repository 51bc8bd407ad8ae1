package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/Auphere/places/internal/core/domain"
	"github.com/Auphere/places/internal/core/ports"
	"github.com/Auphere/places/internal/pkg/metrics"
)

// detailFields is the field mask requested from the detail lookup.
const detailFields = "place_id,name,types,geometry,formatted_address,vicinity," +
	"address_components,rating,user_ratings_total,price_level,business_status," +
	"opening_hours,formatted_phone_number,website,url"

// Client implements ports.DirectoryClient over the upstream REST API.
// Failures are classified into the four upstream kinds; raw transport errors
// never escape.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	pageCap int
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// PageCap bounds pagination-token following per nearby search, so a
	// misbehaving upstream cannot loop the pager indefinitely.
	PageCap int
}

// NewClient builds a directory client.
func NewClient(opts Options) *Client {
	pageCap := opts.PageCap
	if pageCap <= 0 {
		pageCap = 3
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		pageCap: pageCap,
	}
}

// Nearby returns a pager over the candidates around center. The pager is
// lazy: each Next call issues at most one upstream request.
func (c *Client) Nearby(center domain.GeoPoint, radiusMeters int, category domain.Category) ports.NearbyPager {
	return &nearbyPager{
		client:   c,
		center:   center,
		radius:   radiusMeters,
		category: category,
	}
}

type nearbyPager struct {
	client   *Client
	center   domain.GeoPoint
	radius   int
	category domain.Category
	token    string
	pages    int
	done     bool
}

// Next fetches the next result page. A nil slice signals exhaustion. The
// pagination token survives a failed call, so Next may be retried.
func (p *nearbyPager) Next(ctx context.Context) ([]domain.Candidate, error) {
	if p.done {
		return nil, nil
	}
	if p.pages >= p.client.pageCap {
		slog.Debug("nearby pager hit page cap",
			"lat", p.center.Lat, "lon", p.center.Lon, "cap", p.client.pageCap)
		p.done = true
		return nil, nil
	}

	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", p.center.Lat, p.center.Lon))
	params.Set("radius", fmt.Sprintf("%d", p.radius))
	params.Set("key", p.client.apiKey)
	if p.category != "" {
		params.Set("type", string(p.category))
	}
	if p.token != "" {
		params.Set("pagetoken", p.token)
	}

	var resp searchResponse
	if err := p.client.get(ctx, "nearby", "/nearbysearch/json", params, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case statusOK:
	case statusZeroResults:
		p.done = true
		return nil, nil
	default:
		return nil, classifyStatus("nearby", resp.Status, resp.ErrorMessage)
	}

	p.pages++
	p.token = resp.NextPageToken
	if p.token == "" {
		p.done = true
	}

	candidates := make([]domain.Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		candidates = append(candidates, domain.Candidate{
			ExternalID: r.PlaceID,
			Name:       r.Name,
			Location:   domain.GeoPoint{Lat: r.Geometry.Location.Lat, Lon: r.Geometry.Location.Lng},
		})
	}
	return candidates, nil
}

// Details fetches and maps the full record for one candidate.
func (c *Client) Details(ctx context.Context, externalID string) (*domain.Place, error) {
	params := url.Values{}
	params.Set("place_id", externalID)
	params.Set("fields", detailFields)
	params.Set("key", c.apiKey)

	var resp detailsResponse
	if err := c.get(ctx, "details", "/details/json", params, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case statusOK:
	case statusNotFound, statusZeroResults:
		return nil, &domain.UpstreamError{
			Kind: domain.UpstreamNotFound, Op: "details",
			Msg: "no record for " + externalID,
		}
	default:
		return nil, classifyStatus("details", resp.Status, resp.ErrorMessage)
	}

	place, err := mapPlace(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("map details for %s: %w", externalID, err)
	}
	return place, nil
}

// get issues one upstream request and decodes the response body, classifying
// transport- and HTTP-level failures.
func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return &domain.UpstreamError{Kind: domain.UpstreamPermanent, Op: op, Msg: "build request", Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamCalls.WithLabelValues(op, "transient").Inc()
		return classifyTransport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		kind := classifyHTTPStatus(resp.StatusCode)
		metrics.UpstreamCalls.WithLabelValues(op, kind.String()).Inc()
		return &domain.UpstreamError{
			Kind: kind, Op: op,
			Msg: fmt.Sprintf("http %d: %s", resp.StatusCode, string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.UpstreamCalls.WithLabelValues(op, "transient").Inc()
		return &domain.UpstreamError{Kind: domain.UpstreamTransient, Op: op, Msg: "decode response", Err: err}
	}

	metrics.UpstreamCalls.WithLabelValues(op, "ok").Inc()
	return nil
}

func classifyTransport(op string, err error) error {
	kind := domain.UpstreamTransient
	// Classify on the error wrapped inside *url.Error: the outer wrapper is
	// itself a net.Error, so inspecting it directly would call everything
	// retryable.
	var urlErr *url.Error
	if errors.As(err, &urlErr) && !urlErr.Timeout() {
		inner := urlErr.Err
		var netErr net.Error
		if !errors.As(inner, &netErr) && !errors.Is(inner, io.EOF) &&
			!errors.Is(inner, context.DeadlineExceeded) && !errors.Is(inner, context.Canceled) {
			// Malformed URL or unsupported scheme will not heal on retry.
			kind = domain.UpstreamPermanent
		}
	}
	return &domain.UpstreamError{Kind: kind, Op: op, Msg: "request failed", Err: err}
}

func classifyHTTPStatus(code int) domain.UpstreamKind {
	switch {
	case code == http.StatusTooManyRequests:
		return domain.UpstreamRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.UpstreamPermanent
	case code == http.StatusNotFound:
		return domain.UpstreamNotFound
	case code >= 500:
		return domain.UpstreamTransient
	default:
		return domain.UpstreamPermanent
	}
}

// classifyStatus maps upstream application-level status strings onto the
// four error kinds.
func classifyStatus(op, status, message string) error {
	if message == "" {
		message = "status " + status
	}
	var kind domain.UpstreamKind
	switch status {
	case statusOverQueryLimit:
		kind = domain.UpstreamRateLimited
	case statusRequestDenied, statusInvalidRequest:
		kind = domain.UpstreamPermanent
	case statusNotFound:
		kind = domain.UpstreamNotFound
	default:
		// Undocumented statuses are treated as retryable.
		kind = domain.UpstreamTransient
	}
	metrics.UpstreamCalls.WithLabelValues(op, kind.String()).Inc()
	return &domain.UpstreamError{Kind: kind, Op: op, Msg: message}
}
