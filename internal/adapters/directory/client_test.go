package directory_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Auphere/places/internal/adapters/directory"
	"github.com/Auphere/places/internal/core/domain"
)

func newClient(t *testing.T, handler http.HandlerFunc, pageCap int) *directory.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return directory.NewClient(directory.Options{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
		PageCap: pageCap,
	})
}

func searchPage(ids []string, token string) map[string]any {
	results := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		results = append(results, map[string]any{
			"place_id": id,
			"name":     "Place " + id,
			"geometry": map[string]any{"location": map[string]float64{"lat": 41.65, "lng": -0.88}},
		})
	}
	page := map[string]any{"status": "OK", "results": results}
	if token != "" {
		page["next_page_token"] = token
	}
	return page
}

func TestNearby_FollowsPaginationTokens(t *testing.T) {
	var tokens []string
	handler := func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("pagetoken")
		tokens = append(tokens, token)
		switch token {
		case "":
			json.NewEncoder(w).Encode(searchPage([]string{"a", "b"}, "page2"))
		case "page2":
			json.NewEncoder(w).Encode(searchPage([]string{"c"}, ""))
		default:
			t.Errorf("unexpected token %q", token)
		}
	}

	pager := newClient(t, handler, 3).Nearby(domain.GeoPoint{Lat: 41.65, Lon: -0.88}, 1000, domain.CategoryRestaurant)

	first, err := pager.Next(context.Background())
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first) != 2 || first[0].ExternalID != "a" {
		t.Fatalf("unexpected first page: %+v", first)
	}

	second, err := pager.Next(context.Background())
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second) != 1 || second[0].ExternalID != "c" {
		t.Fatalf("unexpected second page: %+v", second)
	}

	done, err := pager.Next(context.Background())
	if err != nil || done != nil {
		t.Fatalf("expected exhaustion, got %v, %v", done, err)
	}
	if len(tokens) != 2 {
		t.Errorf("expected 2 upstream calls, got %d", len(tokens))
	}
}

func TestNearby_PageCapBoundsMisbehavingUpstream(t *testing.T) {
	calls := 0
	handler := func(w http.ResponseWriter, r *http.Request) {
		calls++
		// Upstream that never stops handing out tokens.
		json.NewEncoder(w).Encode(searchPage([]string{"x"}, "again"))
	}

	pager := newClient(t, handler, 2).Nearby(domain.GeoPoint{Lat: 41.65, Lon: -0.88}, 1000, "")

	for i := 0; i < 2; i++ {
		if _, err := pager.Next(context.Background()); err != nil {
			t.Fatalf("page %d: %v", i, err)
		}
	}
	capped, err := pager.Next(context.Background())
	if err != nil || capped != nil {
		t.Fatalf("expected cap exhaustion, got %v, %v", capped, err)
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 upstream calls, got %d", calls)
	}
}

func TestNearby_ZeroResults(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "ZERO_RESULTS"})
	}

	pager := newClient(t, handler, 3).Nearby(domain.GeoPoint{}, 1000, "")
	candidates, err := pager.Next(context.Background())
	if err != nil || candidates != nil {
		t.Fatalf("expected clean exhaustion, got %v, %v", candidates, err)
	}
}

func TestClient_ClassifiesUpstreamStatus(t *testing.T) {
	cases := []struct {
		status string
		want   domain.UpstreamKind
	}{
		{"OVER_QUERY_LIMIT", domain.UpstreamRateLimited},
		{"REQUEST_DENIED", domain.UpstreamPermanent},
		{"INVALID_REQUEST", domain.UpstreamPermanent},
		{"SOMETHING_NEW", domain.UpstreamTransient},
	}

	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"status": tc.status})
			}
			pager := newClient(t, handler, 3).Nearby(domain.GeoPoint{}, 1000, "")

			_, err := pager.Next(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			kind, ok := domain.UpstreamKindOf(err)
			if !ok || kind != tc.want {
				t.Errorf("got kind %v ok=%v, want %v", kind, ok, tc.want)
			}
		})
	}
}

func TestClient_ClassifiesHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want domain.UpstreamKind
	}{
		{http.StatusTooManyRequests, domain.UpstreamRateLimited},
		{http.StatusForbidden, domain.UpstreamPermanent},
		{http.StatusInternalServerError, domain.UpstreamTransient},
		{http.StatusBadGateway, domain.UpstreamTransient},
	}

	for _, tc := range cases {
		handler := func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.code)
		}
		_, err := newClient(t, handler, 3).Details(context.Background(), "x")
		if err == nil {
			t.Fatalf("http %d: expected error", tc.code)
		}
		kind, ok := domain.UpstreamKindOf(err)
		if !ok || kind != tc.want {
			t.Errorf("http %d: got kind %v ok=%v, want %v", tc.code, kind, ok, tc.want)
		}
	}
}

func TestClient_TimeoutIsTransient(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)

	client := directory.NewClient(directory.Options{
		BaseURL: srv.URL,
		Timeout: 20 * time.Millisecond,
		PageCap: 3,
	})

	_, err := client.Details(context.Background(), "x")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	kind, ok := domain.UpstreamKindOf(err)
	if !ok || kind != domain.UpstreamTransient {
		t.Errorf("timeout should be transient, got %v ok=%v", kind, ok)
	}
}

func TestClient_UnsupportedSchemeIsPermanent(t *testing.T) {
	client := directory.NewClient(directory.Options{
		BaseURL: "foo://nowhere",
		Timeout: time.Second,
		PageCap: 3,
	})

	_, err := client.Details(context.Background(), "x")
	if err == nil {
		t.Fatal("expected transport error")
	}
	kind, ok := domain.UpstreamKindOf(err)
	if !ok || kind != domain.UpstreamPermanent {
		t.Errorf("a broken base URL cannot heal on retry, got %v ok=%v", kind, ok)
	}
}

func TestClient_ConnectionRefusedIsTransient(t *testing.T) {
	// A closed server yields a real dial error instead of a timeout.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	client := directory.NewClient(directory.Options{
		BaseURL: addr,
		Timeout: time.Second,
		PageCap: 3,
	})

	_, err := client.Details(context.Background(), "x")
	if err == nil {
		t.Fatal("expected transport error")
	}
	kind, ok := domain.UpstreamKindOf(err)
	if !ok || kind != domain.UpstreamTransient {
		t.Errorf("connection refused should be retryable, got %v ok=%v", kind, ok)
	}
}

func TestDetails_MapsFullRecord(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("place_id"); got != "ext-1" {
			t.Errorf("unexpected place_id %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"result": map[string]any{
				"place_id": "ext-1",
				"name":     "Pizzeria Napoli",
				"types":    []string{"restaurant", "italian_restaurant", "point_of_interest"},
				"geometry": map[string]any{"location": map[string]float64{"lat": 41.6488, "lng": -0.8891}},
				"formatted_address": "Calle Mayor 1, 50001 Zaragoza",
				"address_components": []map[string]any{
					{"long_name": "Zaragoza", "types": []string{"locality", "political"}},
					{"long_name": "Casco Antiguo", "types": []string{"sublocality_level_1"}},
					{"long_name": "50001", "types": []string{"postal_code"}},
				},
				"rating":                 4.5,
				"user_ratings_total":     321,
				"price_level":            2,
				"business_status":        "OPERATIONAL",
				"opening_hours":          map[string]any{"open_now": true},
				"formatted_phone_number": "976 123 456",
				"website":                "https://napoli.example",
			},
		})
	}

	place, err := newClient(t, handler, 3).Details(context.Background(), "ext-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if place.ExternalID != "ext-1" || place.Name != "Pizzeria Napoli" {
		t.Errorf("identity not mapped: %+v", place)
	}
	if place.Category != domain.CategoryRestaurant {
		t.Errorf("expected restaurant, got %s", place.Category)
	}
	if len(place.Cuisines) != 1 || place.Cuisines[0] != domain.CuisineItalian {
		t.Errorf("expected italian cuisine, got %v", place.Cuisines)
	}
	if place.City != "Zaragoza" || place.District != "Casco Antiguo" || place.PostalCode != "50001" {
		t.Errorf("address parts not mapped: city=%q district=%q postal=%q",
			place.City, place.District, place.PostalCode)
	}
	if place.Rating == nil || *place.Rating != 4.5 {
		t.Errorf("rating not mapped: %v", place.Rating)
	}
	if place.PriceTier == nil || *place.PriceTier != 2 {
		t.Errorf("price tier not mapped: %v", place.PriceTier)
	}
	if place.OpenNow == nil || !*place.OpenNow {
		t.Errorf("open_now not mapped: %v", place.OpenNow)
	}
	if !place.Active {
		t.Error("operational place should be active")
	}
	// No upstream URL in the payload: fall back to the canonical link.
	if place.DirectoryURL != "https://www.google.com/maps/place/?q=place_id:ext-1" {
		t.Errorf("unexpected directory url %q", place.DirectoryURL)
	}
}

func TestDetails_NotFound(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "NOT_FOUND"})
	}

	_, err := newClient(t, handler, 3).Details(context.Background(), "gone")
	if err == nil {
		t.Fatal("expected error")
	}
	kind, ok := domain.UpstreamKindOf(err)
	if !ok || kind != domain.UpstreamNotFound {
		t.Errorf("expected not-found kind, got %v ok=%v", kind, ok)
	}
}
