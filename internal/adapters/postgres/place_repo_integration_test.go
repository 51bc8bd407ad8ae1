//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Auphere/places/internal/adapters/postgres"
	"github.com/Auphere/places/internal/core/domain"
	"github.com/Auphere/places/internal/pkg/config"
)

// setupTestDB connects to the test database.
func setupTestDB(t *testing.T) *postgres.DB {
	t.Helper()

	cfg, err := config.Load("places-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping db: %v", err)
	}

	return &postgres.DB{Pool: pool}
}

// uniqueToken scopes one test's rows so runs never interfere. The token is a
// single tsvector lexeme, so it works in free-text queries too.
func uniqueToken(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, time.Now().UnixNano())
}

func cleanupPlaces(t *testing.T, db *postgres.DB, externalIDPrefix string) {
	t.Helper()
	t.Cleanup(func() {
		_, err := db.Pool.Exec(context.Background(),
			`DELETE FROM places WHERE external_id LIKE $1`, externalIDPrefix+"%")
		if err != nil {
			t.Errorf("cleanup: %v", err)
		}
	})
}

func seedPlace(t *testing.T, repo *postgres.PlaceRepo, p domain.Place) string {
	t.Helper()
	p.Active = true
	res, err := repo.Upsert(context.Background(), &p)
	if err != nil {
		t.Fatalf("seed %s: %v", p.ExternalID, err)
	}
	return res.InternalID
}

func fptr(v float64) *float64 { return &v }

func TestPlaceRepo_Upsert_PreservesIdentity_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()
	repo := postgres.NewPlaceRepo(db)

	extID := uniqueToken("test_upsert_")
	cleanupPlaces(t, db, extID)

	first, err := repo.Upsert(context.Background(), &domain.Place{
		ExternalID: extID,
		Name:       "Original Name",
		Location:   domain.GeoPoint{Lat: 41.65, Lon: -0.88},
		Category:   domain.CategoryRestaurant,
		Rating:     fptr(3.5),
		Active:     true,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.Outcome != domain.UpsertInserted {
		t.Fatalf("fresh row must report inserted, got %s", first.Outcome)
	}

	before, err := repo.GetByID(context.Background(), first.InternalID)
	if err != nil {
		t.Fatalf("get after insert: %v", err)
	}

	second, err := repo.Upsert(context.Background(), &domain.Place{
		ExternalID: extID,
		Name:       "Renamed",
		Location:   domain.GeoPoint{Lat: 41.65, Lon: -0.88},
		Category:   domain.CategoryRestaurant,
		Rating:     fptr(4.2),
		Active:     true,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.Outcome != domain.UpsertUpdated {
		t.Errorf("conflict update must report updated, got %s", second.Outcome)
	}
	if second.InternalID != first.InternalID {
		t.Errorf("internal id changed across upserts: %s != %s", second.InternalID, first.InternalID)
	}

	after, err := repo.GetByID(context.Background(), first.InternalID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Errorf("created_at must survive the update: %v != %v", after.CreatedAt, before.CreatedAt)
	}
	if after.Name != "Renamed" || after.Rating == nil || *after.Rating != 4.2 {
		t.Errorf("mutable fields were not refreshed: %+v", after)
	}
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Errorf("updated_at did not advance: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
}

func TestPlaceRepo_Search_TextRelevanceOrdering_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()
	repo := postgres.NewPlaceRepo(db)

	tok := uniqueToken("rank")
	cleanupPlaces(t, db, tok)

	// Token in the name carries weight A; in the city only weight B. Two
	// name matches tie on relevance and fall back to rating.
	lowRatedName := seedPlace(t, repo, domain.Place{
		ExternalID: tok + "_1", Name: "Cafe " + tok,
		Location: domain.GeoPoint{Lat: 41.65, Lon: -0.88},
		Category: domain.CategoryCafe, Rating: fptr(3.0),
	})
	cityOnly := seedPlace(t, repo, domain.Place{
		ExternalID: tok + "_2", Name: "Plain Bar", City: tok,
		Location: domain.GeoPoint{Lat: 41.65, Lon: -0.88},
		Category: domain.CategoryBar, Rating: fptr(5.0),
	})
	highRatedName := seedPlace(t, repo, domain.Place{
		ExternalID: tok + "_3", Name: "Tavern " + tok,
		Location: domain.GeoPoint{Lat: 41.65, Lon: -0.88},
		Category: domain.CategoryBar, Rating: fptr(4.5),
	})

	items, total, err := repo.Search(context.Background(),
		domain.SearchQuery{Text: tok, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("expected all 3 matches, got %d of %d", len(items), total)
	}

	want := []string{highRatedName, lowRatedName, cityOnly}
	for i, id := range want {
		if items[i].ID != id {
			t.Errorf("position %d: expected %s, got %s (%s)", i, id, items[i].ID, items[i].Name)
		}
	}
}

func TestPlaceRepo_Search_GeoRadiusBoundary_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()
	repo := postgres.NewPlaceRepo(db)

	tok := uniqueToken("geo")
	cleanupPlaces(t, db, tok)

	center := domain.GeoPoint{Lat: 41.6500, Lon: -0.8800}
	// 0.005 deg of latitude is roughly 555m, 0.02 roughly 2.2km.
	atCenter := seedPlace(t, repo, domain.Place{
		ExternalID: tok + "_center", Name: "Center", City: tok,
		Location: center, Category: domain.CategoryRestaurant,
	})
	near := seedPlace(t, repo, domain.Place{
		ExternalID: tok + "_near", Name: "Near", City: tok,
		Location: domain.GeoPoint{Lat: center.Lat + 0.005, Lon: center.Lon},
		Category: domain.CategoryRestaurant,
	})
	seedPlace(t, repo, domain.Place{
		ExternalID: tok + "_far", Name: "Far", City: tok,
		Location: domain.GeoPoint{Lat: center.Lat + 0.02, Lon: center.Lon},
		Category: domain.CategoryRestaurant,
	})

	items, total, err := repo.Search(context.Background(), domain.SearchQuery{
		City: tok, Near: &center, RadiusMeters: fptr(1000),
		Page: 1, PageSize: 10,
	})
	if err != nil {
		t.Fatalf("radius search: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected center and near only, got %d of %d", len(items), total)
	}
	// Geo-only ordering: distance ascending.
	if items[0].ID != atCenter || items[1].ID != near {
		t.Errorf("expected [center, near], got [%s, %s]", items[0].Name, items[1].Name)
	}
	if items[0].Distance == nil || items[1].Distance == nil {
		t.Fatal("geo search must report distances")
	}
	if *items[1].Distance < 400 || *items[1].Distance > 700 {
		t.Errorf("near distance out of expected band: %f", *items[1].Distance)
	}

	// Zero radius matches exact coincidence only.
	items, total, err = repo.Search(context.Background(), domain.SearchQuery{
		City: tok, Near: &center, RadiusMeters: fptr(0),
		Page: 1, PageSize: 10,
	})
	if err != nil {
		t.Fatalf("zero-radius search: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != atCenter {
		t.Errorf("zero radius must match only the coincident record, got %d of %d", len(items), total)
	}
}

func TestPlaceRepo_Search_MinRatingExcludesUnrated_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()
	repo := postgres.NewPlaceRepo(db)

	tok := uniqueToken("rating")
	cleanupPlaces(t, db, tok)

	rated := seedPlace(t, repo, domain.Place{
		ExternalID: tok + "_rated", Name: "Rated", City: tok,
		Location: domain.GeoPoint{Lat: 41.65, Lon: -0.88},
		Category: domain.CategoryRestaurant, Rating: fptr(4.5),
	})
	seedPlace(t, repo, domain.Place{
		ExternalID: tok + "_unrated", Name: "Unrated", City: tok,
		Location: domain.GeoPoint{Lat: 41.65, Lon: -0.88},
		Category: domain.CategoryRestaurant,
	})

	items, total, err := repo.Search(context.Background(), domain.SearchQuery{
		City: tok, MinRating: fptr(4.0), Page: 1, PageSize: 10,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != rated {
		t.Errorf("NULL rating must not satisfy min_rating, got %d of %d", len(items), total)
	}
}

func TestPlaceRepo_Search_CitySubstringMatch_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()
	repo := postgres.NewPlaceRepo(db)

	tok := uniqueToken("city")
	cleanupPlaces(t, db, tok)

	id := seedPlace(t, repo, domain.Place{
		ExternalID: tok + "_1", Name: "Corner Bar", City: "Greater " + tok + " Area",
		Location: domain.GeoPoint{Lat: 41.65, Lon: -0.88},
		Category: domain.CategoryBar,
	})

	items, total, err := repo.Search(context.Background(),
		domain.SearchQuery{City: tok, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != id {
		t.Errorf("city filter must match substrings, got %d of %d", len(items), total)
	}
}

func TestPlaceRepo_Search_PagedCityTextQuery_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()
	repo := postgres.NewPlaceRepo(db)

	tok := uniqueToken("tapas")
	cleanupPlaces(t, db, tok)

	// Seven matches: token in the name, scoped city, rating at least 4.
	for i := 0; i < 7; i++ {
		seedPlace(t, repo, domain.Place{
			ExternalID: fmt.Sprintf("%s_match_%d", tok, i),
			Name:       fmt.Sprintf("Casa %s %d", tok, i),
			City:       tok,
			Location:   domain.GeoPoint{Lat: 41.65, Lon: -0.88},
			Category:   domain.CategoryRestaurant,
			Rating:     fptr(4.0 + float64(i)*0.1),
		})
	}
	// Three non-matches: rating too low, wrong city, no text match.
	seedPlace(t, repo, domain.Place{
		ExternalID: tok + "_low", Name: "Casa " + tok + " low", City: tok,
		Location: domain.GeoPoint{Lat: 41.65, Lon: -0.88},
		Category: domain.CategoryRestaurant, Rating: fptr(3.0),
	})
	seedPlace(t, repo, domain.Place{
		ExternalID: tok + "_elsewhere", Name: "Casa " + tok + " elsewhere", City: "othertown",
		Location: domain.GeoPoint{Lat: 41.65, Lon: -0.88},
		Category: domain.CategoryRestaurant, Rating: fptr(4.8),
	})
	seedPlace(t, repo, domain.Place{
		ExternalID: tok + "_notext", Name: "Unrelated Diner", City: tok,
		Location: domain.GeoPoint{Lat: 41.65, Lon: -0.88},
		Category: domain.CategoryRestaurant, Rating: fptr(4.9),
	})

	query := domain.SearchQuery{
		Text: tok, City: tok, MinRating: fptr(4.0),
		Page: 1, PageSize: 5,
	}
	page1, total, err := repo.Search(context.Background(), query)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if total != 7 {
		t.Fatalf("expected total 7, got %d", total)
	}
	if len(page1) != 5 {
		t.Fatalf("expected 5 items on page 1, got %d", len(page1))
	}
	for _, p := range page1 {
		if p.Rating == nil || *p.Rating < 4.0 {
			t.Errorf("item %s violates the rating filter: %v", p.Name, p.Rating)
		}
	}

	query.Page = 2
	page2, _, err := repo.Search(context.Background(), query)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2) != 2 {
		t.Fatalf("expected 2 items on page 2, got %d", len(page2))
	}

	seen := make(map[string]bool, len(page1))
	for _, p := range page1 {
		seen[p.ID] = true
	}
	for _, p := range page2 {
		if seen[p.ID] {
			t.Errorf("item %s repeated across pages", p.ID)
		}
	}
}
