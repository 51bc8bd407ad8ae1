package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Auphere/places/internal/core/domain"
)

// PlaceRepo implements ports.PlaceRepository with pgx. Deduplication rests
// on the unique constraint over external_id: concurrent upserts racing on
// one external id resolve inside Postgres to a single row.
type PlaceRepo struct {
	db *DB
}

// NewPlaceRepo creates a new PlaceRepo.
func NewPlaceRepo(db *DB) *PlaceRepo {
	return &PlaceRepo{db: db}
}

// placeColumns is the shared select list; scanPlace must match it.
const placeColumns = `
	id, external_id, name,
	ST_Y(location::geometry) as lat,
	ST_X(location::geometry) as lon,
	COALESCE(address, ''), COALESCE(city, ''), COALESCE(district, ''),
	COALESCE(postal_code, ''), category, categories, cuisines,
	price_tier, open_now, rating, rating_count,
	COALESCE(phone, ''), COALESCE(website, ''), COALESCE(directory_url, ''),
	active, created_at, updated_at`

func scanPlace(row pgx.Row, distance bool) (*domain.Place, error) {
	var (
		p          domain.Place
		categories []string
		cuisines   []string
	)
	dest := []any{
		&p.ID, &p.ExternalID, &p.Name,
		&p.Location.Lat, &p.Location.Lon,
		&p.Address, &p.City, &p.District,
		&p.PostalCode, &p.Category, &categories, &cuisines,
		&p.PriceTier, &p.OpenNow, &p.Rating, &p.RatingCount,
		&p.Phone, &p.Website, &p.DirectoryURL,
		&p.Active, &p.CreatedAt, &p.UpdatedAt,
	}
	if distance {
		dest = append(dest, &p.Distance)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	for _, c := range categories {
		p.Categories = append(p.Categories, domain.Category(c))
	}
	for _, c := range cuisines {
		p.Cuisines = append(p.Cuisines, domain.Cuisine(c))
	}
	return &p, nil
}

func stringSlice[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

// Exists reports whether a place with the given external id is already
// persisted, active or not.
func (r *PlaceRepo) Exists(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM places WHERE external_id = $1)`,
		externalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", externalID, err)
	}
	return exists, nil
}

// Upsert inserts the place or, when the external id is already present,
// refreshes the existing row in place. The internal id and created_at of an
// existing row are never touched. (xmax = 0) distinguishes a fresh insert
// from a conflict update.
func (r *PlaceRepo) Upsert(ctx context.Context, p *domain.Place) (domain.UpsertResult, error) {
	var (
		id       string
		inserted bool
	)
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO places (
			external_id, name, location, address, city, district, postal_code,
			category, categories, cuisines, price_tier, open_now,
			rating, rating_count, phone, website, directory_url, active
		)
		VALUES (
			$1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography,
			NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''),
			$9, $10, $11, $12, $13,
			$14, $15, NULLIF($16, ''), NULLIF($17, ''), NULLIF($18, ''), $19
		)
		ON CONFLICT (external_id) DO UPDATE
		SET name = EXCLUDED.name, location = EXCLUDED.location,
		    address = EXCLUDED.address, city = EXCLUDED.city,
		    district = EXCLUDED.district, postal_code = EXCLUDED.postal_code,
		    category = EXCLUDED.category, categories = EXCLUDED.categories,
		    cuisines = EXCLUDED.cuisines, price_tier = EXCLUDED.price_tier,
		    open_now = EXCLUDED.open_now, rating = EXCLUDED.rating,
		    rating_count = EXCLUDED.rating_count, phone = EXCLUDED.phone,
		    website = EXCLUDED.website, directory_url = EXCLUDED.directory_url,
		    active = EXCLUDED.active, updated_at = now()
		RETURNING id, (xmax = 0) AS inserted
	`, p.ExternalID, p.Name, p.Location.Lon, p.Location.Lat,
		p.Address, p.City, p.District, p.PostalCode,
		string(p.Category), stringSlice(p.Categories), stringSlice(p.Cuisines),
		p.PriceTier, p.OpenNow,
		p.Rating, p.RatingCount, p.Phone, p.Website, p.DirectoryURL, p.Active,
	).Scan(&id, &inserted)
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("upsert %s: %w", p.ExternalID, err)
	}

	outcome := domain.UpsertUpdated
	if inserted {
		outcome = domain.UpsertInserted
	}
	return domain.UpsertResult{Outcome: outcome, InternalID: id}, nil
}

// GetByID returns a place by internal UUID.
func (r *PlaceRepo) GetByID(ctx context.Context, id string) (*domain.Place, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+placeColumns+` FROM places WHERE id = $1`, id)
	p, err := scanPlace(row, false)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get place %s: %w", id, err)
	}
	return p, nil
}

// Search runs one multi-criteria query. All supplied filters combine
// conjunctively; only active rows are eligible. It returns the requested
// page plus the total match count before pagination.
func (r *PlaceRepo) Search(ctx context.Context, q domain.SearchQuery) ([]domain.Place, int, error) {
	var (
		conds = []string{"active"}
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var rankExpr string
	if q.Text != "" {
		tsq := arg(q.Text)
		conds = append(conds, fmt.Sprintf(
			"search_vector @@ plainto_tsquery('simple', %s)", tsq))
		rankExpr = fmt.Sprintf(
			"ts_rank(search_vector, plainto_tsquery('simple', %s))", tsq)
	}
	// Case-insensitive substring match on locality fields.
	if q.City != "" {
		conds = append(conds, fmt.Sprintf("city ILIKE %s", arg("%"+q.City+"%")))
	}
	if q.District != "" {
		conds = append(conds, fmt.Sprintf("district ILIKE %s", arg("%"+q.District+"%")))
	}
	if len(q.Categories) > 0 {
		conds = append(conds, fmt.Sprintf(
			"categories && %s::text[]", arg(stringSlice(q.Categories))))
	}

	var distExpr string
	if q.Near != nil && q.RadiusMeters != nil {
		point := fmt.Sprintf("ST_SetSRID(ST_MakePoint(%s, %s), 4326)::geography",
			arg(q.Near.Lon), arg(q.Near.Lat))
		conds = append(conds, fmt.Sprintf(
			"ST_DWithin(location, %s, %s)", point, arg(*q.RadiusMeters)))
		distExpr = fmt.Sprintf("ST_Distance(location, %s)", point)
	}
	if q.MinRating != nil {
		conds = append(conds, fmt.Sprintf("rating >= %s", arg(*q.MinRating)))
	}

	where := strings.Join(conds, " AND ")

	var total int
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM places WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count places: %w", err)
	}

	// Text matches rank by relevance with distance as the second key when
	// geography is present, geo-only queries by proximity, everything else
	// by rating. id breaks every tie so paging is stable.
	var order string
	switch {
	case rankExpr != "" && distExpr != "":
		order = rankExpr + " DESC, distance ASC, id ASC"
	case rankExpr != "":
		order = rankExpr + " DESC, rating DESC NULLS LAST, id ASC"
	case distExpr != "":
		order = "distance ASC, id ASC"
	default:
		order = "rating DESC NULLS LAST, id ASC"
	}

	if distExpr == "" {
		distExpr = "NULL::double precision"
	}
	query := `SELECT ` + placeColumns + `, ` + distExpr + ` as distance
		FROM places WHERE ` + where + `
		ORDER BY ` + order + `
		LIMIT ` + arg(q.PageSize) + ` OFFSET ` + arg((q.Page-1)*q.PageSize)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search places: %w", err)
	}
	defer rows.Close()

	var places []domain.Place
	for rows.Next() {
		p, err := scanPlace(rows, true)
		if err != nil {
			return nil, 0, fmt.Errorf("scan place: %w", err)
		}
		places = append(places, *p)
	}
	return places, total, rows.Err()
}

// Deactivate soft-deletes a place. The row stays behind the external_id
// constraint, so a later re-ingestion revives it instead of duplicating it.
func (r *PlaceRepo) Deactivate(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE places SET active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Ping reports store reachability.
func (r *PlaceRepo) Ping(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}
