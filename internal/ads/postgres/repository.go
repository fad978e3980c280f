// Package postgres provides PostgreSQL implementation of the ads repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/newsroom/internal/ads"
	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements ads.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const adColumns = `id, title, content, image_url, target_url, ad_type, is_active,
	start_date, end_date, impressions_count, clicks_count, created_at`

func scanAd(row pgx.Row) (*domain.Ad, error) {
	var ad domain.Ad
	err := row.Scan(&ad.ID, &ad.Title, &ad.Content, &ad.ImageURL, &ad.TargetURL, &ad.AdType, &ad.IsActive,
		&ad.StartDate, &ad.EndDate, &ad.ImpressionsCount, &ad.ClicksCount, &ad.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ad, nil
}

func collectAds(rows pgx.Rows) ([]domain.Ad, error) {
	defer rows.Close()

	list := make([]domain.Ad, 0)
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ad: %w", err)
		}
		list = append(list, *ad)
	}
	return list, rows.Err()
}

// Create inserts an ad.
func (r *Repository) Create(ctx context.Context, ad *domain.Ad) error {
	query := `
		INSERT INTO ads (title, content, image_url, target_url, ad_type, is_active, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, impressions_count, clicks_count, created_at
	`
	err := r.db.QueryRow(ctx, query,
		ad.Title, ad.Content, ad.ImageURL, ad.TargetURL, ad.AdType, ad.IsActive, ad.StartDate, ad.EndDate,
	).Scan(&ad.ID, &ad.ImpressionsCount, &ad.ClicksCount, &ad.CreatedAt)
	if err != nil {
		return fmt.Errorf("create ad: %w", err)
	}
	return nil
}

// GetByID retrieves an ad by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Ad, error) {
	ad, err := scanAd(r.db.QueryRow(ctx, `SELECT `+adColumns+` FROM ads WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ads.ErrAdNotFound
		}
		return nil, fmt.Errorf("get ad by id: %w", err)
	}
	return ad, nil
}

// Update writes the editable fields of an ad.
func (r *Repository) Update(ctx context.Context, ad *domain.Ad) error {
	query := `
		UPDATE ads
		SET title = $2, content = $3, image_url = $4, target_url = $5, ad_type = $6,
			is_active = $7, start_date = $8, end_date = $9
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query,
		ad.ID, ad.Title, ad.Content, ad.ImageURL, ad.TargetURL, ad.AdType, ad.IsActive, ad.StartDate, ad.EndDate,
	)
	if err != nil {
		return fmt.Errorf("update ad: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ads.ErrAdNotFound
	}
	return nil
}

// Delete removes an ad. Views are removed by cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM ads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete ad: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ads.ErrAdNotFound
	}
	return nil
}

// ToggleActive flips is_active and returns the updated ad.
func (r *Repository) ToggleActive(ctx context.Context, id string) (*domain.Ad, error) {
	query := `UPDATE ads SET is_active = NOT is_active WHERE id = $1 RETURNING ` + adColumns
	ad, err := scanAd(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ads.ErrAdNotFound
		}
		return nil, fmt.Errorf("toggle ad: %w", err)
	}
	return ad, nil
}

// ListLive returns enabled ads inside their schedule at the given time,
// newest first.
func (r *Repository) ListLive(ctx context.Context, adType domain.AdType, at time.Time) ([]domain.Ad, error) {
	query := `
		SELECT ` + adColumns + `
		FROM ads
		WHERE is_active
			AND (start_date IS NULL OR start_date <= $1)
			AND (end_date IS NULL OR end_date >= $1)
			AND ($2 = '' OR ad_type = $2)
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, at, string(adType))
	if err != nil {
		return nil, fmt.Errorf("list live ads: %w", err)
	}
	list, err := collectAds(rows)
	if err != nil {
		return nil, fmt.Errorf("list live ads: %w", err)
	}
	return list, nil
}

// List returns a page of ads matching filter, newest first, with the total count.
func (r *Repository) List(ctx context.Context, filter ads.ListFilter) ([]domain.Ad, int, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch filter.Status {
	case ads.StatusFilterActive:
		conditions = append(conditions, "is_active AND (end_date IS NULL OR end_date > "+arg(filter.At)+")")
	case ads.StatusFilterInactive:
		conditions = append(conditions, "NOT is_active")
	case ads.StatusFilterExpired:
		conditions = append(conditions, "end_date IS NOT NULL AND end_date < "+arg(filter.At))
	}
	if filter.Type != "" {
		conditions = append(conditions, "ad_type = "+arg(string(filter.Type)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ads`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ads: %w", err)
	}

	query := `SELECT ` + adColumns + ` FROM ads` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ` + arg(filter.Limit) + ` OFFSET ` + arg(filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ads: %w", err)
	}
	list, err := collectAds(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("list ads: %w", err)
	}
	return list, total, nil
}

// RecordImpression increments impressions_count and inserts an ad_views row.
func (r *Repository) RecordImpression(ctx context.Context, view domain.AdView) (domain.AdType, error) {
	var adType domain.AdType
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE ads SET impressions_count = impressions_count + 1 WHERE id = $1 RETURNING ad_type`,
			view.AdID,
		).Scan(&adType)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ads.ErrAdNotFound
			}
			return fmt.Errorf("increment impressions: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO ad_views (ad_id, user_id, session_id, ip_address, viewed_at)
			VALUES ($1, $2, $3, $4, $5)
		`, view.AdID, view.UserID, view.SessionID, view.IPAddress, view.ViewedAt)
		if err != nil {
			return fmt.Errorf("insert ad view: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return adType, nil
}

// RecordClick increments clicks_count.
func (r *Repository) RecordClick(ctx context.Context, id string) (domain.AdType, error) {
	var adType domain.AdType
	err := r.db.QueryRow(ctx,
		`UPDATE ads SET clicks_count = clicks_count + 1 WHERE id = $1 RETURNING ad_type`, id,
	).Scan(&adType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ads.ErrAdNotFound
		}
		return "", fmt.Errorf("record click: %w", err)
	}
	return adType, nil
}

// CountViewsSince counts logged views of an ad after since.
func (r *Repository) CountViewsSince(ctx context.Context, id string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM ad_views WHERE ad_id = $1 AND viewed_at >= $2`, id, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ad views: %w", err)
	}
	return count, nil
}

// Totals aggregates counters over every ad.
func (r *Repository) Totals(ctx context.Context, at time.Time) (*ads.Totals, error) {
	totals := &ads.Totals{ByType: make(map[domain.AdType]ads.TypeTotals)}

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active AND (end_date IS NULL OR end_date > $1)),
			COUNT(*) FILTER (WHERE NOT is_active),
			COUNT(*) FILTER (WHERE end_date IS NOT NULL AND end_date < $1),
			COALESCE(SUM(impressions_count), 0),
			COALESCE(SUM(clicks_count), 0)
		FROM ads
	`
	err := r.db.QueryRow(ctx, query, at).Scan(
		&totals.Total, &totals.Active, &totals.Inactive, &totals.Expired, &totals.Impressions, &totals.Clicks,
	)
	if err != nil {
		return nil, fmt.Errorf("ad totals: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT ad_type, COUNT(*), COALESCE(SUM(impressions_count), 0), COALESCE(SUM(clicks_count), 0)
		FROM ads
		GROUP BY ad_type
	`)
	if err != nil {
		return nil, fmt.Errorf("ad totals by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			adType domain.AdType
			tt     ads.TypeTotals
		)
		if err := rows.Scan(&adType, &tt.Count, &tt.Impressions, &tt.Clicks); err != nil {
			return nil, fmt.Errorf("scan ad type totals: %w", err)
		}
		totals.ByType[adType] = tt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ad totals by type: %w", err)
	}
	return totals, nil
}

// TopByCTR returns ads with impressions ordered by click-through rate.
func (r *Repository) TopByCTR(ctx context.Context, limit int) ([]domain.Ad, error) {
	query := `
		SELECT ` + adColumns + `
		FROM ads
		WHERE impressions_count > 0
		ORDER BY clicks_count::float8 / impressions_count DESC, impressions_count DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("top ads by ctr: %w", err)
	}
	list, err := collectAds(rows)
	if err != nil {
		return nil, fmt.Errorf("top ads by ctr: %w", err)
	}
	return list, nil
}
