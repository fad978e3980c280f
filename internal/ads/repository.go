package ads

import (
	"context"
	"time"

	"github.com/bissquit/newsroom/internal/domain"
)

// StatusFilter narrows the admin ad list.
type StatusFilter string

// Admin list status filters. Active includes scheduled ads that are enabled
// and not yet expired.
const (
	StatusFilterActive   StatusFilter = "active"
	StatusFilterInactive StatusFilter = "inactive"
	StatusFilterExpired  StatusFilter = "expired"
)

// IsValid checks if the status filter is known. The empty filter is valid.
func (f StatusFilter) IsValid() bool {
	switch f {
	case "", StatusFilterActive, StatusFilterInactive, StatusFilterExpired:
		return true
	}
	return false
}

// ListFilter contains admin list parameters.
type ListFilter struct {
	Status StatusFilter
	Type   domain.AdType
	At     time.Time
	Limit  int
	Offset int
}

// TypeTotals aggregates counters for one ad type.
type TypeTotals struct {
	Count       int
	Impressions int
	Clicks      int
}

// Totals aggregates counters over every ad.
type Totals struct {
	Total       int
	Active      int
	Inactive    int
	Expired     int
	Impressions int
	Clicks      int
	ByType      map[domain.AdType]TypeTotals
}

// Repository defines the interface for ad storage.
type Repository interface {
	Create(ctx context.Context, ad *domain.Ad) error
	GetByID(ctx context.Context, id string) (*domain.Ad, error)
	Update(ctx context.Context, ad *domain.Ad) error
	Delete(ctx context.Context, id string) error
	ToggleActive(ctx context.Context, id string) (*domain.Ad, error)

	// ListLive returns ads that are enabled and inside their schedule at the
	// given time, newest first. An empty adType matches every type.
	ListLive(ctx context.Context, adType domain.AdType, at time.Time) ([]domain.Ad, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Ad, int, error)

	// RecordImpression increments the counter and logs the view in one transaction.
	RecordImpression(ctx context.Context, view domain.AdView) (domain.AdType, error)
	RecordClick(ctx context.Context, id string) (domain.AdType, error)
	CountViewsSince(ctx context.Context, id string, since time.Time) (int, error)

	Totals(ctx context.Context, at time.Time) (*Totals, error)
	TopByCTR(ctx context.Context, limit int) ([]domain.Ad, error)
}
