// Package ads stores advertisements, selects them for placements and records
// impressions and clicks.
package ads

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/ctxlog"
	"github.com/bissquit/newsroom/internal/pkg/sanitize"
)

// Selection limits.
const (
	DefaultListLimit = 5
	MaxListLimit     = 50
	PlacementLimit   = 3
)

const (
	performanceWindow = 30 * 24 * time.Hour
	topPerformingSize = 5
	allTypesKey       = "all"
)

// Service implements ad business logic.
type Service struct {
	repo     Repository
	selector *Selector
	now      func() time.Time
}

// NewService creates a new ads service.
func NewService(repo Repository, selector *Selector) *Service {
	return &Service{
		repo:     repo,
		selector: selector,
		now:      time.Now,
	}
}

// ShowAds reports whether a viewer with perms is shown ads.
func ShowAds(perms domain.Permissions) bool {
	return !perms.Has(domain.PermissionNoAds)
}

// Selection is the result of a public ad query.
type Selection struct {
	Ads     []domain.Ad `json:"ads"`
	ShowAds bool        `json:"show_ads"`
}

// PlacementSelection holds ads grouped by placement.
type PlacementSelection struct {
	Placements map[domain.AdType][]domain.Ad `json:"placements"`
	ShowAds    bool                          `json:"show_ads"`
}

// Select returns up to limit live ads of adType chosen by the named strategy.
// An empty adType selects among every type.
func (s *Service) Select(ctx context.Context, perms domain.Permissions, adType domain.AdType, limit int, strategy string) (*Selection, error) {
	if adType != "" && !adType.IsValid() {
		return nil, ErrInvalidAdType
	}
	if !ShowAds(perms) {
		return &Selection{Ads: []domain.Ad{}, ShowAds: false}, nil
	}

	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	selected, err := s.pick(ctx, adType, limit, strategy)
	if err != nil {
		return nil, err
	}
	return &Selection{Ads: selected, ShowAds: true}, nil
}

// ByPlacement selects up to PlacementLimit ads for each placement.
func (s *Service) ByPlacement(ctx context.Context, perms domain.Permissions, placements []domain.AdType, strategy string) (*PlacementSelection, error) {
	result := &PlacementSelection{
		Placements: make(map[domain.AdType][]domain.Ad, len(placements)),
		ShowAds:    ShowAds(perms),
	}

	for _, placement := range placements {
		if !result.ShowAds {
			result.Placements[placement] = []domain.Ad{}
			continue
		}
		selected, err := s.pick(ctx, placement, PlacementLimit, strategy)
		if err != nil {
			return nil, err
		}
		result.Placements[placement] = selected
	}
	return result, nil
}

// ParsePlacements parses a comma separated placement list, dropping unknown
// entries. An empty or fully unknown list yields every placement.
func ParsePlacements(raw string) []domain.AdType {
	var placements []domain.AdType
	seen := make(map[domain.AdType]bool)
	for _, part := range strings.Split(raw, ",") {
		t := domain.AdType(strings.TrimSpace(part))
		if t.IsValid() && !seen[t] {
			seen[t] = true
			placements = append(placements, t)
		}
	}
	if len(placements) == 0 {
		return domain.AdTypes()
	}
	return placements
}

func (s *Service) pick(ctx context.Context, adType domain.AdType, limit int, strategyName string) ([]domain.Ad, error) {
	candidates, err := s.repo.ListLive(ctx, adType, s.now())
	if err != nil {
		return nil, err
	}

	key := string(adType)
	if key == "" {
		key = allTypesKey
	}

	strategy, name := s.selector.Get(strategyName)
	selected, err := strategy.Select(ctx, key, candidates, limit)
	if err != nil {
		return nil, err
	}

	recordServed(key, name, len(selected))
	return selected, nil
}

// Get retrieves an ad by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Ad, error) {
	return s.repo.GetByID(ctx, id)
}

// ImpressionInput identifies who saw an ad.
type ImpressionInput struct {
	AdID      string
	UserID    string
	SessionID string
	IPAddress string
}

// RecordImpression increments the impression counter and logs the view.
func (s *Service) RecordImpression(ctx context.Context, input ImpressionInput) error {
	adType, err := s.repo.RecordImpression(ctx, domain.AdView{
		AdID:      input.AdID,
		UserID:    optional(input.UserID),
		SessionID: optional(input.SessionID),
		IPAddress: optional(input.IPAddress),
		ViewedAt:  s.now(),
	})
	if err != nil {
		return err
	}
	adImpressions.WithLabelValues(string(adType)).Inc()
	return nil
}

// RecordClick increments the click counter.
func (s *Service) RecordClick(ctx context.Context, id string) error {
	adType, err := s.repo.RecordClick(ctx, id)
	if err != nil {
		return err
	}
	adClicks.WithLabelValues(string(adType)).Inc()
	return nil
}

// AdminAd is an ad with derived admin fields.
type AdminAd struct {
	domain.Ad
	CTR    float64         `json:"ctr"`
	Status domain.AdStatus `json:"status"`
}

// Performance summarizes recent activity of an ad.
type Performance struct {
	DailyImpressions int `json:"daily_impressions"`
	DailyClicks      int `json:"daily_clicks"`
	DaysActive       int `json:"days_active"`
}

// AdminAdDetail is an admin ad with recent performance.
type AdminAdDetail struct {
	AdminAd
	RecentPerformance Performance `json:"recent_performance"`
}

func (s *Service) toAdmin(ad *domain.Ad) AdminAd {
	return AdminAd{Ad: *ad, CTR: ad.CTR(), Status: ad.StatusAt(s.now())}
}

// AdminList returns ads matching filter with the total count.
func (s *Service) AdminList(ctx context.Context, filter ListFilter) ([]AdminAd, int, error) {
	if !filter.Status.IsValid() {
		return nil, 0, ErrInvalidStatusFilter
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, 0, ErrInvalidAdType
	}
	filter.At = s.now()

	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	result := make([]AdminAd, 0, len(list))
	for i := range list {
		result = append(result, s.toAdmin(&list[i]))
	}
	return result, total, nil
}

// AdminGet returns an ad with CTR, status and recent performance.
func (s *Service) AdminGet(ctx context.Context, id string) (*AdminAdDetail, error) {
	ad, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	began := ad.CreatedAt
	if ad.StartDate != nil && ad.StartDate.After(began) {
		began = *ad.StartDate
	}
	totalDays := daysBetween(began, now)

	windowStart := now.Add(-performanceWindow)
	if began.After(windowStart) {
		windowStart = began
	}
	windowDays := daysBetween(windowStart, now)

	views, err := s.repo.CountViewsSince(ctx, id, windowStart)
	if err != nil {
		return nil, err
	}

	return &AdminAdDetail{
		AdminAd: s.toAdmin(ad),
		RecentPerformance: Performance{
			DailyImpressions: views / windowDays,
			DailyClicks:      ad.ClicksCount / totalDays,
			DaysActive:       windowDays,
		},
	}, nil
}

// daysBetween returns the number of started days between from and to, at least 1.
func daysBetween(from, to time.Time) int {
	days := int(math.Ceil(to.Sub(from).Hours() / 24))
	return max(days, 1)
}

// AdInput contains ad data for create.
type AdInput struct {
	Title     string
	Content   string
	ImageURL  string
	TargetURL string
	AdType    domain.AdType
	IsActive  *bool
	StartDate string
	EndDate   string
}

// AdUpdate contains optional ad fields. Empty date strings clear the date.
type AdUpdate struct {
	Title     *string
	Content   *string
	ImageURL  *string
	TargetURL *string
	AdType    *domain.AdType
	IsActive  *bool
	StartDate *string
	EndDate   *string
}

// Create creates a new ad. Ads are active unless IsActive is false.
func (s *Service) Create(ctx context.Context, input AdInput) (*AdminAd, error) {
	ad := &domain.Ad{
		Title:     sanitize.Text(input.Title),
		Content:   sanitize.HTML(input.Content),
		ImageURL:  strings.TrimSpace(input.ImageURL),
		TargetURL: strings.TrimSpace(input.TargetURL),
		AdType:    input.AdType,
		IsActive:  true,
	}
	if input.IsActive != nil {
		ad.IsActive = *input.IsActive
	}

	var err error
	if ad.StartDate, err = parseDate(input.StartDate); err != nil {
		return nil, err
	}
	if ad.EndDate, err = parseDate(input.EndDate); err != nil {
		return nil, err
	}
	if err := validate(ad); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, ad); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("ad created", "ad_id", ad.ID, "ad_type", ad.AdType)
	result := s.toAdmin(ad)
	return &result, nil
}

// Update applies the set fields of input to an ad.
func (s *Service) Update(ctx context.Context, id string, input AdUpdate) (*AdminAd, error) {
	ad, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		ad.Title = sanitize.Text(*input.Title)
	}
	if input.Content != nil {
		ad.Content = sanitize.HTML(*input.Content)
	}
	if input.ImageURL != nil {
		ad.ImageURL = strings.TrimSpace(*input.ImageURL)
	}
	if input.TargetURL != nil {
		ad.TargetURL = strings.TrimSpace(*input.TargetURL)
	}
	if input.AdType != nil {
		ad.AdType = *input.AdType
	}
	if input.IsActive != nil {
		ad.IsActive = *input.IsActive
	}
	if input.StartDate != nil {
		if ad.StartDate, err = parseDate(*input.StartDate); err != nil {
			return nil, err
		}
	}
	if input.EndDate != nil {
		if ad.EndDate, err = parseDate(*input.EndDate); err != nil {
			return nil, err
		}
	}
	if err := validate(ad); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, ad); err != nil {
		return nil, err
	}
	result := s.toAdmin(ad)
	return &result, nil
}

// Toggle flips the active flag of an ad.
func (s *Service) Toggle(ctx context.Context, id string) (*AdminAd, error) {
	ad, err := s.repo.ToggleActive(ctx, id)
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("ad toggled", "ad_id", id, "is_active", ad.IsActive)
	result := s.toAdmin(ad)
	return &result, nil
}

// Delete removes an ad and its view log.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// TypeStatistics aggregates counters for one ad type.
type TypeStatistics struct {
	Count       int     `json:"count"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	CTR         float64 `json:"ctr"`
}

// TopAd is an entry of the best performing ads list.
type TopAd struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	CTR         float64 `json:"ctr"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
}

// Statistics summarizes every ad.
type Statistics struct {
	TotalAds         int                              `json:"total_ads"`
	ActiveAds        int                              `json:"active_ads"`
	InactiveAds      int                              `json:"inactive_ads"`
	ExpiredAds       int                              `json:"expired_ads"`
	TotalImpressions int                              `json:"total_impressions"`
	TotalClicks      int                              `json:"total_clicks"`
	OverallCTR       float64                          `json:"overall_ctr"`
	ByType           map[domain.AdType]TypeStatistics `json:"by_type"`
	TopPerforming    []TopAd                          `json:"top_performing"`
}

// Statistics returns totals, per-type counters and the top ads by CTR.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	totals, err := s.repo.Totals(ctx, s.now())
	if err != nil {
		return nil, err
	}
	top, err := s.repo.TopByCTR(ctx, topPerformingSize)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		TotalAds:         totals.Total,
		ActiveAds:        totals.Active,
		InactiveAds:      totals.Inactive,
		ExpiredAds:       totals.Expired,
		TotalImpressions: totals.Impressions,
		TotalClicks:      totals.Clicks,
		OverallCTR:       domain.CTR(totals.Clicks, totals.Impressions),
		ByType:           make(map[domain.AdType]TypeStatistics, len(totals.ByType)),
		TopPerforming:    make([]TopAd, 0, len(top)),
	}
	for t, tt := range totals.ByType {
		stats.ByType[t] = TypeStatistics{
			Count:       tt.Count,
			Impressions: tt.Impressions,
			Clicks:      tt.Clicks,
			CTR:         domain.CTR(tt.Clicks, tt.Impressions),
		}
	}
	for i := range top {
		stats.TopPerforming = append(stats.TopPerforming, TopAd{
			ID:          top[i].ID,
			Title:       top[i].Title,
			CTR:         top[i].CTR(),
			Impressions: top[i].ImpressionsCount,
			Clicks:      top[i].ClicksCount,
		})
	}
	sort.SliceStable(stats.TopPerforming, func(i, j int) bool {
		return stats.TopPerforming[i].CTR > stats.TopPerforming[j].CTR
	})
	return stats, nil
}

func validate(ad *domain.Ad) error {
	if ad.Title == "" {
		return ErrEmptyTitle
	}
	if !ad.AdType.IsValid() {
		return ErrInvalidAdType
	}
	if ad.StartDate != nil && ad.EndDate != nil && !ad.EndDate.After(*ad.StartDate) {
		return ErrInvalidDateRange
	}
	return nil
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, ErrInvalidDate
	}
	t = t.UTC()
	return &t, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
