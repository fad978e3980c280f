package domain

import "time"

// AdType is the placement slot an ad is designed for.
type AdType string

// Ad types.
const (
	AdTypeBanner  AdType = "banner"
	AdTypeSidebar AdType = "sidebar"
	AdTypePopup   AdType = "popup"
	AdTypeInline  AdType = "inline"
	AdTypeVideo   AdType = "video"
)

// AdTypes lists every placement in display order.
func AdTypes() []AdType {
	return []AdType{AdTypeBanner, AdTypeSidebar, AdTypePopup, AdTypeInline, AdTypeVideo}
}

// IsValid checks if the ad type is valid.
func (t AdType) IsValid() bool {
	switch t {
	case AdTypeBanner, AdTypeSidebar, AdTypePopup, AdTypeInline, AdTypeVideo:
		return true
	}
	return false
}

// AdStatus is the derived display state of an ad.
type AdStatus string

// Ad statuses.
const (
	AdStatusActive    AdStatus = "active"
	AdStatusInactive  AdStatus = "inactive"
	AdStatusScheduled AdStatus = "scheduled"
	AdStatusExpired   AdStatus = "expired"
)

// Ad is an advertisement.
type Ad struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Content          string     `json:"content"`
	ImageURL         string     `json:"image_url"`
	TargetURL        string     `json:"target_url"`
	AdType           AdType     `json:"ad_type"`
	IsActive         bool       `json:"is_active"`
	StartDate        *time.Time `json:"start_date"`
	EndDate          *time.Time `json:"end_date"`
	ImpressionsCount int        `json:"impressions_count"`
	ClicksCount      int        `json:"clicks_count"`
	CreatedAt        time.Time  `json:"created_at"`
}

// IsLiveAt reports whether the ad is active and inside its schedule at t.
func (a *Ad) IsLiveAt(t time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.StartDate != nil && a.StartDate.After(t) {
		return false
	}
	if a.EndDate != nil && a.EndDate.Before(t) {
		return false
	}
	return true
}

// StatusAt derives the display status of the ad at t.
func (a *Ad) StatusAt(t time.Time) AdStatus {
	switch {
	case a.EndDate != nil && a.EndDate.Before(t):
		return AdStatusExpired
	case !a.IsActive:
		return AdStatusInactive
	case a.StartDate != nil && a.StartDate.After(t):
		return AdStatusScheduled
	default:
		return AdStatusActive
	}
}

// CTR returns the click-through rate in percent, rounded to two decimals.
func (a *Ad) CTR() float64 {
	return CTR(a.ClicksCount, a.ImpressionsCount)
}

// CTR computes clicks/impressions in percent, rounded to two decimals.
func CTR(clicks, impressions int) float64 {
	if impressions <= 0 {
		return 0
	}
	v := float64(clicks) / float64(impressions) * 100
	return float64(int64(v*100+0.5)) / 100
}

// AdView is an ad impression log entry.
type AdView struct {
	AdID      string
	UserID    *string
	SessionID *string
	IPAddress *string
	ViewedAt  time.Time
}
