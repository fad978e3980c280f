package domain

import "time"

// Permission is a capability granted by a subscription plan.
type Permission string

// Plan permissions.
const (
	PermissionNoAds            Permission = "no_ads"
	PermissionExclusiveContent Permission = "exclusive_content"
	PermissionSaveArticle      Permission = "save_article"
	PermissionComment          Permission = "comment"
)

// IsValid checks if the permission is known.
func (p Permission) IsValid() bool {
	switch p {
	case PermissionNoAds, PermissionExclusiveContent, PermissionSaveArticle, PermissionComment:
		return true
	}
	return false
}

// AllPermissions lists every permission a plan can grant.
func AllPermissions() []Permission {
	return []Permission{PermissionNoAds, PermissionExclusiveContent, PermissionSaveArticle, PermissionComment}
}

// Permissions maps capability names to whether they are granted.
type Permissions map[Permission]bool

// Has reports whether p is granted.
func (ps Permissions) Has(p Permission) bool {
	return ps[p]
}

// FullPermissions grants everything. Used for admin principals.
func FullPermissions() Permissions {
	ps := make(Permissions, 4)
	for _, p := range AllPermissions() {
		ps[p] = true
	}
	return ps
}

// SubscriptionPlan is a purchasable bundle of permissions.
type SubscriptionPlan struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	PricePerMonth float64     `json:"price_per_month"`
	Permissions   Permissions `json:"permissions"`
	CreatedAt     time.Time   `json:"created_at"`
}

// UserSubscription links a user to a plan. At most one row per user is active.
type UserSubscription struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	PlanID    string            `json:"plan_id"`
	Plan      *SubscriptionPlan `json:"plan,omitempty"`
	StartDate time.Time         `json:"start_date"`
	EndDate   *time.Time        `json:"end_date,omitempty"`
	IsActive  bool              `json:"is_active"`
}
