package subscriptions

import "errors"

// Subscription errors.
var (
	ErrPlanNotFound         = errors.New("subscription plan not found")
	ErrPlanNameExists       = errors.New("subscription plan with this name already exists")
	ErrPlanInUse            = errors.New("subscription plan has subscribers")
	ErrUnknownPermission    = errors.New("unknown permission")
	ErrNoActiveSubscription = errors.New("no active subscription")
)
