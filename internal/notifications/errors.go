package notifications

import "errors"

// Inbox errors.
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNoInbox              = errors.New("admins have no notifications")
)

// Push errors.
var (
	ErrPushDisabled         = errors.New("push notifications are not configured")
	ErrSubscriptionNotFound = errors.New("push subscription not found")
	// ErrEndpointGone means the push service no longer accepts the endpoint.
	ErrEndpointGone = errors.New("push endpoint gone")
)
