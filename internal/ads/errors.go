package ads

import "errors"

// Ad errors.
var (
	ErrAdNotFound          = errors.New("ad not found")
	ErrInvalidAdType       = errors.New("invalid ad type, allowed: banner, sidebar, popup, inline, video")
	ErrEmptyTitle          = errors.New("ad title must not be empty")
	ErrInvalidDate         = errors.New("dates must be RFC3339 timestamps")
	ErrInvalidDateRange    = errors.New("end_date must be after start_date")
	ErrInvalidStatusFilter = errors.New("status filter must be active, inactive or expired")
)
