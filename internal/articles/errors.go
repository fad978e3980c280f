package articles

import "errors"

// Article errors.
var (
	ErrArticleNotFound  = errors.New("article not found")
	ErrExclusiveContent = errors.New("exclusive content requires a subscription")
	ErrInvalidStatus    = errors.New("invalid article status")
	ErrAuthorNotFound   = errors.New("author not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrEmptyContent     = errors.New("article title and content must not be empty")
	ErrQueryRequired    = errors.New("search query is required")
	ErrInvalidDate      = errors.New("dates must use the YYYY-MM-DD format")
	ErrReaderRequired   = errors.New("reader account required")
)
