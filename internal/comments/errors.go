package comments

import "errors"

// Comment errors.
var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrArticleNotFound = errors.New("article not found")
	ErrEmptyText       = errors.New("comment text must not be empty")
	ErrNotOwner        = errors.New("comment belongs to another user")
	ErrInvalidStatus   = errors.New("invalid comment status")
)
