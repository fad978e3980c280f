package domain

import "time"

// CommentStatus is the moderation state of a comment.
type CommentStatus string

// Comment statuses.
const (
	CommentStatusActive CommentStatus = "active"
	CommentStatusHidden CommentStatus = "hidden"
)

// IsValid checks if the comment status is valid.
func (s CommentStatus) IsValid() bool {
	return s == CommentStatusActive || s == CommentStatusHidden
}

// Comment is a reader's remark on an article.
type Comment struct {
	ID        string        `json:"id"`
	ArticleID string        `json:"article_id"`
	UserID    string        `json:"user_id"`
	Username  string        `json:"username"`
	Text      string        `json:"text"`
	Status    CommentStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
