package domain

import "time"

// ArticleStatus represents the publishing state of an article.
type ArticleStatus string

// Article statuses.
const (
	ArticleStatusDraft     ArticleStatus = "draft"
	ArticleStatusPublished ArticleStatus = "published"
	ArticleStatusArchived  ArticleStatus = "archived"
)

// IsValid checks if the article status is valid.
func (s ArticleStatus) IsValid() bool {
	switch s {
	case ArticleStatusDraft, ArticleStatusPublished, ArticleStatusArchived:
		return true
	}
	return false
}

// ArticleAuthor is the author summary embedded in article responses.
type ArticleAuthor struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ArticleCategory is the category summary embedded in article responses.
type ArticleCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Article is a news item.
type Article struct {
	ID          string           `json:"id"`
	AuthorID    string           `json:"author_id"`
	CategoryID  *string          `json:"category_id"`
	Title       string           `json:"title"`
	Content     string           `json:"content"`
	Status      ArticleStatus    `json:"status"`
	IsExclusive bool             `json:"is_exclusive"`
	IsBreaking  bool             `json:"is_breaking"`
	ViewsCount  int              `json:"views_count"`
	Keywords    []string         `json:"keywords"`
	Author      *ArticleAuthor   `json:"author,omitempty"`
	Category    *ArticleCategory `json:"category,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	PublishedAt *time.Time       `json:"published_at,omitempty"`
}

// IsPublished returns true if the article is visible to readers.
func (a *Article) IsPublished() bool {
	return a.Status == ArticleStatusPublished
}

// InteractionType is the kind of reader interaction with an article.
type InteractionType string

// Interaction types.
const (
	InteractionSaved InteractionType = "saved"
	InteractionLiked InteractionType = "liked"
)

// ArticleView is an impression log entry.
type ArticleView struct {
	ArticleID string
	UserID    *string
	SessionID *string
	IPAddress *string
	ViewedAt  time.Time
}
