package domain

import "time"

// Category groups articles under a rubric addressed by slug.
type Category struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  string    `json:"description"`
	IsSearchable bool      `json:"is_searchable"`
	CreatedAt    time.Time `json:"created_at"`
}

// Author writes articles and can be followed by users.
type Author struct {
	ID            string    `json:"id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Bio           string    `json:"bio"`
	TotalArticles int       `json:"total_articles"`
	CreatedAt     time.Time `json:"created_at"`
}

// FullName returns "First Last".
func (a *Author) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// AuthorStatistics aggregates an author's output.
type AuthorStatistics struct {
	TotalArticles     int `json:"total_articles"`
	PublishedArticles int `json:"published_articles"`
	DraftArticles     int `json:"draft_articles"`
	ArchivedArticles  int `json:"archived_articles"`
	TotalViews        int `json:"total_views"`
	ExclusiveArticles int `json:"exclusive_articles"`
	BreakingArticles  int `json:"breaking_articles"`
}
