package articles

import (
	"context"
	"time"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for article data operations.
type Repository interface {
	Create(ctx context.Context, article *domain.Article) error
	GetByID(ctx context.Context, id string) (*domain.Article, error)
	List(ctx context.Context, filter Filter) ([]domain.Article, int, error)
	Search(ctx context.Context, filter SearchFilter) ([]domain.Article, int, error)
	Recommended(ctx context.Context, filter RecommendFilter) ([]domain.Article, error)
	Update(ctx context.Context, article *domain.Article) error
	Delete(ctx context.Context, id string) error
	AuthorExists(ctx context.Context, id string) (bool, error)

	// Interactions
	SetInteraction(ctx context.Context, userID, articleID string, t domain.InteractionType, active bool) error
	ToggleInteraction(ctx context.Context, userID, articleID string, t domain.InteractionType) (bool, error)
	HasInteraction(ctx context.Context, userID, articleID string, t domain.InteractionType) (bool, error)
	CountInteractions(ctx context.Context, articleID string, t domain.InteractionType) (int, error)
	ListInteracted(ctx context.Context, filter InteractionFilter) ([]domain.Article, int, error)
	ListInteractedIDs(ctx context.Context, userID string, t domain.InteractionType) ([]string, error)

	// RecordView increments views_count and appends an article_views row.
	RecordView(ctx context.Context, view *domain.ArticleView) error

	// Transaction methods
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, article *domain.Article) error
	GetByIDForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Article, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, article *domain.Article) error
}

// Filter represents filter criteria for listing articles.
type Filter struct {
	Status       *domain.ArticleStatus
	CategoryID   string
	CategorySlug string
	AuthorID     string
	// Exclusive narrows to exclusive (true) or regular (false) articles.
	Exclusive *bool
	// IncludeExclusive is false for viewers without exclusive access.
	IncludeExclusive bool
	Limit            int
	Offset           int
}

// SearchFilter represents full-text search criteria over published articles.
type SearchFilter struct {
	Query            string
	DateFrom         *time.Time
	DateTo           *time.Time
	IncludeExclusive bool
	Limit            int
	Offset           int
}

// RecommendFilter selects published articles in favorite categories or by
// followed authors.
type RecommendFilter struct {
	UserID           string
	CategorySlugs    []string
	ExcludeID        string
	IncludeExclusive bool
	Limit            int
}

// InteractionFilter lists articles a user saved or liked.
type InteractionFilter struct {
	UserID           string
	Type             domain.InteractionType
	IncludeExclusive bool
	Limit            int
	Offset           int
}
