package catalog

import "errors"

// Catalog errors.
var (
	ErrCategoryNotFound  = errors.New("category not found")
	ErrSlugExists        = errors.New("category with this slug already exists")
	ErrInvalidSlug       = errors.New("slug must contain only lowercase latin letters, digits and hyphens")
	ErrEmptyCategoryName = errors.New("category name must not be empty")

	ErrAuthorNotFound    = errors.New("author not found")
	ErrAuthorHasArticles = errors.New("author has articles and cannot be deleted")
	ErrInvalidAuthorName = errors.New("author first and last name must not be empty")
)
