package httputil

import (
	"net/http"
	"strconv"
)

// Page is a parsed page/per_page pair.
type Page struct {
	Page    int
	PerPage int
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// ParsePage reads page and per_page query parameters. Invalid or missing
// values fall back to page 1 and defaultPerPage; per_page is capped at maxPerPage.
func ParsePage(r *http.Request, defaultPerPage, maxPerPage int) Page {
	p := Page{Page: 1, PerPage: defaultPerPage}

	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && v > 0 {
		p.PerPage = v
	}
	if maxPerPage > 0 && p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	return p
}

// TotalPages returns the number of pages needed for total items.
func TotalPages(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
