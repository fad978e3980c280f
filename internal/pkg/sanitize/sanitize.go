// Package sanitize strips unsafe markup from user- and editor-supplied HTML.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// richPolicy keeps editorial formatting (links, lists, images, tables).
	richPolicy = bluemonday.UGCPolicy()
	// plainPolicy removes every tag.
	plainPolicy = bluemonday.StrictPolicy()
)

// HTML sanitizes article bodies, keeping safe formatting.
func HTML(s string) string {
	return strings.TrimSpace(richPolicy.Sanitize(s))
}

// Text strips all markup, used for comments and titles.
func Text(s string) string {
	return strings.TrimSpace(plainPolicy.Sanitize(s))
}
