package testutil

import (
	"strings"

	"github.com/google/uuid"
)

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// RandomEmail returns a unique reader email.
func RandomEmail() string {
	return "reader-" + randomSuffix() + "@example.com"
}

// RandomUsername returns a unique username.
func RandomUsername() string {
	return "reader_" + randomSuffix()
}

// RandomSlug returns prefix with a unique suffix.
func RandomSlug(prefix string) string {
	return prefix + "-" + randomSuffix()
}
