package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/newsroom/internal/pkg/ctxlog"
)

var (
	errInvalidAuthHeader = errors.New("invalid authorization header format")
	errMissingToken      = errors.New("missing access token")
	errInvalidToken      = errors.New("invalid or expired token")
)

// ErrorMapping binds a sentinel error to a status code. Message overrides
// err.Error() in the response body when set.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string
}

// HandleError writes the response of the first mapping matching err.
// Unmapped errors are logged and answered with 500.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	if m, ok := matchError(err, mappings); ok {
		msg := m.Message
		if msg == "" {
			msg = err.Error()
		}
		ctxlog.FromContext(ctx).Debug("request rejected", "status", m.Status, "error", err)
		Error(w, m.Status, msg)
		return
	}
	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}

// StatusOf returns the status HandleError would answer err with.
func StatusOf(err error, mappings []ErrorMapping) int {
	if m, ok := matchError(err, mappings); ok {
		return m.Status
	}
	return http.StatusInternalServerError
}

func matchError(err error, mappings []ErrorMapping) (ErrorMapping, bool) {
	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			return m, true
		}
	}
	return ErrorMapping{}, false
}
