package ads

import (
	"context"
	"net/http"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/ctxlog"
	"github.com/bissquit/newsroom/internal/pkg/httputil"
)

type injectedKey struct{}

// Injected is the set of ads attached to a request for one placement.
type Injected struct {
	Placement domain.AdType `json:"placement"`
	Ads       []domain.Ad   `json:"ads"`
	ShowAds   bool          `json:"show_ads"`
}

// FromContext returns the ads attached by an Injector, or nil.
func FromContext(ctx context.Context) *Injected {
	injected, _ := ctx.Value(injectedKey{}).(*Injected)
	return injected
}

// WithInjected stores injected ads in the context.
func WithInjected(ctx context.Context, injected *Injected) context.Context {
	return context.WithValue(ctx, injectedKey{}, injected)
}

// Injector builds middleware that attaches ads to requests. It must run
// after the permissions middleware.
type Injector struct {
	service  *Service
	limit    int
	strategy string
}

// NewInjector creates an injector selecting up to limit ads with the named strategy.
func NewInjector(service *Service, limit int, strategy string) *Injector {
	if limit <= 0 {
		limit = PlacementLimit
	}
	return &Injector{service: service, limit: limit, strategy: strategy}
}

// For returns middleware attaching ads of placement. Selection failures are
// logged and leave the request with an empty ad list.
func (i *Injector) For(placement domain.AdType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			perms := httputil.GetPermissions(r.Context())
			injected := &Injected{Placement: placement, Ads: []domain.Ad{}, ShowAds: ShowAds(perms)}

			if injected.ShowAds {
				selection, err := i.service.Select(r.Context(), perms, placement, i.limit, i.strategy)
				if err != nil {
					ctxlog.FromContext(r.Context()).Warn("inject ads", "placement", placement, "error", err)
				} else {
					injected.Ads = selection.Ads
				}
			}

			next.ServeHTTP(w, r.WithContext(WithInjected(r.Context(), injected)))
		})
	}
}
