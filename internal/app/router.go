package app

import (
	"net/http"
	"time"

	"github.com/bissquit/newsroom/internal/ads"
	adspostgres "github.com/bissquit/newsroom/internal/ads/postgres"
	"github.com/bissquit/newsroom/internal/articles"
	articlespostgres "github.com/bissquit/newsroom/internal/articles/postgres"
	"github.com/bissquit/newsroom/internal/catalog"
	catalogpostgres "github.com/bissquit/newsroom/internal/catalog/postgres"
	"github.com/bissquit/newsroom/internal/comments"
	commentspostgres "github.com/bissquit/newsroom/internal/comments/postgres"
	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/identity"
	"github.com/bissquit/newsroom/internal/identity/jwt"
	identitypostgres "github.com/bissquit/newsroom/internal/identity/postgres"
	"github.com/bissquit/newsroom/internal/pkg/httputil"
	"github.com/bissquit/newsroom/internal/subscriptions"
	subscriptionspostgres "github.com/bissquit/newsroom/internal/subscriptions/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// routeSet is implemented by every module handler.
type routeSet interface {
	RegisterRoutes(r chi.Router)
	RegisterProtectedRoutes(r chi.Router)
	RegisterAdminRoutes(r chi.Router)
}

func (a *App) setupRouter() (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout(a.config.Server.RequestTimeout)))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)
	r.Get("/api/openapi.yaml", openAPIHandler)
	r.Get("/docs", docsHandler)

	// Subscriptions first: identity and the permission middleware depend on it.
	subscriptionsService := subscriptions.NewService(
		subscriptionspostgres.NewRepository(a.db),
		a.config.Subscriptions.DefaultPlanName,
	)
	subscriptionsHandler := subscriptions.NewHandler(subscriptionsService)

	jwtAuth := jwt.NewAuthenticator(jwt.Config{
		SecretKey:                 a.config.JWT.SecretKey,
		AccessTokenDuration:       a.config.JWT.AccessTokenDuration,
		RefreshTokenDuration:      a.config.JWT.RefreshTokenDuration,
		AdminAccessTokenDuration:  a.config.JWT.AdminAccessTokenDuration,
		AdminRefreshTokenDuration: a.config.JWT.AdminRefreshTokenDuration,
	})
	identityService := identity.NewService(identitypostgres.NewRepository(a.db), jwtAuth, subscriptionsService)
	cookieSettings := identity.CookieSettings{
		Secure:                    a.config.Cookie.Secure,
		Domain:                    a.config.Cookie.Domain,
		AccessTokenDuration:       a.config.JWT.AccessTokenDuration,
		RefreshTokenDuration:      a.config.JWT.RefreshTokenDuration,
		AdminAccessTokenDuration:  a.config.JWT.AdminAccessTokenDuration,
		AdminRefreshTokenDuration: a.config.JWT.AdminRefreshTokenDuration,
	}
	identityHandler := identity.NewHandler(identityService, cookieSettings)
	adminHandler := identity.NewAdminHandler(identityService, subscriptionsService, cookieSettings)

	catalogHandler := catalog.NewHandler(catalog.NewService(catalogpostgres.NewRepository(a.db)))

	var cursors ads.CursorStore = ads.NewMemoryCursorStore()
	if a.redis != nil {
		cursors = ads.NewRedisCursorStore(a.redis, a.config.Ads.CursorKeyPrefix)
	}
	adsService := ads.NewService(adspostgres.NewRepository(a.db), ads.NewSelector(cursors))
	adsHandler := ads.NewHandler(adsService)
	injector := ads.NewInjector(adsService, a.config.Ads.InjectLimit, a.config.Ads.InjectStrategy)

	notificationsModule, err := newNotificationsModule(a.config, a.db)
	if err != nil {
		return nil, err
	}
	a.notifications = notificationsModule

	articlesService := articles.NewService(
		articlespostgres.NewRepository(a.db),
		identityService,
		notificationsModule.dispatcher,
	)
	articlesHandler := articles.NewHandler(articlesService, injector.For)

	commentsHandler := comments.NewHandler(comments.NewService(commentspostgres.NewRepository(a.db)))

	modules := []routeSet{
		catalogHandler,
		articlesHandler,
		commentsHandler,
		subscriptionsHandler,
		notificationsModule.handler,
	}

	var limit func(http.Handler) http.Handler
	if a.config.RateLimit.Enabled {
		limit = httputil.NewRateLimiter(a.config.RateLimit.RPS, a.config.RateLimit.Burst).Middleware
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes see the principal when a valid token is sent.
		r.Group(func(r chi.Router) {
			r.Use(httputil.OptionalAuthMiddleware(identityService))
			r.Use(httputil.PermissionsMiddleware(subscriptionsService))

			identityHandler.RegisterRoutes(r, limit)
			adminHandler.RegisterRoutes(r, limit)
			adsHandler.RegisterRoutes(r)
			for _, m := range modules {
				m.RegisterRoutes(r)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(identityService))
			r.Use(httputil.CSRFMiddleware)
			r.Use(httputil.PermissionsMiddleware(subscriptionsService))

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequirePrincipal(domain.PrincipalUser))
				identityHandler.RegisterProtectedRoutes(r)
			})
			for _, m := range modules {
				m.RegisterProtectedRoutes(r)
			}

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequirePrincipal(domain.PrincipalAdmin))
				adminHandler.RegisterAdminRoutes(r)
				adsHandler.RegisterAdminRoutes(r)
				for _, m := range modules {
					m.RegisterAdminRoutes(r)
				}
			})
		})
	})

	a.logger.Info("router configured",
		"ads_cursor_store", a.config.Ads.CursorStore,
		"push_enabled", notificationsModule.deliverer.Enabled(),
		"digest_enabled", a.config.Digest.Enabled,
	)

	return r, nil
}

func openAPIHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	http.ServeFile(w, r, "api/openapi/openapi.yaml")
}

func docsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Newsroom API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`))
}

// requestTimeout falls back to a minute when unset.
func requestTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 60 * time.Second
	}
	return d
}
