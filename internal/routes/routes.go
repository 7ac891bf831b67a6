package routes

import (
	"net/http"

	"github.com/Itqan-community/itqan-cms/internal/auth"
	"github.com/Itqan-community/itqan-cms/internal/handlers"
	"github.com/Itqan-community/itqan-cms/internal/middleware"
	"github.com/Itqan-community/itqan-cms/internal/session"
	pkghttp "github.com/Itqan-community/itqan-cms/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Dependencies bundles what RegisterRoutes wires together.
type Dependencies struct {
	Auth    *handlers.AuthHandler
	Session *handlers.SessionHandler
	Profile *handlers.ProfileHandler
	Catalog *handlers.CatalogHandler
	Pages   *handlers.PageHandler
	Health  http.HandlerFunc

	SessionConfig auth.SessionConfig
	CSRF          *middleware.CSRF
	IPConfig      *pkghttp.IPConfig
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, d Dependencies) {
	authLimit := middleware.DefaultAuthRateLimit(d.IPConfig)
	apiLimit := middleware.DefaultAPIRateLimit(d.IPConfig)

	router.Get("/health", d.Health)

	// Everything else runs inside a session and passes the CSRF check
	router.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(d.SessionConfig))
		r.Use(d.CSRF.Protect)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(authLimit))
			r.Get("/auth/login", d.Auth.Login)
			r.Get("/auth/signup", d.Auth.Signup)
			r.Get(session.PathCallback, d.Auth.Callback)
		})
		r.Get("/auth/logout", d.Auth.Logout)
		r.Post("/auth/logout", d.Auth.Logout)

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(apiLimit))

			r.Get("/session", d.Session.Get)
			r.Put("/session/user", d.Session.SetUser)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitBySession(authLimit))
				r.Post("/auth/login", d.Auth.PasswordLogin)
				r.Post("/auth/signup", d.Auth.SignupSubmit)
				r.Post("/auth/complete-profile", d.Profile.Complete)
			})

			r.Get("/assets", d.Catalog.List)
			r.Get("/assets/{id}", d.Catalog.Get)
			r.Get("/assets/{id}/download", d.Catalog.Download)
		})

		for _, page := range []string{
			session.PathRoot,
			session.PathDashboard,
			session.PathLogin,
			session.PathSignup,
			session.PathCompleteProfile,
		} {
			r.Get(page, d.Pages.Page)
		}
	})

	router.NotFound(d.Pages.Static)
}
