package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cosconsole/internal/handler"
	"github.com/cosconsole/internal/middleware"
)

func (app *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Metrics)

	r.Get("/api/health", handler.Health(app.settings))
	r.Handle("/metrics", promhttp.Handler())

	// Password endpoints share one limiter.
	perMinute := app.config.LoginRatePerMinute
	passwordLimit := middleware.RateLimit(middleware.PerMinute(perMinute), perMinute)

	setupHandler := handler.NewSetupHandler(app.console)
	r.Get("/api/setup/check", setupHandler.Check)
	r.With(passwordLimit).Post("/api/setup/initialize", setupHandler.Initialize)

	authHandler := handler.NewAuthHandler(app.console, app.config.SecureCookies)
	r.With(passwordLimit).Post("/api/login", authHandler.Login)
	r.Post("/api/logout", authHandler.Logout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(app.console))

		settingsHandler := handler.NewSettingsHandler(app.console)
		r.Get("/api/settings", settingsHandler.Get)
		r.With(passwordLimit).Post("/api/settings", settingsHandler.Update)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireInitialized(app.settings))

			imagesHandler := handler.NewImagesHandler(app.library, app.config.MaxUploadSize())
			r.Get("/api/cos/list", imagesHandler.List)
			r.Post("/api/cos/upload", imagesHandler.Upload)
			r.Delete("/api/cos/delete", imagesHandler.Delete)
			r.Put("/api/cos/rename", imagesHandler.Rename)
		})
	})
	return r
}
