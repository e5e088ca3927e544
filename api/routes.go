package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// setupPageRoutes sets up the server rendered site
func setupPageRoutes(r chi.Router, handlers *routeHandlers, authMiddleware authMiddleware) {
	r.Group(func(r chi.Router) {
		r.Use(ColoredHTTPLoggingMiddleware)
		r.Use(authMiddleware.authenticate)

		// Public pages
		r.Get("/", handlers.entryHandler.home())
		r.Get("/entry/{entryID}/", handlers.entryHandler.detail())
		r.Get("/calendar/", handlers.entryHandler.calendar())
		r.Get("/search/", handlers.tagHandler.searchTags())
		r.Get("/search_by_tags/", handlers.tagHandler.searchTags())
		r.Get("/tags/", handlers.tagHandler.listTags())
		r.Get("/tags/{tagName}/", handlers.tagHandler.entriesByTag())
		r.Get("/add_tag/", handlers.tagHandler.addTag())
		r.Post("/add_tag/", handlers.tagHandler.addTag())

		// Auth Handler endpoints
		r.Get("/login/", handlers.authHandler.login())
		r.Post("/login/", handlers.authHandler.login())
		r.Get("/register/", handlers.authHandler.register())
		r.Post("/register/", handlers.authHandler.register())
		r.Get("/logout/", handlers.authHandler.confirmLogout())
		r.Post("/logout/", handlers.authHandler.logout())

		// Pages that need a logged in user
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.requireUser)

			r.Get("/new/", handlers.entryHandler.newEntry())
			r.Post("/new/", handlers.entryHandler.newEntry())
			r.Get("/entry/{entryID}/edit/", handlers.entryHandler.editEntry())
			r.Post("/entry/{entryID}/edit/", handlers.entryHandler.editEntry())
			r.Get("/entry/{entryID}/delete/", handlers.entryHandler.deleteEntry())
			r.Post("/entry/{entryID}/delete/", handlers.entryHandler.deleteEntry())
		})
	})
}

// setupAPIRoutes sets up the JSON API under /api
func setupAPIRoutes(r chi.Router, handlers *routeHandlers, authMiddleware authMiddleware, acceptedOrigins []string) {
	r.Route("/api", func(r chi.Router) {
		r.Use(CORSCheckMiddleware(acceptedOrigins))
		r.Use(corsMiddleware(acceptedOrigins))
		r.Use(ColoredHTTPLoggingMiddleware)
		r.Use(authMiddleware.authenticate)

		r.Post("/auth/token", handlers.authHandler.issueToken())

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.requireAPIUser)

			r.Get("/entries/", handlers.apiHandler.listEntries())
			r.Post("/entries/", handlers.apiHandler.createEntry())
			r.Get("/entries/{entryID}/", handlers.apiHandler.getEntry())
			r.Put("/entries/{entryID}/", handlers.apiHandler.updateEntry())
			r.Delete("/entries/{entryID}/", handlers.apiHandler.deleteEntry())
			r.Get("/tags/", handlers.apiHandler.listTags())
		})
	})
}

// setupAdminRoutes sets up the staff only endpoints
func setupAdminRoutes(r chi.Router, handlers *routeHandlers, authMiddleware authMiddleware) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(ColoredHTTPLoggingMiddleware)
		r.Use(authMiddleware.authenticate)
		r.Use(authMiddleware.requireStaff)

		r.Get("/access-logs", handlers.adminHandler.accessLogs())
		r.Get("/access-logs/export", handlers.adminHandler.exportAccessLogs())
		r.Get("/entries", handlers.adminHandler.entries())
	})
}

// setupMediaRoutes serves locally stored images under /media/
func setupMediaRoutes(r chi.Router, mediaRoot string) {
	if mediaRoot == "" {
		return
	}
	files := http.StripPrefix("/media/", http.FileServer(http.Dir(mediaRoot)))
	r.Get("/media/*", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
