package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes registers the public reader routes and the authenticated
// authoring routes.
func setupRoutes(r chi.Router, handlers *routeHandlers, authMiddleware authMiddleware) {
	r.Get("/health", handlers.healthHandler.health())
	r.Handle("/metrics", promhttp.Handler())

	// Public reader routes
	r.Get("/workspaces/{workspaceSlug}/posts", handlers.catalogHandler.listPublished())
	r.Get("/workspaces/{workspaceSlug}/posts/{postSlug}", handlers.catalogHandler.getPublished())

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.authenticate)

		r.Get("/posts", handlers.postHandler.listPosts())
		r.Post("/posts", handlers.postHandler.createPost())
		r.Post("/posts/bulk", handlers.bulkHandler.applyBulk())
		r.Get("/posts/{postID}", handlers.postHandler.getPost())
		r.Put("/posts/{postID}", handlers.postHandler.saveDraft())
		r.Patch("/posts/{postID}", handlers.postHandler.applyAction())
		r.Delete("/posts/{postID}", handlers.postHandler.deletePost())
	})
}
