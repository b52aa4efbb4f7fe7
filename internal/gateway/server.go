package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public — no auth required.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", g.metrics.Handler())
	r.Handle("/ws/runs", g.broker)

	mount := func(r chi.Router) {
		r.Get("/status", g.handleStatus())
		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/agent/chat", g.handleChat())
			r.Post("/agent/report", g.handleReport())
			r.Get("/plots/*", g.handlePlot())
		})
		if g.mcp != nil {
			r.Handle("/mcp", g.mcp)
		}
	}

	if g.config.AuthToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.AuthToken))
			mount(r)
		})
	} else {
		mount(r)
	}

	return r
}
