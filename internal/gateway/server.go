package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	if g.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(g.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// State endpoints expose job data; not mounted without a token.
	if g.config.BearerToken != "" {
		r.Route("/api", func(r chi.Router) {
			r.Use(authMiddleware(g.config.BearerToken, g.logger))
			r.Get("/state", g.handleState())
			r.Get("/triggers", g.handleListTriggers())
			r.Delete("/triggers", g.handleClearTriggers())
		})
	}

	return r
}
