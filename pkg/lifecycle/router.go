package lifecycle

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with the authored-content routes. Tenant
// middleware is expected to be applied by the mounting server.
func NewRouter(w *Workflow) chi.Router {
	r := chi.NewRouter()

	r.Route("/contents", func(r chi.Router) {
		r.Get("/", listContentsHandler(w))
		r.Post("/", createContentHandler(w))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getContentHandler(w))
			r.Put("/", updateContentHandler(w))
			r.Delete("/", deleteContentHandler(w))
			r.Post("/submit", submitContentHandler(w))
			r.Post("/publish", publishContentHandler(w))
			r.Post("/copy", copyForwardHandler(w))
		})
	})

	return r
}
