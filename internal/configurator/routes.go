package configurator

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Guards holds the middleware applied to groups of routes. Nil entries are
// skipped.
type Guards struct {
	// Mutation wraps every state changing session route.
	Mutation func(http.Handler) http.Handler
	// Submit additionally wraps the submit route.
	Submit func(http.Handler) http.Handler
	// Idempotency wraps session creation and submission.
	Idempotency func(http.Handler) http.Handler
	// Admin protects the operator routes.
	Admin func(http.Handler) http.Handler
}

func use(r chi.Router, mws ...func(http.Handler) http.Handler) chi.Router {
	for _, mw := range mws {
		if mw != nil {
			r = r.With(mw)
		}
	}
	return r
}

// Mount registers the public configurator routes on r. Admin routes are
// registered by MountAdmin.
func (h *Handler) Mount(r chi.Router, g Guards) {
	r.Get("/products", h.ListProducts)
	r.Get("/products/{product}/catalog", h.Catalog)

	r.Route("/sessions", func(s chi.Router) {
		use(s, g.Mutation, g.Idempotency).Post("/", h.CreateSession)
		s.Route("/{id}", func(one chi.Router) {
			one.Get("/", h.GetSession)
			one.Get("/payload", h.Payload)
			one.Get("/summary", h.Summary)

			mut := use(one, g.Mutation)
			mut.Delete("/", h.DeleteSession)
			mut.Post("/toggle", h.Toggle)
			mut.Put("/country", h.SetCountry)
			mut.Post("/reset", h.Reset)
			use(mut, g.Submit, g.Idempotency).Post("/submit", h.Submit)
		})
	})
}

// MountAdmin registers operator routes behind g.Admin. extra lets callers add
// routes owned by other packages, such as the queue dead letter endpoints.
func (a *PriceAdmin) MountAdmin(r chi.Router, g Guards, extra func(chi.Router)) {
	r.Group(func(admin chi.Router) {
		if g.Admin != nil {
			admin.Use(g.Admin)
		}
		admin.Get("/pricetables/{product}", a.Table)
		admin.Post("/pricetables/{product}/reload", a.Reload)
		if extra != nil {
			extra(admin)
		}
	})
}
