package handlers

import (
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Get("/", h.RootHandler)
	r.Get("/healthz", h.HealthHandler)

	// Admin routes stay off unless a JWT secret is configured.
	if h.tokenAuth != nil {
		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/stores", h.AdminStoresHandler)
		})
	}

	// Public per-store surface, keyed by the registration token.
	r.Route("/{token}", func(r chi.Router) {
		r.Post("/check-phone", h.CheckPhoneHandler)
		r.Get("/register", h.RegisterFormHandler)
		r.Post("/register", h.RegisterHandler)
		r.Get("/card/{id}/barcode", h.BarcodeHandler)
	})
}
