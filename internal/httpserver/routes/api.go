package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkhub/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/linkhub/internal/httpserver/mw"
)

func init() { Register(registerAPI, mw.RequireSignedIn) }

func registerAPI(r chi.Router, d deps.Deps) {
	createLimit := mw.RateLimit(mw.RateLimitConfig{
		Burst:        d.CreateBurst,
		RefillPerMin: d.CreatePerMin,
		MaxEntries:   10000,
		TrustProxy:   d.TrustProxy,
	})

	r.Route("/api/profiles", func(r chi.Router) {
		r.Get("/", handlers.ListProfiles(d))
		r.With(createLimit).Post("/", handlers.CreateProfile(d))

		r.Route("/{username}", func(r chi.Router) {
			r.Put("/theme", handlers.SetTheme(d))
			r.Post("/links", handlers.AddLink(d))
			r.Patch("/links/{id}", handlers.EditLink(d))
			r.Delete("/links/{id}", handlers.DeleteLink(d))
			r.Post("/links/{id}/move", handlers.MoveLink(d))
		})
	})
}
