package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkhub/internal/httpserver/handlers"
)

func init() { Register(registerProfile) }

// The public page. Signed-in owners see can_edit=true.
func registerProfile(r chi.Router, d deps.Deps) {
	r.Get("/profile/{username}", handlers.GetProfile(d))
}
