package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/linkhub/internal/httpserver/deps"
)

// Metrics serves the Prometheus registry. Without metrics configured it answers 404.
func Metrics(d deps.Deps) http.Handler {
	return d.Metrics.Handler()
}
