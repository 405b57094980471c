package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/linkhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkhub/internal/httpserver/respond"
	"github.com/MrSnakeDoc/linkhub/internal/logger"
)

type reloadResponse struct {
	Triggered bool `json:"triggered"`
}

// Reload asks the seed reloader to import the seed file again.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.SeedReloadTrigger == nil {
			respond.Fail(w, http.StatusNotFound, respond.CodeNotFound, "no seed file configured", nil)
			return
		}

		select {
		case d.SeedReloadTrigger <- struct{}{}:
			d.Logger.Info("manual seed reload triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			respond.JSON(w, http.StatusAccepted, reloadResponse{Triggered: true})
		default:
			d.Logger.Warn("seed reload already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			w.Header().Set("Retry-After", "5")
			respond.Fail(w, http.StatusTooManyRequests, respond.CodeRateLimited,
				"reload already in progress, please wait", nil)
		}
	}
}
