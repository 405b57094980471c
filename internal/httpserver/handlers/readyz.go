package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/linkhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkhub/internal/httpserver/respond"
	"github.com/MrSnakeDoc/linkhub/internal/logger"
)

const readyzTimeout = 2 * time.Second

type componentStatus struct {
	OK    bool   `json:"ok"`
	Mode  string `json:"mode,omitempty"`
	Error string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Components map[string]componentStatus `json:"components"`
}

// Readyz pings the profile backend and, when configured, Redis.
// Redis only backs the read cache, so losing it degrades but does not fail readiness.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyzTimeout)
		defer cancel()

		components := map[string]componentStatus{
			"store": checkStore(ctx, d),
		}
		if d.RedisClient != nil {
			components["redis"] = checkRedis(ctx, d)
		}

		resp := readyzResponse{Ready: components["store"].OK, Components: components}
		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(w, status, resp)
	}
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if d.Profiles == nil {
		return componentStatus{OK: false, Error: "not initialized"}
	}
	if err := d.Profiles.Ping(ctx); err != nil {
		d.Logger.Warn("readyz: store ping failed", logger.Error(err))
		return componentStatus{OK: false, Error: err.Error()}
	}
	return componentStatus{OK: true}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		d.Logger.Warn("readyz: redis ping failed", logger.Error(err))
		return componentStatus{OK: false, Mode: "degraded", Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: "cached"}
}
