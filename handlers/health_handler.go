package handlers

import (
	"net/http"

	"github.com/quorumhq/chatgate/app"
	"github.com/quorumhq/chatgate/utils"
	"go.uber.org/zap"
)

// HealthCheckHandler reports process liveness
func HealthCheckHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
		})
	}
}

// ReadinessCheckHandler reports whether the service can take traffic
func ReadinessCheckHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.HealthCheck(r.Context()); err != nil {
			deps.Logger.Warn("readiness check failed", zap.Error(err))
			utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unavailable",
			})
			return
		}

		utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ready",
		})
	}
}
