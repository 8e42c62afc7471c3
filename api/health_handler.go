package api

import (
	"net/http"
	"time"

	"github.com/rpupo63/post-studio-backend/database"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type healthHandler struct {
	responder   Responder
	logger      zerolog.Logger
	db          database.Database
	startupTime time.Time
}

func newHealthHandler(db database.Database, startupTime time.Time) healthHandler {
	logger := log.With().Str("handlerName", "healthHandler").Logger()

	return healthHandler{
		responder:   NewResponder(logger),
		logger:      logger,
		db:          db,
		startupTime: startupTime,
	}
}

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Workflow      string `json:"workflow"`
}

// health reports liveness and the schema generation the process runs on.
// GET /health
func (h healthHandler) health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := healthResponse{
			Status:        "ok",
			UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
			Workflow:      string(h.db.Schema().Capabilities().Generation()),
		}

		if err := h.db.Ping(); err != nil {
			h.logger.Error().Err(err).Msg("database ping failed")
			response.Status = "degraded"
			h.responder.WriteJSONStatus(w, http.StatusServiceUnavailable, response)
			return
		}

		h.responder.WriteJSON(w, response)
	}
}
