package handlers

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Health reports liveness. When ping is set the database is checked too.
func Health(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				log.WithError(err).Warn("Health check: database unreachable")
				body["status"] = "degraded"
				body["database"] = "unreachable"
				writeJSON(w, http.StatusServiceUnavailable, body)
				return
			}
			body["database"] = "ok"
		}
		writeJSON(w, http.StatusOK, body)
	}
}
