package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/forgebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/forgebuild/internal/server/responses"
	"git.home.luguber.info/inful/forgebuild/internal/version"
)

// Pinger checks a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MonitoringHandlers contains monitoring-related HTTP handlers.
type MonitoringHandlers struct {
	db           Pinger
	startTime    time.Time
	errorAdapter *errors.HTTPErrorAdapter
}

// NewMonitoringHandlers creates a new monitoring handlers instance.
func NewMonitoringHandlers(db Pinger) *MonitoringHandlers {
	return &MonitoringHandlers{
		db:           db,
		startTime:    time.Now(),
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleHealthCheck handles the health check endpoint.
func (h *MonitoringHandlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := &responses.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
		Uptime:    time.Since(h.startTime).Seconds(),
		Database:  "ok",
	}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.errorAdapter.WriteErrorResponse(w, r,
				errors.PersistenceError("database unreachable").WithCause(err).Build())
			return
		}
	}

	if err := writeJSON(w, http.StatusOK, health); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			errors.WrapError(err, errors.CategoryInternal, "failed to write health response").Build())
	}
}
