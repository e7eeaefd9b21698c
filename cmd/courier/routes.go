package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bmadcode/courier/pkg/delivery"
	"github.com/bmadcode/courier/pkg/httpserver"
	"github.com/bmadcode/courier/pkg/logger"
	"github.com/bmadcode/courier/pkg/transport"
)

// routes exposes probes and read-only inspection of notifications and batches.
func routes(log *slog.Logger, orch *delivery.Orchestrator, batches *delivery.BatchCoordinator, readiness []func(context.Context) error) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Get("/healthz", httpserver.HealthCheckHandler(log))
	r.Get("/readyz", httpserver.HealthCheckHandler(log, append([]func(context.Context) error{storeProbe(orch)}, readiness...)...))
	r.Get("/readyz/channels", httpserver.ReportHandler(log, func(ctx context.Context) (map[transport.Channel]transport.Health, bool) {
		health := orch.ChannelHealth(ctx)
		for _, h := range health {
			if h.Status == transport.HealthError {
				return health, false
			}
		}
		return health, true
	}))

	r.Route("/notifications/{id}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			n, err := orch.GetDeliveryStatus(req.Context(), chi.URLParam(req, "id"))
			respond(w, req, log, n, err)
		})
		r.Get("/logs", func(w http.ResponseWriter, req *http.Request) {
			logs, err := orch.DeliveryLogs(req.Context(), chi.URLParam(req, "id"))
			respond(w, req, log, logs, err)
		})
	})
	r.Get("/batches/{id}", func(w http.ResponseWriter, req *http.Request) {
		b, err := batches.GetBatch(req.Context(), chi.URLParam(req, "id"))
		respond(w, req, log, b, err)
	})
	return r
}

// storeProbe succeeds when the store answers a lookup, found or not.
func storeProbe(orch *delivery.Orchestrator) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := orch.GetDeliveryStatus(ctx, "readiness-probe")
		if err != nil && !errors.Is(err, delivery.ErrNotFound) {
			return err
		}
		return nil
	}
}

func respond(w http.ResponseWriter, r *http.Request, log *slog.Logger, v any, err error) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case errors.Is(err, delivery.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
		v = map[string]string{"error": "not found"}
	case err != nil:
		log.ErrorContext(r.Context(), "inspection request failed", logger.Error(err), slog.String("path", r.URL.Path))
		w.WriteHeader(http.StatusInternalServerError)
		v = map[string]string{"error": "internal error"}
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.ErrorContext(r.Context(), "failed to encode response", logger.Error(err))
	}
}
