// Package handler exposes the tracker over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"cruise-price-tracker/internal/alerting"
	"cruise-price-tracker/internal/logging"
	"cruise-price-tracker/internal/metrics"
	"cruise-price-tracker/internal/service"
	"cruise-price-tracker/internal/storage"
)

const (
	defaultSnapshotLimit = 50
	maxSnapshotLimit     = 500
	defaultChartLimit    = 240
	minChartLimit        = 10
	maxChartLimit        = 2000
)

// TrackerService is the subset of service.Service the HTTP layer needs.
type TrackerService interface {
	Latest(ctx context.Context) (*storage.Snapshot, error)
	List(ctx context.Context, limit int) ([]storage.Snapshot, error)
	Chart(ctx context.Context, limit int, window service.Window) ([]service.ChartPoint, error)
	NotificationEmail(ctx context.Context) (*string, error)
	SetNotificationEmail(ctx context.Context, email string) (string, error)
	SendTestNotification(ctx context.Context) error
	Crawl(ctx context.Context) (storage.Snapshot, error)
}

// Deps bundles everything NewRouter wires.
type Deps struct {
	Service  TrackerService
	AppName  string
	Interval time.Duration
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	// Limiter guards /crawl-now and /notification/test when set.
	Limiter *rate.Limiter
	Logger  zerolog.Logger
}

// Handler serves the tracker endpoints.
type Handler struct {
	svc      TrackerService
	appName  string
	interval time.Duration
	logger   zerolog.Logger
}

// NewRouter builds the chi router with middleware and routes.
func NewRouter(deps Deps) http.Handler {
	logger := logging.Component(deps.Logger, "http")
	h := &Handler{
		svc:      deps.Service,
		appName:  deps.AppName,
		interval: deps.Interval,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/", h.Index)
	r.Get("/health", h.Health)
	r.Get("/snapshots", h.ListSnapshots)
	r.Get("/snapshots/latest", h.LatestSnapshot)
	r.Get("/chart-data", h.ChartData)
	r.Get("/notification", h.GetNotification)
	r.Post("/notification", h.SetNotification)

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(deps.Limiter))
		r.Post("/notification/test", h.TestNotification)
		r.Post("/crawl-now", h.CrawlNow)
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	return r
}

// Health reports liveness and the newest snapshot time.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	latest, err := h.svc.Latest(r.Context())
	if err != nil {
		h.internalError(w, "health check failed", err)
		return
	}

	resp := healthResponse{Status: "ok"}
	if latest != nil {
		at := latest.ScrapedAt
		resp.LatestSnapshot = &at
		resp.HasSnapshot = true
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListSnapshots returns the most recent snapshots, newest first.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultSnapshotLimit, 1, maxSnapshotLimit)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	snapshots, err := h.svc.List(r.Context(), limit)
	if err != nil {
		h.internalError(w, "list snapshots failed", err)
		return
	}

	out := make([]snapshotResponse, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, toSnapshotResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// LatestSnapshot returns the newest snapshot or 404.
func (h *Handler) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	latest, err := h.svc.Latest(r.Context())
	if err != nil {
		h.internalError(w, "latest snapshot failed", err)
		return
	}
	if latest == nil {
		writeError(w, http.StatusNotFound, "No snapshots found")
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(*latest))
}

// ChartData returns chart points oldest first.
func (h *Handler) ChartData(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultChartLimit, minChartLimit, maxChartLimit)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	window, err := service.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window. Use hours, days, or months.")
		return
	}

	points, err := h.svc.Chart(r.Context(), limit, window)
	if err != nil {
		h.internalError(w, "chart data failed", err)
		return
	}

	out := make([]chartPointResponse, 0, len(points))
	for _, p := range points {
		out = append(out, toChartPointResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetNotification returns the subscriber email or null.
func (h *Handler) GetNotification(w http.ResponseWriter, r *http.Request) {
	email, err := h.svc.NotificationEmail(r.Context())
	if err != nil {
		h.internalError(w, "get notification email failed", err)
		return
	}
	writeJSON(w, http.StatusOK, notificationResponse{Email: email})
}

// SetNotification replaces the subscriber email.
func (h *Handler) SetNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	email, err := h.svc.SetNotificationEmail(r.Context(), req.Email)
	if errors.Is(err, service.ErrValidation) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, "set notification email failed", err)
		return
	}
	writeJSON(w, http.StatusOK, notificationResponse{Email: &email})
}

// TestNotification sends the fixed confirmation email to the subscriber.
func (h *Handler) TestNotification(w http.ResponseWriter, r *http.Request) {
	err := h.svc.SendTestNotification(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, statusResponse{Status: "sent"})
	case errors.Is(err, service.ErrNoSubscriber):
		writeError(w, http.StatusBadRequest, "No notification email configured")
	case errors.Is(err, alerting.ErrProviderNotConfigured):
		writeError(w, http.StatusBadRequest, "Email provider not configured")
	default:
		h.logger.Error().Err(err).Msg("test notification failed")
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Failed to send test email: %v", err))
	}
}

// CrawlNow runs one crawl synchronously and returns the stored snapshot.
func (h *Handler) CrawlNow(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.svc.Crawl(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("manual crawl failed")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Crawl failed: %v", err))
		return
	}
	writeJSON(w, http.StatusCreated, toSnapshotResponse(snapshot))
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error().Err(err).Msg(msg)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func intParam(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, min, max)
	}
	return v, nil
}
