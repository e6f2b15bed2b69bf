package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/espressojuice/dealereye/internal/cache"
	"github.com/espressojuice/dealereye/internal/models"
	"github.com/espressojuice/dealereye/internal/store"
	"github.com/espressojuice/dealereye/internal/utils"
)

// EngineView exposes the live engine state the API reads.
type EngineView interface {
	Throughput(siteID uuid.UUID, start, end time.Time) int
	LobbyOccupancy(siteID uuid.UUID) int
}

// History exposes the persisted event and alert history.
type History interface {
	RecentEvents(ctx context.Context, siteID uuid.UUID, limit int) ([]store.StoredEvent, error)
	RecentAlerts(ctx context.Context, siteID uuid.UUID, limit int) ([]store.StoredAlert, error)
}

// Summariser rolls metric history up for the summary endpoint.
type Summariser interface {
	Summarise(ctx context.Context, siteID uuid.UUID, name models.MetricName, start, end time.Time) (models.Aggregation, error)
}

// Handlers serves the read-side query API.
type Handlers struct {
	logger        *slog.Logger
	engine        EngineView
	history       History
	summariser    Summariser
	cache         cache.Provider
	throughputTTL time.Duration
}

// NewHandlers wires the query surface. cache may be nil to disable response
// caching; history and summariser may be nil when persistence is off.
func NewHandlers(logger *slog.Logger, engine EngineView, history History, summariser Summariser, cacheProvider cache.Provider, throughputTTL time.Duration) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if throughputTTL <= 0 {
		throughputTTL = 30 * time.Second
	}
	return &Handlers{
		logger:        logger,
		engine:        engine,
		history:       history,
		summariser:    summariser,
		cache:         cacheProvider,
		throughputTTL: throughputTTL,
	}
}

// Routes builds the router for the query API.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Route("/api/v1/sites/{siteID}", func(r chi.Router) {
		r.Get("/metrics/throughput", h.throughput)
		r.Get("/metrics/occupancy", h.occupancy)
		r.Get("/metrics/{name}/summary", h.summary)
		r.Get("/events", h.events)
		r.Get("/alerts", h.alerts)
	})
	return r
}

func (h *Handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type throughputResponse struct {
	SiteID uuid.UUID `json:"site_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Count  int       `json:"count"`
}

func (h *Handlers) throughput(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	start, end, ok := h.timeRange(w, r)
	if !ok {
		return
	}

	key := "throughput:" + siteID.String() + ":" + start.UTC().Format(time.RFC3339) + ":" + end.UTC().Format(time.RFC3339)
	if cached, err := h.cache.Get(r.Context(), key); err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(cached)
		return
	}

	resp := throughputResponse{
		SiteID: siteID,
		Start:  start,
		End:    end,
		Count:  h.engine.Throughput(siteID, start, end),
	}
	body, err := json.Marshal(resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode response")
		return
	}
	if err := h.cache.Set(r.Context(), key, body, h.throughputTTL); err != nil {
		h.logger.Debug("throughput cache write failed", slog.Any("error", err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handlers) occupancy(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"site_id":   siteID,
		"occupancy": h.engine.LobbyOccupancy(siteID),
	})
}

func (h *Handlers) summary(w http.ResponseWriter, r *http.Request) {
	if h.summariser == nil {
		writeError(w, http.StatusServiceUnavailable, "metric history not configured")
		return
	}
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	start, end, ok := h.timeRange(w, r)
	if !ok {
		return
	}
	name := models.MetricName(chi.URLParam(r, "name"))

	agg, err := h.summariser.Summarise(r.Context(), siteID, name, start, end)
	if err != nil {
		h.logger.Error("metric summary failed", slog.String("metric", string(name)), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "summarise metric")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"site_id": siteID,
		"metric":  name,
		"start":   start,
		"end":     end,
		"summary": agg,
	})
}

func (h *Handlers) events(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "event history not configured")
		return
	}
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	events, err := h.history.RecentEvents(r.Context(), siteID, h.limit(r))
	if err != nil {
		h.logger.Error("event query failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "query events")
		return
	}
	if events == nil {
		events = []store.StoredEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"site_id": siteID, "events": events})
}

func (h *Handlers) alerts(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "alert history not configured")
		return
	}
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	alerts, err := h.history.RecentAlerts(r.Context(), siteID, h.limit(r))
	if err != nil {
		h.logger.Error("alert query failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "query alerts")
		return
	}
	if alerts == nil {
		alerts = []store.StoredAlert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"site_id": siteID, "alerts": alerts})
}

func (h *Handlers) siteID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	siteID, err := uuid.Parse(chi.URLParam(r, "siteID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid site id")
		return uuid.Nil, false
	}
	return siteID, true
}

// timeRange reads start/end query params; absent values default to the last
// hour ending now.
func (h *Handlers) timeRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	end := time.Now().UTC()
	start := end.Add(-time.Hour)

	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := utils.ParseRFC3339(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start time")
			return time.Time{}, time.Time{}, false
		}
		start = parsed
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := utils.ParseRFC3339(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end time")
			return time.Time{}, time.Time{}, false
		}
		end = parsed
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end before start")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (h *Handlers) limit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		slog.Debug("response encode failed", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
