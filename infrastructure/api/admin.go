package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mcb/mcp-context-browser/application/service"
	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/provider"
)

// cacheStatNamespaces are the namespaces reported by /cache/stats.
var cacheStatNamespaces = []string{"embeddings", "search", "ratelimit"}

// Admin serves the read-only state surface plus the shutdown trigger.
type Admin struct {
	status   *service.Status
	cache    provider.CacheProvider
	routing  func() map[string]any
	shutdown func(reason string)
	logger   *slog.Logger
}

// NewAdmin creates the admin handler set. routing supplies router and bus
// counters for /metrics; shutdown triggers a graceful stop and may be nil on
// surfaces that do not allow it.
func NewAdmin(status *service.Status, cache provider.CacheProvider, routing func() map[string]any, shutdown func(reason string), logger *slog.Logger) *Admin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Admin{status: status, cache: cache, routing: routing, shutdown: shutdown, logger: logger}
}

// Mount registers the admin routes on a router.
func (a *Admin) Mount(router chi.Router) {
	router.Get("/health", a.Health)
	router.Get("/ready", a.Ready)
	router.Get("/metrics", a.Metrics)
	router.Get("/indexing", a.Indexing)
	router.Get("/cache/stats", a.CacheStats)
	router.Post("/shutdown", a.Shutdown)
}

// Health is the liveness probe.
func (a *Admin) Health(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"state": "alive"})
}

// Ready reports readiness: every critical provider must be able to take
// traffic.
func (a *Admin) Ready(w http.ResponseWriter, r *http.Request) {
	if !a.status.Ready() {
		writeError(w, http.StatusServiceUnavailable, errs.KindNetwork, "one or more providers are unhealthy")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"state": "ready"})
}

// Metrics exposes the counter and gauge surface.
func (a *Admin) Metrics(w http.ResponseWriter, r *http.Request) {
	report := a.status.Report(r.Context())
	metrics := map[string]any{
		"indexing": report.Indexing,
		"sync":     report.Sync,
		"uptime":   report.Uptime,
	}
	if a.routing != nil {
		for k, v := range a.routing() {
			metrics[k] = v
		}
	}
	writeData(w, http.StatusOK, metrics)
}

// Indexing reports indexing state, optionally scoped by ?collection=.
func (a *Admin) Indexing(w http.ResponseWriter, r *http.Request) {
	var collections []string
	if c := r.URL.Query().Get("collection"); c != "" {
		collections = append(collections, c)
	}
	writeData(w, http.StatusOK, a.status.Report(r.Context(), collections...))
}

// CacheStats reports per-namespace cache statistics.
func (a *Admin) CacheStats(w http.ResponseWriter, r *http.Request) {
	if a.cache == nil {
		writeError(w, http.StatusNotFound, errs.KindConfig, "no cache backend configured")
		return
	}
	namespaces := cacheStatNamespaces
	if ns := r.URL.Query().Get("namespace"); ns != "" {
		namespaces = []string{ns}
	}
	stats := make([]provider.CacheStats, 0, len(namespaces))
	for _, ns := range namespaces {
		s, err := a.cache.Stats(r.Context(), ns)
		if err != nil {
			a.logger.Warn("cache stats failed",
				slog.String("namespace", ns),
				slog.String("error", err.Error()))
			continue
		}
		stats = append(stats, s)
	}
	writeData(w, http.StatusOK, map[string]any{
		"backend":    a.cache.BackendType(),
		"namespaces": stats,
	})
}

// Shutdown triggers a graceful stop.
func (a *Admin) Shutdown(w http.ResponseWriter, r *http.Request) {
	if a.shutdown == nil {
		writeError(w, http.StatusForbidden, errs.KindConfig, "shutdown is not enabled on this surface")
		return
	}
	a.logger.Info("shutdown requested via admin surface", slog.String("remote_addr", r.RemoteAddr))
	writeData(w, http.StatusAccepted, map[string]string{"state": "shutting_down"})
	go a.shutdown("admin request")
}

type envelope struct {
	Status string         `json:"status"`
	Data   any            `json:"data,omitempty"`
	Error  *envelopeError `json:"error,omitempty"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeData(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Status: "ok", Data: data})
}

func writeError(w http.ResponseWriter, code int, kind errs.Kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{
		Status: "error",
		Error:  &envelopeError{Code: string(kind), Message: message},
	})
}
