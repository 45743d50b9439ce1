package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gpukit/cmdsched/internal/config"
	"github.com/gpukit/cmdsched/internal/executor"
	"github.com/gpukit/cmdsched/internal/graph"
	"github.com/gpukit/cmdsched/internal/metrics"
	"github.com/gpukit/cmdsched/internal/resource"
	"github.com/gpukit/cmdsched/internal/shader"
)

const maxGraphSize = 10000

// Handler holds all HTTP handler dependencies.
type Handler struct {
	exec    *executor.Executor
	loader  *config.Loader
	tracker *resource.Tracker
	mux     *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(exec *executor.Executor, loader *config.Loader, tracker *resource.Tracker) http.Handler {
	h := &Handler{exec: exec, loader: loader, tracker: tracker, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/graphs", h.buildGraph)
	h.mux.HandleFunc("POST /v1/graphs/run", h.runGraph)
	h.mux.HandleFunc("POST /v1/graphs/validate", h.validateGraph)
	h.mux.HandleFunc("GET /v1/batches", h.listBatches)
	h.mux.HandleFunc("POST /v1/batches/reload", h.reloadBatches)
	h.mux.HandleFunc("POST /v1/batches/{id}/run", h.runBatch)
	h.mux.HandleFunc("GET /v1/resources", h.listResources)
	h.mux.HandleFunc("GET /v1/shaders/{name}", h.composeShader)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// decodeNodes reads a node list from the request body, filling in a UUID
// for any node submitted without an id.
func decodeNodes(r *http.Request) ([]graph.CommandNode, error) {
	var nodes []graph.CommandNode
	if err := json.NewDecoder(r.Body).Decode(&nodes); err != nil {
		return nil, fmt.Errorf("invalid JSON: %s", err)
	}
	if len(nodes) > maxGraphSize {
		return nil, fmt.Errorf("graph size %d exceeds max %d", len(nodes), maxGraphSize)
	}
	for i := range nodes {
		if nodes[i].ID == "" {
			nodes[i].ID = graph.NodeID(uuid.New().String())
		}
	}
	return nodes, nil
}

func buildTimed(nodes []graph.CommandNode) (*graph.CommandGraph, error) {
	start := time.Now()
	g, err := graph.Build(nodes)
	metrics.BuildDuration.Observe(float64(time.Since(start).Microseconds()))
	if err != nil {
		metrics.GraphBuildFailures.WithLabelValues(buildFailureReason(err)).Inc()
		return nil, err
	}
	metrics.GraphsBuilt.Inc()
	return g, nil
}

func buildFailureReason(err error) string {
	switch {
	case errors.Is(err, graph.ErrDuplicateID):
		return "duplicate_id"
	case errors.Is(err, graph.ErrMissingDep):
		return "missing_dependency"
	case errors.Is(err, graph.ErrCycle):
		return "cycle"
	}
	return "other"
}

// POST /v1/graphs — build a submitted node list, return the ordered graph.
func (h *Handler) buildGraph(w http.ResponseWriter, r *http.Request) {
	nodes, err := decodeNodes(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := buildTimed(nodes)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// POST /v1/graphs/run — build a submitted node list and execute it.
func (h *Handler) runGraph(w http.ResponseWriter, r *http.Request) {
	nodes, err := decodeNodes(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := buildTimed(nodes)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	res, err := h.exec.Run(r.Context(), "adhoc", g)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /v1/graphs/validate — run the exhaustive validator over a graph
// value submitted as-is (it need not have come from the builder).
func (h *Handler) validateGraph(w http.ResponseWriter, r *http.Request) {
	var g graph.CommandGraph
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if g.Nodes == nil {
		g.Nodes = map[graph.NodeID]graph.CommandNode{}
	}
	res := graph.Validate(&g)
	metrics.ValidationErrors.Add(float64(len(res.Errors)))
	writeJSON(w, http.StatusOK, res)
}

// GET /v1/batches — list configured batches and their node counts.
func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	cfg := h.loader.Config()
	batches := h.exec.Batches()
	out := make([]map[string]interface{}, 0, len(cfg.Batches))
	for _, b := range cfg.Batches {
		entry := map[string]interface{}{
			"id":          b.ID,
			"description": b.Description,
			"commands":    len(b.Commands),
		}
		if g, ok := batches[b.ID]; ok {
			entry["execution_order"] = g.ExecutionOrder
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": cfg.Version,
		"batches": out,
	})
}

// POST /v1/batches/reload — hot-reload batch definitions from disk.
func (h *Handler) reloadBatches(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := config.Validate(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	batches, err := config.BuildAll(cfg)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.exec.SwapBatches(batches)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":      true,
		"batches_count": len(batches),
	})
}

// POST /v1/batches/{id}/run — execute a configured batch.
func (h *Handler) runBatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := h.exec.RunBatch(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /v1/resources — shadow tracker snapshot.
func (h *Handler) listResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resources": h.tracker.Snapshot(),
		"leaks":     h.tracker.Leaks(),
	})
}

// GET /v1/shaders/{name} — compose a shader fragment with its transitive
// requirements. The registry is rebuilt from the current config so a
// hot-reload is picked up immediately.
func (h *Handler) composeShader(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	reg := shader.NewRegistry()
	for _, s := range h.loader.Config().Shaders {
		reg.Register(shader.Fragment{Name: s.Name, Requires: s.Requires, Source: s.Source})
	}
	src, err := reg.Compose(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"name":   name,
		"source": src,
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if the transport ring is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.exec.RingUtilization()
	metrics.RingUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":           "overloaded",
			"ring_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "ready",
		"ring_utilization": util,
	})
}

// loggingMiddleware logs one line per request with status and latency.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Info("http", "method", r.Method, "path", r.URL.Path,
			"status", sw.status, "duration_ms", time.Since(start).Milliseconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
