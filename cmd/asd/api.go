package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"asd_commerce/internal/agent"
	"asd_commerce/internal/decision"
	"asd_commerce/internal/domain"
	"asd_commerce/internal/graph"
	"asd_commerce/internal/system"
	"asd_commerce/internal/taskqueue"
)

const apiActor = "api"

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("GET /tasks", a.handleListTasks)
	mux.HandleFunc("POST /tasks", a.handleCreateTask)
	mux.HandleFunc("GET /tasks/pending", a.handlePendingTasks)
	mux.HandleFunc("GET /tasks/{id}", a.handleGetTask)
	mux.HandleFunc("POST /run", a.handleRun)
	mux.HandleFunc("POST /collaborate", a.handleCollaborate)
	mux.HandleFunc("POST /pricing", a.handlePricing)
	mux.HandleFunc("POST /forecast/train", a.handleTrain)
	mux.HandleFunc("POST /forecast/predict", a.handlePredict)
	mux.HandleFunc("GET /graph", a.handleGraph)
	mux.HandleFunc("GET /graph/nodes/{id}", a.handleNode)
	mux.HandleFunc("GET /graph/types/{type}", a.handleNodesByType)
	mux.HandleFunc("GET /decisions", a.handleDecisions)
	mux.HandleFunc("GET /sales", a.handleSales)
	mux.HandleFunc("GET /exports", a.handleListExports)
	mux.HandleFunc("POST /exports", a.handleExport)
	mux.Handle("GET /metrics", a.metrics.Handler())
	return loggingMiddleware(a.logger, mux)
}

func (a *app) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"pending": len(a.system.Pending()),
		"nodes":   a.system.Graph().Len(),
	})
}

func (a *app) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := a.store.ListTasks(r.Context(), queryInt(r, "limit", 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (a *app) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Priority    int    `json:"priority"`
		AgentType   string `json:"agent_type"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	agentType, ok := domain.ParseAgentType(req.AgentType)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown agent_type %q", req.AgentType))
		return
	}
	task, err := a.system.AddTask(r.Context(), req.Priority, agentType, req.Description)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, taskqueue.ErrInvalidTask) {
			code = http.StatusBadRequest
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (a *app) handlePendingTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.system.Pending())
}

func (a *app) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := a.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *app) handleRun(w http.ResponseWriter, r *http.Request) {
	n, err := a.system.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"processed": n})
}

func (a *app) handleCollaborate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := a.system.Collaborate(r.Context(), req.Prompt)
	if err != nil {
		writeError(w, collaborationStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (a *app) handlePricing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Product string `json:"product"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Product) == "" {
		writeError(w, http.StatusBadRequest, errors.New("product is required"))
		return
	}
	result, err := a.system.DecidePricing(r.Context(), req.Product)
	if err != nil {
		writeError(w, collaborationStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *app) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Features [][]float64 `json:"features"`
		Sales    []float64   `json:"sales"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.system.Engine().TrainSalesModel(req.Features, req.Sales); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "trained", "samples": len(req.Sales)})
}

func (a *app) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Features [][]float64 `json:"features"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	predictions, err := a.system.Engine().PredictSales(req.Features)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, decision.ErrModelNotTrained) {
			code = http.StatusConflict
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": predictions})
}

func (a *app) handleGraph(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.system.Graph().Snapshot())
}

func (a *app) handleNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	node, err := a.system.Graph().Node(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	neighbors, err := a.system.Graph().Neighbors(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"node": node, "neighbors": neighbors})
}

func (a *app) handleNodesByType(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.system.Graph().NodesByType(domain.NodeType(r.PathValue("type"))))
}

func (a *app) handleDecisions(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.ListDecisions(r.Context(), queryInt(r, "limit", 300))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *app) handleSales(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.ListSalesTotals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *app) handleListExports(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.ListExports(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *app) handleExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	written, err := a.exports.WriteSnapshot(r.Context(), apiActor, req.Path, a.system.Graph().Snapshot())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"path": written})
}

// collaborationStatus maps errors from prompts and pricing onto HTTP codes.
func collaborationStatus(err error) int {
	switch {
	case errors.Is(err, system.ErrUnknownPrompt), errors.Is(err, agent.ErrMalformedTask):
		return http.StatusBadRequest
	case errors.Is(err, graph.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, decision.ErrNoCompetitorPrices), errors.Is(err, decision.ErrNoCurrentPrice):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json body: %w", err))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
