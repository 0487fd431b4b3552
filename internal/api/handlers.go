// Package api exposes the recommendation service over HTTP.
package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"venue-discovery/internal/constants"
	"venue-discovery/internal/recommend"
	"venue-discovery/internal/scorer"
	"venue-discovery/pkg/circuit"
	"venue-discovery/pkg/events"
	"venue-discovery/pkg/logging"
)

const (
	maxBodyBytes   = 64 << 10
	defaultRunsMax = 50
)

type Options struct {
	Service        *recommend.Service
	Events         events.EventStore       // nil disables the run endpoints
	Costs          func() scorer.CostStats // nil when enhancement is off
	Breakers       []*circuit.Breaker
	RequestTimeout time.Duration
	Logger         *logging.ComponentLogger
}

type Server struct {
	svc      *recommend.Service
	events   events.EventStore
	costs    func() scorer.CostStats
	breakers []*circuit.Breaker
	timeout  time.Duration
	validate *validator.Validate
	log      *logging.ComponentLogger
}

func NewServer(opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = constants.RecommendRequestTimeout
	}
	return &Server{
		svc:      opts.Service,
		events:   opts.Events,
		costs:    opts.Costs,
		breakers: opts.Breakers,
		timeout:  opts.RequestTimeout,
		validate: newValidator(),
		log:      opts.Logger,
	}
}

// Register mounts the API routes on r.
func (s *Server) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/recommendations", s.handleRecommendations).Methods(http.MethodPost)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/stats/reset", s.handleStatsReset).Methods(http.MethodPost)
	api.HandleFunc("/cache/stats", s.handleCacheStats).Methods(http.MethodGet)
	api.HandleFunc("/cache/optimize", s.handleCacheOptimize).Methods(http.MethodPost)
	api.HandleFunc("/cache/destinations/{destination}", s.handleCacheInvalidate).Methods(http.MethodDelete)
	api.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", s.handleRun).Methods(http.MethodGet)
}

type errorBody struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Fields  []FieldError `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string, fields []FieldError) {
	respondJSON(w, status, errorBody{Error: msg, Fields: fields})
}

// statusFor maps a pipeline response to an HTTP status. Rejected requests are
// the caller's fault; a run that failed inside the pipeline means no source
// or fallback could serve it.
func statusFor(res recommend.Response) int {
	switch {
	case res.Success:
		return http.StatusOK
	case res.Metadata.FailedAt == recommend.FailedAtRequest:
		return http.StatusBadRequest
	}
	return http.StatusServiceUnavailable
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var body RecommendationRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), nil)
		return
	}
	if err := s.validate.Struct(body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", describe(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	res := s.svc.GenerateRecommendations(ctx, body.ToContext())
	if !res.Success {
		s.log.Warn("recommendation request failed",
			logging.String("destination", body.Destination),
			logging.String("failed_at", res.Metadata.FailedAt),
			logging.String("error", res.Error))
	}
	respondJSON(w, statusFor(res), res)
}

type breakerState struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	cfg := s.svc.Engine().Config()
	out := map[string]any{
		"pipeline": s.svc.Engine().GetStats(),
		"config": map[string]any{
			"confidence_threshold": cfg.ConfidenceThreshold,
			"max_recommendations":  cfg.MaxRecommendations,
			"retry_attempts":       cfg.Retry.MaxAttempts,
			"stage_timeout":        cfg.Retry.Timeout.String(),
		},
	}
	if s.costs != nil {
		out["openai"] = s.costs()
	}
	if len(s.breakers) > 0 {
		states := make([]breakerState, 0, len(s.breakers))
		for _, b := range s.breakers {
			states = append(states, breakerState{Name: b.Name(), State: b.State().String()})
		}
		out["circuits"] = states
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatsReset(w http.ResponseWriter, r *http.Request) {
	s.svc.Engine().ResetStats()
	s.log.Info("pipeline stats reset")
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.svc.CacheStats())
}

func (s *Server) handleCacheOptimize(w http.ResponseWriter, r *http.Request) {
	res := s.svc.OptimizeCaches()
	s.svc.ClearQualityCache()
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "result": res})
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	dest := mux.Vars(r)["destination"]
	n := s.svc.InvalidateDestination(dest)
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "destination": dest, "removed": n})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		respondError(w, http.StatusNotFound, "run history is disabled", nil)
		return
	}
	req := RunsRequest{Limit: defaultRunsMax}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid request", []FieldError{{Field: "limit", Message: "must be a number"}})
			return
		}
		req.Limit = n
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", describe(err))
		return
	}
	runs, err := s.events.ListRuns(r.Context(), req.Limit)
	if err != nil {
		s.log.Error("list runs failed", err)
		respondError(w, http.StatusInternalServerError, "could not list runs", nil)
		return
	}
	if runs == nil {
		runs = []events.RunState{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		respondError(w, http.StatusNotFound, "run history is disabled", nil)
		return
	}
	id := mux.Vars(r)["id"]
	evs, err := s.events.ListByRun(r.Context(), id)
	if err != nil {
		s.log.Error("load run failed", err, logging.String("run_id", id))
		respondError(w, http.StatusInternalServerError, "could not load run", nil)
		return
	}
	if len(evs) == 0 {
		respondError(w, http.StatusNotFound, "run not found", nil)
		return
	}
	views := make([]eventView, 0, len(evs))
	for _, e := range evs {
		views = append(views, eventView{Seq: e.Seq, Type: e.Type, Ts: e.Ts, Data: json.RawMessage(e.Payload)})
	}
	respondJSON(w, http.StatusOK, map[string]any{"run": events.Replay(evs), "events": views})
}

// eventView renders a stored payload inline instead of base64.
type eventView struct {
	Seq  int64           `json:"seq"`
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}
