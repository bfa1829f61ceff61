package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/the-cloud-source/scenes/pkg/data"
	"github.com/the-cloud-source/scenes/pkg/query"
)

type server struct {
	log  *slog.Logger
	demo *demoScene
}

func newServer(log *slog.Logger, demo *demoScene) *server {
	return &server{log: log, demo: demo}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.handleReadyz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/nodes", s.handleListNodes)
		r.Get("/nodes/{key}", s.handleGetNode)
		r.Post("/nodes/{key}/run", s.handleRunNode)
		r.Post("/nodes/{key}/cancel", s.handleCancelNode)
		r.Post("/nodes/{key}/width", s.handleSetWidth)
		r.Get("/timerange", s.handleGetTimeRange)
		r.Post("/timerange", s.handleSetTimeRange)
		r.Get("/variables", s.handleGetVariables)
		r.Post("/variables", s.handleSetVariables)
	})

	return r
}

func (s *server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if shuttingDown.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	for _, key := range s.demo.order {
		if !s.demo.runners[key].IsActive() {
			http.Error(w, fmt.Sprintf("node %q is not active", key), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type nodeSummary struct {
	Key                 string `json:"key"`
	Active              bool   `json:"active"`
	Ready               bool   `json:"ready"`
	State               string `json:"state"`
	Series              int    `json:"series"`
	RequestID           string `json:"request_id,omitempty"`
	WaitingForVariables bool   `json:"waiting_for_variables,omitempty"`
}

func summarize(r *query.Runner) nodeSummary {
	st := r.State()
	out := nodeSummary{
		Key:                 r.Key(),
		Active:              r.IsActive(),
		Ready:               r.Ready(),
		State:               string(data.LoadingStateNotStarted),
		WaitingForVariables: st.IsWaitingForVariables,
	}
	if st.Data != nil {
		out.State = string(st.Data.State)
		out.Series = len(st.Data.Series)
		if st.Data.Request != nil {
			out.RequestID = st.Data.Request.ID
		}
	}
	return out
}

type nodeDetail struct {
	nodeSummary
	Error         string       `json:"error,omitempty"`
	Data          *data.Result `json:"data,omitempty"`
	PreTransforms *data.Result `json:"data_pre_transforms,omitempty"`
	Queries       []data.Query `json:"queries"`
	MinInterval   string       `json:"min_interval,omitempty"`
	MaxDataPoints int64        `json:"max_data_points,omitempty"`
}

func (s *server) handleListNodes(w http.ResponseWriter, _ *http.Request) {
	nodes := make([]nodeSummary, 0, len(s.demo.order))
	for _, key := range s.demo.order {
		nodes = append(nodes, summarize(s.demo.runners[key]))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes})
}

func (s *server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	runner, ok := s.node(w, r)
	if !ok {
		return
	}

	st := runner.State()
	out := nodeDetail{
		nodeSummary:   summarize(runner),
		Data:          st.Data,
		PreTransforms: st.DataPreTransforms,
		Queries:       st.Queries,
		MinInterval:   st.MinInterval,
		MaxDataPoints: st.MaxDataPoints,
	}
	if st.Data != nil {
		out.Error = st.Data.ErrorString()
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *server) handleRunNode(w http.ResponseWriter, r *http.Request) {
	runner, ok := s.node(w, r)
	if !ok {
		return
	}
	runner.RunQueries()
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *server) handleCancelNode(w http.ResponseWriter, r *http.Request) {
	runner, ok := s.node(w, r)
	if !ok {
		return
	}
	runner.CancelQuery()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

func (s *server) handleSetWidth(w http.ResponseWriter, r *http.Request) {
	runner, ok := s.node(w, r)
	if !ok {
		return
	}
	px, err := strconv.Atoi(r.URL.Query().Get("px"))
	if err != nil || px <= 0 {
		http.Error(w, "px must be a positive integer", http.StatusBadRequest)
		return
	}
	runner.SetContainerWidth(px)
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "width": px})
}

type timeRangeResponse struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (s *server) handleGetTimeRange(w http.ResponseWriter, _ *http.Request) {
	tr := s.demo.timeRange.Value()
	s.writeJSON(w, http.StatusOK, timeRangeResponse{From: tr.From, To: tr.To})
}

func (s *server) handleSetTimeRange(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "from must be an RFC3339 timestamp", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, "to must be an RFC3339 timestamp", http.StatusBadRequest)
		return
	}
	if !from.Before(to) {
		http.Error(w, "from must be before to", http.StatusBadRequest)
		return
	}

	s.demo.timeRange.Set(from, to)
	s.writeJSON(w, http.StatusOK, timeRangeResponse{From: from, To: to})
}

func (s *server) handleGetVariables(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"loading": s.demo.vars.IsLoading(),
		"values":  s.demo.vars.Values(),
	})
}

func (s *server) handleSetVariables(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		http.Error(w, "body must be a JSON object of string values", http.StatusBadRequest)
		return
	}
	s.demo.vars.SetValues(values)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) node(w http.ResponseWriter, r *http.Request) (*query.Runner, bool) {
	key := chi.URLParam(r, "key")
	runner, ok := s.demo.runners[key]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown node %q", key), http.StatusNotFound)
		return nil, false
	}
	return runner, true
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("http: failed to encode response", "error", err)
	}
}
