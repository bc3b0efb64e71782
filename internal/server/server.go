package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/copyleftdev/stochopt/internal/config"
	apierrors "github.com/copyleftdev/stochopt/internal/errors"
	"github.com/copyleftdev/stochopt/internal/logging"
	"github.com/copyleftdev/stochopt/internal/metrics"
	"github.com/copyleftdev/stochopt/internal/optimization"
	"github.com/copyleftdev/stochopt/internal/optimization/benchmarks"
	"github.com/copyleftdev/stochopt/internal/store"
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...logging.Fields)
	Info(msg string, fields ...logging.Fields)
	Warn(msg string, fields ...logging.Fields)
	Error(msg string, fields ...logging.Fields)
	WithFields(fields logging.Fields) *logging.Logger
	Zap() *zap.Logger
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithStore persists finished runs to st.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithMetrics records run metrics on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(s *Server) { s.metrics = rec }
}

// Server implements the HTTP and JSON-RPC API of the optimization service.
// It runs at most OPT_WORKER_COUNT optimizations at once; further runs wait
// in the queued state.
type Server struct {
	cfg     *config.Config
	logger  Logger
	store   store.Store
	metrics *metrics.Recorder

	jobs    *jobManager
	workers chan struct{}
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new server instance with the given config and logger
func NewServer(cfg *config.Config, logger Logger, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		jobs:    newJobManager(),
		workers: make(chan struct{}, cfg.Optimization.WorkerCount),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
		r.Get("/runs", s.handleRuns)
		r.Get("/benchmarks", s.handleBenchmarks)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// StartResponse is returned when a run is accepted.
type StartResponse struct {
	ID     string `json:"optimization_id"`
	Status string `json:"status"`
}

// Start validates req and queues the run.
func (s *Server) Start(req OptimizeRequest) (*StartResponse, error) {
	if s.ctx.Err() != nil {
		return nil, apierrors.Unavailable("server is shutting down")
	}

	p, err := NewPlan(s.cfg, req, s.logger.Zap())
	if err != nil {
		return nil, err
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout := s.cfg.Optimization.RunTimeout; timeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(s.ctx)
	}
	j := s.jobs.create(p.Spec, cancel)

	s.logger.Info("optimization queued", logging.Fields{
		"optimization_id": j.record.ID,
		"algorithm":       p.Spec.Algorithm,
		"function":        p.Spec.Function,
	})

	s.wg.Add(1)
	go s.run(ctx, j, p)

	return &StartResponse{ID: j.record.ID, Status: store.StateQueued}, nil
}

// Status returns the record of a live or stored run.
func (s *Server) Status(id string) (*store.RunRecord, error) {
	if j, ok := s.jobs.get(id); ok {
		r := s.jobs.snapshot(j)
		return &r, nil
	}
	if s.store != nil {
		r, err := s.store.Load(id)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, apierrors.Internal(err, "failed to load run")
		}
	}
	return nil, apierrors.NotFound("optimization %s not found", id)
}

// Cancel requests cancellation of a queued or running run.
func (s *Server) Cancel(id string) error {
	j, ok := s.jobs.get(id)
	if !ok {
		if _, err := s.Status(id); err != nil {
			return err
		}
		return apierrors.Conflict("optimization %s has already finished", id)
	}

	r := s.jobs.snapshot(j)
	if r.Done() {
		return apierrors.Conflict("cannot cancel optimization with state %s", r.State)
	}
	j.cancel()

	s.logger.Info("optimization cancellation requested", logging.Fields{"optimization_id": id})
	return nil
}

// List returns summaries of live and stored runs, newest first.
func (s *Server) List() ([]store.RunInfo, error) {
	infos := s.jobs.list()
	if s.store == nil {
		return infos, nil
	}

	stored, err := s.store.List()
	if err != nil {
		return nil, apierrors.Internal(err, "failed to list runs")
	}
	for _, info := range stored {
		if _, live := s.jobs.get(info.ID); !live {
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(a, b int) bool {
		return infos[a].CreatedAt.After(infos[b].CreatedAt)
	})
	return infos, nil
}

// run waits for a worker slot, runs the optimization and records the outcome.
func (s *Server) run(ctx context.Context, j *job, p *Plan) {
	defer s.wg.Done()
	defer j.cancel()

	id := j.record.ID
	logger := s.logger.WithFields(logging.Fields{"optimization_id": id})

	select {
	case s.workers <- struct{}{}:
		defer func() { <-s.workers }()
	case <-ctx.Done():
		s.finish(j, nil, ctx.Err(), 0)
		return
	}

	s.jobs.update(j, func(r *store.RunRecord) { r.State = store.StateRunning })
	logger.Info("optimization started")

	objective := p.Problem.Objective
	if s.metrics != nil {
		defer s.metrics.RunStarted()()
		objective = s.metrics.InstrumentObjective(p.Spec.Algorithm, objective)
	}

	problem := p.Problem
	problem.Objective = func(x []float64) (float64, error) {
		j.calls.Add(1)
		return objective(x)
	}
	problem.Observer = func(value float64, x []float64) error {
		s.jobs.update(j, func(r *store.RunRecord) {
			r.Value = store.Float(value)
			r.X = x
			r.SuccessfulSteps++
		})
		return nil
	}

	start := time.Now()
	result, err := p.Optimizer.Optimize(ctx, problem)
	s.finish(j, result, err, time.Since(start))
}

// finish records the outcome of a run and persists it.
func (s *Server) finish(j *job, result *optimization.OptimizationResult, err error, elapsed time.Duration) {
	now := time.Now().UTC()
	s.jobs.update(j, func(r *store.RunRecord) {
		if err != nil {
			r.Fail(err, errors.Is(err, context.Canceled), now)
			r.Evaluations = int(j.calls.Load())
			return
		}
		r.Complete(result, now)
	})
	record := s.jobs.snapshot(j)

	fields := logging.Fields{
		"optimization_id": record.ID,
		"state":           record.State,
		"evaluations":     record.Evaluations,
	}
	if err != nil {
		fields["error"] = err.Error()
		s.logger.Warn("optimization stopped", fields)
	} else {
		fields["success"] = record.Success
		fields["message"] = record.Message
		s.logger.Info("optimization completed", fields)
	}

	if s.metrics != nil {
		if err != nil {
			s.metrics.ObserveAbort(record.Spec.Algorithm, elapsed)
		} else {
			s.metrics.ObserveRun(result, elapsed)
		}
	}

	// Persisted runs are served from the store from now on. Without a store
	// only the most recent finished runs stay in memory.
	if s.store == nil {
		if n := s.jobs.prune(s.cfg.Optimization.RetainedRuns); n > 0 {
			s.logger.Debug("dropped finished runs", logging.Fields{"count": n})
		}
		return
	}
	if err := s.store.Save(&record); err != nil {
		s.logger.Error("failed to persist run", logging.Fields{
			"optimization_id": record.ID,
			"error":           err.Error(),
		})
		return
	}
	s.jobs.remove(j)
}

// Close cancels all runs and waits for them to stop.
func (s *Server) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

// respondJSON writes v with the given status code.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError writes err as {"error": message} with its HTTP status.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	e := apierrors.From(err)
	if e.Status >= http.StatusInternalServerError {
		s.logger.Error("request failed", logging.Fields{"error": e.Error()})
	}
	respondJSON(w, e.Status, map[string]string{"error": e.Message})
}

// handleOptimize handles POST /api/v1/optimize
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, apierrors.BadRequest("invalid request body: %v", err))
		return
	}

	resp, err := s.Start(req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, resp)
}

// handleStatus handles GET /api/v1/status/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	record, err := s.Status(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// handleCancel handles DELETE /api/v1/optimization/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.Cancel(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
}

// handleRuns handles GET /api/v1/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	infos, err := s.List()
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, infos)
}

// handleBenchmarks handles GET /api/v1/benchmarks
func (s *Server) handleBenchmarks(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, benchmarks.All())
}
