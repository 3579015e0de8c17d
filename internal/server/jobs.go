package server

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/copyleftdev/intervalbb/internal/errors"
	"github.com/copyleftdev/intervalbb/internal/optimization"
	"github.com/copyleftdev/intervalbb/internal/optimization/bnb"
	"github.com/copyleftdev/intervalbb/internal/optimization/box"
	"github.com/copyleftdev/intervalbb/internal/optimization/functions"
	"github.com/copyleftdev/intervalbb/internal/optimization/parallel"
)

// JobStatus is the lifecycle state of an optimization job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transition can happen.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// maxAreaBoxes caps the optimum boxes returned in a status.
const maxAreaBoxes = 64

var (
	errJobNotFound  = apperrors.New("optimization not found")
	errTooManyJobs  = apperrors.New("too many active optimizations")
	errJobFinished  = apperrors.New("optimization already finished")
	errInvalidInput = apperrors.New("invalid optimization request")
)

// OptimizeRequest starts a job minimizing a registered benchmark function.
type OptimizeRequest struct {
	Function      string      `json:"function"`
	Bounds        [][]float64 `json:"bounds"`
	Workers       int         `json:"workers,omitempty"`
	Precision     float64     `json:"precision,omitempty"`
	MaxIterations int         `json:"max_iterations,omitempty"`
	Gap           float64     `json:"gap,omitempty"`
	Variants      []string    `json:"variants,omitempty"`
}

// Job tracks one background solve. Fields other than the executor are
// guarded by the server's mutex.
type Job struct {
	ID          string
	Status      JobStatus
	Function    string
	Workers     int
	Precision   float64
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	Err         error

	Executor   *parallel.Executor
	CancelFunc context.CancelFunc
}

// Range is a JSON-safe interval; infinite ends are omitted.
type Range struct {
	Lo *float64 `json:"lo,omitempty"`
	Hi *float64 `json:"hi,omitempty"`
}

// StatusResponse describes a job.
type StatusResponse struct {
	ID               string              `json:"optimization_id"`
	Status           JobStatus           `json:"status"`
	Function         string              `json:"function"`
	Workers          int                 `json:"workers"`
	Precision        float64             `json:"precision"`
	StartTime        string              `json:"start_time"`
	LastUpdate       string              `json:"last_update"`
	EndTime          string              `json:"end_time,omitempty"`
	LowBoundMaxValue *float64            `json:"low_bound_max_value,omitempty"`
	OptimumValue     *Range              `json:"optimum_value,omitempty"`
	OptimumArea      [][][2]float64      `json:"optimum_area,omitempty"`
	AreaBoxes        int                 `json:"area_boxes"`
	Minimizer        []float64           `json:"minimizer,omitempty"`
	Stats            *optimization.Stats `json:"stats,omitempty"`
	Error            string              `json:"error,omitempty"`
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// newExecutor validates req and builds a configured executor for it.
func (s *Server) newExecutor(req OptimizeRequest) (*parallel.Executor, error) {
	if len(req.Bounds) == 0 {
		return nil, apperrors.Wrap(errInvalidInput, "bounds are required")
	}
	bounds := make([][2]float64, len(req.Bounds))
	for i, b := range req.Bounds {
		if len(b) != 2 {
			return nil, apperrors.Wrapf(errInvalidInput, "bound %d must be [min, max]", i)
		}
		bounds[i] = [2]float64{b[0], b[1]}
	}
	area, err := box.FromBounds(bounds)
	if err != nil {
		return nil, apperrors.Wrap(errInvalidInput, err.Error())
	}
	f, err := functions.Lookup(req.Function, area.Dim())
	if err != nil {
		return nil, apperrors.Wrap(errInvalidInput, err.Error())
	}

	opt := s.cfg.Optimization
	workers := req.Workers
	if workers == 0 {
		workers = opt.WorkerCount
	}
	if workers > opt.MaxWorkers {
		return nil, apperrors.Wrapf(errInvalidInput, "workers must be at most %d, got %d", opt.MaxWorkers, workers)
	}
	precision := req.Precision
	if precision == 0 {
		precision = opt.Precision
	}
	maxIterations := req.MaxIterations
	if maxIterations == 0 {
		maxIterations = opt.MaxIterations
	}
	gap := req.Gap
	if gap == 0 {
		gap = opt.Gap
	}
	if maxIterations < 0 || gap < 0 {
		return nil, apperrors.Wrap(errInvalidInput, "max_iterations and gap must not be negative")
	}

	templates := s.templates
	if len(req.Variants) > 0 {
		templates = make([]bnb.Options, 0, len(req.Variants))
		for _, name := range req.Variants {
			o, err := bnb.Variant(name)
			if err != nil {
				return nil, apperrors.Wrap(errInvalidInput, err.Error())
			}
			o.Refine = opt.Refine
			o.LocalSearchEvery = opt.LocalSearchEvery
			templates = append(templates, o)
		}
	}

	e, err := parallel.NewExecutor(workers, s.engineLogger, templates...)
	if err != nil {
		return nil, apperrors.Wrap(errInvalidInput, err.Error())
	}
	e.SetRebalanceInterval(opt.RebalanceInterval)
	if err := e.SetPrecision(precision); err != nil {
		return nil, apperrors.Wrap(errInvalidInput, err.Error())
	}
	if err := e.SetProblem(f, area); err != nil {
		return nil, apperrors.Wrap(errInvalidInput, err.Error())
	}
	e.SetStopCriterion(optimization.Limits(maxIterations, gap))
	return e, nil
}

// jobs holds the job table.
type jobs struct {
	mu   sync.RWMutex
	byID map[string]*Job
}

func (j *jobs) active() int {
	n := 0
	for _, job := range j.byID {
		if !job.Status.Terminal() {
			n++
		}
	}
	return n
}

// startJob registers a job for req and runs it in the background.
func (s *Server) startJob(req OptimizeRequest) (*Job, error) {
	executor, err := s.newExecutor(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	job := &Job{
		ID:          uuid.NewString(),
		Status:      StatusPending,
		Function:    req.Function,
		Workers:     executor.Workers(),
		Precision:   executor.GetPrecision(),
		StartTime:   now,
		LastUpdated: now,
		Executor:    executor,
		CancelFunc:  cancel,
	}

	s.jobs.mu.Lock()
	if s.jobs.active() >= s.cfg.Optimization.MaxJobs {
		s.jobs.mu.Unlock()
		cancel()
		return nil, errTooManyJobs
	}
	s.jobs.byID[job.ID] = job
	s.jobs.mu.Unlock()
	jobsTotal.WithLabelValues(string(StatusPending)).Inc()

	s.wg.Add(1)
	go s.runJob(ctx, job)
	return job, nil
}

// runJob executes the solve and records its outcome.
func (s *Server) runJob(ctx context.Context, job *Job) {
	defer s.wg.Done()
	const op = "runJob"

	s.jobs.mu.Lock()
	if job.Status == StatusPending {
		job.Status = StatusRunning
		job.LastUpdated = time.Now()
	}
	s.jobs.mu.Unlock()

	runningJobs.Inc()
	err := job.Executor.Solve(ctx)
	runningJobs.Dec()

	s.jobs.mu.Lock()
	defer s.jobs.mu.Unlock()

	switch {
	case job.Status == StatusCancelled:
	case err != nil && ctx.Err() != nil:
		job.Status = StatusCancelled
	case err != nil:
		job.Status = StatusFailed
		job.Err = apperrors.Wrap(err, "solve failed").WithComponent("server").WithOperation(op)
		s.logger.Error("Optimization failed", map[string]interface{}{
			"optimization_id": job.ID,
			"error":           job.Err.Error(),
		})
	default:
		job.Status = StatusCompleted
	}
	now := time.Now()
	job.EndTime = &now
	job.LastUpdated = now
	jobsTotal.WithLabelValues(string(job.Status)).Inc()

	s.logger.Info("Optimization finished", map[string]interface{}{
		"optimization_id": job.ID,
		"status":          string(job.Status),
		"duration":        now.Sub(job.StartTime).String(),
	})
}

// jobStatus renders a job. Results appear once the solve returned.
func (s *Server) jobStatus(id string) (*StatusResponse, error) {
	s.jobs.mu.RLock()
	job, ok := s.jobs.byID[id]
	if !ok {
		s.jobs.mu.RUnlock()
		return nil, errJobNotFound
	}
	resp := &StatusResponse{
		ID:         job.ID,
		Status:     job.Status,
		Function:   job.Function,
		Workers:    job.Workers,
		Precision:  job.Precision,
		StartTime:  job.StartTime.Format(time.RFC3339),
		LastUpdate: job.LastUpdated.Format(time.RFC3339),
	}
	if job.EndTime != nil {
		resp.EndTime = job.EndTime.Format(time.RFC3339)
	}
	if job.Err != nil {
		resp.Error = job.Err.Error()
	}
	finished := job.EndTime != nil
	executor := job.Executor
	s.jobs.mu.RUnlock()

	resp.LowBoundMaxValue = finite(executor.GetLowBoundMaxValue())
	if !finished {
		return resp, nil
	}

	value := executor.GetOptimumValue()
	resp.OptimumValue = &Range{Lo: finite(value.Lo()), Hi: finite(value.Hi())}
	stats := executor.Stats()
	resp.Stats = &stats

	area := executor.GetOptimumArea()
	resp.AreaBoxes = len(area)
	var best *box.Box
	for i, b := range area {
		if i < maxAreaBoxes {
			resp.OptimumArea = append(resp.OptimumArea, b.Bounds())
		}
		if best == nil || b.LowerBound() < best.LowerBound() {
			best = b
		}
	}
	if best != nil {
		resp.Minimizer = best.Midpoint()
	}
	return resp, nil
}

// cancelJob requests cancellation of a job that has not finished.
func (s *Server) cancelJob(id string) error {
	s.jobs.mu.Lock()
	defer s.jobs.mu.Unlock()

	job, ok := s.jobs.byID[id]
	if !ok {
		return errJobNotFound
	}
	if job.Status.Terminal() {
		return apperrors.Wrap(errJobFinished, fmt.Sprintf("cannot cancel optimization with status: %s", job.Status))
	}

	job.CancelFunc()
	job.Status = StatusCancelled
	job.LastUpdated = time.Now()

	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})
	return nil
}
