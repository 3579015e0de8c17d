package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/copyleftdev/intervalbb/internal/config"
	apperrors "github.com/copyleftdev/intervalbb/internal/errors"
	"github.com/copyleftdev/intervalbb/internal/logging"
	"github.com/copyleftdev/intervalbb/internal/optimization/bnb"
)

// Logger defines the logging interface used by the server.
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

// Server implements the HTTP and JSON-RPC server for the optimization
// service. It runs interval branch-and-bound jobs in the background and
// lets clients poll and cancel them.
type Server struct {
	cfg          *config.Config
	logger       Logger
	engineLogger *zap.Logger
	templates    []bnb.Options

	jobs jobs
	wg   sync.WaitGroup
}

// NewServer creates a new server. The solver packages log through logger
// as well, tagged with component=solver.
func NewServer(cfg *config.Config, logger Logger) (*Server, error) {
	templates, err := cfg.Templates()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:          cfg,
		logger:       logger,
		engineLogger: logging.NewZapLogger(logger.WithFields(map[string]interface{}{"component": "solver"})),
		templates:    templates,
		jobs:         jobs{byID: make(map[string]*Job)},
	}, nil
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type idParams struct {
	ID string `json:"optimization_id"`
}

// decodeParams accepts either a params object or an array holding one.
func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return apperrors.New("missing required parameters")
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return err
		}
		if len(list) == 0 {
			return apperrors.New("missing required parameters")
		}
		raw = list[0]
	}
	return json.Unmarshal(raw, v)
}

// handleJSONRPC handles JSON-RPC 2.0 requests.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, codeParseError, "Parse error", nil)
		return
	}
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, codeInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "optimization.start":
		var params OptimizeRequest
		if err := decodeParams(request.Params, &params); err != nil {
			s.respondWithError(w, codeInvalidParams, "Invalid params", request.ID)
			return
		}
		var job *Job
		if job, err = s.startJob(params); err == nil {
			result = map[string]interface{}{"optimization_id": job.ID, "status": StatusPending}
		}
	case "optimization.status":
		var params idParams
		if err := decodeParams(request.Params, &params); err != nil || params.ID == "" {
			s.respondWithError(w, codeInvalidParams, "Invalid params", request.ID)
			return
		}
		result, err = s.jobStatus(params.ID)
	case "optimization.cancel":
		var params idParams
		if err := decodeParams(request.Params, &params); err != nil || params.ID == "" {
			s.respondWithError(w, codeInvalidParams, "Invalid params", request.ID)
			return
		}
		if err = s.cancelJob(params.ID); err == nil {
			result = map[string]interface{}{"optimization_id": params.ID, "status": StatusCancelled}
		}
	default:
		s.respondWithError(w, codeMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, codeServerError, err.Error(), request.ID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

// respondWithError sends a JSON-RPC 2.0 error response.
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Warn("RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}

// httpStatus maps job errors to HTTP status codes.
func httpStatus(err error) int {
	switch {
	case apperrors.Is(err, errJobNotFound):
		return http.StatusNotFound
	case apperrors.Is(err, errTooManyJobs):
		return http.StatusTooManyRequests
	case apperrors.Is(err, errJobFinished):
		return http.StatusConflict
	case apperrors.Is(err, errInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleOptimize handles POST /api/v1/optimize.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteJSON(w, http.StatusBadRequest, apperrors.Wrap(err, "invalid request body"))
		return
	}

	job, err := s.startJob(req)
	if err != nil {
		apperrors.WriteJSON(w, httpStatus(err), err)
		return
	}

	logging.FromContext(r.Context()).Info("Optimization started", map[string]interface{}{
		"optimization_id": job.ID,
		"function":        job.Function,
		"workers":         job.Workers,
	})
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"optimization_id": job.ID,
		"status":          StatusPending,
	})
}

// handleStatus handles GET /api/v1/status/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.jobStatus(chi.URLParam(r, "id"))
	if err != nil {
		apperrors.WriteJSON(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCancel handles DELETE /api/v1/optimization/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.cancelJob(id); err != nil {
		apperrors.WriteJSON(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"optimization_id": id,
		"status":          "cancellation requested",
	})
}

// Close cancels every job and waits for their solves to return.
func (s *Server) Close() error {
	s.jobs.mu.Lock()
	for _, job := range s.jobs.byID {
		job.CancelFunc()
	}
	s.jobs.mu.Unlock()

	s.wg.Wait()
	return s.engineLogger.Sync()
}
