package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/intervalbb/internal/config"
	"github.com/copyleftdev/intervalbb/internal/logging"
	"github.com/copyleftdev/intervalbb/internal/optimization/functions"
	"github.com/copyleftdev/intervalbb/internal/optimization/optimtest"
)

// testConfig creates a test configuration with default values
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Environment: "test",
	}

	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.IdleTimeout = 120 * time.Second
	cfg.HTTP.ShutdownTimeout = 30 * time.Second

	cfg.Logging.Level = "error"
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "stderr"

	cfg.Optimization.WorkerCount = 2
	cfg.Optimization.MaxWorkers = 8
	cfg.Optimization.Precision = 1e-6
	cfg.Optimization.Variants = []string{"best-first"}
	cfg.Optimization.RebalanceInterval = time.Millisecond
	cfg.Optimization.Refine = true
	cfg.Optimization.MaxJobs = 4

	return cfg
}

// testLogger creates a test logger
func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(&logging.Config{
		Level:  "error",
		Format: "text",
		Output: "stderr",
	})
	require.NoError(t, err, "Failed to create logger")
	return logger
}

// newTestServer returns a server with its routes mounted on a router. The
// server is closed when the test ends.
func newTestServer(t *testing.T, cfg *config.Config) (*Server, chi.Router) {
	t.Helper()
	srv, err := NewServer(cfg, testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return srv, r
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, path, &buf))
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(v), rr.Body.String())
}

func startJob(t *testing.T, r http.Handler, req OptimizeRequest) string {
	t.Helper()
	rr := do(t, r, http.MethodPost, "/api/v1/optimize", req)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var resp map[string]interface{}
	decodeBody(t, rr, &resp)
	id, _ := resp["optimization_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, string(StatusPending), resp["status"])
	return id
}

func status(t *testing.T, r http.Handler, id string) StatusResponse {
	t.Helper()
	rr := do(t, r, http.MethodGet, "/api/v1/status/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp StatusResponse
	decodeBody(t, rr, &resp)
	return resp
}

// slowRequest describes a search that does not finish on its own within
// any test timeout.
func slowRequest() OptimizeRequest {
	bounds := make([][]float64, 12)
	for i := range bounds {
		bounds[i] = []float64{-5.12, 5.12}
	}
	return OptimizeRequest{Function: "rastrigin", Bounds: bounds, Workers: 2, Precision: 1e-12}
}

func TestNewServer(t *testing.T) {
	srv, err := NewServer(testConfig(t), testLogger(t))
	require.NoError(t, err)
	assert.NotNil(t, srv, "Server should be created")
	assert.Len(t, srv.templates, 1)

	cfg := testConfig(t)
	cfg.Optimization.Variants = []string{"no-such-variant"}
	_, err = NewServer(cfg, testLogger(t))
	assert.Error(t, err)
}

func TestRegisterRoutes(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))

	// Handlers answer in JSON; chi's own 404 and 405 replies do not.
	tests := []struct {
		method      string
		path        string
		shouldExist bool
	}{
		{"POST", "/api/v1/optimize", true},
		{"GET", "/api/v1/status/123", true},
		{"DELETE", "/api/v1/optimization/123", true},
		{"POST", "/rpc", true},
		{"GET", "/healthz", false}, // Not registered by server package
		{"GET", "/nonexistent", false},
		{"POST", "/api/v1/status/123", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := do(t, r, tt.method, tt.path, nil)
			isJSON := rr.Header().Get("Content-Type") == "application/json"
			assert.Equal(t, tt.shouldExist, isJSON, "status %d", rr.Code)
		})
	}
}

func TestOptimizeCompletes(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))

	id := startJob(t, r, OptimizeRequest{
		Function: "parabola",
		Bounds:   [][]float64{{-1, 1}, {-1, 1}},
	})

	require.Eventually(t, func() bool {
		return status(t, r, id).Status == StatusCompleted
	}, 10*time.Second, 10*time.Millisecond)

	resp := status(t, r, id)
	assert.Equal(t, "parabola", resp.Function)
	assert.Equal(t, 2, resp.Workers)
	assert.NotEmpty(t, resp.EndTime)
	assert.Empty(t, resp.Error)

	require.NotNil(t, resp.OptimumValue)
	require.NotNil(t, resp.OptimumValue.Lo)
	require.NotNil(t, resp.OptimumValue.Hi)
	assert.LessOrEqual(t, *resp.OptimumValue.Lo, 0.0)
	assert.LessOrEqual(t, *resp.OptimumValue.Hi, 1e-5)

	require.NotNil(t, resp.LowBoundMaxValue)
	assert.InDelta(t, 0, *resp.LowBoundMaxValue, 1e-5)

	assert.Positive(t, resp.AreaBoxes)
	assert.NotEmpty(t, resp.OptimumArea)
	c := functions.ParabolaCenter
	optimtest.AssertFloat64SlicesEqual(t, resp.Minimizer, []float64{c, c}, 1e-2)
	require.NotNil(t, resp.Stats)
	assert.Positive(t, resp.Stats.Evaluations)
}

func TestOptimizeInvalidRequests(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))

	tests := []struct {
		name string
		req  OptimizeRequest
	}{
		{name: "unknown function", req: OptimizeRequest{Function: "nope", Bounds: [][]float64{{0, 1}}}},
		{name: "no bounds", req: OptimizeRequest{Function: "sphere"}},
		{name: "malformed bound", req: OptimizeRequest{Function: "sphere", Bounds: [][]float64{{0}}}},
		{name: "reversed bound", req: OptimizeRequest{Function: "sphere", Bounds: [][]float64{{1, 0}}}},
		{name: "wrong dimension", req: OptimizeRequest{Function: "booth", Bounds: [][]float64{{0, 1}}}},
		{name: "negative workers", req: OptimizeRequest{Function: "sphere", Bounds: [][]float64{{0, 1}}, Workers: -1}},
		{name: "too many workers", req: OptimizeRequest{Function: "sphere", Bounds: [][]float64{{0, 1}}, Workers: 9}},
		{name: "negative gap", req: OptimizeRequest{Function: "sphere", Bounds: [][]float64{{0, 1}}, Gap: -1}},
		{name: "negative precision", req: OptimizeRequest{Function: "sphere", Bounds: [][]float64{{0, 1}}, Precision: -1}},
		{name: "unknown variant", req: OptimizeRequest{Function: "sphere", Bounds: [][]float64{{0, 1}}, Variants: []string{"x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, r, http.MethodPost, "/api/v1/optimize", tt.req)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

			var body map[string]string
			decodeBody(t, rr, &body)
			assert.NotEmpty(t, body["error"])
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/optimize", bytes.NewBufferString("{")))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestStatusNotFound(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))

	rr := do(t, r, http.MethodGet, "/api/v1/status/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, r, http.MethodDelete, "/api/v1/optimization/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCancel(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))

	id := startJob(t, r, slowRequest())

	rr := do(t, r, http.MethodDelete, "/api/v1/optimization/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	require.Eventually(t, func() bool {
		return status(t, r, id).EndTime != ""
	}, 10*time.Second, 10*time.Millisecond)

	resp := status(t, r, id)
	assert.Equal(t, StatusCancelled, resp.Status)
	// A cancelled search still reports what it knew.
	require.NotNil(t, resp.OptimumValue)
	assert.Positive(t, resp.AreaBoxes)
	assert.LessOrEqual(t, len(resp.OptimumArea), maxAreaBoxes)

	rr = do(t, r, http.MethodDelete, "/api/v1/optimization/"+id, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestOptimizeTooManyJobs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Optimization.MaxJobs = 1
	_, r := newTestServer(t, cfg)

	id := startJob(t, r, slowRequest())

	rr := do(t, r, http.MethodPost, "/api/v1/optimize", slowRequest())
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// Cancelling frees the slot.
	require.Equal(t, http.StatusOK, do(t, r, http.MethodDelete, "/api/v1/optimization/"+id, nil).Code)
	startJob(t, r, OptimizeRequest{Function: "sphere", Bounds: [][]float64{{-1, 2}}})
}

func rpc(t *testing.T, r http.Handler, method string, params interface{}) map[string]interface{} {
	t.Helper()
	rr := do(t, r, http.MethodPost, "/rpc", map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]interface{}
	decodeBody(t, rr, &resp)
	return resp
}

func TestJSONRPCLifecycle(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))

	resp := rpc(t, r, "optimization.start", OptimizeRequest{
		Function: "sphere",
		Bounds:   [][]float64{{-1, 2}},
		Workers:  1,
	})
	require.Nil(t, resp["error"])
	result, ok := resp["result"].(map[string]interface{})
	require.True(t, ok)
	id, _ := result["optimization_id"].(string)
	require.NotEmpty(t, id)

	// Positional params are accepted too.
	require.Eventually(t, func() bool {
		resp := rpc(t, r, "optimization.status", []interface{}{map[string]string{"optimization_id": id}})
		result, _ := resp["result"].(map[string]interface{})
		return result["status"] == string(StatusCompleted)
	}, 10*time.Second, 10*time.Millisecond)

	resp = rpc(t, r, "optimization.cancel", map[string]string{"optimization_id": id})
	errObj, ok := resp["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(codeServerError), errObj["code"])

	slow := rpc(t, r, "optimization.start", slowRequest())
	id = slow["result"].(map[string]interface{})["optimization_id"].(string)
	resp = rpc(t, r, "optimization.cancel", map[string]string{"optimization_id": id})
	require.Nil(t, resp["error"])
	assert.Equal(t, string(StatusCancelled), resp["result"].(map[string]interface{})["status"])
}

func TestJSONRPCErrors(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))

	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "parse error", body: `{"jsonrpc":`, code: codeParseError},
		{name: "wrong version", body: `{"jsonrpc":"1.0","id":1,"method":"optimization.status"}`, code: codeInvalidRequest},
		{name: "missing method", body: `{"jsonrpc":"2.0","id":1}`, code: codeInvalidRequest},
		{name: "unknown method", body: `{"jsonrpc":"2.0","id":1,"method":"optimization.pause"}`, code: codeMethodNotFound},
		{name: "missing params", body: `{"jsonrpc":"2.0","id":1,"method":"optimization.status"}`, code: codeInvalidParams},
		{name: "empty params array", body: `{"jsonrpc":"2.0","id":1,"method":"optimization.cancel","params":[]}`, code: codeInvalidParams},
		{name: "bad start params", body: `{"jsonrpc":"2.0","id":1,"method":"optimization.start","params":{"bounds":"x"}}`, code: codeInvalidParams},
		{name: "invalid start", body: `{"jsonrpc":"2.0","id":1,"method":"optimization.start","params":{"function":"nope","bounds":[[0,1]]}}`, code: codeServerError},
		{name: "unknown id", body: `{"jsonrpc":"2.0","id":1,"method":"optimization.status","params":{"optimization_id":"missing"}}`, code: codeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewBufferString(tt.body)))
			assert.Equal(t, http.StatusOK, rr.Code)

			var resp map[string]interface{}
			decodeBody(t, rr, &resp)
			errObj, ok := resp["error"].(map[string]interface{})
			require.True(t, ok, "response should contain error object")
			assert.Equal(t, float64(tt.code), errObj["code"])
			assert.Equal(t, "2.0", resp["jsonrpc"])
		})
	}
}

func TestRespondWithError(t *testing.T) {
	srv, err := NewServer(testConfig(t), testLogger(t))
	require.NoError(t, err)

	tests := []struct {
		name       string
		code       int
		message    string
		id         interface{}
		expectedID interface{}
	}{
		{name: "string id", code: codeInvalidParams, message: "invalid input", id: "123", expectedID: "123"},
		{name: "nil id", code: codeServerError, message: "server error", id: nil, expectedID: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.respondWithError(rr, tt.code, tt.message, tt.id)

			// Errors travel in the body with a 200 status.
			assert.Equal(t, http.StatusOK, rr.Code)

			var response map[string]interface{}
			decodeBody(t, rr, &response)
			errObj, ok := response["error"].(map[string]interface{})
			require.True(t, ok, "response should contain error object")
			assert.Equal(t, float64(tt.code), errObj["code"])
			assert.Equal(t, tt.message, errObj["message"])
			assert.Equal(t, tt.expectedID, response["id"])
		})
	}
}

func TestClose(t *testing.T) {
	srv, err := NewServer(testConfig(t), testLogger(t))
	require.NoError(t, err)

	_, err = srv.startJob(slowRequest())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Close() }()
	select {
	case err := <-done:
		assert.NoError(t, err, "Close should not return an error")
	case <-time.After(10 * time.Second):
		t.Fatal("Close did not return")
	}
}
