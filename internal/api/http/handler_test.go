package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/toolsascode/sqldatabase/internal/api/http/dto"
	"github.com/toolsascode/sqldatabase/internal/auth"
	"github.com/toolsascode/sqldatabase/internal/errs"
	"github.com/toolsascode/sqldatabase/internal/executor"
	"github.com/toolsascode/sqldatabase/internal/registry"
	"github.com/toolsascode/sqldatabase/internal/scripts"
	"github.com/toolsascode/sqldatabase/internal/version"
)

const testToken = "test-token"

// mockRunner is a mock implementation of Runner
type mockRunner struct {
	steps       []*registry.Step
	sequenceErr error

	result     *executor.ExecuteResult
	upgradeErr error
	lastOpts   executor.RunOptions
	executedBy string
	method     string
	endpoint   string

	serverVersion string
	healthErr     error
}

func (m *mockRunner) Sequence(ctx context.Context) ([]*registry.Step, error) {
	return m.steps, m.sequenceErr
}

func (m *mockRunner) Upgrade(ctx context.Context, opts executor.RunOptions) (*executor.ExecuteResult, error) {
	m.lastOpts = opts
	origin := executor.OriginFrom(ctx)
	m.executedBy, m.method, m.endpoint = origin.ExecutedBy, origin.Method, origin.Details["endpoint"]
	return m.result, m.upgradeErr
}

func (m *mockRunner) HealthCheck(ctx context.Context) (string, error) {
	return m.serverVersion, m.healthErr
}

func newStep(module, from, to, name string) *registry.Step {
	step := &registry.Step{
		ModuleName: module,
		From:       version.MustParse(from),
		To:         version.MustParse(to),
	}
	step.Script = &scripts.Script{DisplayName: name, ModuleName: module, From: step.From, To: step.To}
	return step
}

func setupRouter(runner Runner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewHandler(runner, auth.NewTokenValidator(testToken)))
}

func doRequest(router *gin.Engine, method, path, body string, authorized bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorized {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		runner     *mockRunner
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "healthy", runner: &mockRunner{serverVersion: "3.45.0"}, path: "/health", wantStatus: http.StatusOK, wantBody: `"healthy"`},
		{name: "healthy api path", runner: &mockRunner{serverVersion: "3.45.0"}, path: "/api/v1/health", wantStatus: http.StatusOK, wantBody: "3.45.0"},
		{name: "unhealthy", runner: &mockRunner{healthErr: errors.New("connection refused")}, path: "/health", wantStatus: http.StatusServiceUnavailable, wantBody: "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(setupRouter(tt.runner), http.MethodGet, tt.path, "", false)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %s", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHandler_Authentication(t *testing.T) {
	router := setupRouter(&mockRunner{})

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic " + testToken},
		{name: "wrong token", header: "Bearer nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sequence", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestHandler_Sequence(t *testing.T) {
	runner := &mockRunner{steps: []*registry.Step{
		newStep("a", "1.0", "2.0", "a.1.0-2.0.sql"),
		newStep("b", "1.0", "2.0", "b.1.0-2.0.sql"),
	}}

	w := doRequest(setupRouter(runner), http.MethodGet, "/api/v1/sequence", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var response dto.SequenceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Total != 2 || response.Steps[0].Module != "a" || response.Steps[1].Script != "b.1.0-2.0.sql" || response.Steps[0].To != "2.0" {
		t.Errorf("response = %+v", response)
	}
}

func TestHandler_SequenceEmpty(t *testing.T) {
	w := doRequest(setupRouter(&mockRunner{}), http.MethodGet, "/api/v1/sequence", "", true)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"steps":[]`) {
		t.Errorf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandler_SequenceErrors(t *testing.T) {
	stuck := &registry.SequenceError{
		Blocked: []*registry.Step{newStep("a", "1.0", "2.0", "a.1.0-2.0.sql"), newStep("b", "1.0", "2.0", "b.1.0-2.0.sql")},
	}

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantKind    string
		wantBlocked int
	}{
		{name: "stuck", err: stuck, wantStatus: http.StatusUnprocessableEntity, wantKind: "sequence", wantBlocked: 2},
		{name: "configuration", err: errs.Config("module [a]: version gap"), wantStatus: http.StatusUnprocessableEntity, wantKind: "configuration"},
		{name: "database", err: errs.Execution(errors.New("refused"), "failed to read the version"), wantStatus: http.StatusInternalServerError, wantKind: "execution"},
		{name: "other", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(setupRouter(&mockRunner{sequenceErr: tt.err}), http.MethodGet, "/api/v1/sequence", "", true)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var response dto.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Kind != tt.wantKind || len(response.Blocked) != tt.wantBlocked {
				t.Errorf("response = %+v", response)
			}
		})
	}
}

func TestHandler_Upgrade(t *testing.T) {
	runner := &mockRunner{result: &executor.ExecuteResult{
		RunID:   "run-1",
		Success: true,
		Applied: []string{"1.0-2.0.sql"},
		Errors:  []string{},
	}}

	body := `{"what_if": true, "transaction": "perStep", "variables": {"Schema": "sales"}}`
	w := doRequest(setupRouter(runner), http.MethodPost, "/api/v1/upgrade", body, true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	if !runner.lastOpts.WhatIf || runner.lastOpts.Transaction != executor.TransactionPerStep || runner.lastOpts.Variables["Schema"] != "sales" {
		t.Errorf("run options = %+v", runner.lastOpts)
	}
	if runner.executedBy != "api_user" || runner.method != "api" || runner.endpoint != "/api/v1/upgrade" {
		t.Errorf("origin = %q, %q, %q", runner.executedBy, runner.method, runner.endpoint)
	}

	var response dto.UpgradeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Success || response.RunID != "run-1" || len(response.Applied) != 1 {
		t.Errorf("response = %+v", response)
	}
}

func TestHandler_UpgradeWithoutBody(t *testing.T) {
	runner := &mockRunner{result: &executor.ExecuteResult{Success: true, Applied: []string{}, Errors: []string{}}}

	w := doRequest(setupRouter(runner), http.MethodPost, "/api/v1/upgrade", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if runner.lastOpts.WhatIf || runner.lastOpts.Transaction != "" {
		t.Errorf("run options = %+v", runner.lastOpts)
	}
}

func TestHandler_UpgradeQueued(t *testing.T) {
	runner := &mockRunner{result: &executor.ExecuteResult{Success: true, Queued: true, JobID: "job_1", Applied: []string{}, Errors: []string{}}}

	w := doRequest(setupRouter(runner), http.MethodPost, "/api/v1/upgrade", `{}`, true)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"job_id":"job_1"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestHandler_UpgradeFailures(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		runner     *mockRunner
		wantStatus int
		wantBody   string
	}{
		{
			name:       "invalid json",
			body:       `{"what_if": "yes"`,
			runner:     &mockRunner{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid transaction",
			body:       `{"transaction": "nested"}`,
			runner:     &mockRunner{},
			wantStatus: http.StatusBadRequest,
			wantBody:   "unknown transaction mode",
		},
		{
			name: "execution error",
			body: `{}`,
			runner: &mockRunner{
				result:     &executor.ExecuteResult{Applied: []string{"1.0-2.0.sql"}, Errors: []string{"2.0-3.0.sql failed"}},
				upgradeErr: errs.Execution(errors.New("syntax error"), "2.0-3.0.sql failed at batch 1"),
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `"applied":["1.0-2.0.sql"]`,
		},
		{
			name: "configuration error",
			body: `{}`,
			runner: &mockRunner{
				result:     &executor.ExecuteResult{Applied: []string{}, Errors: []string{"version gap"}},
				upgradeErr: errs.Config("version gap"),
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `"success":false`,
		},
		{
			name:       "queue failure",
			body:       `{}`,
			runner:     &mockRunner{upgradeErr: errors.New("failed to queue upgrade job: broker down")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "broker down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(setupRouter(tt.runner), http.MethodPost, "/api/v1/upgrade", tt.body, true)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %s", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHandler_OpenAPISpec(t *testing.T) {
	router := setupRouter(&mockRunner{})

	w := doRequest(router, http.MethodGet, "/api/v1/openapi.yaml", "", false)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), "openapi:") {
		t.Errorf("yaml status = %d", w.Code)
	}

	w = doRequest(router, http.MethodGet, "/api/v1/openapi.json", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("json status = %d", w.Code)
	}
	var spec map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &spec); err != nil {
		t.Fatalf("invalid JSON spec: %v", err)
	}
	if _, ok := spec["paths"]; !ok {
		t.Error("spec has no paths")
	}
}

func TestHandler_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/upgrade", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	w := httptest.NewRecorder()
	setupRouter(&mockRunner{}).ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
