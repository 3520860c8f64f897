package http

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/toolsascode/sqldatabase/internal/api/http/dto"
	"github.com/toolsascode/sqldatabase/internal/auth"
	"github.com/toolsascode/sqldatabase/internal/errs"
	"github.com/toolsascode/sqldatabase/internal/executor"
	"github.com/toolsascode/sqldatabase/internal/registry"
)

// Runner is the part of *executor.Runner served over HTTP
type Runner interface {
	Sequence(ctx context.Context) ([]*registry.Step, error)
	Upgrade(ctx context.Context, opts executor.RunOptions) (*executor.ExecuteResult, error)
	HealthCheck(ctx context.Context) (string, error)
}

// Handler handles HTTP API requests
type Handler struct {
	runner Runner
	tokens *auth.TokenValidator
}

// NewHandler creates a new HTTP handler
func NewHandler(runner Runner, tokens *auth.TokenValidator) *Handler {
	return &Handler{
		runner: runner,
		tokens: tokens,
	}
}

// NewRouter creates a gin engine with the request log, recovery and CORS
// middleware and the API routes
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()

	// Custom logger middleware that skips health check endpoints
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		if param.Path == "/health" || param.Path == "/api/v1/health" {
			return ""
		}
		return fmt.Sprintf("[GIN] %s | %3d | %13v | %15s | %-7s %s\n",
			param.TimeStamp.Format("2006/01/02 - 15:04:05"),
			param.StatusCode,
			param.Latency,
			param.ClientIP,
			param.Method,
			param.Path,
		)
	}))
	router.Use(gin.Recovery())
	router.Use(cors)

	h.RegisterRoutes(router)
	return router
}

func cors(c *gin.Context) {
	origin := c.Request.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin, X-Requested-With")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	c.Writer.Header().Set("Access-Control-Max-Age", "86400")

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

// RegisterRoutes registers HTTP routes
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	api := router.Group("/api/v1")
	{
		api.GET("/health", h.Health)
		api.GET("/sequence", h.authenticate, h.sequence)
		api.POST("/upgrade", h.authenticate, h.upgrade)
		api.GET("/openapi.yaml", h.OpenAPISpec)
		api.GET("/openapi.json", h.OpenAPISpecJSON)
	}
}

// authenticate middleware validates API token
func (h *Handler) authenticate(c *gin.Context) {
	if err := h.tokens.ValidateHeader(c.GetHeader("Authorization")); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.Next()
}

// withOrigin records the caller of a request in its context
func (h *Handler) withOrigin(c *gin.Context) context.Context {
	method := "api"
	if c.GetHeader("Origin") != "" || c.GetHeader("X-Requested-With") != "" {
		method = "manual"
	}

	return executor.WithOrigin(c.Request.Context(), executor.Origin{
		ExecutedBy: "api_user",
		Method:     method,
		Details: map[string]string{
			"endpoint":    c.Request.URL.Path,
			"http_method": c.Request.Method,
			"client_ip":   c.ClientIP(),
		},
	})
}

// sequence returns the pending upgrade steps without running them
func (h *Handler) sequence(c *gin.Context) {
	steps, err := h.runner.Sequence(c.Request.Context())
	if err != nil {
		c.JSON(errorStatus(err), errorResponse(err))
		return
	}

	response := dto.SequenceResponse{
		Steps: make([]dto.SequenceStep, 0, len(steps)),
		Total: len(steps),
	}
	for _, step := range steps {
		response.Steps = append(response.Steps, dto.SequenceStep{
			Module: step.ModuleName,
			From:   step.From.String(),
			To:     step.To.String(),
			Script: step.DisplayName(),
		})
	}
	c.JSON(http.StatusOK, response)
}

// upgrade handles upgrade requests
func (h *Handler) upgrade(c *gin.Context) {
	var req dto.UpgradeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
			return
		}
	}

	mode := executor.TransactionMode("")
	if req.Transaction != "" {
		parsed, err := executor.ParseTransactionMode(req.Transaction)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err))
			return
		}
		mode = parsed
	}

	ctx := h.withOrigin(c)
	result, err := h.runner.Upgrade(ctx, executor.RunOptions{
		WhatIf:      req.WhatIf,
		Transaction: mode,
		Variables:   req.Variables,
	})
	if result == nil {
		if err == nil {
			err = errors.New("upgrade returned no result")
		}
		c.JSON(errorStatus(err), errorResponse(err))
		return
	}

	response := dto.UpgradeResponse{
		RunID:   result.RunID,
		Success: result.Success && err == nil,
		WhatIf:  result.WhatIf,
		Applied: result.Applied,
		Errors:  result.Errors,
		Queued:  result.Queued,
		JobID:   result.JobID,
	}

	statusCode := http.StatusOK
	switch {
	case err != nil:
		statusCode = errorStatus(err)
	case result.Queued:
		statusCode = http.StatusAccepted
	}
	c.JSON(statusCode, response)
}

// Health handles health check requests
func (h *Handler) Health(c *gin.Context) {
	serverVersion, err := h.runner.HealthCheck(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"checks": gin.H{"database": err.Error()},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"checks": gin.H{"database": "ok"},
		"server": strings.TrimSpace(serverVersion),
	})
}

//go:embed openapi.yaml
var openAPISpecYAML []byte

// OpenAPISpec serves the OpenAPI specification in YAML format
func (h *Handler) OpenAPISpec(c *gin.Context) {
	c.Data(http.StatusOK, "application/x-yaml", openAPISpecYAML)
}

// OpenAPISpecJSON serves the OpenAPI specification in JSON format
func (h *Handler) OpenAPISpecJSON(c *gin.Context) {
	var spec map[string]interface{}
	if err := yaml.Unmarshal(openAPISpecYAML, &spec); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to parse OpenAPI spec"})
		return
	}
	c.JSON(http.StatusOK, spec)
}

// errorStatus maps the error taxonomy to status codes: problems with the
// scripts or the configuration are 422, everything else is 500
func errorStatus(err error) int {
	if errors.Is(err, errs.ErrConfiguration) || errors.Is(err, errs.ErrSequence) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func errorResponse(err error) dto.ErrorResponse {
	response := dto.ErrorResponse{Error: err.Error()}
	switch {
	case errors.Is(err, errs.ErrSequence):
		response.Kind = "sequence"
		var seqErr *registry.SequenceError
		if errors.As(err, &seqErr) {
			for _, step := range seqErr.Blocked {
				response.Blocked = append(response.Blocked, step.DisplayName())
			}
		}
	case errors.Is(err, errs.ErrConfiguration):
		response.Kind = "configuration"
	case errors.Is(err, errs.ErrExecution):
		response.Kind = "execution"
	}
	return response
}
