// Package api serves case income and means test results over HTTP.
package api

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bankruptcy-workers/internal/casefile"
	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/common/logger"
	"bankruptcy-workers/internal/models"
	"bankruptcy-workers/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CaseService is what the API needs from the case file service.
type CaseService interface {
	IncomeSummary(ctx context.Context, caseID string) (models.IncomeSummary, error)
	RecomputeIncome(ctx context.Context, caseID string, opts casefile.RecomputeOptions) (casefile.RecomputeResult, error)
	MeansTest(ctx context.Context, caseID string, asOf time.Time) (models.MeansTestResult, error)
}

// ReadinessCheck reports whether one dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type Server struct {
	Echo    *echo.Echo
	service CaseService
	checks  map[string]ReadinessCheck
	log     logger.Logger
	now     func() time.Time
}

func NewServer(service CaseService, checks map[string]ReadinessCheck, log logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		Echo:    e,
		service: service,
		checks:  checks,
		log:     log.WithFields(map[string]interface{}{"component": "api"}),
		now:     func() time.Time { return time.Now().UTC() },
	}
	e.Use(s.requestLogger)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/ready", s.handleReady)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	cases := s.Echo.Group("/cases/:caseId")
	cases.GET("/income", s.handleGetIncome)
	cases.POST("/income/recompute", s.handleRecompute)
	cases.GET("/means-test", s.handleMeansTest)
	cases.GET("/means-test/report", s.handleMeansTestReport)
}

func (s *Server) Start(address string) error {
	return s.Echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.log.Debug("HTTP request", map[string]interface{}{
			"method":    c.Request().Method,
			"path":      c.Path(),
			"status":    c.Response().Status,
			"duration":  time.Since(start).String(),
			"requestId": c.Response().Header().Get(echo.HeaderXRequestID),
		})
		return nil
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleReady(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	return c.JSON(status, results)
}

type recomputeRequest struct {
	DocumentIDs []string `json:"documentIds"`
}

func (s *Server) handleGetIncome(c echo.Context) error {
	summary, err := s.service.IncomeSummary(c.Request().Context(), c.Param("caseId"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleRecompute(c echo.Context) error {
	var req recomputeRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return s.errorResponse(c, errors.NewInvalidRequestError("request body must be JSON with an optional documentIds list"))
		}
	}

	result, err := s.service.RecomputeIncome(c.Request().Context(), c.Param("caseId"), casefile.RecomputeOptions{
		CollectDocuments: req.DocumentIDs,
	})
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleMeansTest(c echo.Context) error {
	asOf, err := parseAsOf(c.QueryParam("asOf"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	result, err := s.service.MeansTest(c.Request().Context(), c.Param("caseId"), asOf)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleMeansTestReport(c echo.Context) error {
	ctx := c.Request().Context()
	caseID := c.Param("caseId")

	format, err := report.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return s.errorResponse(c, errors.NewInvalidRequestError(err.Error()))
	}
	asOf, err := parseAsOf(c.QueryParam("asOf"))
	if err != nil {
		return s.errorResponse(c, err)
	}

	means, err := s.service.MeansTest(ctx, caseID, asOf)
	if err != nil {
		return s.errorResponse(c, err)
	}
	r := report.Report{CaseID: caseID, MeansTest: &means, GeneratedAt: s.now()}

	summary, err := s.service.IncomeSummary(ctx, caseID)
	switch {
	case err == nil:
		r.Income = &summary
	case !errors.HasCode(err, errors.ErrCodeIncomeNotComputed):
		return s.errorResponse(c, err)
	}

	if format == report.FormatXLSX {
		data, err := report.XLSX(r)
		if err != nil {
			return s.errorResponse(c, err)
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="means-test-`+caseID+`.xlsx"`)
		return c.Blob(http.StatusOK, xlsxContentType, data)
	}

	var buf bytes.Buffer
	if err := report.WriteText(&buf, r); err != nil {
		return s.errorResponse(c, err)
	}
	return c.String(http.StatusOK, buf.String())
}

func parseAsOf(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, errors.NewInvalidRequestError("asOf must be a date in YYYY-MM-DD form")
	}
	return t, nil
}

// errorResponse writes err as {"error": StandardError}. Errors that are not
// StandardErrors are reported as INTERNAL_ERROR without their text.
func (s *Server) errorResponse(c echo.Context, err error) error {
	stdErr, ok := errors.AsStandardError(err)
	if !ok {
		s.log.Error("Unhandled API error", map[string]interface{}{"path": c.Path(), "error": err.Error()})
		stdErr = &errors.StandardError{
			Code:      errors.ErrCodeInternal,
			Message:   "internal error",
			Timestamp: s.now(),
		}
	}
	return c.JSON(statusFor(stdErr.Code), map[string]interface{}{"error": stdErr})
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeCaseContextMissing, errors.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case errors.ErrCodeIncomeNotComputed, errors.ErrCodeCaseFinancialsMissing:
		return http.StatusNotFound
	case errors.ErrCodeCaseLockTimeout:
		return http.StatusConflict
	case errors.ErrCodeDataIntegrityViolation:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeDocIntelUnavailable, errors.ErrCodeDocIntelTimeout:
		return http.StatusBadGateway
	case errors.ErrCodeQueryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
