package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lab-analysis-engine/internal/domain"
	"github.com/lab-analysis-engine/internal/middleware"
)

const maxClassifyNames = 500

// ExportRequest asks for the clipboard text of a payload
type ExportRequest struct {
	Payload  domain.AnalysisPayload `json:"payload" binding:"required"`
	Category *domain.CategoryKey    `json:"category,omitempty"`
}

// LabResultsRequest carries a flat list of lab results without a backend analysis
type LabResultsRequest struct {
	LabResults []domain.LabResult `json:"lab_results" binding:"required"`
}

// ClassifyRequest lists test names to categorize
type ClassifyRequest struct {
	TestNames []string `json:"test_names" binding:"required"`
}

// EvaluateResponse pairs an evaluation with the result's category
type EvaluateResponse struct {
	Category   domain.CategoryKey `json:"category"`
	Evaluation domain.Evaluation  `json:"evaluation"`
}

// FeedbackRequest records a clinician's category for a test name
type FeedbackRequest struct {
	TestName     string             `json:"test_name" binding:"required"`
	UserCategory domain.CategoryKey `json:"user_category" binding:"required"`
	Notes        string             `json:"notes"`
}

func (s *Server) handleCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": s.deps.Analysis.Categories()})
}

func (s *Server) handleBuildViews(c *gin.Context) {
	var payload domain.AnalysisPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.respondBindError(c, err)
		return
	}

	result, err := s.deps.Analysis.BuildViews(c.Request.Context(), payload)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleExport(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	text, err := s.deps.Analysis.Export(c.Request.Context(), req.Payload, req.Category)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.respondText(c, text)
}

func (s *Server) handleBuildResultViews(c *gin.Context) {
	var req LabResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	result, err := s.deps.Analysis.BuildViewsFromResults(c.Request.Context(), req.LabResults)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleExportResults(c *gin.Context) {
	var req LabResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	s.respondText(c, s.deps.Analysis.ExportResults(req.LabResults))
}

func (s *Server) handleListAudits(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		s.respondError(c, err)
		return
	}

	audits, err := s.deps.Analysis.RecentAudits(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"audits": audits})
}

func (s *Server) handleGetAudit(c *gin.Context) {
	audit, err := s.deps.Analysis.AuditByRequestID(c.Request.Context(), c.Param("request_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, audit)
}

func (s *Server) handleClassify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}
	if len(req.TestNames) == 0 {
		s.respondError(c, domain.NewValidationError("test_names", "at least one test name is required", nil))
		return
	}
	if len(req.TestNames) > maxClassifyNames {
		s.respondError(c, domain.NewValidationError("test_names",
			fmt.Sprintf("at most %d test names per request", maxClassifyNames), len(req.TestNames)))
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": s.deps.Analysis.ClassifyNames(req.TestNames)})
}

func (s *Server) handleEvaluate(c *gin.Context) {
	var result domain.LabResult
	if err := c.ShouldBindJSON(&result); err != nil {
		s.respondBindError(c, err)
		return
	}

	c.JSON(http.StatusOK, EvaluateResponse{
		Category:   s.deps.Analysis.Classify(result.TestName),
		Evaluation: s.deps.Analysis.EvaluateResult(result),
	})
}

func (s *Server) requireFeedback(c *gin.Context) {
	if s.deps.Feedback == nil {
		middleware.AbortWithError(c, domain.NewAPIError(
			domain.ErrUnavailable, "Feedback store is not configured", "", middleware.GetCorrelationID(c)))
		return
	}
	c.Next()
}

func (s *Server) handleSubmitFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	fb, err := s.deps.Feedback.Submit(c.Request.Context(), req.TestName, req.UserCategory, req.Notes)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, fb)
}

func (s *Server) handleListFeedback(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		s.respondError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.respondError(c, err)
		return
	}

	page, err := s.deps.Feedback.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *Server) handleGetFeedback(c *gin.Context) {
	fb, err := s.deps.Feedback.Get(c.Request.Context(), c.Param("test_name"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, fb)
}

func (s *Server) handleDeleteFeedback(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.respondError(c, domain.NewValidationError("id", "must be an integer", c.Param("id")))
		return
	}

	if err := s.deps.Feedback.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) handleExportFeedback(c *gin.Context) {
	c.Header("Content-Type", "application/json; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="category-feedback.json"`)
	c.Status(http.StatusOK)

	if err := s.deps.Feedback.Export(c.Request.Context(), c.Writer); err != nil {
		s.logger.WithFields(logrus.Fields{
			"correlation_id": middleware.GetCorrelationID(c),
			"error":          err,
		}).Error("Feedback export failed mid-stream")
	}
}

func (s *Server) handleImportFeedback(c *gin.Context) {
	imported, skipped, err := s.deps.Feedback.Import(c.Request.Context(), c.Request.Body)
	if err != nil {
		s.respondError(c, domain.NewValidationError("body", err.Error(), nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": imported, "skipped": skipped})
}

func (s *Server) respondText(c *gin.Context, text string) {
	if strings.Contains(c.GetHeader("Accept"), "text/plain") {
		c.String(http.StatusOK, text)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

func (s *Server) respondBindError(c *gin.Context, err error) {
	requestID := middleware.GetCorrelationID(c)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		middleware.AbortWithError(c, domain.NewAPIError(
			domain.ErrPayloadTooLarge, "Request body too large", err.Error(), requestID))
		return
	}
	middleware.AbortWithError(c, domain.NewAPIError(
		domain.ErrInvalidInput, "Malformed request body", err.Error(), requestID))
}

// respondError maps service errors onto an APIError body. Validation errors
// and unknown categories are 400, ErrNotFound is 404, everything else is 500.
func (s *Server) respondError(c *gin.Context, err error) {
	requestID := middleware.GetCorrelationID(c)

	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		middleware.AbortWithError(c, domain.NewAPIError(
			domain.ErrValidation, validationErr.Error(), validationErr.Field, requestID))
	case errors.Is(err, domain.ErrInvalidCategory):
		middleware.AbortWithError(c, domain.NewAPIError(
			domain.ErrValidation, err.Error(), "category", requestID))
	case errors.Is(err, domain.ErrNotFound):
		middleware.AbortWithError(c, domain.NewAPIError(
			domain.ErrNotFoundCode, err.Error(), "", requestID))
	default:
		s.logger.WithFields(logrus.Fields{
			"correlation_id": requestID,
			"path":           c.FullPath(),
			"error":          err,
		}).Error("Request failed")
		middleware.AbortWithError(c, domain.NewAPIError(
			domain.ErrInternalServer, "Internal server error", "", requestID))
	}
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer", raw)
	}
	return v, nil
}
