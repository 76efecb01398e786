package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/lab-analysis-engine/internal/domain"
)

// SubmitCategoryFeedbackParams defines parameters for submit_category_feedback tool
type SubmitCategoryFeedbackParams struct {
	TestName     string `json:"test_name" jsonschema:"lab test name as written on the report"`
	UserCategory string `json:"user_category" jsonschema:"category the clinician considers correct"`
	Notes        string `json:"notes,omitempty"`
}

// ListCategoryFeedbackParams defines parameters for list_category_feedback tool
type ListCategoryFeedbackParams struct {
	Limit  int `json:"limit,omitempty" jsonschema:"page size, default 50"`
	Offset int `json:"offset,omitempty"`
}

// QueryCategoryFeedbackParams defines parameters for query_category_feedback tool
type QueryCategoryFeedbackParams struct {
	TestName string `json:"test_name"`
}

// ExportCategoryFeedbackParams defines parameters for export_category_feedback tool
type ExportCategoryFeedbackParams struct {
	Filename string `json:"filename,omitempty" jsonschema:"file name inside the export directory"`
}

func (s *LiteServer) registerFeedbackTools() {
	addTool(s, "submit_category_feedback",
		"Record the category a clinician considers correct for a lab test name",
		s.handleSubmitCategoryFeedback)
	addTool(s, "list_category_feedback",
		"List recorded category feedback, newest first",
		s.handleListCategoryFeedback)
	addTool(s, "query_category_feedback",
		"Look up recorded category feedback for one lab test name",
		s.handleQueryCategoryFeedback)
	addTool(s, "export_category_feedback",
		"Write all recorded category feedback to a JSON file in the export directory",
		s.handleExportCategoryFeedback)
}

// handleSubmitCategoryFeedback handles the submit_category_feedback tool invocation
func (s *LiteServer) handleSubmitCategoryFeedback(ctx context.Context, req *mcp.CallToolRequest, params SubmitCategoryFeedbackParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "submit_category_feedback").Info("Tool invoked")

	fb, err := s.feedback.Submit(ctx, params.TestName, domain.CategoryKey(strings.TrimSpace(params.UserCategory)), params.Notes)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) || errors.Is(err, domain.ErrInvalidCategory) {
			return s.createErrorResult("Invalid feedback", err), nil, nil
		}
		return nil, nil, err
	}

	summary := fmt.Sprintf("Feedback recorded for %s: %s", fb.TestName, fb.UserCategory)
	if !fb.UserAgreed {
		summary += fmt.Sprintf(" (classifier suggested %s)", fb.SuggestedCategory)
	}
	return s.jsonResult(summary, fb)
}

// handleListCategoryFeedback handles the list_category_feedback tool invocation
func (s *LiteServer) handleListCategoryFeedback(ctx context.Context, req *mcp.CallToolRequest, params ListCategoryFeedbackParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "list_category_feedback").Info("Tool invoked")

	page, err := s.feedback.List(ctx, params.Limit, params.Offset)
	if err != nil {
		return nil, nil, err
	}

	summary := fmt.Sprintf("%d of %d feedback entries", len(page.Items), page.Total)
	return s.jsonResult(summary, page)
}

// handleQueryCategoryFeedback handles the query_category_feedback tool invocation
func (s *LiteServer) handleQueryCategoryFeedback(ctx context.Context, req *mcp.CallToolRequest, params QueryCategoryFeedbackParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "query_category_feedback").Info("Tool invoked")

	if strings.TrimSpace(params.TestName) == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("test_name is required")), nil, nil
	}

	fb, err := s.feedback.Get(ctx, params.TestName)
	if errors.Is(err, domain.ErrNotFound) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("No feedback recorded for %s", params.TestName)}},
		}, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	return s.jsonResult(fmt.Sprintf("Feedback for %s: %s", fb.TestName, fb.UserCategory), fb)
}

// handleExportCategoryFeedback handles the export_category_feedback tool invocation
func (s *LiteServer) handleExportCategoryFeedback(ctx context.Context, req *mcp.CallToolRequest, params ExportCategoryFeedbackParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "export_category_feedback").Info("Tool invoked")

	filename := filepath.Base(strings.TrimSpace(params.Filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		filename = fmt.Sprintf("category-feedback-%s.json", time.Now().UTC().Format("20060102-150405"))
	}
	path := filepath.Join(s.config.ExportDir(), filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating export file: %w", err)
	}
	defer file.Close()

	if err := s.feedback.Export(ctx, file); err != nil {
		return nil, nil, fmt.Errorf("exporting feedback: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"path": path}).Info("Category feedback exported")
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Feedback exported to %s", path)}},
	}, nil, nil
}
