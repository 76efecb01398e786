package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/lab-analysis-engine/internal/domain"
)

const maxToolTestNames = 500

// ClassifyLabTestParams defines parameters for classify_lab_test tool
type ClassifyLabTestParams struct {
	TestNames []string `json:"test_names" jsonschema:"lab test names as written on the report"`
}

// EvaluateLabResultParams defines parameters for evaluate_lab_result tool
type EvaluateLabResultParams struct {
	TestName           string   `json:"test_name" jsonschema:"name of the lab test"`
	ValueNumeric       *float64 `json:"value_numeric,omitempty" jsonschema:"numeric result value"`
	ValueText          *string  `json:"value_text,omitempty" jsonschema:"textual result value"`
	Unit               *string  `json:"unit,omitempty"`
	ReferenceRangeLow  *float64 `json:"reference_range_low,omitempty"`
	ReferenceRangeHigh *float64 `json:"reference_range_high,omitempty"`
	ReferenceText      *string  `json:"reference_text,omitempty" jsonschema:"reference interval as printed, e.g. 70 - 100 or < 5"`
	IsAbnormal         *bool    `json:"is_abnormal,omitempty" jsonschema:"abnormality flag reported by the laboratory"`
}

// AssembleAnalysisViewParams defines parameters for assemble_analysis_view tool
type AssembleAnalysisViewParams struct {
	Payload map[string]any `json:"payload" jsonschema:"analysis results keyed by category"`
}

// ExportLabResultsParams defines parameters for export_lab_results tool
type ExportLabResultsParams struct {
	Payload  map[string]any `json:"payload" jsonschema:"analysis results keyed by category"`
	Category string         `json:"category,omitempty" jsonschema:"restrict the export to one category tab"`
}

// EvaluateLabResultResult is the output of evaluate_lab_result
type EvaluateLabResultResult struct {
	Category   domain.CategoryKey `json:"category"`
	Evaluation domain.Evaluation  `json:"evaluation"`
}

func (s *LiteServer) registerAnalysisTools() {
	addTool(s, "classify_lab_test",
		"Assign each lab test name to a clinical category such as hematology, renal or hepatic",
		s.handleClassifyLabTest)
	addTool(s, "evaluate_lab_result",
		"Decide whether a lab result falls outside its reference range and how the range is displayed",
		s.handleEvaluateLabResult)
	addTool(s, "assemble_analysis_view",
		"Turn per-category analysis results into ordered display tabs, merging coagulation into hepatic",
		s.handleAssembleAnalysisView)
	addTool(s, "export_lab_results",
		"Render the lab results of an analysis as clipboard text, one line per result",
		s.handleExportLabResults)
}

// handleClassifyLabTest handles the classify_lab_test tool invocation
func (s *LiteServer) handleClassifyLabTest(ctx context.Context, req *mcp.CallToolRequest, params ClassifyLabTestParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{"tool": "classify_lab_test", "names": len(params.TestNames)}).Info("Tool invoked")

	if len(params.TestNames) == 0 {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("test_names is required")), nil, nil
	}
	if len(params.TestNames) > maxToolTestNames {
		return s.createErrorResult("Too many test names", fmt.Errorf("at most %d per call", maxToolTestNames)), nil, nil
	}

	results := s.analysis.ClassifyNames(params.TestNames)

	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("%s: %s (%s)", r.TestName, r.Title, r.Category))
	}

	return s.jsonResult(strings.Join(lines, "\n"), map[string]any{"results": results})
}

// handleEvaluateLabResult handles the evaluate_lab_result tool invocation
func (s *LiteServer) handleEvaluateLabResult(ctx context.Context, req *mcp.CallToolRequest, params EvaluateLabResultParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "evaluate_lab_result").Info("Tool invoked")

	if strings.TrimSpace(params.TestName) == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("test_name is required")), nil, nil
	}

	result := params.toLabResult()
	out := EvaluateLabResultResult{
		Category:   s.analysis.Classify(result.TestName),
		Evaluation: s.analysis.EvaluateResult(result),
	}

	verdict := "normal"
	switch {
	case !out.Evaluation.Known:
		verdict = "unknown"
	case out.Evaluation.IsAbnormal:
		verdict = "abnormal"
	}
	summary := fmt.Sprintf("%s is %s (reference: %s)", result.TestName, verdict, out.Evaluation.DisplayReference)

	return s.jsonResult(summary, out)
}

// handleAssembleAnalysisView handles the assemble_analysis_view tool invocation
func (s *LiteServer) handleAssembleAnalysisView(ctx context.Context, req *mcp.CallToolRequest, params AssembleAnalysisViewParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "assemble_analysis_view").Info("Tool invoked")

	payload, err := decodePayload(params.Payload)
	if err != nil {
		return s.createErrorResult("Invalid payload", err), nil, nil
	}

	result, err := s.analysis.BuildViews(ctx, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("building views: %w", err)
	}

	summary := fmt.Sprintf("%d categories, %d of %d results abnormal",
		result.Summary.TotalCategories, result.Summary.AbnormalRows, result.Summary.TotalRows)
	if len(result.Summary.CriticalCategories) > 0 {
		summary += fmt.Sprintf(", critical: %v", result.Summary.CriticalCategories)
	}

	return s.jsonResult(summary, result)
}

// handleExportLabResults handles the export_lab_results tool invocation
func (s *LiteServer) handleExportLabResults(ctx context.Context, req *mcp.CallToolRequest, params ExportLabResultsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "export_lab_results").Info("Tool invoked")

	payload, err := decodePayload(params.Payload)
	if err != nil {
		return s.createErrorResult("Invalid payload", err), nil, nil
	}

	var only *domain.CategoryKey
	if params.Category != "" {
		key, err := domain.ParseCategoryKey(params.Category)
		if err != nil {
			return s.createErrorResult("Invalid category", err), nil, nil
		}
		only = &key
	}

	text, err := s.analysis.Export(ctx, payload, only)
	if err != nil {
		return nil, nil, fmt.Errorf("exporting results: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

func (p EvaluateLabResultParams) toLabResult() domain.LabResult {
	return domain.LabResult{
		TestName:           p.TestName,
		ValueNumeric:       p.ValueNumeric,
		ValueText:          p.ValueText,
		Unit:               p.Unit,
		ReferenceRangeLow:  p.ReferenceRangeLow,
		ReferenceRangeHigh: p.ReferenceRangeHigh,
		ReferenceText:      p.ReferenceText,
		IsAbnormal:         p.IsAbnormal,
	}
}

// decodePayload converts a loosely typed tool argument into an analysis payload.
func decodePayload(raw map[string]any) (domain.AnalysisPayload, error) {
	payload := domain.AnalysisPayload{}
	if len(raw) == 0 {
		return payload, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return payload, nil
}

// jsonResult returns a summary line followed by the JSON rendering of v
func (s *LiteServer) jsonResult(summary string, v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding tool result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary},
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

// createErrorResult creates a standardized error result for tool calls
func (s *LiteServer) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
