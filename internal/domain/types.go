// Package domain contains the core entities of the lab analysis engine: lab results,
// per-category analysis results as delivered by the analysis backend, and the
// display-ready category views produced for the rendering layer.
//
// All entities are request-scoped. Nothing in this package is persisted by the engine.
package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// CategoryKey identifies one clinical grouping of lab tests.
type CategoryKey string

const (
	CategoryHematology   CategoryKey = "hematology"
	CategoryRenal        CategoryKey = "renal"
	CategoryHepatic      CategoryKey = "hepatic"
	CategoryElectrolytes CategoryKey = "electrolytes"
	CategoryBloodGas     CategoryKey = "bloodGas"
	CategoryCardiac      CategoryKey = "cardiac"
	CategoryMetabolic    CategoryKey = "metabolic"
	CategoryInflammation CategoryKey = "inflammation"
	CategoryMicrobiology CategoryKey = "microbiology"
	CategoryPancreatic   CategoryKey = "pancreatic"
	CategoryUrinalysis   CategoryKey = "urinalysis"
	CategoryCoagulation  CategoryKey = "coagulation"
	CategoryOther        CategoryKey = "outros"
)

// Severity is the urgency level of an upstream alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Sentinel errors
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidCategory = errors.New("invalid lab category")
	ErrInvalidSeverity = errors.New("invalid alert severity")
	ErrMissingValue    = errors.New("lab result has neither a numeric nor a text value")
)

// AllCategories lists every category key in classifier priority order, outros last.
func AllCategories() []CategoryKey {
	return []CategoryKey{
		CategoryHematology,
		CategoryRenal,
		CategoryHepatic,
		CategoryElectrolytes,
		CategoryBloodGas,
		CategoryCardiac,
		CategoryMetabolic,
		CategoryInflammation,
		CategoryMicrobiology,
		CategoryPancreatic,
		CategoryUrinalysis,
		CategoryCoagulation,
		CategoryOther,
	}
}

// IsValid reports whether the key belongs to the closed category vocabulary.
func (c CategoryKey) IsValid() bool {
	return slices.Contains(AllCategories(), c)
}

// String returns the wire representation of the key.
func (c CategoryKey) String() string {
	return string(c)
}

// ParseCategoryKey validates a raw category key.
func ParseCategoryKey(raw string) (CategoryKey, error) {
	key := CategoryKey(strings.TrimSpace(raw))
	if !key.IsValid() {
		return "", fmt.Errorf("category %q: %w", raw, ErrInvalidCategory)
	}
	return key, nil
}

// IsValid validates the severity level.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	default:
		return false
	}
}

// Rank orders severities from most (0) to least urgent. Unknown severities rank last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// LabResult is one observed test value as delivered by the lab report or the
// analysis backend. Optional fields are nil when absent.
type LabResult struct {
	TestName           string   `json:"test_name"`
	ValueNumeric       *float64 `json:"value_numeric,omitempty"`
	ValueText          *string  `json:"value_text,omitempty"`
	Unit               *string  `json:"unit,omitempty"`
	ReferenceRangeLow  *float64 `json:"reference_range_low,omitempty"`
	ReferenceRangeHigh *float64 `json:"reference_range_high,omitempty"`
	ReferenceText      *string  `json:"reference_text,omitempty"`
	IsAbnormal         *bool    `json:"is_abnormal,omitempty"`
}

// Validate checks the value invariant. The engine itself never rejects a row; callers
// use this to report malformed input.
func (r *LabResult) Validate() error {
	if strings.TrimSpace(r.TestName) == "" {
		return NewValidationError("test_name", "test name is required", r.TestName)
	}
	if r.ValueNumeric == nil && r.ValueText == nil {
		return fmt.Errorf("lab result %q: %w", r.TestName, ErrMissingValue)
	}
	return nil
}

// ScoreResult is a clinical score computed upstream. Display only.
type ScoreResult struct {
	ScoreName      string  `json:"score_name"`
	ScoreValue     float64 `json:"score_value"`
	Category       *string `json:"category,omitempty"`
	Interpretation *string `json:"interpretation,omitempty"`
}

// Alert is an upstream-computed warning attached to a category.
type Alert struct {
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	Value     *string  `json:"value,omitempty"`
	Reference *string  `json:"reference,omitempty"`
}

// Validate checks the severity against the closed vocabulary.
func (a Alert) Validate() error {
	if !a.Severity.IsValid() {
		return fmt.Errorf("alert %q severity %q: %w", a.Message, a.Severity, ErrInvalidSeverity)
	}
	return nil
}

// AnalysisDetails holds the row-level data of a category analysis.
type AnalysisDetails struct {
	LabResults   []LabResult   `json:"lab_results"`
	ScoreResults []ScoreResult `json:"score_results"`
	Alerts       []Alert       `json:"alerts"`
}

// AnalysisResult is the backend's analysis of a single category.
type AnalysisResult struct {
	Interpretation  string          `json:"interpretation"`
	Abnormalities   []string        `json:"abnormalities"`
	IsCritical      bool            `json:"is_critical"`
	Recommendations []string        `json:"recommendations"`
	Details         AnalysisDetails `json:"details"`
}

// AnalysisPayload is the full backend response keyed by category. Keys outside the
// known vocabulary are tolerated and skipped at assembly time.
type AnalysisPayload map[CategoryKey]AnalysisResult

// Evaluation is the reference-range verdict for one lab result.
type Evaluation struct {
	IsAbnormal       bool   `json:"is_abnormal"`
	Known            bool   `json:"abnormality_known"`
	DisplayReference string `json:"display_reference"`
}

// LabResultRow is a lab result annotated for display.
type LabResultRow struct {
	LabResult
	Category         CategoryKey `json:"category"`
	AbnormalFlag     bool        `json:"abnormal"`
	AbnormalityKnown bool        `json:"abnormality_known"`
	DisplayReference string      `json:"display_reference"`
}

// CategoryView is the display-ready view model of one tab.
type CategoryView struct {
	CategoryKey     CategoryKey    `json:"category_key"`
	Title           string         `json:"title"`
	Interpretation  string         `json:"interpretation"`
	Abnormalities   []string       `json:"abnormalities"`
	IsCritical      bool           `json:"is_critical"`
	Recommendations []string       `json:"recommendations"`
	LabResults      []LabResultRow `json:"lab_results"`
	ScoreResults    []ScoreResult  `json:"score_results"`
	Alerts          []Alert        `json:"alerts"`
	AbnormalCount   int            `json:"abnormal_count"`
}

// AnalysisSummary aggregates counts over a set of category views.
type AnalysisSummary struct {
	TotalCategories    int           `json:"total_categories"`
	CriticalCategories []CategoryKey `json:"critical_categories"`
	AbnormalRows       int           `json:"abnormal_rows"`
	TotalRows          int           `json:"total_rows"`
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
