package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lab-analysis-engine/internal/cache"
	"github.com/lab-analysis-engine/internal/domain"
	"github.com/lab-analysis-engine/internal/metrics"
)

// AnalysisViewResult is the response envelope of a view build
type AnalysisViewResult struct {
	RequestID string                 `json:"request_id"`
	Views     []domain.CategoryView  `json:"views"`
	Summary   domain.AnalysisSummary `json:"summary"`
	Cached    bool                   `json:"cached"`
}

// ClassifiedName is the category assigned to one test name
type ClassifiedName struct {
	TestName       string             `json:"test_name"`
	Category       domain.CategoryKey `json:"category"`
	Title          string             `json:"title"`
	MatchedKeyword string             `json:"matched_keyword,omitempty"`
}

// CategoryInfo describes one category of the classifier table
type CategoryInfo struct {
	Key      domain.CategoryKey `json:"key"`
	Title    string             `json:"title"`
	Keywords []string           `json:"keywords"`
}

// AnalysisService wires the categorization engine to caching, metrics and the audit trail
type AnalysisService struct {
	logger     *logrus.Logger
	classifier *CategoryClassifier
	evaluator  *ReferenceEvaluator
	assembler  *ViewAssembler
	exporter   *ClipboardExporter
	cache      domain.ViewCache
	audits     domain.AuditRepository
}

// NewAnalysisService creates a new analysis service. viewCache and audits may be nil.
func NewAnalysisService(
	logger *logrus.Logger,
	viewCache domain.ViewCache,
	audits domain.AuditRepository,
) *AnalysisService {
	classifier := NewCategoryClassifier()
	evaluator := NewReferenceEvaluator()

	return &AnalysisService{
		logger:     logger,
		classifier: classifier,
		evaluator:  evaluator,
		assembler:  NewViewAssembler(classifier, evaluator),
		exporter:   NewClipboardExporter(evaluator),
		cache:      viewCache,
		audits:     audits,
	}
}

// BuildViews assembles the ordered category views for a backend payload
func (s *AnalysisService) BuildViews(ctx context.Context, payload domain.AnalysisPayload) (*AnalysisViewResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("building views: %w", err)
	}

	startTime := time.Now()
	requestID := uuid.New().String()
	s.reportInvalidInput(requestID, payload)

	views, cached := s.lookupViews(ctx, payload)
	source := "cache"
	if !cached {
		source = "assembled"
		views = s.assembler.Assemble(payload)
		s.storeViews(ctx, payload, views)
	}

	summary := Summarize(views)
	for _, v := range views {
		metrics.RecordAbnormalRows(string(v.CategoryKey), v.AbnormalCount)
	}
	metrics.RecordViewBuild(source, time.Since(startTime))

	s.logger.WithFields(logrus.Fields{
		"request_id":          requestID,
		"categories":          summary.TotalCategories,
		"critical_categories": summary.CriticalCategories,
		"abnormal_rows":       summary.AbnormalRows,
		"total_rows":          summary.TotalRows,
		"cached":              cached,
		"duration_ms":         time.Since(startTime).Milliseconds(),
	}).Info("Analysis views built")

	s.recordAudit(ctx, requestID, views, summary)

	return &AnalysisViewResult{
		RequestID: requestID,
		Views:     views,
		Summary:   summary,
		Cached:    cached,
	}, nil
}

// BuildViewsFromResults groups a flat result list by category and assembles its
// views. The categories carry no interpretation, abnormalities or recommendations.
func (s *AnalysisService) BuildViewsFromResults(ctx context.Context, results []domain.LabResult) (*AnalysisViewResult, error) {
	return s.BuildViews(ctx, s.classifier.ToPayload(results))
}

// ClassifyNames assigns a category to each test name, preserving input order
func (s *AnalysisService) ClassifyNames(names []string) []ClassifiedName {
	out := make([]ClassifiedName, 0, len(names))
	for _, name := range names {
		key, keyword := s.classifier.MatchedKeyword(name)
		title, _ := s.classifier.Title(key)
		metrics.RecordClassification(string(key))
		out = append(out, ClassifiedName{
			TestName:       name,
			Category:       key,
			Title:          title,
			MatchedKeyword: keyword,
		})
	}
	return out
}

// Classify returns the category of a single test name
func (s *AnalysisService) Classify(name string) domain.CategoryKey {
	return s.classifier.Classify(name)
}

// EvaluateResult decides abnormality and display reference of one lab result
func (s *AnalysisService) EvaluateResult(result domain.LabResult) domain.Evaluation {
	return s.evaluator.Evaluate(result)
}

// Export renders the clipboard text of a payload. A non-nil only restricts the
// output to that tab.
func (s *AnalysisService) Export(ctx context.Context, payload domain.AnalysisPayload, only *domain.CategoryKey) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("exporting results: %w", err)
	}
	if only != nil && !only.IsValid() {
		return "", fmt.Errorf("category %q: %w", *only, domain.ErrInvalidCategory)
	}

	views := s.assembler.Assemble(payload)
	return s.exporter.ExportViews(views, only), nil
}

// ExportResults renders the clipboard text of raw lab results
func (s *AnalysisService) ExportResults(results []domain.LabResult) string {
	return s.exporter.ExportResults(results)
}

// Categories lists the classifier table in tab priority order
func (s *AnalysisService) Categories() []CategoryInfo {
	keys := s.classifier.Categories()
	out := make([]CategoryInfo, 0, len(keys))
	for _, key := range keys {
		title, _ := s.classifier.Title(key)
		out = append(out, CategoryInfo{
			Key:      key,
			Title:    title,
			Keywords: s.classifier.Keywords(key),
		})
	}
	return out
}

// RecentAudits lists the newest audit rows. Without an audit repository the list is empty.
func (s *AnalysisService) RecentAudits(ctx context.Context, limit int) ([]*domain.AnalysisAudit, error) {
	if s.audits == nil {
		return []*domain.AnalysisAudit{}, nil
	}
	audits, err := s.audits.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audits: %w", err)
	}
	return audits, nil
}

// AuditByRequestID returns the audit row of a previous view build
func (s *AnalysisService) AuditByRequestID(ctx context.Context, requestID string) (*domain.AnalysisAudit, error) {
	if s.audits == nil {
		return nil, fmt.Errorf("audit trail disabled: %w", domain.ErrNotFound)
	}
	return s.audits.GetByRequestID(ctx, requestID)
}

func (s *AnalysisService) lookupViews(ctx context.Context, payload domain.AnalysisPayload) ([]domain.CategoryView, bool) {
	if s.cache == nil {
		return nil, false
	}

	key, err := cache.PayloadKey(payload)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to fingerprint payload, skipping cache")
		return nil, false
	}

	views, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).Warn("View cache lookup failed, assembling")
		return nil, false
	}
	return views, ok
}

func (s *AnalysisService) storeViews(ctx context.Context, payload domain.AnalysisPayload, views []domain.CategoryView) {
	if s.cache == nil {
		return
	}

	key, err := cache.PayloadKey(payload)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, key, views); err != nil {
		s.logger.WithError(err).Warn("Failed to cache assembled views")
	}
}

func (s *AnalysisService) reportInvalidInput(requestID string, payload domain.AnalysisPayload) {
	for key, result := range payload {
		for _, row := range result.Details.LabResults {
			if err := row.Validate(); err != nil {
				metrics.RecordInvalidRow()
				s.logger.WithFields(logrus.Fields{
					"request_id": requestID,
					"category":   key,
					"test_name":  row.TestName,
					"error":      err,
				}).Warn("Lab result violates row invariant")
			}
		}
		for _, alert := range result.Details.Alerts {
			if err := alert.Validate(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"request_id": requestID,
					"category":   key,
					"error":      err,
				}).Warn("Alert has an unknown severity")
			}
		}
	}
}

func (s *AnalysisService) recordAudit(ctx context.Context, requestID string, views []domain.CategoryView, summary domain.AnalysisSummary) {
	if s.audits == nil {
		return
	}

	categories := make([]domain.CategoryKey, 0, len(views))
	for _, v := range views {
		categories = append(categories, v.CategoryKey)
	}

	audit := &domain.AnalysisAudit{
		RequestID:          requestID,
		Categories:         categories,
		CriticalCategories: summary.CriticalCategories,
		AbnormalRows:       summary.AbnormalRows,
		TotalRows:          summary.TotalRows,
	}
	if err := s.audits.Create(ctx, audit); err != nil {
		s.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err,
		}).Warn("Failed to record analysis audit")
	}
}
