package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lab-analysis-engine/internal/domain"
	"github.com/lab-analysis-engine/internal/feedback"
	"github.com/lab-analysis-engine/internal/metrics"
)

const (
	defaultFeedbackPageSize = 50
	maxFeedbackPageSize     = 500
)

// FeedbackPage is one page of stored feedback
type FeedbackPage struct {
	Items  []*feedback.Feedback `json:"items"`
	Total  int64                `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// FeedbackService records clinician verdicts on classifier output
type FeedbackService struct {
	logger     *logrus.Logger
	store      feedback.Store
	classifier *CategoryClassifier
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(logger *logrus.Logger, store feedback.Store) *FeedbackService {
	return &FeedbackService{
		logger:     logger,
		store:      store,
		classifier: NewCategoryClassifier(),
	}
}

// Submit records the clinician's category for a test name. The suggested category
// is always recomputed from the classifier.
func (s *FeedbackService) Submit(ctx context.Context, testName string, userCategory domain.CategoryKey, notes string) (*feedback.Feedback, error) {
	if strings.TrimSpace(testName) == "" {
		return nil, domain.NewValidationError("test_name", "test name is required", testName)
	}
	if !userCategory.IsValid() {
		return nil, fmt.Errorf("user category %q: %w", userCategory, domain.ErrInvalidCategory)
	}

	suggested := s.classifier.Classify(testName)
	fb := feedback.New(testName, suggested, userCategory, strings.TrimSpace(notes))

	if err := s.store.Save(ctx, fb); err != nil {
		return nil, fmt.Errorf("saving feedback: %w", err)
	}
	metrics.RecordFeedback(fb.UserAgreed)

	s.logger.WithFields(logrus.Fields{
		"feedback_id":        fb.ID,
		"normalized_name":    fb.NormalizedName,
		"suggested_category": fb.SuggestedCategory,
		"user_category":      fb.UserCategory,
		"agreed":             fb.UserAgreed,
	}).Info("Category feedback recorded")

	return fb, nil
}

// Get returns the feedback stored for a test name
func (s *FeedbackService) Get(ctx context.Context, testName string) (*feedback.Feedback, error) {
	fb, err := s.store.Get(ctx, feedback.NormalizeName(testName))
	if err != nil {
		return nil, err
	}
	if fb == nil {
		return nil, fmt.Errorf("feedback for %q: %w", testName, domain.ErrNotFound)
	}
	return fb, nil
}

// List returns a page of feedback, newest first. Limits are clamped.
func (s *FeedbackService) List(ctx context.Context, limit, offset int) (*FeedbackPage, error) {
	if limit <= 0 {
		limit = defaultFeedbackPageSize
	}
	if limit > maxFeedbackPageSize {
		limit = maxFeedbackPageSize
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &FeedbackPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Delete removes a feedback entry
func (s *FeedbackService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("feedback_id", id).Info("Category feedback deleted")
	return nil
}

// Export writes every feedback entry as a JSON document
func (s *FeedbackService) Export(ctx context.Context, w io.Writer) error {
	return s.store.ExportJSON(ctx, w)
}

// Import loads a JSON document produced by Export, keeping existing entries
func (s *FeedbackService) Import(ctx context.Context, r io.Reader) (imported, skipped int, err error) {
	imported, skipped, err = s.store.ImportJSON(ctx, r)
	if err != nil {
		return 0, 0, err
	}
	s.logger.WithFields(logrus.Fields{
		"imported": imported,
		"skipped":  skipped,
	}).Info("Category feedback imported")
	return imported, skipped, nil
}
