// Package feedback stores clinician feedback on test-name categorization.
// Feedback is kept for review only; it never changes how names are classified.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lab-analysis-engine/internal/domain"
)

// Feedback represents a clinician's verdict on the category assigned to a test name.
type Feedback struct {
	ID                int64              `json:"id,omitempty"`
	TestName          string             `json:"test_name"`          // Name as written on the report
	NormalizedName    string             `json:"normalized_name"`    // Lower-cased, whitespace-collapsed name
	SuggestedCategory domain.CategoryKey `json:"suggested_category"` // Classifier output
	UserCategory      domain.CategoryKey `json:"user_category"`      // Clinician's decision
	UserAgreed        bool               `json:"user_agreed"`
	Notes             string             `json:"notes,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// New builds a feedback entry, deriving the normalized name and agreement flag.
func New(testName string, suggested, user domain.CategoryKey, notes string) *Feedback {
	return &Feedback{
		TestName:          strings.TrimSpace(testName),
		NormalizedName:    NormalizeName(testName),
		SuggestedCategory: suggested,
		UserCategory:      user,
		UserAgreed:        suggested == user,
		Notes:             notes,
	}
}

// NormalizeName lower-cases a test name and collapses internal whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Validate checks the entry before it is stored.
func (f *Feedback) Validate() error {
	if f.NormalizedName == "" {
		return domain.NewValidationError("test_name", "test name is required", f.TestName)
	}
	if !f.SuggestedCategory.IsValid() {
		return fmt.Errorf("suggested category %q: %w", f.SuggestedCategory, domain.ErrInvalidCategory)
	}
	if !f.UserCategory.IsValid() {
		return fmt.Errorf("user category %q: %w", f.UserCategory, domain.ErrInvalidCategory)
	}
	return nil
}

// Store defines the interface for feedback storage operations.
type Store interface {
	// Save stores or updates feedback. Entries are keyed by normalized name.
	Save(ctx context.Context, feedback *Feedback) error

	// Get retrieves feedback for a normalized name, or nil if none exists.
	Get(ctx context.Context, normalizedName string) (*Feedback, error)

	// List returns feedback entries, newest first, with pagination.
	List(ctx context.Context, limit, offset int) ([]*Feedback, error)

	// Count returns the total number of feedback entries.
	Count(ctx context.Context) (int64, error)

	// Delete removes a feedback entry by ID. Returns domain.ErrNotFound when absent.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all feedback to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports feedback from a JSON reader.
	// Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// FeedbackExport represents the JSON export format.
type FeedbackExport struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exported_at"`
	Count      int         `json:"count"`
	Feedback   []*Feedback `json:"feedback"`
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// exportJSON writes every entry of s as a FeedbackExport document.
func exportJSON(ctx context.Context, s Store, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list feedback: %w", err)
	}
	if all == nil {
		all = []*Feedback{}
	}

	export := &FeedbackExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Feedback:   all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// importJSON saves entries not already present in s.
func importJSON(ctx context.Context, s Store, reader io.Reader) (imported int, skipped int, err error) {
	var export FeedbackExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, fb := range export.Feedback {
		if fb.NormalizedName == "" {
			fb.NormalizedName = NormalizeName(fb.TestName)
		}
		if err := fb.Validate(); err != nil {
			skipped++
			continue
		}

		existing, err := s.Get(ctx, fb.NormalizedName)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if existing != nil {
			skipped++
			continue
		}

		fb.ID = 0
		if err := s.Save(ctx, fb); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}
