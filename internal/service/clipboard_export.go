package service

import (
	"fmt"
	"strings"

	"github.com/lab-analysis-engine/internal/domain"
	"github.com/lab-analysis-engine/pkg/refrange"
)

// clipboardLine is the copy-to-clipboard format of one lab result. Consumers parse
// it byte for byte, including the space before an empty unit.
const clipboardLine = "Exame: %s, Resultado: %s %s, Referência: %s"

// ClipboardExporter renders lab results in the clipboard text format
type ClipboardExporter struct {
	evaluator *ReferenceEvaluator
}

// NewClipboardExporter creates a new clipboard exporter
func NewClipboardExporter(evaluator *ReferenceEvaluator) *ClipboardExporter {
	return &ClipboardExporter{evaluator: evaluator}
}

// ExportResults renders raw results, one line each, newline-joined.
func (x *ClipboardExporter) ExportResults(results []domain.LabResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, FormatClipboardLine(r, x.evaluator.DisplayReference(r)))
	}
	return strings.Join(lines, "\n")
}

// ExportViews renders the rows of assembled views in tab order. When only is
// non-nil, rows of other tabs are left out.
func (x *ClipboardExporter) ExportViews(views []domain.CategoryView, only *domain.CategoryKey) string {
	lines := make([]string, 0)
	for _, v := range views {
		if only != nil && v.CategoryKey != *only {
			continue
		}
		for _, row := range v.LabResults {
			lines = append(lines, FormatClipboardLine(row.LabResult, row.DisplayReference))
		}
	}
	return strings.Join(lines, "\n")
}

// FormatClipboardLine renders a single result with the given reference.
func FormatClipboardLine(r domain.LabResult, reference string) string {
	unit := ""
	if r.Unit != nil {
		unit = *r.Unit
	}
	return fmt.Sprintf(clipboardLine, r.TestName, clipboardValue(r), unit, reference)
}

func clipboardValue(r domain.LabResult) string {
	switch {
	case r.ValueNumeric != nil:
		return refrange.FormatNumber(*r.ValueNumeric)
	case r.ValueText != nil:
		return *r.ValueText
	default:
		return refrange.NotAvailable
	}
}
