package service

import (
	"strings"

	"github.com/lab-analysis-engine/internal/domain"
	"github.com/lab-analysis-engine/pkg/refrange"
)

// ReferenceEvaluator judges lab values against their reference ranges
type ReferenceEvaluator struct{}

// NewReferenceEvaluator creates a new reference evaluator
func NewReferenceEvaluator() *ReferenceEvaluator {
	return &ReferenceEvaluator{}
}

// Evaluate decides abnormality and the display reference of a result. An explicit
// is_abnormal always wins. Otherwise explicit bounds take precedence over
// reference_text, and a missing numeric value leaves abnormality unknown.
// Malformed input degrades to unknown; Evaluate never fails.
func (e *ReferenceEvaluator) Evaluate(r domain.LabResult) domain.Evaluation {
	eval := domain.Evaluation{DisplayReference: e.DisplayReference(r)}

	if r.IsAbnormal != nil {
		eval.IsAbnormal = *r.IsAbnormal
		eval.Known = true
		return eval
	}

	if r.ValueNumeric == nil {
		return eval
	}

	eval.IsAbnormal, eval.Known = e.Bounds(r).Outside(*r.ValueNumeric)
	return eval
}

// Bounds returns the bounds used to judge r.
func (e *ReferenceEvaluator) Bounds(r domain.LabResult) refrange.Bounds {
	b, _ := e.resolve(r)
	return b
}

// DisplayReference is the raw reference text when present, else the formatted
// explicit bounds, else N/A. A single explicit bound that the text could not
// complete is shown as that bound, so the display matches the judgment.
func (e *ReferenceEvaluator) DisplayReference(r domain.LabResult) string {
	b, textDisplayable := e.resolve(r)
	if textDisplayable {
		return *r.ReferenceText
	}
	return b.String()
}

// resolve picks the bounds for r and reports whether the raw reference text may
// stand in for them on display.
func (e *ReferenceEvaluator) resolve(r domain.LabResult) (refrange.Bounds, bool) {
	hasText := r.ReferenceText != nil && strings.TrimSpace(*r.ReferenceText) != ""
	explicit := refrange.FromExplicit(r.ReferenceRangeLow, r.ReferenceRangeHigh)

	switch explicit.Kind {
	case refrange.Range:
		return explicit, hasText
	case refrange.Unparseable:
		if !hasText {
			return explicit, false
		}
		return refrange.Parse(*r.ReferenceText), true
	}

	// One explicit side only.
	if !hasText {
		return explicit, false
	}
	return explicit.Complete(refrange.Parse(*r.ReferenceText))
}
