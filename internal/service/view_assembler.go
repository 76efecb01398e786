package service

import (
	"sort"
	"strings"

	"github.com/lab-analysis-engine/internal/domain"
)

// CoagulationSeparator joins the hepatic and coagulation interpretations in the
// merged hepatic tab.
const CoagulationSeparator = "\n\nCoagulação:\n"

// tabOrder is the fixed display order. Coagulation is never a tab of its own.
var tabOrder = [...]domain.CategoryKey{
	domain.CategoryHematology,
	domain.CategoryInflammation,
	domain.CategoryCardiac,
	domain.CategoryRenal,
	domain.CategoryElectrolytes,
	domain.CategoryUrinalysis,
	domain.CategoryBloodGas,
	domain.CategoryHepatic,
	domain.CategoryPancreatic,
	domain.CategoryMetabolic,
	domain.CategoryMicrobiology,
	domain.CategoryOther,
}

// ViewAssembler turns a backend analysis payload into ordered, display-ready
// category views, folding coagulation into hepatic.
type ViewAssembler struct {
	classifier *CategoryClassifier
	evaluator  *ReferenceEvaluator
}

// NewViewAssembler creates a new view assembler
func NewViewAssembler(classifier *CategoryClassifier, evaluator *ReferenceEvaluator) *ViewAssembler {
	return &ViewAssembler{
		classifier: classifier,
		evaluator:  evaluator,
	}
}

// Assemble builds one view per displayable category. Keys without a known title
// are skipped. An empty payload yields an empty, non-nil slice.
func (a *ViewAssembler) Assemble(payload domain.AnalysisPayload) []domain.CategoryView {
	views := make([]domain.CategoryView, 0, len(payload))
	if len(payload) == 0 {
		return views
	}

	coagulation, hasCoagulation := payload[domain.CategoryCoagulation]

	for _, key := range DisplayOrder(payload) {
		title, ok := a.classifier.Title(key)
		if !ok {
			continue
		}

		result := payload[key]
		if key == domain.CategoryHepatic && hasCoagulation {
			result = MergeCoagulation(result, coagulation)
		}

		views = append(views, a.buildView(key, title, result))
	}

	return views
}

// DisplayOrder returns the keys of payload in tab order: the canonical order
// first, then any other keys sorted, with outros forced last. A coagulation
// entry without hepatic still yields a hepatic tab.
func DisplayOrder(payload domain.AnalysisPayload) []domain.CategoryKey {
	_, hasHepatic := payload[domain.CategoryHepatic]
	_, hasCoagulation := payload[domain.CategoryCoagulation]

	order := make([]domain.CategoryKey, 0, len(payload))
	seen := make(map[domain.CategoryKey]bool, len(payload))
	add := func(key domain.CategoryKey) {
		if seen[key] || key == domain.CategoryCoagulation || key == domain.CategoryOther {
			return
		}
		seen[key] = true
		order = append(order, key)
	}

	for _, key := range tabOrder {
		if key == domain.CategoryHepatic && !hasHepatic && hasCoagulation {
			add(key)
			continue
		}
		if _, ok := payload[key]; ok {
			add(key)
		}
	}

	extra := make([]domain.CategoryKey, 0)
	for key := range payload {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, key := range extra {
		add(key)
	}

	if _, ok := payload[domain.CategoryOther]; ok {
		order = append(order, domain.CategoryOther)
	}
	return order
}

// MergeCoagulation folds a coagulation analysis into the hepatic one. Scores and
// alerts stay hepatic-only.
func MergeCoagulation(hepatic, coagulation domain.AnalysisResult) domain.AnalysisResult {
	return domain.AnalysisResult{
		Interpretation:  mergeInterpretation(hepatic.Interpretation, coagulation.Interpretation),
		Abnormalities:   unionStrings(hepatic.Abnormalities, coagulation.Abnormalities),
		IsCritical:      hepatic.IsCritical || coagulation.IsCritical,
		Recommendations: unionStrings(hepatic.Recommendations, coagulation.Recommendations),
		Details: domain.AnalysisDetails{
			LabResults:   append(cloneSlice(hepatic.Details.LabResults), coagulation.Details.LabResults...),
			ScoreResults: cloneSlice(hepatic.Details.ScoreResults),
			Alerts:       cloneSlice(hepatic.Details.Alerts),
		},
	}
}

// Summarize aggregates counts over assembled views.
func Summarize(views []domain.CategoryView) domain.AnalysisSummary {
	summary := domain.AnalysisSummary{
		TotalCategories:    len(views),
		CriticalCategories: []domain.CategoryKey{},
	}
	for _, v := range views {
		if v.IsCritical {
			summary.CriticalCategories = append(summary.CriticalCategories, v.CategoryKey)
		}
		summary.AbnormalRows += v.AbnormalCount
		summary.TotalRows += len(v.LabResults)
	}
	return summary
}

func (a *ViewAssembler) buildView(key domain.CategoryKey, title string, result domain.AnalysisResult) domain.CategoryView {
	view := domain.CategoryView{
		CategoryKey:     key,
		Title:           title,
		Interpretation:  result.Interpretation,
		Abnormalities:   cloneSlice(result.Abnormalities),
		IsCritical:      result.IsCritical,
		Recommendations: cloneSlice(result.Recommendations),
		LabResults:      make([]domain.LabResultRow, 0, len(result.Details.LabResults)),
		ScoreResults:    cloneSlice(result.Details.ScoreResults),
		Alerts:          SortAlerts(result.Details.Alerts),
	}

	for _, r := range result.Details.LabResults {
		row := a.BuildRow(r)
		if row.AbnormalFlag {
			view.AbnormalCount++
		}
		view.LabResults = append(view.LabResults, row)
	}

	return view
}

// BuildRow annotates a single result with its category and evaluation.
func (a *ViewAssembler) BuildRow(r domain.LabResult) domain.LabResultRow {
	eval := a.evaluator.Evaluate(r)
	return domain.LabResultRow{
		LabResult:        r,
		Category:         a.classifier.Classify(r.TestName),
		AbnormalFlag:     eval.IsAbnormal,
		AbnormalityKnown: eval.Known,
		DisplayReference: eval.DisplayReference,
	}
}

// SortAlerts returns a copy of alerts ordered most urgent first. Alerts of equal
// severity keep their backend order; unknown severities go last.
func SortAlerts(alerts []domain.Alert) []domain.Alert {
	out := cloneSlice(alerts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() < out[j].Severity.Rank()
	})
	return out
}

func mergeInterpretation(hepatic, coagulation string) string {
	switch {
	case strings.TrimSpace(hepatic) == "":
		return coagulation
	case strings.TrimSpace(coagulation) == "":
		return hepatic
	default:
		return hepatic + CoagulationSeparator + coagulation
	}
}

// unionStrings concatenates a and b dropping repeats, first occurrence wins.
func unionStrings(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// cloneSlice copies s into a new non-nil slice.
func cloneSlice[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}
