package service

import (
	"strings"

	"github.com/lab-analysis-engine/internal/domain"
)

// categoryRule is one row of the classifier table: a category, its display title
// and the keywords that route a test name to it.
type categoryRule struct {
	key      domain.CategoryKey
	title    string
	keywords []string
	lowered  []string
}

// CategoryClassifier assigns lab test names to clinical categories by
// case-insensitive substring match against a fixed keyword table. Rules are
// checked in priority order and the first match wins; names matching nothing
// fall into outros.
//
// The table is built once in NewCategoryClassifier and never mutated, so a
// single classifier can be shared across goroutines.
type CategoryClassifier struct {
	rules  []categoryRule
	titles map[domain.CategoryKey]string
}

// NewCategoryClassifier creates a classifier with the built-in table
func NewCategoryClassifier() *CategoryClassifier {
	rules := defaultRules()
	titles := make(map[domain.CategoryKey]string, len(rules)+1)
	for i := range rules {
		rules[i].lowered = make([]string, len(rules[i].keywords))
		for j, kw := range rules[i].keywords {
			rules[i].lowered[j] = strings.ToLower(kw)
		}
		titles[rules[i].key] = rules[i].title
	}
	titles[domain.CategoryOther] = "Outros"

	return &CategoryClassifier{rules: rules, titles: titles}
}

// Classify returns the category of a test name. It is total: every input,
// including the empty string, yields exactly one key.
func (c *CategoryClassifier) Classify(testName string) domain.CategoryKey {
	name := strings.ToLower(testName)
	if strings.TrimSpace(name) == "" {
		return domain.CategoryOther
	}

	for _, rule := range c.rules {
		for _, kw := range rule.lowered {
			if strings.Contains(name, kw) {
				return rule.key
			}
		}
	}
	return domain.CategoryOther
}

// MatchedKeyword returns the category and the keyword responsible for the match,
// or outros and an empty keyword.
func (c *CategoryClassifier) MatchedKeyword(testName string) (domain.CategoryKey, string) {
	name := strings.ToLower(testName)
	for _, rule := range c.rules {
		for i, kw := range rule.lowered {
			if strings.Contains(name, kw) {
				return rule.key, rule.keywords[i]
			}
		}
	}
	return domain.CategoryOther, ""
}

// Categories returns the classifier priority order, outros last.
func (c *CategoryClassifier) Categories() []domain.CategoryKey {
	keys := make([]domain.CategoryKey, 0, len(c.rules)+1)
	for _, rule := range c.rules {
		keys = append(keys, rule.key)
	}
	return append(keys, domain.CategoryOther)
}

// Keywords returns a copy of the keyword list of a category. outros has none.
func (c *CategoryClassifier) Keywords(key domain.CategoryKey) []string {
	for _, rule := range c.rules {
		if rule.key == key {
			out := make([]string, len(rule.keywords))
			copy(out, rule.keywords)
			return out
		}
	}
	return []string{}
}

// Title returns the display title of a category.
func (c *CategoryClassifier) Title(key domain.CategoryKey) (string, bool) {
	title, ok := c.titles[key]
	return title, ok
}

// GroupByCategory buckets a flat result list. Input order is kept inside each bucket.
func (c *CategoryClassifier) GroupByCategory(results []domain.LabResult) map[domain.CategoryKey][]domain.LabResult {
	groups := make(map[domain.CategoryKey][]domain.LabResult)
	for _, r := range results {
		key := c.Classify(r.TestName)
		groups[key] = append(groups[key], r)
	}
	return groups
}

// ToPayload converts a flat result list into an analysis payload with one
// uninterpreted AnalysisResult per category, for reports that arrive without a
// backend analysis.
func (c *CategoryClassifier) ToPayload(results []domain.LabResult) domain.AnalysisPayload {
	payload := make(domain.AnalysisPayload)
	for key, rows := range c.GroupByCategory(results) {
		payload[key] = domain.AnalysisResult{
			Abnormalities:   []string{},
			Recommendations: []string{},
			Details: domain.AnalysisDetails{
				LabResults:   rows,
				ScoreResults: []domain.ScoreResult{},
				Alerts:       []domain.Alert{},
			},
		}
	}
	return payload
}

// defaultRules is the keyword table in priority order. Matching is by substring,
// so overlaps resolve to the earlier row: "Hemoglobina Glicada" is hematology,
// "Bastões" is hematology even though it contains "AST".
func defaultRules() []categoryRule {
	return []categoryRule{
		{
			key:   domain.CategoryHematology,
			title: "Hematologia",
			keywords: []string{
				"Hemograma", "Hemoglobina", "Hematócrito", "Hemácias", "Eritrócitos",
				"Leucócitos", "Plaquetas", "VCM", "HCM", "CHCM", "RDW", "Neutrófilos",
				"Linfócitos", "Monócitos", "Eosinófilos", "Basófilos", "Bastões",
				"Reticulócitos", "Hemoglobin", "Hematocrit", "WBC", "RBC", "Platelets",
				"Lymphocytes",
			},
		},
		{
			key:   domain.CategoryRenal,
			title: "Função Renal",
			keywords: []string{
				"Creatinina", "Ureia", "Uréia", "TFG", "Taxa de Filtração", "Cistatina",
				"Ácido Úrico", "Microalbuminúria", "Creatinine", "Urea", "BUN", "eGFR",
			},
		},
		{
			key:   domain.CategoryHepatic,
			title: "Função Hepática",
			keywords: []string{
				"TGO", "TGP", "AST", "ALT", "Gama GT", "GGT", "Fosfatase Alcalina",
				"Bilirrubina", "Albumina", "Proteínas Totais", "Globulina", "Bilirubin",
				"Albumin", "Alkaline Phosphatase",
			},
		},
		{
			key:   domain.CategoryElectrolytes,
			title: "Eletrólitos",
			keywords: []string{
				"Sódio", "Potássio", "Cloro", "Cálcio", "Magnésio", "Fósforo", "Sodium",
				"Potassium", "Chloride", "Calcium", "Magnesium", "Phosphorus",
			},
		},
		{
			key:   domain.CategoryBloodGas,
			title: "Gasometria",
			keywords: []string{
				"Gasometria", "pH", "pCO2", "pO2", "HCO3", "Bicarbonato", "Base Excess",
				"Lactato", "SatO2", "Saturação", "Lactate",
			},
		},
		{
			key:   domain.CategoryCardiac,
			title: "Marcadores Cardíacos",
			keywords: []string{
				"Troponina", "CK-MB", "CKMB", "CPK", "BNP", "NT-proBNP", "Mioglobina",
				"Troponin", "Myoglobin", "LDH", "DHL",
			},
		},
		{
			key:   domain.CategoryMetabolic,
			title: "Metabolismo",
			keywords: []string{
				"Glicose", "Glicemia", "HbA1c", "Hemoglobina Glicada", "Insulina",
				"Colesterol", "HDL", "LDL", "VLDL", "Triglicerídeos", "TSH", "T4", "T3",
				"Vitamina", "Ferritina", "Ferro", "Glucose", "Cholesterol", "Triglycerides",
			},
		},
		{
			key:   domain.CategoryInflammation,
			title: "Marcadores Inflamatórios",
			keywords: []string{
				"PCR", "Proteína C Reativa", "VHS", "Procalcitonina", "Interleucina",
				"IL-6", "CRP", "ESR",
			},
		},
		{
			key:   domain.CategoryMicrobiology,
			title: "Microbiologia",
			keywords: []string{
				"Cultura", "Hemocultura", "Urocultura", "Antibiograma", "Gram", "Culture",
				"Bacterioscopia",
			},
		},
		{
			key:      domain.CategoryPancreatic,
			title:    "Função Pancreática",
			keywords: []string{"Amilase", "Lipase", "Amylase"},
		},
		{
			key:   domain.CategoryUrinalysis,
			title: "Urinálise",
			keywords: []string{
				"Urina", "EAS", "Urinálise", "Sedimento", "Nitrito", "Leucocitúria",
				"Hematúria", "Proteinúria", "Urinalysis", "Cetonas", "Urine",
			},
		},
		{
			key:   domain.CategoryCoagulation,
			title: "Coagulação",
			keywords: []string{
				"TAP", "INR", "RNI", "TTPA", "Tempo de Protrombina", "Fibrinogênio",
				"Dímero", "Tempo de Tromboplastina", "Prothrombin", "aPTT", "D-dimer",
			},
		},
	}
}
