package comparison

import "strings"

// OtherCategory collects parameters no keyword matched
const OtherCategory = "Other Tests"

// Categorizer assigns a display category to a parameter name.
// Implementations may match loosely; the result is only used for grouping
// and labels, never to join parameters across reports.
type Categorizer interface {
	Categorize(name string) string
	// Categories lists the categories in display order
	Categories() []string
}

type keywordCategory struct {
	name     string
	keywords []string
}

// KeywordCategorizer matches lowercase keyword substrings in order
type KeywordCategorizer struct {
	categories []keywordCategory
}

// NewKeywordCategorizer returns the built-in categorizer for common panels
func NewKeywordCategorizer() *KeywordCategorizer {
	return &KeywordCategorizer{categories: []keywordCategory{
		{"Blood Count", []string{
			"hemoglobin", "haemoglobin", "hb", "hgb", "rbc", "red blood cell", "wbc",
			"white blood cell", "platelet", "hematocrit", "haematocrit", "hct", "mcv", "mch",
			"mchc", "rdw", "mpv", "esr", "neutrophil", "lymphocyte", "eosinophil", "monocyte",
			"basophil",
		}},
		{"Lipid Profile", []string{
			"cholesterol", "triglyceride", "hdl", "ldl", "vldl", "chol/hdl", "ldl/hdl", "non hdl",
		}},
		{"Diabetes", []string{
			"glucose", "sugar", "fasting", "random", "pp", "ppbs", "hba1c", "glycated", "glycosylated",
		}},
		{"Thyroid", []string{
			"t3", "t4", "tsh", "triiodothyronine", "thyroxine", "thyroid stimulating",
		}},
		{"Liver Function", []string{
			"sgpt", "alt", "sgot", "ast", "alp", "ggt", "bilirubin", "albumin", "globulin",
			"protein", "a/g ratio",
		}},
		{"Kidney Function", []string{
			"creatinine", "urea", "bun", "uric acid", "sodium", "potassium", "chloride", "calcium",
		}},
		{"Vitamins", []string{"vitamin", "vit", "b12", "folate", "folic"}},
		{"Iron Studies", []string{"iron", "ferritin", "tibc", "transferrin"}},
	}}
}

// Categorize returns the first category with a keyword contained in name
func (k *KeywordCategorizer) Categorize(name string) string {
	lower := strings.ToLower(name)
	for _, c := range k.categories {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.name
			}
		}
	}
	return OtherCategory
}

// Categories returns category names in display order, OtherCategory last
func (k *KeywordCategorizer) Categories() []string {
	names := make([]string, 0, len(k.categories)+1)
	for _, c := range k.categories {
		names = append(names, c.name)
	}
	return append(names, OtherCategory)
}
