package comparison

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Polarity says whether a higher or lower value is clinically favorable
type Polarity string

const (
	LowerIsBetter   Polarity = "lower_is_better"
	HigherIsBetter  Polarity = "higher_is_better"
	PolarityUnknown Polarity = "unknown" // always classified as stable
)

func (p Polarity) valid() bool {
	switch p {
	case LowerIsBetter, HigherIsBetter, PolarityUnknown:
		return true
	}
	return false
}

// NormalizeName trims, collapses internal whitespace and lowercases a name
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// DirectionTable maps normalized parameter names to a polarity.
// Lookups are exact on the normalized name; names that are not in the
// table resolve to Default.
type DirectionTable struct {
	Default Polarity
	entries map[string]Polarity
}

// NewDirectionTable builds a table from a name→polarity map.
// Names are normalized on insert.
func NewDirectionTable(def Polarity, entries map[string]Polarity) (*DirectionTable, error) {
	if def == "" {
		def = PolarityUnknown
	}
	if !def.valid() {
		return nil, fmt.Errorf("default polarity %q: %w", def, ErrInvalidPolarity)
	}
	t := &DirectionTable{Default: def, entries: make(map[string]Polarity, len(entries))}
	for name, p := range entries {
		if !p.valid() {
			return nil, fmt.Errorf("polarity %q for %q: %w", p, name, ErrInvalidPolarity)
		}
		key := NormalizeName(name)
		if key == "" {
			return nil, fmt.Errorf("empty parameter name in direction table")
		}
		t.entries[key] = p
	}
	return t, nil
}

// ErrInvalidPolarity is returned for polarity values outside the known set
var ErrInvalidPolarity = errors.New("invalid polarity")

// Lookup returns the polarity for a parameter name
func (t *DirectionTable) Lookup(name string) Polarity {
	if p, ok := t.entries[NormalizeName(name)]; ok {
		return p
	}
	return t.Default
}

// Len returns the number of mapped names
func (t *DirectionTable) Len() int {
	return len(t.entries)
}

// directionFile is the YAML layout of a direction table file
type directionFile struct {
	Default        Polarity `yaml:"default"`
	LowerIsBetter  []string `yaml:"lower_is_better"`
	HigherIsBetter []string `yaml:"higher_is_better"`
}

// ParseDirectionTable parses a YAML direction table
func ParseDirectionTable(data []byte) (*DirectionTable, error) {
	var f directionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing direction table: %w", err)
	}

	entries := make(map[string]Polarity, len(f.LowerIsBetter)+len(f.HigherIsBetter))
	for _, name := range f.LowerIsBetter {
		entries[NormalizeName(name)] = LowerIsBetter
	}
	for _, name := range f.HigherIsBetter {
		key := NormalizeName(name)
		if entries[key] == LowerIsBetter {
			return nil, fmt.Errorf("parameter %q listed as both lower and higher is better", name)
		}
		entries[key] = HigherIsBetter
	}
	return NewDirectionTable(f.Default, entries)
}

// LoadDirectionTable reads a YAML direction table from path
func LoadDirectionTable(path string) (*DirectionTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading direction table: %w", err)
	}
	return ParseDirectionTable(data)
}

// DefaultDirectionTable returns the built-in table of common lab tests
func DefaultDirectionTable() *DirectionTable {
	entries := make(map[string]Polarity, len(lowerIsBetter)+len(higherIsBetter))
	for _, name := range lowerIsBetter {
		entries[name] = LowerIsBetter
	}
	for _, name := range higherIsBetter {
		entries[name] = HigherIsBetter
	}
	t, err := NewDirectionTable(PolarityUnknown, entries)
	if err != nil {
		panic(err)
	}
	return t
}

var lowerIsBetter = []string{
	// glucose
	"glucose", "fasting glucose", "glucose fasting", "fasting blood sugar", "random blood sugar",
	"blood sugar", "post prandial glucose", "ppbs", "fbs", "rbs", "hba1c", "hemoglobin a1c",
	"glycated hemoglobin", "glycosylated hemoglobin", "insulin",
	// lipids
	"cholesterol", "total cholesterol", "serum cholesterol", "ldl", "ldl cholesterol",
	"ldl-c", "vldl", "vldl cholesterol", "triglycerides", "triglyceride", "non hdl cholesterol",
	"non-hdl cholesterol", "cholesterol/hdl ratio", "total cholesterol/hdl ratio", "ldl/hdl ratio",
	// liver
	"sgpt", "alt", "sgpt (alt)", "alt (sgpt)", "sgot", "ast", "sgot (ast)", "ast (sgot)",
	"alkaline phosphatase", "alp", "ggt", "gamma gt", "bilirubin", "total bilirubin",
	"bilirubin total", "direct bilirubin", "indirect bilirubin",
	// kidney
	"creatinine", "serum creatinine", "urea", "blood urea", "bun", "blood urea nitrogen",
	"uric acid",
	// inflammation and other
	"esr", "crp", "c-reactive protein", "hs-crp", "blood pressure", "weight", "bmi",
}

var higherIsBetter = []string{
	"hemoglobin", "haemoglobin", "hb", "hgb", "hdl", "hdl cholesterol", "hdl-c",
	"platelet count", "platelets", "rbc", "rbc count", "red blood cells", "hematocrit",
	"oxygen saturation", "spo2", "albumin", "vitamin d", "vitamin d3", "25-oh vitamin d",
	"vitamin b12", "b12", "folate", "folic acid", "iron", "serum iron", "ferritin", "egfr",
}
