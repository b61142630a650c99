package comparison

import (
	"errors"
	"time"
)

// ErrInvalidParameter is returned when an input parameter violates the
// input contract (empty name, NaN or infinite value)
var ErrInvalidParameter = errors.New("invalid parameter")

// Trend classifies how a parameter moved between two reports
type Trend string

const (
	TrendImproved Trend = "improved"
	TrendWorsened Trend = "worsened"
	TrendStable   Trend = "stable"
)

// Direction is the raw movement of a value, independent of polarity
type Direction string

const (
	DirectionIncreased Direction = "increased"
	DirectionDecreased Direction = "decreased"
	DirectionUnchanged Direction = "unchanged"
)

// Parameter is a single extracted lab test value
type Parameter struct {
	Name           string   `json:"name"`
	Value          *float64 `json:"value"`               // nil when absent or not numeric
	RawValue       string   `json:"raw_value,omitempty"` // value as printed on the report
	Unit           string   `json:"unit,omitempty"`
	ReferenceRange string   `json:"reference_range,omitempty"`
	Status         string   `json:"status,omitempty"`
	Category       string   `json:"category,omitempty"`
}

// Float returns a pointer to v, for building Parameters
func Float(v float64) *float64 {
	return &v
}

// ReportRef identifies a report in a comparison response
type ReportRef struct {
	ID       string    `json:"id"`
	FileName string    `json:"file_name"`
	Date     time.Time `json:"date"`
}

// Result is the outcome of comparing one matched parameter pair
type Result struct {
	ParameterName    string    `json:"parameter_name"`
	OldValue         float64   `json:"old_value"`
	NewValue         float64   `json:"new_value"`
	Unit             string    `json:"unit,omitempty"`
	Change           float64   `json:"change"`
	ChangePercentage *float64  `json:"change_percentage"` // nil when the old value is zero
	Trend            Trend     `json:"trend"`
	Polarity         Polarity  `json:"polarity"`
	Direction        Direction `json:"direction"`
	Category         string    `json:"category"`
}

// Skipped counts parameters that did not make it into the comparison
type Skipped struct {
	OnlyInOld  int `json:"only_in_old"`
	OnlyInNew  int `json:"only_in_new"`
	NonNumeric int `json:"non_numeric"`
	Duplicates int `json:"duplicates"`
}

// CategoryStats is the per-category tally of a summary
type CategoryStats struct {
	Total      int      `json:"total"`
	Improved   int      `json:"improved"`
	Worsened   int      `json:"worsened"`
	Stable     int      `json:"stable"`
	Score      float64  `json:"score"`
	Parameters []string `json:"parameters"`
}

// CriticalChange flags a result that needs attention
type CriticalChange struct {
	Parameter        string   `json:"parameter"`
	OldValue         float64  `json:"old_value"`
	NewValue         float64  `json:"new_value"`
	Change           float64  `json:"change"`
	ChangePercentage *float64 `json:"change_percentage"`
	Trend            Trend    `json:"trend"`
	Unit             string   `json:"unit,omitempty"`
	Severity         string   `json:"severity"` // high or medium
}

// Summary aggregates a list of results
type Summary struct {
	TotalParameters   int                      `json:"total_parameters"`
	Improved          int                      `json:"improved"`
	Worsened          int                      `json:"worsened"`
	Stable            int                      `json:"stable"`
	ImprovementRate   float64                  `json:"improvement_rate"`
	HealthScore       float64                  `json:"health_score"`
	OverallTrend      string                   `json:"overall_trend"`
	CategoryBreakdown map[string]CategoryStats `json:"category_breakdown"`
	CriticalChanges   []CriticalChange         `json:"critical_changes"`
	Insights          []string                 `json:"insights"`
	Skipped           Skipped                  `json:"skipped"`
}

// Comparison is the full output of comparing two reports
type Comparison struct {
	OldReport   ReportRef `json:"old_report"`
	NewReport   ReportRef `json:"new_report"`
	Comparisons []Result  `json:"comparisons"`
	Summary     Summary   `json:"summary"`
}
