package report

import (
	"errors"
	"time"

	"github.com/zombor/lab-tracker/internal/comparison"
)

var (
	// ErrNotFound is returned when a report or comparison does not exist
	ErrNotFound = errors.New("not found")
	// ErrNotEnoughReports is returned when a latest comparison needs two reports
	ErrNotEnoughReports = errors.New("at least two reports are required")
	// ErrUnsupportedExport is returned for an unknown export format
	ErrUnsupportedExport = errors.New("unsupported export format")
	// ErrScanFailed is returned when the scanner could not read an upload
	ErrScanFailed = errors.New("the report could not be read, please try again")
)

// PatientInfo is the header block printed on a lab report
type PatientInfo struct {
	Name    string   `json:"name"`
	Age     string   `json:"age"`
	Gender  string   `json:"gender"`
	LabName string   `json:"lab_name"`
	Doctors []string `json:"doctors"`
}

// Report is a scanned lab report with its test parameters
type Report struct {
	ID           string                 `json:"id"`
	OriginalName string                 `json:"original_name"`
	Filename     string                 `json:"filename"` // path in storage
	ContentType  string                 `json:"content_type"`
	ReportType   string                 `json:"report_type"`
	ReportDate   time.Time              `json:"report_date"`
	PatientInfo  PatientInfo            `json:"patient_info"`
	Summary      string                 `json:"summary,omitempty"`
	Parameters   []comparison.Parameter `json:"parameters"`
	TotalPages   int                    `json:"total_pages"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Ref returns the identity used in comparisons
func (r *Report) Ref() comparison.ReportRef {
	return comparison.ReportRef{
		ID:       r.ID,
		FileName: r.OriginalName,
		Date:     r.ReportDate,
	}
}

// ComparisonRecord is a persisted comparison between two reports
type ComparisonRecord struct {
	ID string `json:"id"`
	comparison.Comparison
	CreatedAt time.Time `json:"created_at"`
}

// ComparisonSummary is the short form returned by the history listing
type ComparisonSummary struct {
	ID          string               `json:"id"`
	OldReport   comparison.ReportRef `json:"old_report"`
	NewReport   comparison.ReportRef `json:"new_report"`
	HealthScore float64              `json:"health_score"`
	Improved    int                  `json:"improved"`
	Worsened    int                  `json:"worsened"`
	Stable      int                  `json:"stable"`
	CreatedAt   time.Time            `json:"created_at"`
}

// Summarize returns the history form of the record
func (c *ComparisonRecord) Summarize() ComparisonSummary {
	return ComparisonSummary{
		ID:          c.ID,
		OldReport:   c.OldReport,
		NewReport:   c.NewReport,
		HealthScore: c.Summary.HealthScore,
		Improved:    c.Summary.Improved,
		Worsened:    c.Summary.Worsened,
		Stable:      c.Summary.Stable,
		CreatedAt:   c.CreatedAt,
	}
}
