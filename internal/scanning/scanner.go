package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
)

// ErrUnsupportedFormat is returned when an upload cannot be decoded as a PDF or image
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ReportData contains the information extracted from a lab report
type ReportData struct {
	PatientName    string     `json:"patient_name"`
	Age            FlexString `json:"age"`
	Gender         string     `json:"gender"`
	ReportDate     string     `json:"report_date"` // ISO 8601 format, empty when unknown
	LabName        string     `json:"lab_name"`
	DoctorNames    []string   `json:"doctor_names"`
	Tests          []TestData `json:"tests"`
	OverallSummary string     `json:"overall_summary"`
	Pages          int        `json:"-"`
}

// TestData is a single test row as extracted. Value is kept as printed;
// numeric parsing happens downstream.
type TestData struct {
	Category       string     `json:"category"`
	TestName       string     `json:"test_name"`
	Value          FlexString `json:"value"`
	Unit           string     `json:"unit"`
	ReferenceRange string     `json:"reference_range"`
	Status         string     `json:"status"`
	Remarks        string     `json:"remarks"`
}

// FlexString accepts a JSON string, number or null
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		var b bool
		if berr := json.Unmarshal(data, &b); berr != nil {
			return err
		}
		*f = FlexString(strconv.FormatBool(b))
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

// Scanner defines the interface for lab report scanning operations
type Scanner interface {
	// ScanReport analyzes a report image/PDF and extracts its test parameters
	ScanReport(ctx context.Context, data []byte, contentType string) (*ReportData, error)
	// Close closes the scanner and releases resources
	Close() error
}

// TextExtractor runs OCR over rendered PNG pages
type TextExtractor interface {
	ExtractText(ctx context.Context, pages [][]byte) ([]string, error)
	Close() error
}

// DefaultMaxPages bounds how many PDF pages are rendered per report
const DefaultMaxPages = 5

// Option configures the LLM scanners
type Option func(*options)

type options struct {
	ocr      TextExtractor
	maxPages int
}

func newOptions(opts []Option) options {
	o := options{maxPages: DefaultMaxPages}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithOCR runs the extractor first and includes its text in the prompt
func WithOCR(t TextExtractor) Option {
	return func(o *options) {
		o.ocr = t
	}
}

// WithMaxPages sets the number of PDF pages sent to the model
func WithMaxPages(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPages = n
		}
	}
}
