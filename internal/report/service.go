package report

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/lab-tracker/internal/comparison"
	"github.com/zombor/lab-tracker/internal/scanning"
)

// DefaultHistoryLimit is the number of comparisons returned when no limit is given
const DefaultHistoryLimit = 10

// DefaultReportType is recorded when the upload doesn't name one
const DefaultReportType = "blood_test"

// ErrSameReport is returned when a report is compared with itself
var ErrSameReport = errors.New("cannot compare a report with itself")

// IDGenerator generates unique IDs for reports and comparisons
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles report and comparison operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	engine      atomic.Pointer[comparison.Engine]
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage, engine *comparison.Engine) *Service {
	return NewServiceWithDeps(db, scanner, storage, engine, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, engine *comparison.Engine, idGen IDGenerator, timeSrc TimeSource) *Service {
	s := &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
	s.engine.Store(engine)
	return s
}

// SetEngine swaps the comparison engine, e.g. after the direction table is reloaded.
// Comparisons already running finish with the engine they started with.
func (s *Service) SetEngine(engine *comparison.Engine) {
	s.engine.Store(engine)
}

// Engine returns the current comparison engine
func (s *Service) Engine() *comparison.Engine {
	return s.engine.Load()
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "report"
	}

	return base + ext
}

// ProcessReport stores an uploaded report, scans it, and saves its parameters
func (s *Service) ProcessReport(ctx context.Context, filename string, data []byte, contentType, reportType string) (*Report, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	if reportType == "" {
		reportType = DefaultReportType
	}

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	scanned, err := s.scanner.ScanReport(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan report",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.removeFile(savedPath)
		if errors.Is(err, scanning.ErrUnsupportedFormat) {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		return nil, fmt.Errorf("scanning report: %w: %w", ErrScanFailed, err)
	}

	reportDate, err := time.Parse("2006-01-02", scanned.ReportDate)
	if err != nil {
		reportDate = now
	}

	report := &Report{
		ID:           id,
		OriginalName: filename,
		Filename:     savedPath,
		ContentType:  contentType,
		ReportType:   reportType,
		ReportDate:   reportDate,
		PatientInfo: PatientInfo{
			Name:    scanned.PatientName,
			Age:     string(scanned.Age),
			Gender:  scanned.Gender,
			LabName: scanned.LabName,
			Doctors: scanned.DoctorNames,
		},
		Summary:    scanned.OverallSummary,
		Parameters: toParameters(scanned.Tests),
		TotalPages: scanned.Pages,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.db.SaveReport(report); err != nil {
		s.removeFile(savedPath)
		return nil, fmt.Errorf("saving report to database: %w", err)
	}

	slog.Info("Processed report", "id", id, "tests", len(report.Parameters), "pages", report.TotalPages)
	return report, nil
}

func (s *Service) removeFile(path string) {
	if err := s.storage.Delete(path); err != nil {
		slog.Warn("Failed to delete file", "filename", path, "error", err)
	}
}

// GetReport retrieves a report by ID
func (s *Service) GetReport(id string) (*Report, error) {
	report, err := s.db.GetReport(id)
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}
	return report, nil
}

// ListReports returns all reports, newest report date first
func (s *Service) ListReports() ([]*Report, error) {
	reports, err := s.db.ListReports()
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	sortByDate(reports)
	slices.Reverse(reports)
	return reports, nil
}

// sortByDate orders reports oldest first by report date, then upload time
func sortByDate(reports []*Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		if !reports[i].ReportDate.Equal(reports[j].ReportDate) {
			return reports[i].ReportDate.Before(reports[j].ReportDate)
		}
		return reports[i].CreatedAt.Before(reports[j].CreatedAt)
	})
}

// DeleteReport removes a report, its file and its comparisons
func (s *Service) DeleteReport(id string) error {
	report, err := s.db.GetReport(id)
	if err != nil {
		return fmt.Errorf("getting report for deletion: %w", err)
	}

	// Log error but continue with database deletion
	s.removeFile(report.Filename)

	if err := s.db.DeleteReport(id); err != nil {
		return fmt.Errorf("deleting report from database: %w", err)
	}
	return nil
}

// GetReportFile retrieves the uploaded file for a report
func (s *Service) GetReportFile(id string) ([]byte, string, error) {
	report, err := s.db.GetReport(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting report: %w", err)
	}

	data, err := s.storage.Get(report.Filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("report file %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting report file: %w", err)
	}

	return data, report.ContentType, nil
}

// FilterParameters returns the report's parameters matching category and
// status (case-insensitive, empty matches all) and the unfiltered total
func (s *Service) FilterParameters(id, category, status string) ([]comparison.Parameter, int, error) {
	report, err := s.db.GetReport(id)
	if err != nil {
		return nil, 0, fmt.Errorf("getting report: %w", err)
	}

	filtered := make([]comparison.Parameter, 0, len(report.Parameters))
	for _, p := range report.Parameters {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if status != "" && !strings.EqualFold(p.Status, status) {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered, len(report.Parameters), nil
}

// CompareReports compares two stored reports and persists the result
func (s *Service) CompareReports(oldID, newID string) (*ComparisonRecord, error) {
	if oldID == newID {
		return nil, ErrSameReport
	}

	oldReport, err := s.db.GetReport(oldID)
	if err != nil {
		return nil, fmt.Errorf("getting old report: %w", err)
	}
	newReport, err := s.db.GetReport(newID)
	if err != nil {
		return nil, fmt.Errorf("getting new report: %w", err)
	}

	return s.compare(oldReport, newReport)
}

// CompareLatest compares the two most recent reports by report date
func (s *Service) CompareLatest() (*ComparisonRecord, error) {
	reports, err := s.db.ListReports()
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	if len(reports) < 2 {
		return nil, ErrNotEnoughReports
	}

	sortByDate(reports)
	return s.compare(reports[len(reports)-2], reports[len(reports)-1])
}

func (s *Service) compare(oldReport, newReport *Report) (*ComparisonRecord, error) {
	result, err := s.Engine().Compare(oldReport.Ref(), newReport.Ref(), oldReport.Parameters, newReport.Parameters)
	if err != nil {
		return nil, fmt.Errorf("comparing reports: %w", err)
	}

	record, err := s.db.SaveComparison(&ComparisonRecord{
		ID:         s.idGenerator.Generate(),
		Comparison: *result,
		CreatedAt:  s.timeSource.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("saving comparison: %w", err)
	}

	slog.Info("Compared reports",
		"id", record.ID,
		"old_report", oldReport.ID,
		"new_report", newReport.ID,
		"parameters", result.Summary.TotalParameters,
		"health_score", result.Summary.HealthScore,
	)
	return record, nil
}

// ComparisonHistory returns up to limit comparisons, newest first
func (s *Service) ComparisonHistory(limit int) ([]ComparisonSummary, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	records, err := s.db.ListComparisons()
	if err != nil {
		return nil, fmt.Errorf("listing comparisons: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if len(records) > limit {
		records = records[:limit]
	}

	history := make([]ComparisonSummary, 0, len(records))
	for _, r := range records {
		history = append(history, r.Summarize())
	}
	return history, nil
}

// GetComparison retrieves a stored comparison by ID
func (s *Service) GetComparison(id string) (*ComparisonRecord, error) {
	record, err := s.db.GetComparison(id)
	if err != nil {
		return nil, fmt.Errorf("getting comparison: %w", err)
	}
	return record, nil
}
