package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/zombor/lab-tracker/internal/comparison"
	"github.com/zombor/lab-tracker/internal/scanning"
)

// maxUploadSize bounds multipart uploads; multi-page scans and phone photos are large
const maxUploadSize = int64(50 << 20)

var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrScanFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrNotEnoughReports),
		errors.Is(err, ErrSameReport),
		errors.Is(err, ErrUnsupportedExport),
		errors.Is(err, scanning.ErrUnsupportedFormat),
		errors.Is(err, comparison.ErrInvalidParameter):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs unexpected failures and hides their detail from clients
func writeServiceError(w http.ResponseWriter, msg string, err error) {
	code := statusFor(err)
	switch code {
	case http.StatusInternalServerError:
		slog.Error(msg, "error", err)
		writeJSONError(w, "Internal server error", code)
	case http.StatusBadGateway:
		slog.Error(msg, "error", err)
		writeJSONError(w, ErrScanFailed.Error(), code)
	default:
		writeJSONError(w, err.Error(), code)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"mapped_parameters": s.service.Engine().Directions().Len(),
	})
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	formats := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		formats = append(formats, ext)
	}
	sort.Strings(formats)
	writeJSON(w, http.StatusOK, map[string]any{
		"allowed_formats":  formats,
		"max_file_size_mb": maxUploadSize >> 20,
	})
}

// handleListReports returns a list of all reports
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.service.ListReports()
	if err != nil {
		writeServiceError(w, "Error listing reports", err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// handleUploadReport handles report upload and scanning
func (s *Server) handleUploadReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = fmt.Sprintf("File is too large. Maximum size is %dMB.", maxUploadSize>>20)
		}
		writeJSONError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeJSONError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSONError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = allowedExtensions[ext]
	}
	if contentType == "" {
		writeJSONError(w, fmt.Sprintf("Unsupported file type %q", ext), http.StatusBadRequest)
		return
	}

	report, err := s.service.ProcessReport(r.Context(), header.Filename, data, contentType, r.FormValue("report_type"))
	if err != nil {
		writeServiceError(w, "Error processing report", err)
		return
	}

	writeJSON(w, http.StatusCreated, report)
}

// handleGetReport returns a single report
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.GetReport(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "Error getting report", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleGetReportFile returns the uploaded file for a report
func (s *Server) handleGetReportFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReportFile(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "Error getting report file", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleGetReportTests returns the report's tests filtered by category and status
func (s *Server) handleGetReportTests(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	category := r.URL.Query().Get("category")
	status := r.URL.Query().Get("status")

	tests, total, err := s.service.FilterParameters(id, category, status)
	if err != nil {
		writeServiceError(w, "Error filtering tests", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"report_id": id,
		"filters": map[string]string{
			"category": category,
			"status":   status,
		},
		"total_tests":    total,
		"filtered_tests": len(tests),
		"tests":          tests,
	})
}

func writeExport(w http.ResponseWriter, export *Export) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.Write(export.Data)
}

// handleExportReport downloads a report as json or csv
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	export, err := s.service.ExportReport(r.PathValue("id"), r.URL.Query().Get("format"))
	if err != nil {
		writeServiceError(w, "Error exporting report", err)
		return
	}
	writeExport(w, export)
}

// handleDeleteReport deletes a report
func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteReport(r.PathValue("id")); err != nil {
		writeServiceError(w, "Error deleting report", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCreateComparison compares two reports by ID
func (s *Server) handleCreateComparison(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldReportID string `json:"old_report_id"`
		NewReportID string `json:"new_report_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.OldReportID == "" || req.NewReportID == "" {
		writeJSONError(w, "old_report_id and new_report_id are required", http.StatusBadRequest)
		return
	}

	record, err := s.service.CompareReports(req.OldReportID, req.NewReportID)
	if err != nil {
		writeServiceError(w, "Error comparing reports", err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// handleCompareLatest compares the two most recent reports
func (s *Server) handleCompareLatest(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.CompareLatest()
	if err != nil {
		writeServiceError(w, "Error comparing latest reports", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleListComparisons returns the comparison history
func (s *Server) handleListComparisons(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	history, err := s.service.ComparisonHistory(limit)
	if err != nil {
		writeServiceError(w, "Error listing comparisons", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":       len(history),
		"comparisons": history,
	})
}

// handleGetComparison returns a stored comparison
func (s *Server) handleGetComparison(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.GetComparison(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "Error getting comparison", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleExportComparison downloads a comparison as csv, markdown, html or json
func (s *Server) handleExportComparison(w http.ResponseWriter, r *http.Request) {
	export, err := s.service.ExportComparison(r.PathValue("id"), r.URL.Query().Get("format"))
	if err != nil {
		writeServiceError(w, "Error exporting comparison", err)
		return
	}
	writeExport(w, export)
}
