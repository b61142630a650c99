package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/zombor/lab-tracker/internal/comparison"
)

// Export is a rendered download
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportReport renders a report as json or csv
func (s *Service) ExportReport(id, format string) (*Export, error) {
	report, err := s.db.GetReport(id)
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}

	base := exportBase(report.OriginalName, report.ID)
	switch strings.ToLower(format) {
	case "", "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling report: %w", err)
		}
		return &Export{Filename: base + ".json", ContentType: "application/json", Data: data}, nil
	case "csv":
		data, err := reportCSV(report)
		if err != nil {
			return nil, err
		}
		return &Export{Filename: base + ".csv", ContentType: "text/csv", Data: data}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExport, format)
	}
}

// ExportComparison renders a comparison as json, csv, markdown or html
func (s *Service) ExportComparison(id, format string) (*Export, error) {
	record, err := s.db.GetComparison(id)
	if err != nil {
		return nil, fmt.Errorf("getting comparison: %w", err)
	}

	base := "comparison_" + record.ID
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling comparison: %w", err)
		}
		return &Export{Filename: base + ".json", ContentType: "application/json", Data: data}, nil
	case "", "csv":
		data, err := comparisonCSV(record)
		if err != nil {
			return nil, err
		}
		return &Export{Filename: base + ".csv", ContentType: "text/csv", Data: data}, nil
	case "markdown", "md":
		return &Export{Filename: base + ".md", ContentType: "text/markdown; charset=utf-8", Data: ComparisonMarkdown(&record.Comparison)}, nil
	case "html":
		data, err := comparisonHTML(record)
		if err != nil {
			return nil, err
		}
		return &Export{Filename: base + ".html", ContentType: "text/html; charset=utf-8", Data: data}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExport, format)
	}
}

func exportBase(name, id string) string {
	clean := sanitizeFilename(name)
	base := strings.TrimSuffix(clean, filepath.Ext(clean))
	if base == "report" {
		return "report_" + id
	}
	return base + "_export"
}

func reportCSV(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{{"Category", "Test Name", "Value", "Unit", "Reference Range", "Status"}}
	for _, p := range report.Parameters {
		rows = append(rows, []string{p.Category, p.Name, p.RawValue, p.Unit, p.ReferenceRange, p.Status})
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("writing csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPercent(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*p, 'f', 2, 64) + "%"
}

func comparisonCSV(record *ComparisonRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{{"Parameter", "Category", "Old Value", "New Value", "Unit", "Change", "Change %", "Trend"}}
	for _, r := range record.Comparisons {
		rows = append(rows, []string{
			r.ParameterName,
			r.Category,
			formatNumber(r.OldValue),
			formatNumber(r.NewValue),
			r.Unit,
			formatNumber(r.Change),
			formatPercent(r.ChangePercentage),
			string(r.Trend),
		})
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("writing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// mdCell escapes the characters that would break a markdown table cell
func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func reportLabel(ref comparison.ReportRef) string {
	name := ref.FileName
	if name == "" {
		name = ref.ID
	}
	return fmt.Sprintf("%s (%s)", name, ref.Date.Format("2006-01-02"))
}

// ComparisonMarkdown renders a comparison as a markdown document
func ComparisonMarkdown(record *comparison.Comparison) []byte {
	var b strings.Builder
	s := record.Summary

	b.WriteString("# Lab Report Comparison\n\n")
	fmt.Fprintf(&b, "- **Old report:** %s\n", mdCell(reportLabel(record.OldReport)))
	fmt.Fprintf(&b, "- **New report:** %s\n", mdCell(reportLabel(record.NewReport)))
	fmt.Fprintf(&b, "- **Health score:** %.1f\n", s.HealthScore)
	fmt.Fprintf(&b, "- **Overall trend:** %s\n", s.OverallTrend)
	fmt.Fprintf(&b, "- **Improved / Worsened / Stable:** %d / %d / %d of %d\n\n", s.Improved, s.Worsened, s.Stable, s.TotalParameters)

	if len(record.Comparisons) > 0 {
		b.WriteString("## Parameters\n\n")
		b.WriteString("| Parameter | Old | New | Unit | Change % | Trend |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, r := range record.Comparisons {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				mdCell(r.ParameterName),
				formatNumber(r.OldValue),
				formatNumber(r.NewValue),
				mdCell(r.Unit),
				formatPercent(r.ChangePercentage),
				r.Trend,
			)
		}
		b.WriteString("\n")
	}

	if len(s.CriticalChanges) > 0 {
		b.WriteString("## Critical Changes\n\n")
		for _, c := range s.CriticalChanges {
			fmt.Fprintf(&b, "- **%s** (%s): %s -> %s, %s\n",
				mdCell(c.Parameter), c.Severity, formatNumber(c.OldValue), formatNumber(c.NewValue), formatPercent(c.ChangePercentage))
		}
		b.WriteString("\n")
	}

	if len(s.Insights) > 0 {
		b.WriteString("## Insights\n\n")
		for _, insight := range s.Insights {
			fmt.Fprintf(&b, "- %s\n", mdCell(insight))
		}
	}

	return []byte(b.String())
}

func comparisonHTML(record *ComparisonRecord) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert(ComparisonMarkdown(&record.Comparison), &body); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n",
		html.EscapeString("Comparison "+record.ID))
	buf.Write(body.Bytes())
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}
