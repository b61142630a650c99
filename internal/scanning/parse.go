package scanning

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var trailingComma = regexp.MustCompile(`,(\s*[}\]])`)

// reportDateFormats are tried in order when the model ignores the ISO instruction
var reportDateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02-Jan-2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// consolidatedEnvelope is the per_page/consolidated layout some prompts produce
type consolidatedEnvelope struct {
	Consolidated *ReportData `json:"consolidated"`
}

// parseReportJSON parses the JSON response from an LLM provider
func parseReportJSON(text string) (*ReportData, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	data, err := unmarshalReport([]byte(text))
	if err != nil {
		// Models regularly leave trailing commas behind
		fixed := trailingComma.ReplaceAllString(text, "$1")
		data, err = unmarshalReport([]byte(fixed))
		if err != nil {
			return nil, fmt.Errorf("unmarshaling json: %w", err)
		}
	}

	data.ReportDate = normalizeDate(data.ReportDate)
	data.PatientName = strings.TrimSpace(data.PatientName)
	data.LabName = strings.TrimSpace(data.LabName)

	tests := data.Tests[:0]
	for _, t := range data.Tests {
		t.TestName = strings.TrimSpace(t.TestName)
		if t.TestName == "" {
			continue
		}
		t.Category = strings.TrimSpace(t.Category)
		t.Value = FlexString(strings.TrimSpace(string(t.Value)))
		t.Unit = strings.TrimSpace(t.Unit)
		t.Status = normalizeStatus(t.Status)
		tests = append(tests, t)
	}
	data.Tests = tests

	return data, nil
}

func unmarshalReport(raw []byte) (*ReportData, error) {
	var envelope consolidatedEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Consolidated != nil {
		return envelope.Consolidated, nil
	}

	var data ReportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// normalizeDate returns the date as YYYY-MM-DD, or "" when it can't be read
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, format := range reportDateFormats {
		if d, err := time.Parse(format, s); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return ""
}

func normalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "l":
		return "Low"
	case "high", "h":
		return "High"
	case "normal", "n":
		return "Normal"
	default:
		return "Unknown"
	}
}
