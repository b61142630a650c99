package report

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/zombor/lab-tracker/internal/comparison"
	"github.com/zombor/lab-tracker/internal/scanning"
)

// thousands matches 1,250 and 12,500,000 but not 5,5
var thousands = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// parseValue reads a printed test result as a number. Qualitative
// results, censored values (<0.5) and blanks return nil.
func parseValue(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	switch {
	case thousands.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ",") == 1 && !strings.Contains(s, "."):
		// OCR decimal comma
		s = strings.Replace(s, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// toParameters converts scanned tests to comparison parameters
func toParameters(tests []scanning.TestData) []comparison.Parameter {
	params := make([]comparison.Parameter, 0, len(tests))
	for _, t := range tests {
		raw := string(t.Value)
		params = append(params, comparison.Parameter{
			Name:           t.TestName,
			Value:          parseValue(raw),
			RawValue:       raw,
			Unit:           t.Unit,
			ReferenceRange: t.ReferenceRange,
			Status:         t.Status,
			Category:       t.Category,
		})
	}
	return params
}
