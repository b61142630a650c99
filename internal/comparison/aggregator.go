package comparison

import (
	"math"
	"sort"
)

const (
	overallImproving = "improving"
	overallDeclining = "declining"
	overallStable    = "stable"
	overallNoData    = "no_data"

	severityHigh   = "high"
	severityMedium = "medium"
)

// Aggregator summarizes classified results
type Aggregator struct {
	neutral           float64
	criticalThreshold float64
	maxCritical       int
	categorizer       Categorizer
}

// Summarize tallies results into a Summary. Counts always satisfy
// Improved+Worsened+Stable == TotalParameters.
func (a *Aggregator) Summarize(results []Result, skipped Skipped) Summary {
	s := Summary{
		TotalParameters:   len(results),
		CategoryBreakdown: make(map[string]CategoryStats),
		CriticalChanges:   []CriticalChange{},
		Skipped:           skipped,
	}

	for _, r := range results {
		stats := s.CategoryBreakdown[r.Category]
		stats.Total++
		stats.Parameters = append(stats.Parameters, r.ParameterName)
		switch r.Trend {
		case TrendImproved:
			s.Improved++
			stats.Improved++
		case TrendWorsened:
			s.Worsened++
			stats.Worsened++
		default:
			s.Stable++
			stats.Stable++
		}
		s.CategoryBreakdown[r.Category] = stats
	}

	for name, stats := range s.CategoryBreakdown {
		stats.Score = HealthScore(stats.Improved, stats.Worsened, stats.Total, a.neutral)
		s.CategoryBreakdown[name] = stats
	}

	if s.TotalParameters > 0 {
		s.ImprovementRate = float64(s.Improved) / float64(s.TotalParameters) * 100
	}
	s.HealthScore = HealthScore(s.Improved, s.Worsened, s.TotalParameters, a.neutral)
	s.OverallTrend = overallTrend(s)
	s.CriticalChanges = a.criticalChanges(results)
	s.Insights = insights(s, a.categorizer.Categories())
	return s
}

// HealthScore maps trend counts onto 0-100. The net share of improved over
// worsened results scales linearly from neutral up to 100 (all improved) and
// down to 0 (all worsened). An empty set scores neutral.
func HealthScore(improved, worsened, total int, neutral float64) float64 {
	if total <= 0 {
		return neutral
	}
	net := float64(improved-worsened) / float64(total)
	if net >= 0 {
		return neutral + net*(100-neutral)
	}
	return neutral + net*neutral
}

func overallTrend(s Summary) string {
	switch {
	case s.TotalParameters == 0:
		return overallNoData
	case s.Improved > s.Worsened:
		return overallImproving
	case s.Worsened > s.Improved:
		return overallDeclining
	}
	return overallStable
}

func (a *Aggregator) criticalChanges(results []Result) []CriticalChange {
	critical := make([]CriticalChange, 0)
	for _, r := range results {
		large := r.ChangePercentage != nil && math.Abs(*r.ChangePercentage) > a.criticalThreshold
		if r.Trend != TrendWorsened && !large {
			continue
		}
		severity := severityMedium
		if r.Trend == TrendWorsened {
			severity = severityHigh
		}
		critical = append(critical, CriticalChange{
			Parameter:        r.ParameterName,
			OldValue:         r.OldValue,
			NewValue:         r.NewValue,
			Change:           r.Change,
			ChangePercentage: r.ChangePercentage,
			Trend:            r.Trend,
			Unit:             r.Unit,
			Severity:         severity,
		})
	}

	sort.SliceStable(critical, func(i, j int) bool {
		if critical[i].Severity != critical[j].Severity {
			return critical[i].Severity == severityHigh
		}
		return absPct(critical[i].ChangePercentage) > absPct(critical[j].ChangePercentage)
	})

	if a.maxCritical > 0 && len(critical) > a.maxCritical {
		critical = critical[:a.maxCritical]
	}
	return critical
}

func absPct(p *float64) float64 {
	if p == nil {
		return 0
	}
	return math.Abs(*p)
}
