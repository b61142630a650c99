package comparison

import "fmt"

// insights builds short human-readable observations about a summary.
// categories gives the order in which per-category lines appear.
func insights(s Summary, categories []string) []string {
	if s.TotalParameters == 0 {
		return []string{"No comparable parameters found between reports."}
	}

	var out []string
	worseningRate := float64(s.Worsened) / float64(s.TotalParameters) * 100

	switch {
	case s.ImprovementRate > 60:
		out = append(out, fmt.Sprintf("Excellent progress! %d out of %d parameters have improved.", s.Improved, s.TotalParameters))
	case s.ImprovementRate > 40:
		out = append(out, fmt.Sprintf("Good progress! %d parameters are showing improvement.", s.Improved))
	case worseningRate > 40:
		out = append(out, fmt.Sprintf("Attention needed: %d parameters have worsened since last report.", s.Worsened))
	default:
		out = append(out, fmt.Sprintf("Health status is relatively stable with %d parameters unchanged.", s.Stable))
	}

	for _, name := range categories {
		stats, ok := s.CategoryBreakdown[name]
		if !ok {
			continue
		}
		switch {
		case stats.Worsened > stats.Improved:
			out = append(out, fmt.Sprintf("%s: %d parameter(s) declined. Consider consulting your doctor.", name, stats.Worsened))
		case stats.Improved > stats.Worsened && stats.Improved > 1:
			out = append(out, fmt.Sprintf("%s: showing positive changes with %d parameter(s) improved.", name, stats.Improved))
		}
	}

	high := 0
	for _, c := range s.CriticalChanges {
		if c.Severity == severityHigh {
			high++
		}
	}
	if high > 0 {
		out = append(out, fmt.Sprintf("%d parameter(s) require attention. Review the critical changes.", high))
	}

	switch {
	case s.Worsened > s.Improved:
		out = append(out, "Recommendation: schedule a follow-up consultation with your healthcare provider.")
	case s.Improved > s.Worsened:
		out = append(out, "Keep up the good work! Continue maintaining your current health regimen.")
	}
	return out
}
