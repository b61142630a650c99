package comparison

import "math"

// Classifier turns matched pairs into results
type Classifier struct {
	directions *DirectionTable
	// threshold is the stability band in percent
	threshold float64
}

// NewClassifier creates a Classifier. A nil table uses DefaultDirectionTable.
func NewClassifier(directions *DirectionTable, threshold float64) *Classifier {
	if directions == nil {
		directions = DefaultDirectionTable()
	}
	return &Classifier{directions: directions, threshold: threshold}
}

// Classify computes change, percentage change and trend for one pair
func (c *Classifier) Classify(p Pair) Result {
	oldV, newV := *p.Old.Value, *p.New.Value
	change := newV - oldV
	polarity := c.directions.Lookup(p.Old.Name)

	unit := p.New.Unit
	if unit == "" {
		unit = p.Old.Unit
	}

	res := Result{
		ParameterName: p.Old.Name,
		OldValue:      oldV,
		NewValue:      newV,
		Unit:          unit,
		Change:        change,
		Polarity:      polarity,
		Direction:     direction(change),
	}

	// A zero or vanishing baseline has no usable percentage change. Fall back
	// to the sign of the change; the stability band cannot apply.
	pct := change / oldV * 100
	if oldV == 0 || math.IsInf(pct, 0) || math.IsNaN(pct) {
		res.Trend = trendFor(polarity, change)
		return res
	}

	res.ChangePercentage = &pct
	if math.Abs(pct) < c.threshold {
		res.Trend = TrendStable
		return res
	}
	res.Trend = trendFor(polarity, change)
	return res
}

// ClassifyAll classifies every pair, preserving order
func (c *Classifier) ClassifyAll(pairs []Pair) []Result {
	results := make([]Result, 0, len(pairs))
	for _, p := range pairs {
		results = append(results, c.Classify(p))
	}
	return results
}

func trendFor(polarity Polarity, change float64) Trend {
	switch {
	case change == 0:
		return TrendStable
	case polarity == LowerIsBetter && change < 0, polarity == HigherIsBetter && change > 0:
		return TrendImproved
	case polarity == LowerIsBetter, polarity == HigherIsBetter:
		return TrendWorsened
	}
	return TrendStable
}

func direction(change float64) Direction {
	switch {
	case change > 0:
		return DirectionIncreased
	case change < 0:
		return DirectionDecreased
	}
	return DirectionUnchanged
}
