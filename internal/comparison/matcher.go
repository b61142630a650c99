package comparison

import (
	"fmt"
	"math"
	"strings"
)

// MatchMode selects how parameter names are turned into join keys
type MatchMode string

const (
	// MatchExact joins on the name exactly as extracted (case-sensitive)
	MatchExact MatchMode = "exact"
	// MatchNormalized joins on NormalizeName(name)
	MatchNormalized MatchMode = "normalized"
)

// ParseMatchMode parses a match mode flag value
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case MatchExact:
		return MatchExact, nil
	case MatchNormalized, "":
		return MatchNormalized, nil
	}
	return "", fmt.Errorf("unknown match mode %q", s)
}

func (m MatchMode) key(name string) string {
	if m == MatchExact {
		return name
	}
	return NormalizeName(name)
}

// Pair is a matched old/new parameter with numeric values on both sides
type Pair struct {
	Old Parameter
	New Parameter
}

// Match pairs parameters present in both reports that carry a numeric
// value on both sides. Pairs come back in the order of oldParams. A name that
// appears more than once in a report keeps its last occurrence.
func Match(oldParams, newParams []Parameter, mode MatchMode) ([]Pair, Skipped, error) {
	var skipped Skipped

	if err := validate(oldParams); err != nil {
		return nil, skipped, fmt.Errorf("old report: %w", err)
	}
	if err := validate(newParams); err != nil {
		return nil, skipped, fmt.Errorf("new report: %w", err)
	}

	oldIdx, oldOrder, oldDup := index(oldParams, mode)
	newIdx, _, newDup := index(newParams, mode)
	skipped.Duplicates = oldDup + newDup

	pairs := make([]Pair, 0, len(oldOrder))
	for _, key := range oldOrder {
		o := oldParams[oldIdx[key]]
		i, ok := newIdx[key]
		if !ok {
			skipped.OnlyInOld++
			continue
		}
		n := newParams[i]
		if o.Value == nil || n.Value == nil {
			skipped.NonNumeric++
			continue
		}
		if math.IsInf(*n.Value-*o.Value, 0) {
			return nil, skipped, fmt.Errorf("parameter %q: change out of range: %w", o.Name, ErrInvalidParameter)
		}
		pairs = append(pairs, Pair{Old: o, New: n})
	}

	for key := range newIdx {
		if _, ok := oldIdx[key]; !ok {
			skipped.OnlyInNew++
		}
	}

	return pairs, skipped, nil
}

// index maps join key to the position of the last parameter with that key,
// plus the keys in first-seen order and the number of duplicates dropped
func index(params []Parameter, mode MatchMode) (map[string]int, []string, int) {
	idx := make(map[string]int, len(params))
	order := make([]string, 0, len(params))
	dups := 0
	for i, p := range params {
		key := mode.key(p.Name)
		if _, seen := idx[key]; seen {
			dups++
		} else {
			order = append(order, key)
		}
		idx[key] = i
	}
	return idx, order, dups
}

func validate(params []Parameter) error {
	for i, p := range params {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("parameter %d has no name: %w", i, ErrInvalidParameter)
		}
		if p.Value != nil && (math.IsNaN(*p.Value) || math.IsInf(*p.Value, 0)) {
			return fmt.Errorf("parameter %q has non-finite value: %w", p.Name, ErrInvalidParameter)
		}
	}
	return nil
}
