package comparison

import "fmt"

// Default configuration values
const (
	DefaultStabilityThreshold = 5.0
	DefaultNeutralScore       = 50.0
	DefaultCriticalThreshold  = 20.0
	DefaultMaxCriticalChanges = 10
)

// Config holds the tunable constants of the engine
type Config struct {
	// StabilityThreshold is the absolute percentage change below which a
	// pair is stable regardless of polarity
	StabilityThreshold float64
	// NeutralScore is the health score of an all-stable or empty comparison
	NeutralScore float64
	MatchMode    MatchMode
	// CriticalThreshold is the absolute percentage change above which a
	// result is listed as a critical change
	CriticalThreshold  float64
	MaxCriticalChanges int
}

// DefaultConfig returns the standard engine configuration
func DefaultConfig() Config {
	return Config{
		StabilityThreshold: DefaultStabilityThreshold,
		NeutralScore:       DefaultNeutralScore,
		MatchMode:          MatchNormalized,
		CriticalThreshold:  DefaultCriticalThreshold,
		MaxCriticalChanges: DefaultMaxCriticalChanges,
	}
}

// Option customizes an Engine
type Option func(*Engine)

// WithCategorizer replaces the built-in keyword categorizer
func WithCategorizer(c Categorizer) Option {
	return func(e *Engine) {
		e.categorizer = c
	}
}

// Engine compares two parameter lists. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	cfg         Config
	directions  *DirectionTable
	classifier  *Classifier
	aggregator  *Aggregator
	categorizer Categorizer
}

// NewEngine creates an Engine. A nil table uses DefaultDirectionTable.
func NewEngine(directions *DirectionTable, cfg Config, opts ...Option) (*Engine, error) {
	if cfg.StabilityThreshold < 0 {
		return nil, fmt.Errorf("stability threshold must not be negative, got %v", cfg.StabilityThreshold)
	}
	if cfg.NeutralScore < 0 || cfg.NeutralScore > 100 {
		return nil, fmt.Errorf("neutral score must be within 0-100, got %v", cfg.NeutralScore)
	}
	if cfg.MatchMode == "" {
		cfg.MatchMode = MatchNormalized
	}
	if directions == nil {
		directions = DefaultDirectionTable()
	}

	e := &Engine{
		cfg:         cfg,
		directions:  directions,
		categorizer: NewKeywordCategorizer(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.classifier = NewClassifier(directions, cfg.StabilityThreshold)
	e.aggregator = &Aggregator{
		neutral:           cfg.NeutralScore,
		criticalThreshold: cfg.CriticalThreshold,
		maxCritical:       cfg.MaxCriticalChanges,
		categorizer:       e.categorizer,
	}
	return e, nil
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Directions returns the direction table in use
func (e *Engine) Directions() *DirectionTable {
	return e.directions
}

// Compare matches, classifies and summarizes two parameter lists.
// The inputs are not modified.
func (e *Engine) Compare(oldRef, newRef ReportRef, oldParams, newParams []Parameter) (*Comparison, error) {
	pairs, skipped, err := Match(oldParams, newParams, e.cfg.MatchMode)
	if err != nil {
		return nil, err
	}

	results := e.classifier.ClassifyAll(pairs)
	for i := range results {
		results[i].Category = e.categorizer.Categorize(results[i].ParameterName)
	}

	return &Comparison{
		OldReport:   oldRef,
		NewReport:   newRef,
		Comparisons: results,
		Summary:     e.aggregator.Summarize(results, skipped),
	}, nil
}
