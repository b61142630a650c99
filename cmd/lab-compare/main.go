// Command lab-compare compares two exported lab reports without a server.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/lab-tracker/internal/comparison"
	"github.com/zombor/lab-tracker/internal/report"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := ff.NewFlagSet("lab-compare")
	var (
		threshold    = fs.Float64Long("stability-threshold", comparison.DefaultStabilityThreshold, "Percent change below which a parameter is stable")
		matchMode    = fs.StringLong("match-mode", string(comparison.MatchNormalized), "Parameter name matching: 'exact' or 'normalized'")
		polarityFile = fs.StringLong("polarity-file", "", "YAML file mapping parameter names to lower/higher is better")
		format       = fs.StringLong("format", "text", "Output format: 'text', 'json' or 'markdown'")
	)

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("LAB_TRACKER")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		return err
	}
	if len(fs.GetArgs()) != 2 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		return errors.New("usage: lab-compare [flags] OLD.json NEW.json")
	}

	mode, err := comparison.ParseMatchMode(*matchMode)
	if err != nil {
		return err
	}
	cfg := comparison.DefaultConfig()
	cfg.StabilityThreshold = *threshold
	cfg.MatchMode = mode

	var directions *comparison.DirectionTable
	if *polarityFile != "" {
		if directions, err = comparison.LoadDirectionTable(*polarityFile); err != nil {
			return err
		}
	}
	engine, err := comparison.NewEngine(directions, cfg)
	if err != nil {
		return err
	}

	oldRef, oldParams, err := loadParameters(fs.GetArgs()[0])
	if err != nil {
		return err
	}
	newRef, newParams, err := loadParameters(fs.GetArgs()[1])
	if err != nil {
		return err
	}

	result, err := engine.Compare(oldRef, newRef, oldParams, newParams)
	if err != nil {
		return fmt.Errorf("comparing reports: %w", err)
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "markdown", "md":
		_, err := stdout.Write(report.ComparisonMarkdown(result))
		return err
	case "text":
		printText(stdout, result)
		return nil
	}
	return fmt.Errorf("unknown format %q", *format)
}

// loadParameters reads either a stored report (as exported in JSON) or a
// bare parameter array.
func loadParameters(path string) (comparison.ReportRef, []comparison.Parameter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return comparison.ReportRef{}, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	ref := comparison.ReportRef{ID: path, FileName: filepath.Base(path)}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var params []comparison.Parameter
		if err := json.Unmarshal(data, &params); err != nil {
			return ref, nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if info, err := os.Stat(path); err == nil {
			ref.Date = info.ModTime().UTC().Truncate(24 * time.Hour)
		}
		return ref, params, nil
	}

	var r report.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return ref, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if r.ID != "" {
		ref = r.Ref()
	}
	return ref, r.Parameters, nil
}

func printText(w io.Writer, c *comparison.Comparison) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "%s %s -> %s\n\n", bold("Comparing"), c.OldReport.FileName, c.NewReport.FileName)

	for _, r := range c.Comparisons {
		pct := "n/a"
		if r.ChangePercentage != nil {
			pct = fmt.Sprintf("%+.1f%%", *r.ChangePercentage)
		}
		trend := string(r.Trend)
		switch r.Trend {
		case comparison.TrendImproved:
			trend = green(trend)
		case comparison.TrendWorsened:
			trend = red(trend)
		default:
			trend = gray(trend)
		}
		fmt.Fprintf(w, "  %-30s %10g -> %-10g %-8s %8s  %s\n", r.ParameterName, r.OldValue, r.NewValue, r.Unit, pct, trend)
	}

	s := c.Summary
	fmt.Fprintf(w, "\n%s %.1f (%s)\n", bold("Health score:"), s.HealthScore, s.OverallTrend)
	fmt.Fprintf(w, "  improved %d, worsened %d, stable %d of %d\n", s.Improved, s.Worsened, s.Stable, s.TotalParameters)
	if n := s.Skipped.OnlyInOld + s.Skipped.OnlyInNew + s.Skipped.NonNumeric; n > 0 {
		fmt.Fprintf(w, "  %s\n", gray(fmt.Sprintf("%d parameters could not be compared", n)))
	}
	for _, insight := range s.Insights {
		fmt.Fprintf(w, "  - %s\n", insight)
	}
}
