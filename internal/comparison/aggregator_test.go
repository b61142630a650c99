package comparison

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func results(improved, worsened, stable int) []Result {
	out := make([]Result, 0, improved+worsened+stable)
	for i := 0; i < improved; i++ {
		out = append(out, Result{ParameterName: "HDL", Trend: TrendImproved, Category: "Lipid Profile"})
	}
	for i := 0; i < worsened; i++ {
		out = append(out, Result{ParameterName: "Glucose", Trend: TrendWorsened, Category: "Diabetes"})
	}
	for i := 0; i < stable; i++ {
		out = append(out, Result{ParameterName: "MCV", Trend: TrendStable, Category: "Blood Count"})
	}
	return out
}

var _ = Describe("Aggregator", func() {
	var (
		aggregator *Aggregator
		input      []Result
		summary    Summary
	)

	BeforeEach(func() {
		aggregator = &Aggregator{
			neutral:           DefaultNeutralScore,
			criticalThreshold: DefaultCriticalThreshold,
			maxCritical:       DefaultMaxCriticalChanges,
			categorizer:       NewKeywordCategorizer(),
		}
	})

	JustBeforeEach(func() {
		summary = aggregator.Summarize(input, Skipped{NonNumeric: 2})
	})

	When("there are no results", func() {
		BeforeEach(func() {
			input = nil
		})

		It("should report zero totals", func() {
			Expect(summary.TotalParameters).To(Equal(0))
			Expect(summary.ImprovementRate).To(Equal(0.0))
		})

		It("should score neutral", func() {
			Expect(summary.HealthScore).To(Equal(DefaultNeutralScore))
		})

		It("should report no data", func() {
			Expect(summary.OverallTrend).To(Equal("no_data"))
			Expect(summary.Insights).To(ConsistOf("No comparable parameters found between reports."))
		})

		It("should carry the skipped counts", func() {
			Expect(summary.Skipped.NonNumeric).To(Equal(2))
		})
	})

	When("results are mixed", func() {
		BeforeEach(func() {
			input = results(3, 1, 2)
		})

		It("should tally trends", func() {
			Expect(summary.Improved).To(Equal(3))
			Expect(summary.Worsened).To(Equal(1))
			Expect(summary.Stable).To(Equal(2))
			Expect(summary.Improved + summary.Worsened + summary.Stable).To(Equal(summary.TotalParameters))
		})

		It("should keep the improvement rate at full precision", func() {
			Expect(summary.ImprovementRate).To(Equal(50.0))
		})

		It("should score above neutral", func() {
			Expect(summary.HealthScore).To(BeNumerically("~", 50+50*2.0/6.0, 1e-9))
		})

		It("should report improving", func() {
			Expect(summary.OverallTrend).To(Equal("improving"))
		})

		It("should break down by category", func() {
			Expect(summary.CategoryBreakdown).To(HaveKey("Lipid Profile"))
			Expect(summary.CategoryBreakdown["Lipid Profile"].Improved).To(Equal(3))
			Expect(summary.CategoryBreakdown["Lipid Profile"].Score).To(Equal(100.0))
			Expect(summary.CategoryBreakdown["Diabetes"].Score).To(Equal(0.0))
			Expect(summary.CategoryBreakdown["Blood Count"].Score).To(Equal(50.0))
		})

		It("should list worsened results as critical", func() {
			Expect(summary.CriticalChanges).To(HaveLen(1))
			Expect(summary.CriticalChanges[0].Severity).To(Equal("high"))
		})
	})

	When("every result improved", func() {
		BeforeEach(func() {
			input = results(4, 0, 0)
		})

		It("should score 100", func() {
			Expect(summary.HealthScore).To(Equal(100.0))
		})
	})

	When("every result worsened", func() {
		BeforeEach(func() {
			input = results(0, 4, 0)
		})

		It("should score 0", func() {
			Expect(summary.HealthScore).To(Equal(0.0))
			Expect(summary.OverallTrend).To(Equal("declining"))
		})
	})

	When("every result is stable", func() {
		BeforeEach(func() {
			input = results(0, 0, 4)
		})

		It("should score neutral", func() {
			Expect(summary.HealthScore).To(Equal(DefaultNeutralScore))
			Expect(summary.OverallTrend).To(Equal("stable"))
		})
	})

	When("changes are large", func() {
		BeforeEach(func() {
			input = []Result{
				{ParameterName: "Iron", Trend: TrendImproved, ChangePercentage: Float(25)},
				{ParameterName: "Ferritin", Trend: TrendImproved, ChangePercentage: Float(-60)},
				{ParameterName: "Glucose", Trend: TrendWorsened, ChangePercentage: Float(8)},
				{ParameterName: "HDL", Trend: TrendImproved, ChangePercentage: Float(10)},
			}
		})

		It("should list worsened first, then by magnitude", func() {
			Expect(summary.CriticalChanges).To(HaveLen(3))
			Expect(summary.CriticalChanges[0].Parameter).To(Equal("Glucose"))
			Expect(summary.CriticalChanges[1].Parameter).To(Equal("Ferritin"))
			Expect(summary.CriticalChanges[2].Parameter).To(Equal("Iron"))
			Expect(summary.CriticalChanges[1].Severity).To(Equal("medium"))
		})
	})

	When("there are more critical changes than the cap", func() {
		BeforeEach(func() {
			input = results(0, 15, 0)
		})

		It("should cap the list", func() {
			Expect(summary.CriticalChanges).To(HaveLen(DefaultMaxCriticalChanges))
		})
	})
})

var _ = Describe("HealthScore", func() {
	It("should never leave 0-100", func() {
		for total := 0; total <= 8; total++ {
			for improved := 0; improved <= total; improved++ {
				for worsened := 0; improved+worsened <= total; worsened++ {
					score := HealthScore(improved, worsened, total, DefaultNeutralScore)
					Expect(score).To(BeNumerically(">=", 0))
					Expect(score).To(BeNumerically("<=", 100))
				}
			}
		}
	})

	It("should not decrease when a stable result becomes improved", func() {
		for total := 1; total <= 8; total++ {
			for improved := 0; improved < total; improved++ {
				for worsened := 0; improved+worsened < total; worsened++ {
					before := HealthScore(improved, worsened, total, DefaultNeutralScore)
					after := HealthScore(improved+1, worsened, total, DefaultNeutralScore)
					Expect(after).To(BeNumerically(">=", before))
				}
			}
		}
	})

	It("should not increase when a stable result becomes worsened", func() {
		for total := 1; total <= 8; total++ {
			for improved := 0; improved < total; improved++ {
				for worsened := 0; improved+worsened < total; worsened++ {
					before := HealthScore(improved, worsened, total, DefaultNeutralScore)
					after := HealthScore(improved, worsened+1, total, DefaultNeutralScore)
					Expect(after).To(BeNumerically("<=", before))
				}
			}
		}
	})

	It("should not decrease when an improved result is added", func() {
		for total := 0; total <= 8; total++ {
			for improved := 0; improved <= total; improved++ {
				for worsened := 0; improved+worsened <= total; worsened++ {
					before := HealthScore(improved, worsened, total, DefaultNeutralScore)
					after := HealthScore(improved+1, worsened, total+1, DefaultNeutralScore)
					Expect(after).To(BeNumerically(">=", before))
				}
			}
		}
	})

	It("should not increase when a worsened result is added", func() {
		for total := 0; total <= 8; total++ {
			for improved := 0; improved <= total; improved++ {
				for worsened := 0; improved+worsened <= total; worsened++ {
					before := HealthScore(improved, worsened, total, DefaultNeutralScore)
					after := HealthScore(improved, worsened+1, total+1, DefaultNeutralScore)
					Expect(after).To(BeNumerically("<=", before))
				}
			}
		}
	})

	It("should honour a custom neutral value", func() {
		Expect(HealthScore(0, 0, 3, 70)).To(Equal(70.0))
		Expect(HealthScore(3, 0, 3, 70)).To(Equal(100.0))
		Expect(HealthScore(0, 3, 3, 70)).To(Equal(0.0))
	})
})
