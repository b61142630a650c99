package comparison

import (
	"encoding/json"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Engine", func() {
	var (
		engine    *Engine
		oldRef    ReportRef
		newRef    ReportRef
		oldParams []Parameter
		newParams []Parameter
		result    *Comparison
		err       error
	)

	findResult := func(name string) *Result {
		for i := range result.Comparisons {
			if result.Comparisons[i].ParameterName == name {
				return &result.Comparisons[i]
			}
		}
		return nil
	}

	BeforeEach(func() {
		engine, err = NewEngine(DefaultDirectionTable(), DefaultConfig())
		Expect(err).NotTo(HaveOccurred())

		oldRef = ReportRef{ID: "old-1", FileName: "jan.pdf", Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)}
		newRef = ReportRef{ID: "new-1", FileName: "jun.pdf", Date: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)}

		oldParams = []Parameter{
			param("Cholesterol", 220, "mg/dL"),
			param("Hemoglobin", 13.0, "g/dL"),
			param("Glucose", 90, "mg/dL"),
			param("Creatinine", 0, "mg/dL"),
		}
		newParams = []Parameter{
			param("Cholesterol", 180, "mg/dL"),
			param("Hemoglobin", 13.3, "g/dL"),
			param("Glucose", 140, "mg/dL"),
			param("Creatinine", 5, "mg/dL"),
			param("Vitamin D", 32, "ng/mL"),
		}
	})

	JustBeforeEach(func() {
		result, err = engine.Compare(oldRef, newRef, oldParams, newParams)
	})

	It("should not return an error", func() {
		Expect(err).NotTo(HaveOccurred())
	})

	It("should echo the report references", func() {
		Expect(result.OldReport).To(Equal(oldRef))
		Expect(result.NewReport).To(Equal(newRef))
	})

	It("should classify a cholesterol drop as improved", func() {
		r := findResult("Cholesterol")
		Expect(r).NotTo(BeNil())
		Expect(r.Change).To(Equal(-40.0))
		Expect(*r.ChangePercentage).To(BeNumerically("~", -18.18, 0.01))
		Expect(r.Trend).To(Equal(TrendImproved))
	})

	It("should classify a small hemoglobin rise as stable", func() {
		r := findResult("Hemoglobin")
		Expect(*r.ChangePercentage).To(BeNumerically("~", 2.3, 0.05))
		Expect(r.Trend).To(Equal(TrendStable))
	})

	It("should classify a glucose rise as worsened", func() {
		r := findResult("Glucose")
		Expect(*r.ChangePercentage).To(BeNumerically("~", 55.6, 0.05))
		Expect(r.Trend).To(Equal(TrendWorsened))
	})

	It("should exclude a parameter present only in the new report", func() {
		Expect(findResult("Vitamin D")).To(BeNil())
		Expect(result.Summary.TotalParameters).To(Equal(4))
		Expect(result.Summary.Skipped.OnlyInNew).To(Equal(1))
	})

	It("should classify a zero baseline by the sign of the change", func() {
		r := findResult("Creatinine")
		Expect(r.ChangePercentage).To(BeNil())
		Expect(r.Trend).To(Equal(TrendWorsened))
	})

	It("should attach categories", func() {
		Expect(findResult("Cholesterol").Category).To(Equal("Lipid Profile"))
		Expect(findResult("Creatinine").Category).To(Equal("Kidney Function"))
	})

	It("should keep the summary counts consistent", func() {
		s := result.Summary
		Expect(s.Improved + s.Worsened + s.Stable).To(Equal(s.TotalParameters))
		Expect(s.Improved).To(Equal(1))
		Expect(s.Worsened).To(Equal(2))
		Expect(s.Stable).To(Equal(1))
	})

	It("should not modify the inputs", func() {
		Expect(*oldParams[0].Value).To(Equal(220.0))
		Expect(newParams).To(HaveLen(5))
	})

	It("should give every result a trend", func() {
		for _, r := range result.Comparisons {
			Expect(r.Trend).To(BeElementOf(TrendImproved, TrendWorsened, TrendStable))
		}
	})

	It("should never produce non-finite numbers", func() {
		for _, r := range result.Comparisons {
			Expect(math.IsNaN(r.Change) || math.IsInf(r.Change, 0)).To(BeFalse())
			if r.ChangePercentage != nil {
				Expect(math.IsNaN(*r.ChangePercentage) || math.IsInf(*r.ChangePercentage, 0)).To(BeFalse())
			}
		}
	})

	When("the reports share no parameters", func() {
		BeforeEach(func() {
			newParams = []Parameter{param("TSH", 2.5, "mIU/L")}
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return an empty comparison list", func() {
			Expect(result.Comparisons).NotTo(BeNil())
			Expect(result.Comparisons).To(BeEmpty())
		})

		It("should return a neutral summary", func() {
			Expect(result.Summary.TotalParameters).To(Equal(0))
			Expect(result.Summary.ImprovementRate).To(Equal(0.0))
			Expect(result.Summary.HealthScore).To(Equal(DefaultNeutralScore))
		})
	})

	When("a parameter violates the input contract", func() {
		BeforeEach(func() {
			oldParams = append(oldParams, param("Iron", math.NaN(), ""))
		})

		It("rejects the call", func() {
			Expect(err).To(MatchError(ErrInvalidParameter))
			Expect(result).To(BeNil())
		})
	})

	When("a baseline is vanishingly small", func() {
		BeforeEach(func() {
			oldParams = append(oldParams, param("Glucose", 1e-310, "mg/dL"))
			newParams = append(newParams, param("Glucose", 1e10, "mg/dL"))
		})

		It("should produce output that encodes as JSON", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(findResult("Glucose").ChangePercentage).To(BeNil())
			_, merr := json.Marshal(result)
			Expect(merr).NotTo(HaveOccurred())
		})
	})

	When("a change overflows", func() {
		BeforeEach(func() {
			oldParams = append(oldParams, param("Ferritin", -1.7e308, ""))
			newParams = append(newParams, param("Ferritin", 1.7e308, ""))
		})

		It("rejects the call", func() {
			Expect(err).To(MatchError(ErrInvalidParameter))
		})
	})

	When("the comparison is reversed", func() {
		It("should flip improved to worsened outside the stability band", func() {
			reverse, rerr := engine.Compare(newRef, oldRef, newParams, oldParams)
			Expect(rerr).NotTo(HaveOccurred())

			forward := make(map[string]Result)
			for _, r := range result.Comparisons {
				forward[r.ParameterName] = r
			}
			for _, r := range reverse.Comparisons {
				f := forward[r.ParameterName]
				if f.Trend != TrendImproved {
					continue
				}
				if r.ChangePercentage != nil && math.Abs(*r.ChangePercentage) < DefaultStabilityThreshold {
					Expect(r.Trend).To(Equal(TrendStable))
				} else {
					Expect(r.Trend).To(Equal(TrendWorsened), r.ParameterName)
				}
			}
		})

		It("should classify reversed cholesterol as worsened", func() {
			reverse, rerr := engine.Compare(newRef, oldRef, newParams, oldParams)
			Expect(rerr).NotTo(HaveOccurred())
			Expect(reverse.Comparisons[0].ParameterName).To(Equal("Cholesterol"))
			Expect(reverse.Comparisons[0].Trend).To(Equal(TrendWorsened))
		})
	})

	Describe("stability band property", func() {
		It("should mark every pair inside the band stable", func() {
			names := []string{"Cholesterol", "HDL", "MCV"}
			for _, name := range names {
				for _, newValue := range []float64{95.5, 97, 99, 100, 101, 103, 104.9} {
					r := engine.classifier.Classify(pair(name, 100, newValue))
					Expect(r.Trend).To(Equal(TrendStable), name)
				}
			}
		})
	})

	Describe("NewEngine", func() {
		It("rejects a negative threshold", func() {
			cfg := DefaultConfig()
			cfg.StabilityThreshold = -1
			_, err := NewEngine(nil, cfg)
			Expect(err).To(HaveOccurred())
		})

		It("rejects a neutral score outside 0-100", func() {
			cfg := DefaultConfig()
			cfg.NeutralScore = 120
			_, err := NewEngine(nil, cfg)
			Expect(err).To(HaveOccurred())
		})

		It("should use the default table when none is given", func() {
			e, err := NewEngine(nil, DefaultConfig())
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Directions().Lookup("LDL")).To(Equal(LowerIsBetter))
		})

		It("should accept a custom categorizer", func() {
			e, err := NewEngine(nil, DefaultConfig(), WithCategorizer(staticCategorizer("Panel")))
			Expect(err).NotTo(HaveOccurred())
			c, err := e.Compare(oldRef, newRef, oldParams, newParams)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Comparisons[0].Category).To(Equal("Panel"))
			Expect(c.Summary.CategoryBreakdown).To(HaveKey("Panel"))
		})
	})
})

type staticCategorizer string

func (s staticCategorizer) Categorize(string) string { return string(s) }
func (s staticCategorizer) Categories() []string { return []string{string(s)} }
