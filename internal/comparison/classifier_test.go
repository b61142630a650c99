package comparison

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Classifier", func() {
	var (
		classifier *Classifier
		p          Pair
		result     Result
	)

	BeforeEach(func() {
		classifier = NewClassifier(DefaultDirectionTable(), DefaultStabilityThreshold)
	})

	JustBeforeEach(func() {
		result = classifier.Classify(p)
	})

	When("a lower is better value drops", func() {
		BeforeEach(func() {
			p = Pair{Old: param("Cholesterol", 220, "mg/dL"), New: param("Cholesterol", 180, "mg/dL")}
		})

		It("should compute the change", func() {
			Expect(result.Change).To(Equal(-40.0))
		})

		It("should compute the percentage change", func() {
			Expect(result.ChangePercentage).NotTo(BeNil())
			Expect(*result.ChangePercentage).To(BeNumerically("~", -18.18, 0.01))
		})

		It("should be improved", func() {
			Expect(result.Trend).To(Equal(TrendImproved))
		})

		It("should carry the unit", func() {
			Expect(result.Unit).To(Equal("mg/dL"))
		})

		It("should record polarity and direction", func() {
			Expect(result.Polarity).To(Equal(LowerIsBetter))
			Expect(result.Direction).To(Equal(DirectionDecreased))
		})
	})

	When("a lower is better value rises", func() {
		BeforeEach(func() {
			p = pair("Glucose", 90, 140)
		})

		It("should be worsened", func() {
			Expect(*result.ChangePercentage).To(BeNumerically("~", 55.56, 0.01))
			Expect(result.Trend).To(Equal(TrendWorsened))
		})
	})

	When("a higher is better value rises", func() {
		BeforeEach(func() {
			p = pair("HDL", 40, 50)
		})

		It("should be improved", func() {
			Expect(result.Trend).To(Equal(TrendImproved))
		})
	})

	When("a higher is better value drops", func() {
		BeforeEach(func() {
			p = pair("Hemoglobin", 14, 12)
		})

		It("should be worsened", func() {
			Expect(result.Trend).To(Equal(TrendWorsened))
		})
	})

	When("the change is inside the stability band", func() {
		BeforeEach(func() {
			p = pair("Hemoglobin", 13.0, 13.3)
		})

		It("should be stable", func() {
			Expect(*result.ChangePercentage).To(BeNumerically("~", 2.31, 0.01))
			Expect(result.Trend).To(Equal(TrendStable))
		})
	})

	When("the change sits exactly on the threshold", func() {
		BeforeEach(func() {
			p = pair("Glucose", 100, 105)
		})

		It("should not be stable", func() {
			Expect(result.Trend).To(Equal(TrendWorsened))
		})
	})

	When("the parameter is not in the direction table", func() {
		BeforeEach(func() {
			p = pair("MCV", 80, 100)
		})

		It("should be stable", func() {
			Expect(result.Polarity).To(Equal(PolarityUnknown))
			Expect(result.Trend).To(Equal(TrendStable))
		})

		It("should still report the direction", func() {
			Expect(result.Direction).To(Equal(DirectionIncreased))
		})
	})

	When("the old value is zero", func() {
		When("the value rose", func() {
			BeforeEach(func() {
				p = pair("Creatinine", 0, 5)
			})

			It("should leave the percentage undefined", func() {
				Expect(result.ChangePercentage).To(BeNil())
			})

			It("should classify by the sign of the change", func() {
				Expect(result.Change).To(Equal(5.0))
				Expect(result.Trend).To(Equal(TrendWorsened))
			})
		})

		When("a higher is better value rose", func() {
			BeforeEach(func() {
				p = pair("Hemoglobin", 0, 5)
			})

			It("should be improved", func() {
				Expect(result.Trend).To(Equal(TrendImproved))
			})
		})

		When("the value is still zero", func() {
			BeforeEach(func() {
				p = pair("Creatinine", 0, 0)
			})

			It("should be stable", func() {
				Expect(result.ChangePercentage).To(BeNil())
				Expect(result.Trend).To(Equal(TrendStable))
				Expect(result.Direction).To(Equal(DirectionUnchanged))
			})
		})
	})

	When("the old value is vanishingly small", func() {
		BeforeEach(func() {
			p = pair("Glucose", 1e-310, 1e10)
		})

		It("should leave the percentage undefined", func() {
			Expect(result.ChangePercentage).To(BeNil())
		})

		It("should classify by the sign of the change", func() {
			Expect(math.IsInf(result.Change, 0)).To(BeFalse())
			Expect(result.Trend).To(Equal(TrendWorsened))
		})
	})

	When("the new report has no unit", func() {
		BeforeEach(func() {
			p = Pair{Old: param("Iron", 60, "ug/dL"), New: param("Iron", 90, "")}
		})

		It("should fall back to the old unit", func() {
			Expect(result.Unit).To(Equal("ug/dL"))
		})
	})

	When("the threshold is configured", func() {
		BeforeEach(func() {
			classifier = NewClassifier(DefaultDirectionTable(), 1)
			p = pair("Hemoglobin", 13.0, 13.3)
		})

		It("should apply it", func() {
			Expect(result.Trend).To(Equal(TrendImproved))
		})
	})
})
