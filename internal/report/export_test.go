package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/lab-tracker/internal/comparison"
)

var _ = Describe("parseValue", func() {
	DescribeTable("numeric results",
		func(raw string, expected float64) {
			v := parseValue(raw)
			Expect(v).NotTo(BeNil())
			Expect(*v).To(Equal(expected))
		},
		Entry("plain", "13.5", 13.5),
		Entry("padded", " 96 ", 96.0),
		Entry("thousands", "1,250", 1250.0),
		Entry("millions", "4,500,000", 4500000.0),
		Entry("decimal comma", "5,5", 5.5),
		Entry("negative", "-2.5", -2.5),
	)

	DescribeTable("non-numeric results",
		func(raw string) {
			Expect(parseValue(raw)).To(BeNil())
		},
		Entry("empty", ""),
		Entry("qualitative", "Negative"),
		Entry("censored", "<0.5"),
		Entry("infinite", "Inf"),
		Entry("not a number", "NaN"),
	)
})

var _ = Describe("exports", func() {
	var (
		db      *mockDB
		service *Service
	)

	BeforeEach(func() {
		db = newMockDB()
		service = NewServiceWithDeps(db, newMockScanner(), newMockStorage(), newTestEngine(), &mockIDGenerator{ids: []string{"x"}}, &mockTimeSource{now: time.Now()})

		db.reports["r1"] = &Report{
			ID:           "r1",
			OriginalName: "June Bloods.pdf",
			Parameters: []comparison.Parameter{
				{Name: "Cholesterol", RawValue: "184", Unit: "mg/dL", ReferenceRange: "<200", Status: "Normal", Category: "Lipid Profile"},
				{Name: `Ratio "Total/HDL"`, RawValue: "3,5", Category: "Lipid Profile"},
			},
		}
		db.comparisons["c1"] = &ComparisonRecord{
			ID: "c1",
			Comparison: comparison.Comparison{
				OldReport: comparison.ReportRef{ID: "a", FileName: "jan.pdf", Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
				NewReport: comparison.ReportRef{ID: "b", FileName: "jun.pdf", Date: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)},
				Comparisons: []comparison.Result{
					{ParameterName: "Cholesterol", OldValue: 220, NewValue: 180, Unit: "mg/dL", Change: -40, ChangePercentage: comparison.Float(-18.181818), Trend: comparison.TrendImproved, Category: "Lipid Profile"},
					{ParameterName: "Creatinine", OldValue: 0, NewValue: 5, Change: 5, Trend: comparison.TrendWorsened, Category: "Kidney Function"},
				},
				Summary: comparison.Summary{
					TotalParameters: 2, Improved: 1, Worsened: 1, HealthScore: 50, OverallTrend: "stable",
					Insights: []string{"Some parameters need attention."},
				},
			},
		}
	})

	Describe("ExportReport", func() {
		It("should export csv with a header row", func() {
			export, err := service.ExportReport("r1", "csv")
			Expect(err).NotTo(HaveOccurred())
			Expect(export.ContentType).To(Equal("text/csv"))
			Expect(export.Filename).To(Equal("June Bloods_export.csv"))

			rows, err := csv.NewReader(strings.NewReader(string(export.Data))).ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[0][1]).To(Equal("Test Name"))
			Expect(rows[2][1]).To(Equal(`Ratio "Total/HDL"`))
			Expect(rows[2][2]).To(Equal("3,5"))
		})

		It("should export json by default", func() {
			export, err := service.ExportReport("r1", "")
			Expect(err).NotTo(HaveOccurred())
			var decoded Report
			Expect(json.Unmarshal(export.Data, &decoded)).To(Succeed())
			Expect(decoded.Parameters).To(HaveLen(2))
		})

		It("rejects an unknown format", func() {
			_, err := service.ExportReport("r1", "xlsx")
			Expect(errors.Is(err, ErrUnsupportedExport)).To(BeTrue())
		})

		It("returns ErrNotFound for an unknown report", func() {
			_, err := service.ExportReport("missing", "csv")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("ExportComparison", func() {
		It("should export csv", func() {
			export, err := service.ExportComparison("c1", "csv")
			Expect(err).NotTo(HaveOccurred())
			rows, err := csv.NewReader(strings.NewReader(string(export.Data))).ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[1]).To(Equal([]string{"Cholesterol", "Lipid Profile", "220", "180", "mg/dL", "-40", "-18.18%", "improved"}))
			Expect(rows[2][6]).To(Equal("n/a"))
		})

		It("should export markdown", func() {
			export, err := service.ExportComparison("c1", "markdown")
			Expect(err).NotTo(HaveOccurred())
			md := string(export.Data)
			Expect(md).To(ContainSubstring("# Lab Report Comparison"))
			Expect(md).To(ContainSubstring("jan.pdf (2024-01-10)"))
			Expect(md).To(ContainSubstring("| Cholesterol | 220 | 180 | mg/dL | -18.18% | improved |"))
			Expect(md).To(ContainSubstring("- Some parameters need attention."))
		})

		It("should export html with a rendered table", func() {
			export, err := service.ExportComparison("c1", "html")
			Expect(err).NotTo(HaveOccurred())
			Expect(export.ContentType).To(HavePrefix("text/html"))
			html := string(export.Data)
			Expect(html).To(ContainSubstring("<table>"))
			Expect(html).To(ContainSubstring("<h1>Lab Report Comparison</h1>"))
		})

		It("should escape markup in parameter names", func() {
			db.comparisons["c1"].Comparisons[0].ParameterName = "<script>alert(1)</script>"
			export, err := service.ExportComparison("c1", "html")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(export.Data)).NotTo(ContainSubstring("<script>"))
		})

		It("rejects an unknown format", func() {
			_, err := service.ExportComparison("c1", "pdf")
			Expect(errors.Is(err, ErrUnsupportedExport)).To(BeTrue())
		})
	})
})
