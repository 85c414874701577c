package repository

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Suryanandx/2d-code-verifier/pkg/models"
)

var _ = Describe("BoltReportRepository", func() {
	var (
		ctx  context.Context
		repo *BoltReportRepository
		base time.Time
	)

	newReport := func(id string, at time.Time) *models.VerificationResult {
		mr := 12.5
		decoded := "]d2010950110153000317251231"
		return &models.VerificationResult{
			ID:                 id,
			ImagePath:          "uploads/" + id + ".png",
			Timestamp:          at,
			MinimumReflectance: &mr,
			Grades: map[models.Metric]models.Grade{
				models.MetricMinimumReflectance: models.GradeB,
			},
			OverallGrade: models.Ungradeable,
			DecodedData:  &decoded,
			Decode:       models.DecodeReport{Status: models.DecodeStatusDecoded, Decoder: "zxing"},
			ScanLine:     []int{255, 0, 255},
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		var err error
		repo, err = NewBoltReportRepository(filepath.Join(GinkgoT().TempDir(), "reports.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if repo != nil {
			repo.Close()
		}
	})

	Describe("SaveReport", func() {
		When("the report has an ID", func() {
			It("round-trips every field", func() {
				report := newReport("r-1", base)
				Expect(repo.SaveReport(ctx, report)).To(Succeed())

				saved, err := repo.GetReport(ctx, "r-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(saved.Timestamp.Equal(base)).To(BeTrue())
				Expect(*saved.MinimumReflectance).To(Equal(12.5))
				Expect(saved.SymbolContrast).To(BeNil())
				Expect(saved.Grades).To(HaveKeyWithValue(models.MetricMinimumReflectance, models.GradeB))
				Expect(saved.OverallGrade).To(Equal(models.Ungradeable))
				Expect(*saved.DecodedData).To(HavePrefix("]d2"))
				Expect(saved.ScanLine).To(Equal([]int{255, 0, 255}))
			})
		})

		When("the report has no ID", func() {
			It("assigns one", func() {
				report := newReport("", base)
				Expect(repo.SaveReport(ctx, report)).To(Succeed())
				Expect(report.ID).NotTo(BeEmpty())

				_, err := repo.GetReport(ctx, report.ID)
				Expect(err).NotTo(HaveOccurred())
			})
		})

		When("the report is nil", func() {
			It("returns an error", func() {
				Expect(repo.SaveReport(ctx, nil)).NotTo(Succeed())
			})
		})

		When("the context is cancelled", func() {
			It("does not write", func() {
				cancelled, cancel := context.WithCancel(ctx)
				cancel()
				Expect(repo.SaveReport(cancelled, newReport("r-2", base))).To(MatchError(context.Canceled))

				_, err := repo.GetReport(ctx, "r-2")
				Expect(err).To(MatchError(ErrReportNotFound))
			})
		})
	})

	Describe("GetReport", func() {
		When("the report does not exist", func() {
			It("returns ErrReportNotFound", func() {
				_, err := repo.GetReport(ctx, "missing")
				Expect(err).To(MatchError(ErrReportNotFound))
			})
		})

		When("the repository is closed", func() {
			It("returns ErrRepositoryUnavailable", func() {
				Expect(repo.Close()).To(Succeed())
				_, err := repo.GetReport(ctx, "r-1")
				Expect(err).To(MatchError(ErrRepositoryUnavailable))
				repo = nil
			})
		})
	})

	Describe("ListReports", func() {
		BeforeEach(func() {
			Expect(repo.SaveReport(ctx, newReport("b", base.Add(time.Minute)))).To(Succeed())
			Expect(repo.SaveReport(ctx, newReport("a", base))).To(Succeed())
			Expect(repo.SaveReport(ctx, newReport("c", base.Add(2*time.Minute)))).To(Succeed())
		})

		It("returns the newest first", func() {
			reports, err := repo.ListReports(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			ids := make([]string, len(reports))
			for i, r := range reports {
				ids[i] = r.ID
			}
			Expect(ids).To(Equal([]string{"c", "b", "a"}))
		})

		It("applies the limit", func() {
			reports, err := repo.ListReports(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(reports).To(HaveLen(2))
			Expect(reports[0].ID).To(Equal("c"))
		})

		It("overwrites a report saved twice", func() {
			again := newReport("a", base.Add(time.Hour))
			Expect(repo.SaveReport(ctx, again)).To(Succeed())

			reports, err := repo.ListReports(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(reports).To(HaveLen(3))
			Expect(reports[0].ID).To(Equal("a"))
		})
	})

	Describe("reopening", func() {
		It("keeps saved reports", func() {
			path := filepath.Join(GinkgoT().TempDir(), "persist.db")
			first, err := NewBoltReportRepository(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.SaveReport(ctx, newReport("kept", base))).To(Succeed())
			Expect(first.Close()).To(Succeed())

			second, err := NewBoltReportRepository(path)
			Expect(err).NotTo(HaveOccurred())
			defer second.Close()
			saved, err := second.GetReport(ctx, "kept")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.ImagePath).To(Equal("uploads/kept.png"))
		})
	})
})
