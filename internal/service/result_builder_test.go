package service

import (
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Suryanandx/2d-code-verifier/internal/analyzer"
	"github.com/Suryanandx/2d-code-verifier/pkg/grading"
	"github.com/Suryanandx/2d-code-verifier/pkg/models"
)

var _ = Describe("buildResult", func() {
	build := func(conditions ...error) *models.VerificationResult {
		m := &analyzer.Measurements{Conditions: conditions}
		report := grading.Report{Grades: map[models.Metric]models.Grade{}, Overall: models.Ungradeable}
		decoded := decodeOutcome{err: errors.New("no symbol")}
		return buildResult("r-1", "labels/a.png", time.Unix(0, 0), time.Second, m, report, decoded, "")
	}

	codes := func(result *models.VerificationResult) []string {
		var out []string
		for _, c := range result.Conditions {
			if c.Code != models.ConditionDecodeFailed {
				out = append(out, c.Code)
			}
		}
		return out
	}

	It("classifies the known analyzer conditions", func() {
		result := build(
			fmt.Errorf("%w: dark region too small", analyzer.ErrSymbolNotFound),
			fmt.Errorf("%w: [left top]", analyzer.ErrQuietZoneTruncated),
		)
		Expect(codes(result)).To(Equal([]string{
			models.ConditionSymbolNotFound,
			models.ConditionQuietZoneTruncated,
		}))
	})

	It("does not report other conditions as a missing symbol", func() {
		result := build(errors.New("specular glare over the finder"))
		Expect(codes(result)).To(Equal([]string{models.ConditionAnalysisWarning}))
		Expect(result.Conditions[0].Message).To(Equal("specular glare over the finder"))
	})

	It("keeps the image reference it was given", func() {
		Expect(build().ImagePath).To(Equal("labels/a.png"))
	})
})
