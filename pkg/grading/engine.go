package grading

import (
	"errors"
	"fmt"

	"github.com/Suryanandx/2d-code-verifier/pkg/models"
)

// ErrMetricMissing is the cause recorded for a required metric that was
// never measured
var ErrMetricMissing = errors.New("metric not measured")

// Measurement is one raw metric outcome handed to the grader. Err != nil
// means the metric could not be computed.
type Measurement struct {
	Metric models.Metric
	Value  float64
	Err    error
}

// QuietZoneStatus is the binary quiet zone finding. Err != nil means the
// quiet zone could not be measured.
type QuietZoneStatus struct {
	Compliant bool
	Err       error
}

// MetricUnavailable records a metric that received no grade and why
type MetricUnavailable struct {
	Metric models.Metric
	Cause  error
}

func (m MetricUnavailable) Error() string {
	return fmt.Sprintf("metric %s unavailable: %v", m.Metric, m.Cause)
}

func (m MetricUnavailable) Unwrap() error {
	return m.Cause
}

// Report is the outcome of grading one symbol
type Report struct {
	// Grades holds a letter grade for every metric that was available
	Grades map[models.Metric]models.Grade
	// Unavailable lists metrics that could not be graded, in reporting order
	Unavailable []MetricUnavailable
	// Overall is the worst per-metric grade, or Ungradeable when any
	// metric is unavailable
	Overall models.Grade
}

// Grader maps raw measurements to grades
type Grader interface {
	Evaluate(metrics []Measurement, quietZone QuietZoneStatus) Report
	Tables() Tables
}

type engine struct {
	tables Tables
}

// NewEngine creates a grader backed by the given tables
func NewEngine(tables Tables) Grader {
	return &engine{tables: tables}
}

// Tables returns the tables the engine grades with
func (e *engine) Tables() Tables {
	return e.tables
}

// Evaluate grades every optical metric and the quiet zone, then takes the
// weakest link. The overall grade is only computed once all seven have a
// grade; otherwise it is Ungradeable.
func (e *engine) Evaluate(metrics []Measurement, quietZone QuietZoneStatus) Report {
	byMetric := make(map[models.Metric]Measurement, len(metrics))
	for _, m := range metrics {
		byMetric[m.Metric] = m
	}

	report := Report{Grades: make(map[models.Metric]models.Grade, len(models.GradedMetrics()))}

	for _, metric := range models.OpticalMetrics() {
		m, ok := byMetric[metric]
		switch {
		case !ok:
			report.Unavailable = append(report.Unavailable, MetricUnavailable{Metric: metric, Cause: ErrMetricMissing})
		case m.Err != nil:
			report.Unavailable = append(report.Unavailable, MetricUnavailable{Metric: metric, Cause: m.Err})
		default:
			table, found := e.tables.Table(metric)
			if !found {
				report.Unavailable = append(report.Unavailable, MetricUnavailable{
					Metric: metric,
					Cause:  fmt.Errorf("no threshold table for %s", metric),
				})
				continue
			}
			report.Grades[metric] = table.Grade(m.Value)
		}
	}

	if quietZone.Err != nil {
		report.Unavailable = append(report.Unavailable, MetricUnavailable{Metric: models.MetricQuietZone, Cause: quietZone.Err})
	} else {
		report.Grades[models.MetricQuietZone] = QuietZoneGrade(quietZone.Compliant)
	}

	if len(report.Unavailable) > 0 {
		report.Overall = models.Ungradeable
		return report
	}

	grades := make([]models.Grade, 0, len(report.Grades))
	for _, metric := range models.GradedMetrics() {
		grades = append(grades, report.Grades[metric])
	}
	report.Overall = models.Worst(grades...)
	return report
}

// QuietZoneGrade is A for a compliant quiet zone and F otherwise, so a
// violation caps the overall grade at F
func QuietZoneGrade(compliant bool) models.Grade {
	if compliant {
		return models.GradeA
	}
	return models.GradeF
}
