package grading

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Suryanandx/2d-code-verifier/pkg/models"
)

// Tables is an immutable set of threshold tables, one per optical metric
type Tables struct {
	byMetric map[models.Metric]ThresholdTable
}

// DefaultTables returns lower-bound tables on the 0-100 scale for MR and
// ANU, the 8-bit intensity scale for MEC, SC and MOD, and the percent
// coefficient of variation for GNU. A well printed symbol earns A on all six.
// MR and MEC award A from zero: a solid ink module reflects close to nothing
// and flat module interiors repeat the same sample.
func DefaultTables() Tables {
	tables, err := NewTables(
		ThresholdTable{
			Metric:    models.MetricMinimumReflectance,
			Direction: HigherIsBetter,
			Entries:   []Threshold{{Bound: 0, Grade: models.GradeA}},
		},
		ThresholdTable{
			Metric:    models.MetricMinimumEdgeContrast,
			Direction: HigherIsBetter,
			Entries:   []Threshold{{Bound: 0, Grade: models.GradeA}},
		},
		ThresholdTable{
			Metric:    models.MetricSymbolContrast,
			Direction: HigherIsBetter,
			Entries:   letters(178.5, 140.25, 102, 51),
		},
		ThresholdTable{
			Metric:    models.MetricModulation,
			Direction: HigherIsBetter,
			Entries:   letters(76.5, 63.75, 51, 38.25),
		},
		ThresholdTable{
			Metric:    models.MetricAxialNonUniformity,
			Direction: HigherIsBetter,
			Entries:   letters(70, 55, 40, 20),
		},
		ThresholdTable{
			Metric:    models.MetricGridNonUniformity,
			Direction: HigherIsBetter,
			Entries:   letters(10, 7.5, 5, 2.5),
		},
	)
	if err != nil {
		panic(fmt.Sprintf("default grading tables are invalid: %v", err))
	}
	return tables
}

// letters builds A..D entries from four bounds
func letters(a, b, c, d float64) []Threshold {
	return []Threshold{
		{Bound: a, Grade: models.GradeA},
		{Bound: b, Grade: models.GradeB},
		{Bound: c, Grade: models.GradeC},
		{Bound: d, Grade: models.GradeD},
	}
}

// NewTables validates and assembles a complete table set. Every optical
// metric must have exactly one table.
func NewTables(tables ...ThresholdTable) (Tables, error) {
	byMetric := make(map[models.Metric]ThresholdTable, len(tables))
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return Tables{}, err
		}
		if _, dup := byMetric[t.Metric]; dup {
			return Tables{}, fmt.Errorf("duplicate threshold table for %s", t.Metric)
		}
		entries := make([]Threshold, len(t.Entries))
		copy(entries, t.Entries)
		t.Entries = entries
		byMetric[t.Metric] = t
	}
	for _, m := range models.OpticalMetrics() {
		if _, ok := byMetric[m]; !ok {
			return Tables{}, fmt.Errorf("missing threshold table for %s", m)
		}
	}
	return Tables{byMetric: byMetric}, nil
}

// Table returns the table for metric m
func (t Tables) Table(m models.Metric) (ThresholdTable, bool) {
	table, ok := t.byMetric[m]
	return table, ok
}

// All returns every table in reporting order
func (t Tables) All() []ThresholdTable {
	out := make([]ThresholdTable, 0, len(t.byMetric))
	for _, m := range models.OpticalMetrics() {
		if table, ok := t.byMetric[m]; ok {
			out = append(out, table)
		}
	}
	return out
}

type tablesFile struct {
	Metrics map[string]tableFile `yaml:"metrics"`
}

type tableFile struct {
	Direction  string      `yaml:"direction"`
	Thresholds []entryFile `yaml:"thresholds"`
}

type entryFile struct {
	Bound float64 `yaml:"bound"`
	Grade string  `yaml:"grade"`
}

// LoadTables reads threshold overrides from a YAML file. Metrics the file
// does not mention keep their default tables. direction defaults to
// higher_is_better; lower_is_better flips the table to ascending upper bounds.
//
//	metrics:
//	  symbol_contrast:
//	    direction: higher_is_better
//	    thresholds:
//	      - {bound: 180, grade: A}
//	      - {bound: 140, grade: B}
func LoadTables(path string) (Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read grading tables: %w", err)
	}
	tables, err := ParseTables(data)
	if err != nil {
		return Tables{}, fmt.Errorf("%s: %w", path, err)
	}
	return tables, nil
}

// ParseTables parses YAML threshold overrides on top of DefaultTables
func ParseTables(data []byte) (Tables, error) {
	var file tablesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Tables{}, fmt.Errorf("parse grading tables: %w", err)
	}

	merged := DefaultTables().byMetric
	names := make([]string, 0, len(file.Metrics))
	for name := range file.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tf := file.Metrics[name]
		metric := models.Metric(name)
		table := ThresholdTable{Metric: metric, Direction: Direction(tf.Direction)}
		if tf.Direction == "" {
			table.Direction = HigherIsBetter
		}
		for i, e := range tf.Thresholds {
			grade, err := models.ParseGrade(e.Grade)
			if err != nil {
				return Tables{}, fmt.Errorf("%s entry %d: %w", name, i, err)
			}
			table.Entries = append(table.Entries, Threshold{Bound: e.Bound, Grade: grade})
		}
		if err := table.Validate(); err != nil {
			return Tables{}, err
		}
		merged[metric] = table
	}

	tables := make([]ThresholdTable, 0, len(merged))
	for _, t := range merged {
		tables = append(tables, t)
	}
	return NewTables(tables...)
}
