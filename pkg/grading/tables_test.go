package grading

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Suryanandx/2d-code-verifier/pkg/models"
)

func TestThresholdTable_Grade(t *testing.T) {
	higher := ThresholdTable{
		Metric:    models.MetricSymbolContrast,
		Direction: HigherIsBetter,
		Entries:   letters(70, 55, 40, 20),
	}
	lower := ThresholdTable{
		Metric:    models.MetricAxialNonUniformity,
		Direction: LowerIsBetter,
		Entries:   letters(6, 8, 10, 12),
	}

	tests := []struct {
		name  string
		table ThresholdTable
		value float64
		want  models.Grade
	}{
		{"higher: above top bound", higher, 90, models.GradeA},
		{"higher: exactly on bound", higher, 70, models.GradeA},
		{"higher: just below bound", higher, 69.99, models.GradeB},
		{"higher: lowest band", higher, 20, models.GradeD},
		{"higher: below every bound", higher, 19, models.GradeF},
		{"lower: zero", lower, 0, models.GradeA},
		{"lower: exactly on bound", lower, 8, models.GradeB},
		{"lower: between bounds", lower, 9.5, models.GradeC},
		{"lower: above every bound", lower, 12.01, models.GradeF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.table.Grade(tt.value); got != tt.want {
				t.Errorf("Grade(%v) = %s, want %s", tt.value, got, tt.want)
			}
		})
	}
}

func TestThresholdTable_Validate(t *testing.T) {
	tests := []struct {
		name    string
		table   ThresholdTable
		wantErr string
	}{
		{"default shape", ThresholdTable{Metric: models.MetricModulation, Direction: HigherIsBetter, Entries: letters(4, 3, 2, 1)}, ""},
		{"quiet zone has no table", ThresholdTable{Metric: models.MetricQuietZone, Direction: HigherIsBetter, Entries: letters(4, 3, 2, 1)}, "no threshold table"},
		{"unknown metric", ThresholdTable{Metric: "sharpness", Direction: HigherIsBetter, Entries: letters(4, 3, 2, 1)}, "no threshold table"},
		{"unknown direction", ThresholdTable{Metric: models.MetricModulation, Direction: "sideways", Entries: letters(4, 3, 2, 1)}, "unknown direction"},
		{"empty", ThresholdTable{Metric: models.MetricModulation, Direction: HigherIsBetter}, "empty"},
		{"ascending lower bounds", ThresholdTable{Metric: models.MetricModulation, Direction: HigherIsBetter, Entries: letters(1, 2, 3, 4)}, "must descend"},
		{"descending upper bounds", ThresholdTable{Metric: models.MetricGridNonUniformity, Direction: LowerIsBetter, Entries: letters(4, 3, 2, 1)}, "must ascend"},
		{"grades out of order", ThresholdTable{Metric: models.MetricModulation, Direction: HigherIsBetter, Entries: []Threshold{
			{Bound: 4, Grade: models.GradeB},
			{Bound: 3, Grade: models.GradeA},
		}}, "get worse"},
		{"ungradeable entry", ThresholdTable{Metric: models.MetricModulation, Direction: HigherIsBetter, Entries: []Threshold{
			{Bound: 4, Grade: models.Ungradeable},
		}}, "non-letter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultTables(t *testing.T) {
	tables := DefaultTables()
	if len(tables.All()) != len(models.OpticalMetrics()) {
		t.Fatalf("Expected one table per optical metric, got %d", len(tables.All()))
	}
	for _, m := range models.OpticalMetrics() {
		if _, ok := tables.Table(m); !ok {
			t.Errorf("Missing default table for %s", m)
		}
	}
	if _, ok := tables.Table(models.MetricQuietZone); ok {
		t.Error("Quiet zone is graded by compliance, not a table")
	}
	for _, table := range tables.All() {
		if table.Direction != HigherIsBetter {
			t.Errorf("Expected %s default to hold descending lower bounds, got %s", table.Metric, table.Direction)
		}
	}
}

func TestDefaultTables_LargerValueNeverGradesWorse(t *testing.T) {
	for _, table := range DefaultTables().All() {
		t.Run(string(table.Metric), func(t *testing.T) {
			prev := table.Grade(-1)
			for v := 0.0; v <= 300; v += 0.25 {
				got := table.Grade(v)
				if got < prev {
					t.Fatalf("Grade(%v) = %s is worse than %s for a smaller value", v, got, prev)
				}
				prev = got
			}
			if table.Grade(-1) != models.GradeF {
				t.Errorf("Expected F below every bound, got %s", table.Grade(-1))
			}
		})
	}
}

func TestNewTables_RequiresEveryMetric(t *testing.T) {
	_, err := NewTables(ThresholdTable{Metric: models.MetricModulation, Direction: HigherIsBetter, Entries: letters(4, 3, 2, 1)})
	if err == nil || !strings.Contains(err.Error(), "missing threshold table") {
		t.Errorf("Expected missing table error, got %v", err)
	}

	all := DefaultTables().All()
	if _, err := NewTables(append(all, all[0])...); err == nil {
		t.Error("Expected duplicate table error")
	}
}

func TestParseTables_Overrides(t *testing.T) {
	data := []byte(`
metrics:
  symbol_contrast:
    thresholds:
      - {bound: 200, grade: A}
      - {bound: 150, grade: b}
      - {bound: 100, grade: C}
  axial_non_uniformity:
    thresholds:
      - {bound: 60, grade: A}
      - {bound: 30, grade: C}
  grid_non_uniformity:
    direction: lower_is_better
    thresholds:
      - {bound: 5, grade: A}
      - {bound: 50, grade: D}
`)
	tables, err := ParseTables(data)
	if err != nil {
		t.Fatalf("ParseTables failed: %v", err)
	}

	sc, _ := tables.Table(models.MetricSymbolContrast)
	if sc.Direction != HigherIsBetter {
		t.Errorf("Expected higher_is_better when direction is omitted, got %s", sc.Direction)
	}
	if got := sc.Grade(160); got != models.GradeB {
		t.Errorf("Expected overridden SC table to grade 160 as B, got %s", got)
	}
	if got := sc.Grade(99); got != models.GradeF {
		t.Errorf("Expected F below the last bound, got %s", got)
	}

	anu, _ := tables.Table(models.MetricAxialNonUniformity)
	if anu.Direction != HigherIsBetter || anu.Grade(45) != models.GradeC || anu.Grade(29) != models.GradeF {
		t.Errorf("Unexpected ANU override %+v", anu)
	}

	gnu, _ := tables.Table(models.MetricGridNonUniformity)
	if gnu.Direction != LowerIsBetter {
		t.Errorf("Expected explicit lower_is_better, got %s", gnu.Direction)
	}
	if got := gnu.Grade(20); got != models.GradeD {
		t.Errorf("Expected GNU 20 to be D, got %s", got)
	}

	mod, _ := tables.Table(models.MetricModulation)
	if got := mod.Grade(80); got != models.GradeA {
		t.Errorf("Expected untouched MOD default, got %s", got)
	}
}

func TestParseTables_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "metrics: [unclosed"},
		{"unknown metric", "metrics:\n  sharpness:\n    direction: higher_is_better\n    thresholds:\n      - {bound: 1, grade: A}\n"},
		{"bad grade", "metrics:\n  modulation:\n    thresholds:\n      - {bound: 1, grade: E}\n"},
		{"quiet zone table", "metrics:\n  quiet_zone:\n    direction: higher_is_better\n    thresholds:\n      - {bound: 1, grade: A}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTables([]byte(tt.data)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoadTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	content := "metrics:\n  modulation:\n    thresholds:\n      - {bound: 10, grade: A}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tables, err := LoadTables(path)
	if err != nil {
		t.Fatalf("LoadTables failed: %v", err)
	}
	mod, _ := tables.Table(models.MetricModulation)
	if mod.Grade(10) != models.GradeA || mod.Grade(9) != models.GradeF {
		t.Errorf("Unexpected modulation table %+v", mod)
	}

	if _, err := LoadTables(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
