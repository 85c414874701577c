package grading

import (
	"fmt"

	"github.com/Suryanandx/2d-code-verifier/pkg/models"
)

// Direction tells a threshold table how its bounds are compared. Every
// built-in table is HigherIsBetter; LowerIsBetter is only reachable from a
// YAML override.
type Direction string

const (
	// HigherIsBetter tables hold lower bounds in descending order, so a
	// larger value never earns a worse grade
	HigherIsBetter Direction = "higher_is_better"
	// LowerIsBetter tables hold upper bounds in ascending order
	LowerIsBetter Direction = "lower_is_better"
)

// Threshold pairs a bound with the grade awarded when a value reaches it
type Threshold struct {
	Bound float64      `json:"bound"`
	Grade models.Grade `json:"grade"`
}

// ThresholdTable maps one metric's raw value to a letter grade
type ThresholdTable struct {
	Metric    models.Metric `json:"metric"`
	Direction Direction     `json:"direction"`
	Entries   []Threshold   `json:"thresholds"`
}

// Grade returns the grade of the first entry the value satisfies, or F when
// it satisfies none
func (t ThresholdTable) Grade(value float64) models.Grade {
	for _, e := range t.Entries {
		if t.Direction == LowerIsBetter {
			if value <= e.Bound {
				return e.Grade
			}
			continue
		}
		if value >= e.Bound {
			return e.Grade
		}
	}
	return models.GradeF
}

// Validate checks that the entries are letter grades, best first, with
// bounds strictly ordered for the table's direction
func (t ThresholdTable) Validate() error {
	if !t.Metric.IsValid() || t.Metric == models.MetricQuietZone {
		return fmt.Errorf("no threshold table applies to metric %q", t.Metric)
	}
	if t.Direction != HigherIsBetter && t.Direction != LowerIsBetter {
		return fmt.Errorf("%s: unknown direction %q", t.Metric, t.Direction)
	}
	if len(t.Entries) == 0 {
		return fmt.Errorf("%s: threshold table is empty", t.Metric)
	}
	for i, e := range t.Entries {
		if !e.Grade.IsLetter() {
			return fmt.Errorf("%s: entry %d has non-letter grade %s", t.Metric, i, e.Grade)
		}
		if i == 0 {
			continue
		}
		prev := t.Entries[i-1]
		if e.Grade >= prev.Grade {
			return fmt.Errorf("%s: grades must get worse down the table (%s then %s)", t.Metric, prev.Grade, e.Grade)
		}
		if t.Direction == HigherIsBetter && e.Bound >= prev.Bound {
			return fmt.Errorf("%s: lower bounds must descend (%g then %g)", t.Metric, prev.Bound, e.Bound)
		}
		if t.Direction == LowerIsBetter && e.Bound <= prev.Bound {
			return fmt.Errorf("%s: upper bounds must ascend (%g then %g)", t.Metric, prev.Bound, e.Bound)
		}
	}
	return nil
}
