package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Grade is a symbol quality grade. Values are ordered so that a numerically
// smaller grade is worse; Ungradeable is the zero value and sits below F.
type Grade int

const (
	// Ungradeable marks an overall result that could not be computed because
	// at least one required metric was unavailable. It is never a per-metric grade.
	Ungradeable Grade = iota
	GradeF
	GradeD
	GradeC
	GradeB
	GradeA
)

var gradeNames = map[Grade]string{
	Ungradeable: "UNGRADEABLE",
	GradeF:      "F",
	GradeD:      "D",
	GradeC:      "C",
	GradeB:      "B",
	GradeA:      "A",
}

func (g Grade) String() string {
	if name, ok := gradeNames[g]; ok {
		return name
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

// IsLetter reports whether g is one of A, B, C, D or F
func (g Grade) IsLetter() bool {
	return g >= GradeF && g <= GradeA
}

// ParseGrade parses a letter grade (case-insensitive). "UNGRADEABLE" is accepted
// so that persisted results round-trip.
func ParseGrade(s string) (Grade, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return GradeA, nil
	case "B":
		return GradeB, nil
	case "C":
		return GradeC, nil
	case "D":
		return GradeD, nil
	case "F":
		return GradeF, nil
	case "UNGRADEABLE":
		return Ungradeable, nil
	}
	return Ungradeable, fmt.Errorf("unknown grade %q", s)
}

// Worst returns the lower of the given grades. With no grades it returns Ungradeable.
func Worst(grades ...Grade) Grade {
	if len(grades) == 0 {
		return Ungradeable
	}
	worst := grades[0]
	for _, g := range grades[1:] {
		if g < worst {
			worst = g
		}
	}
	return worst
}

func (g Grade) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

func (g *Grade) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseGrade(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// MarshalText lets grades be used as YAML scalars and map keys
func (g Grade) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *Grade) UnmarshalText(text []byte) error {
	parsed, err := ParseGrade(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
