package analyzer

import (
	"image"

	"github.com/Suryanandx/2d-code-verifier/pkg/models"
)

// MaxIntensity is the largest value an 8-bit channel sample can take
const MaxIntensity = 255

// MetricValue is the outcome of one metric computation. Exactly one of Value
// and Err is meaningful: Err != nil means the metric is unavailable.
type MetricValue struct {
	Metric models.Metric
	Value  float64
	Err    error
}

// Available reports whether the metric was computed
func (m MetricValue) Available() bool {
	return m.Err == nil
}

// SymbolGeometry is the located position of the symbol in absolute image coordinates
type SymbolGeometry struct {
	Bounds      image.Rectangle
	ModuleSize  float64
	Threshold   uint8
	FinderFound bool
}

// Side names one edge of the symbol
type Side string

const (
	SideLeft   Side = "left"
	SideRight  Side = "right"
	SideTop    Side = "top"
	SideBottom Side = "bottom"
)

// QuietZone holds the clear margins around the symbol, in pixels
type QuietZone struct {
	Left, Right, Top, Bottom int
	Min                      int
	Required                 int
	Compliant                bool
	TruncatedSides           []Side
}

// Truncated reports whether any margin ran into the image edge
func (q QuietZone) Truncated() bool {
	return len(q.TruncatedSides) > 0
}

// Measurements is everything the analyzer derived from one image
type Measurements struct {
	ScanLine  ScanLine
	Geometry  *SymbolGeometry
	QuietZone *QuietZone
	// Metrics holds the six optical metrics followed by the quiet zone, in
	// models.GradedMetrics order.
	Metrics []MetricValue
	// Conditions are non-fatal findings such as ErrSymbolNotFound or
	// ErrQuietZoneTruncated.
	Conditions []error
	Options    AnalysisOptions
}

// Metric returns the value recorded for m
func (m *Measurements) Metric(metric models.Metric) (MetricValue, bool) {
	for _, v := range m.Metrics {
		if v.Metric == metric {
			return v, true
		}
	}
	return MetricValue{}, false
}
