package models

// Metric names one print-quality measurement reported for a symbol
type Metric string

const (
	MetricMinimumReflectance  Metric = "minimum_reflectance"
	MetricMinimumEdgeContrast Metric = "minimum_edge_contrast"
	MetricSymbolContrast      Metric = "symbol_contrast"
	MetricModulation          Metric = "modulation"
	MetricAxialNonUniformity  Metric = "axial_non_uniformity"
	MetricGridNonUniformity   Metric = "grid_non_uniformity"
	MetricQuietZone           Metric = "quiet_zone"
)

// OpticalMetrics returns the six metrics computed from pixel intensities,
// in reporting order
func OpticalMetrics() []Metric {
	return []Metric{
		MetricMinimumReflectance,
		MetricMinimumEdgeContrast,
		MetricSymbolContrast,
		MetricModulation,
		MetricAxialNonUniformity,
		MetricGridNonUniformity,
	}
}

// GradedMetrics returns every metric that contributes to the overall grade
func GradedMetrics() []Metric {
	return append(OpticalMetrics(), MetricQuietZone)
}

// IsValid reports whether m is one of the known metrics
func (m Metric) IsValid() bool {
	for _, known := range GradedMetrics() {
		if m == known {
			return true
		}
	}
	return false
}
