package analyzer

import (
	"context"
	"image"
)

// SymbolAnalyzer defines the main interface for symbol measurement
type SymbolAnalyzer interface {
	// Analyze locates the symbol, extracts the scan line and computes every
	// metric. Metric failures are recorded in the returned Measurements; only
	// an unusable image or a cancelled context produce an error.
	Analyze(ctx context.Context, img image.Image, options AnalysisOptions) (*Measurements, error)
}

// MetricsCalculator computes the optical print-quality metrics
type MetricsCalculator interface {
	MinimumReflectance(line ScanLine) (float64, error)
	MinimumEdgeContrast(line ScanLine) (float64, error)
	SymbolContrast(line ScanLine, threshold uint8) (float64, error)
	Modulation(line ScanLine) (float64, error)
	AxialNonUniformity(line ScanLine) (float64, error)
	GridNonUniformity(gray *image.Gray, gridSize int) (float64, error)
}

// SymbolLocator finds the symbol's geometry in a grayscale image
type SymbolLocator interface {
	Locate(gray *image.Gray) (*SymbolGeometry, error)
}

// QuietZoneLocator measures the clear margin around a located symbol
type QuietZoneLocator interface {
	Measure(gray *image.Gray, geometry *SymbolGeometry, rules QuietZoneRules) (QuietZone, error)
}
