package analyzer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/Suryanandx/2d-code-verifier/pkg/models"
)

// coreAnalyzer implements SymbolAnalyzer and orchestrates all components
type coreAnalyzer struct {
	metricsCalculator MetricsCalculator
	locator           SymbolLocator
	quietZone         QuietZoneLocator
}

// NewSymbolAnalyzer creates a new symbol analyzer with the default components
func NewSymbolAnalyzer() SymbolAnalyzer {
	return NewSymbolAnalyzerWith(NewMetricsCalculator(), NewSymbolLocator(), NewQuietZoneLocator())
}

// NewSymbolAnalyzerWith creates a symbol analyzer from explicit components
func NewSymbolAnalyzerWith(metrics MetricsCalculator, locator SymbolLocator, quietZone QuietZoneLocator) SymbolAnalyzer {
	return &coreAnalyzer{
		metricsCalculator: metrics,
		locator:           locator,
		quietZone:         quietZone,
	}
}

// Analyze locates the symbol, samples the scan line and computes every graded
// metric concurrently. All metrics are joined before returning.
func (ca *coreAnalyzer) Analyze(ctx context.Context, img image.Image, options AnalysisOptions) (*Measurements, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrInvalidImage)
	}
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis options: %w", err)
	}

	gray := toGray(img)
	result := &Measurements{Options: options}

	geometry, err := ca.locator.Locate(gray)
	switch {
	case err == nil:
		result.Geometry = geometry
	case errors.Is(err, ErrInvalidImage):
		return nil, err
	default:
		result.Conditions = append(result.Conditions, err)
	}

	line, err := ExtractScanLine(img, ca.traversal(gray.Bounds(), geometry, options))
	if err != nil {
		return nil, err
	}
	result.ScanLine = line

	graded := models.GradedMetrics()
	values := make([]MetricValue, len(graded))
	var qz *QuietZone

	g, gctx := errgroup.WithContext(ctx)
	for i, metric := range graded {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if metric == models.MetricQuietZone {
				values[i], qz = ca.measureQuietZone(gray, geometry, options.QuietZone)
				return nil
			}
			values[i] = ca.compute(metric, line, gray, options)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Metrics = values
	result.QuietZone = qz
	if qz != nil && qz.Truncated() {
		result.Conditions = append(result.Conditions,
			fmt.Errorf("%w: %v", ErrQuietZoneTruncated, qz.TruncatedSides))
	}
	return result, nil
}

// compute runs one optical metric
func (ca *coreAnalyzer) compute(metric models.Metric, line ScanLine, gray *image.Gray, options AnalysisOptions) MetricValue {
	var (
		value float64
		err   error
	)
	switch metric {
	case models.MetricMinimumReflectance:
		value, err = ca.metricsCalculator.MinimumReflectance(line)
	case models.MetricMinimumEdgeContrast:
		value, err = ca.metricsCalculator.MinimumEdgeContrast(line)
	case models.MetricSymbolContrast:
		value, err = ca.metricsCalculator.SymbolContrast(line, options.Threshold)
	case models.MetricModulation:
		value, err = ca.metricsCalculator.Modulation(line)
	case models.MetricAxialNonUniformity:
		value, err = ca.metricsCalculator.AxialNonUniformity(line)
	case models.MetricGridNonUniformity:
		value, err = ca.metricsCalculator.GridNonUniformity(gray, options.GridSize)
	default:
		err = fmt.Errorf("unknown metric %q", metric)
	}
	if err != nil {
		return MetricValue{Metric: metric, Err: err}
	}
	return MetricValue{Metric: metric, Value: value}
}

func (ca *coreAnalyzer) measureQuietZone(gray *image.Gray, geometry *SymbolGeometry, rules QuietZoneRules) (MetricValue, *QuietZone) {
	if geometry == nil {
		return MetricValue{Metric: models.MetricQuietZone, Err: ErrSymbolNotFound}, nil
	}
	qz, err := ca.quietZone.Measure(gray, geometry, rules)
	if err != nil {
		return MetricValue{Metric: models.MetricQuietZone, Err: err}, nil
	}
	return MetricValue{Metric: models.MetricQuietZone, Value: float64(qz.Min)}, &qz
}

// traversal picks the scan path: through the centre of the located symbol,
// padded by one module each side, or the fixed traversal when none was found
func (ca *coreAnalyzer) traversal(frame image.Rectangle, geometry *SymbolGeometry, options AnalysisOptions) Traversal {
	if options.ScanMode == ScanModeFixed || geometry == nil {
		return options.FixedTraversal
	}

	box := geometry.Bounds.Sub(frame.Min)
	pad := max(1, int(math.Ceil(geometry.ModuleSize)))
	t := Traversal{
		Axis:    options.Axis,
		Channel: options.Channel,
		Source:  SourceLocated,
	}
	if options.Axis == AxisVertical {
		t.Index = box.Min.X + box.Dx()/2
		t.From = max(0, box.Min.Y-pad)
		t.To = min(frame.Dy(), box.Max.Y+pad)
	} else {
		t.Index = box.Min.Y + box.Dy()/2
		t.From = max(0, box.Min.X-pad)
		t.To = min(frame.Dx(), box.Max.X+pad)
	}
	return t
}

// toGray converts img to 8-bit grayscale, reusing it when it already is
func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}
