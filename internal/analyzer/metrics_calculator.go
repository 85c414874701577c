package analyzer

import (
	"fmt"
	"image"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// metricsCalculator implements MetricsCalculator with Gonum statistics.
// Every method is a pure function of its inputs and safe for concurrent use.
type metricsCalculator struct {
	slicePool sync.Pool
}

// NewMetricsCalculator creates a new metrics calculator using Gonum
func NewMetricsCalculator() MetricsCalculator {
	return &metricsCalculator{
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

// MinimumReflectance is the darkest sample as a percentage of full scale
func (mc *metricsCalculator) MinimumReflectance(line ScanLine) (float64, error) {
	if line.Len() == 0 {
		return 0, fmt.Errorf("%w: empty scan line", ErrInsufficientSamples)
	}
	lo, _ := sampleRange(line.Samples)
	return float64(lo) / MaxIntensity * 100, nil
}

// MinimumEdgeContrast is the smallest absolute step between adjacent samples.
// A constant line yields 0.
func (mc *metricsCalculator) MinimumEdgeContrast(line ScanLine) (float64, error) {
	if line.Len() < 2 {
		return 0, fmt.Errorf("%w: need 2 samples, have %d", ErrInsufficientSamples, line.Len())
	}
	smallest := MaxIntensity
	for i := 1; i < len(line.Samples); i++ {
		step := int(line.Samples[i]) - int(line.Samples[i-1])
		if step < 0 {
			step = -step
		}
		if step < smallest {
			smallest = step
		}
	}
	return float64(smallest), nil
}

// SymbolContrast is mean(light) - mean(dark), where light samples are strictly
// above threshold and dark samples are at or below it
func (mc *metricsCalculator) SymbolContrast(line ScanLine, threshold uint8) (float64, error) {
	if line.Len() == 0 {
		return 0, fmt.Errorf("%w: empty scan line", ErrInsufficientSamples)
	}

	light := mc.slicePool.Get().([]float64)
	dark := mc.slicePool.Get().([]float64)
	defer func() {
		mc.slicePool.Put(light[:0])
		mc.slicePool.Put(dark[:0])
	}()

	for _, v := range line.Samples {
		if v > threshold {
			light = append(light, float64(v))
		} else {
			dark = append(dark, float64(v))
		}
	}
	if len(light) == 0 {
		return 0, fmt.Errorf("%w: no samples above threshold %d", ErrDegenerateScanLine, threshold)
	}
	if len(dark) == 0 {
		return 0, fmt.Errorf("%w: no samples at or below threshold %d", ErrDegenerateScanLine, threshold)
	}

	return stat.Mean(light, nil) - stat.Mean(dark, nil), nil
}

// Modulation is the population standard deviation of the scan line
func (mc *metricsCalculator) Modulation(line ScanLine) (float64, error) {
	if line.Len() == 0 {
		return 0, fmt.Errorf("%w: empty scan line", ErrInsufficientSamples)
	}

	data := mc.slicePool.Get().([]float64)
	defer func() { mc.slicePool.Put(data[:0]) }()
	for _, v := range line.Samples {
		data = append(data, float64(v))
	}

	_, std := stat.PopMeanStdDev(data, nil)
	return std, nil
}

// AxialNonUniformity is (max - min) / (max + min) * 100 over the scan line
func (mc *metricsCalculator) AxialNonUniformity(line ScanLine) (float64, error) {
	if line.Len() == 0 {
		return 0, fmt.Errorf("%w: empty scan line", ErrInsufficientSamples)
	}
	lo, hi := sampleRange(line.Samples)
	sum := int(hi) + int(lo)
	if sum == 0 {
		return 0, fmt.Errorf("%w: max + min is zero", ErrDegenerateScanLine)
	}
	return float64(int(hi)-int(lo)) / float64(sum) * 100, nil
}

// GridNonUniformity is the coefficient of variation, in percent, of the
// normalized per-cell variances of a gridSize×gridSize partition of gray
func (mc *metricsCalculator) GridNonUniformity(gray *image.Gray, gridSize int) (float64, error) {
	if gray == nil || gray.Bounds().Empty() {
		return 0, fmt.Errorf("%w: empty grayscale image", ErrInvalidImage)
	}
	cells, err := PartitionGrid(gray.Bounds(), gridSize)
	if err != nil {
		return 0, err
	}

	variances := make([]float64, len(cells))

	// Cells are processed in horizontal strips, one grid row per worker
	numWorkers := runtime.NumCPU()
	if gridSize < numWorkers {
		numWorkers = gridSize
	}
	rowsPerWorker := (gridSize + numWorkers - 1) / numWorkers // ceil division

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		startRow := i * rowsPerWorker
		endRow := startRow + rowsPerWorker
		if endRow > gridSize {
			endRow = gridSize
		}
		if startRow >= endRow {
			break
		}
		wg.Add(1)
		go func(startRow, endRow int) {
			defer wg.Done()
			for idx := startRow * gridSize; idx < endRow*gridSize; idx++ {
				variances[idx] = mc.cellVariance(gray, cells[idx].Bounds) / MaxIntensity
			}
		}(startRow, endRow)
	}
	wg.Wait()

	mean, std := stat.PopMeanStdDev(variances, nil)
	if mean == 0 || math.IsNaN(mean) {
		return 0, fmt.Errorf("%w: mean cell variance is zero", ErrDegenerateScanLine)
	}
	return std / mean * 100, nil
}

// cellVariance returns the population variance of the pixels inside r
func (mc *metricsCalculator) cellVariance(gray *image.Gray, r image.Rectangle) float64 {
	data := mc.slicePool.Get().([]float64)
	defer func() { mc.slicePool.Put(data[:0]) }()

	if n := r.Dx() * r.Dy(); cap(data) < n {
		data = make([]float64, 0, n)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			data = append(data, float64(gray.GrayAt(x, y).Y))
		}
	}

	_, variance := stat.PopMeanVariance(data, nil)
	return variance
}

// sampleRange returns the smallest and largest sample; samples must be non-empty
func sampleRange(samples []uint8) (lo, hi uint8) {
	lo, hi = samples[0], samples[0]
	for _, v := range samples[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
