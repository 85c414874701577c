package analyzer

import (
	"fmt"
	"image"
)

const (
	// minSymbolContrast is the smallest spread between the darkest and
	// lightest populated histogram bins that can hold a printed symbol
	minSymbolContrast = 20

	// minSymbolExtent is the smallest symbol side, in pixels, the locator accepts
	minSymbolExtent = 4

	// finderCoverage is the dark fraction a solid finder edge must reach
	finderCoverage = 0.9
)

// projectionLocator implements SymbolLocator for a dark symbol printed on a
// light background. It binarizes with Otsu's method and takes the densest
// contiguous band of dark pixels in the column and row projections.
type projectionLocator struct{}

// NewSymbolLocator creates a new projection-based symbol locator
func NewSymbolLocator() SymbolLocator {
	return &projectionLocator{}
}

// Locate finds the symbol's bounding box, module size and binarization threshold
func (pl *projectionLocator) Locate(gray *image.Gray) (*SymbolGeometry, error) {
	if gray == nil || gray.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty grayscale image", ErrInvalidImage)
	}
	bounds := gray.Bounds()

	threshold, err := pl.otsuThreshold(gray)
	if err != nil {
		return nil, err
	}
	dark := func(x, y int) bool { return gray.GrayAt(x, y).Y <= threshold }

	// Columns over the whole image, then rows inside the chosen columns, then
	// each refined once against the other
	x0, x1 := pl.densestBand(pl.project(bounds, true, bounds.Min.Y, bounds.Max.Y, dark), bounds.Min.X)
	y0, y1 := pl.densestBand(pl.project(bounds, false, x0, x1, dark), bounds.Min.Y)
	x0, x1 = pl.densestBand(pl.project(bounds, true, y0, y1, dark), bounds.Min.X)
	y0, y1 = pl.densestBand(pl.project(bounds, false, x0, x1, dark), bounds.Min.Y)

	box := image.Rect(x0, y0, x1, y1)
	if box.Dx() < minSymbolExtent || box.Dy() < minSymbolExtent {
		return nil, fmt.Errorf("%w: dark region %v too small", ErrSymbolNotFound, box)
	}

	return &SymbolGeometry{
		Bounds:      box,
		ModuleSize:  pl.moduleSize(box, dark),
		Threshold:   threshold,
		FinderFound: pl.hasFinder(box, dark),
	}, nil
}

// otsuThreshold returns the threshold maximizing between-class variance.
// Pixels at or below the threshold are dark.
func (pl *projectionLocator) otsuThreshold(gray *image.Gray) (uint8, error) {
	var hist [MaxIntensity + 1]int
	bounds := gray.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
		}
	}

	lo, hi := -1, -1
	total, sum := 0, 0
	for v, n := range hist {
		if n == 0 {
			continue
		}
		if lo < 0 {
			lo = v
		}
		hi = v
		total += n
		sum += v * n
	}
	if hi-lo < minSymbolContrast {
		return 0, fmt.Errorf("%w: intensity spread %d below %d", ErrSymbolNotFound, hi-lo, minSymbolContrast)
	}

	var (
		best      float64
		threshold = lo
		weightB   int
		sumB      int
	)
	for t := lo; t < hi; t++ {
		weightB += hist[t]
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += t * hist[t]
		meanB := float64(sumB) / float64(weightB)
		meanF := float64(sum-sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			threshold = t
		}
	}
	return uint8(threshold), nil
}

// project counts dark pixels per column (columns=true) or per row, looking
// only across the [from, to) band of the other axis
func (pl *projectionLocator) project(bounds image.Rectangle, columns bool, from, to int, dark func(x, y int) bool) []int {
	if columns {
		counts := make([]int, bounds.Dx())
		for y := from; y < to; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				if dark(x, y) {
					counts[x-bounds.Min.X]++
				}
			}
		}
		return counts
	}

	counts := make([]int, bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := from; x < to; x++ {
			if dark(x, y) {
				counts[y-bounds.Min.Y]++
			}
		}
	}
	return counts
}

// densestBand returns the half-open absolute range of the contiguous run of
// non-zero counts with the largest total
func (pl *projectionLocator) densestBand(counts []int, origin int) (int, int) {
	bestStart, bestEnd, bestMass := 0, 0, 0
	start, mass := -1, 0
	for i := 0; i <= len(counts); i++ {
		if i < len(counts) && counts[i] > 0 {
			if start < 0 {
				start, mass = i, 0
			}
			mass += counts[i]
			continue
		}
		if start >= 0 && mass > bestMass {
			bestStart, bestEnd, bestMass = start, i, mass
		}
		start = -1
	}
	return origin + bestStart, origin + bestEnd
}

// hasFinder reports whether the left column and bottom row are solid, the
// L-shaped finder of a Data Matrix symbol
func (pl *projectionLocator) hasFinder(box image.Rectangle, dark func(x, y int) bool) bool {
	left := 0
	for y := box.Min.Y; y < box.Max.Y; y++ {
		if dark(box.Min.X, y) {
			left++
		}
	}
	bottom := 0
	for x := box.Min.X; x < box.Max.X; x++ {
		if dark(x, box.Max.Y-1) {
			bottom++
		}
	}
	return float64(left) >= finderCoverage*float64(box.Dy()) &&
		float64(bottom) >= finderCoverage*float64(box.Dx())
}

// moduleSize estimates the module pitch from the alternating timing edges on
// the top row and right column. Returns 0 when neither edge alternates.
func (pl *projectionLocator) moduleSize(box image.Rectangle, dark func(x, y int) bool) float64 {
	var estimates []float64

	top := 1
	for x := box.Min.X + 1; x < box.Max.X; x++ {
		if dark(x, box.Min.Y) != dark(x-1, box.Min.Y) {
			top++
		}
	}
	if top >= 2 {
		estimates = append(estimates, float64(box.Dx())/float64(top))
	}

	right := 1
	for y := box.Min.Y + 1; y < box.Max.Y; y++ {
		if dark(box.Max.X-1, y) != dark(box.Max.X-1, y-1) {
			right++
		}
	}
	if right >= 2 {
		estimates = append(estimates, float64(box.Dy())/float64(right))
	}

	if len(estimates) == 0 {
		return 0
	}
	var sum float64
	for _, e := range estimates {
		sum += e
	}
	return sum / float64(len(estimates))
}
