package analyzer

import (
	"fmt"
	"image"
	"math"
)

// marginScanner implements QuietZoneLocator by walking outward from each side
// of the symbol's bounding box
type marginScanner struct{}

// NewQuietZoneLocator creates a new quiet zone locator
func NewQuietZoneLocator() QuietZoneLocator {
	return &marginScanner{}
}

// Measure returns the clear margin on each side of the symbol. A side whose
// scan reaches the image edge without meeting a dark pixel is recorded in
// TruncatedSides; its margin is the distance to the edge.
func (ms *marginScanner) Measure(gray *image.Gray, geometry *SymbolGeometry, rules QuietZoneRules) (QuietZone, error) {
	if gray == nil || gray.Bounds().Empty() {
		return QuietZone{}, fmt.Errorf("%w: empty grayscale image", ErrInvalidImage)
	}
	if geometry == nil || geometry.Bounds.Empty() {
		return QuietZone{}, ErrSymbolNotFound
	}

	frame := gray.Bounds()
	box := geometry.Bounds.Intersect(frame)
	if box.Empty() {
		return QuietZone{}, fmt.Errorf("%w: symbol %v outside image %v", ErrSymbolNotFound, geometry.Bounds, frame)
	}
	dark := func(x, y int) bool { return gray.GrayAt(x, y).Y <= geometry.Threshold }

	var qz QuietZone
	var truncated bool

	qz.Left, truncated = ms.scan(box.Min.Y, box.Max.Y, box.Min.X-frame.Min.X, func(band, d int) bool {
		return dark(box.Min.X-1-d, band)
	})
	ms.flag(&qz, SideLeft, truncated)

	qz.Right, truncated = ms.scan(box.Min.Y, box.Max.Y, frame.Max.X-box.Max.X, func(band, d int) bool {
		return dark(box.Max.X+d, band)
	})
	ms.flag(&qz, SideRight, truncated)

	qz.Top, truncated = ms.scan(box.Min.X, box.Max.X, box.Min.Y-frame.Min.Y, func(band, d int) bool {
		return dark(band, box.Min.Y-1-d)
	})
	ms.flag(&qz, SideTop, truncated)

	qz.Bottom, truncated = ms.scan(box.Min.X, box.Max.X, frame.Max.Y-box.Max.Y, func(band, d int) bool {
		return dark(band, box.Max.Y+d)
	})
	ms.flag(&qz, SideBottom, truncated)

	qz.Min = min(qz.Left, qz.Right, qz.Top, qz.Bottom)
	qz.Required = RequiredMargin(geometry.ModuleSize, rules)
	qz.Compliant = qz.Min >= qz.Required
	return qz, nil
}

// scan walks outward up to limit pixels along every position of the band
// [from, to) and returns the smallest clear run. truncated is true when that
// run ended at the image edge rather than at a dark pixel.
func (ms *marginScanner) scan(from, to, limit int, isDark func(band, d int) bool) (int, bool) {
	margin := limit
	for band := from; band < to; band++ {
		for d := 0; d < margin; d++ {
			if isDark(band, d) {
				margin = d
				break
			}
		}
		if margin == 0 {
			break
		}
	}
	return margin, margin == limit
}

func (ms *marginScanner) flag(qz *QuietZone, side Side, truncated bool) {
	if truncated {
		qz.TruncatedSides = append(qz.TruncatedSides, side)
	}
}

// RequiredMargin is the minimum compliant quiet zone in pixels for a symbol
// with the given module size
func RequiredMargin(moduleSize float64, rules QuietZoneRules) int {
	required := int(math.Ceil(rules.Modules * moduleSize))
	return max(required, rules.MinPixels)
}
