package analyzer

import (
	"fmt"
	"image"
)

// GridCell is one cell of an N×N partition of an image. It owns no pixels,
// only the bounds they are read from.
type GridCell struct {
	Row, Col int
	Bounds   image.Rectangle
}

// PartitionGrid splits bounds into an n×n grid of equal cells. Cell size is
// rows/n by cols/n; remainder rows and columns at the bottom and right edge
// fall outside the grid.
func PartitionGrid(bounds image.Rectangle, n int) ([]GridCell, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: grid size %d", ErrInsufficientSamples, n)
	}
	cellH, cellW := bounds.Dy()/n, bounds.Dx()/n
	if cellH == 0 || cellW == 0 {
		return nil, fmt.Errorf("%w: %dx%d image cannot hold a %dx%d grid",
			ErrInsufficientSamples, bounds.Dx(), bounds.Dy(), n, n)
	}

	cells := make([]GridCell, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			minX := bounds.Min.X + col*cellW
			minY := bounds.Min.Y + row*cellH
			cells = append(cells, GridCell{
				Row:    row,
				Col:    col,
				Bounds: image.Rect(minX, minY, minX+cellW, minY+cellH),
			})
		}
	}
	return cells, nil
}
