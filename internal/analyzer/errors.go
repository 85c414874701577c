package analyzer

import "errors"

var (
	// ErrInvalidImage indicates an empty or unreadable pixel buffer
	ErrInvalidImage = errors.New("invalid image")

	// ErrInvalidTraversal indicates a scan path outside the image
	ErrInvalidTraversal = errors.New("invalid traversal")

	// ErrInsufficientSamples indicates a scan line or grid too small for the metric
	ErrInsufficientSamples = errors.New("insufficient samples")

	// ErrDegenerateScanLine indicates metric inputs that would divide by zero
	// or average an empty set
	ErrDegenerateScanLine = errors.New("degenerate scan line")

	// ErrSymbolNotFound indicates the locator found no symbol in the image
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrQuietZoneTruncated indicates a quiet zone that runs into the image edge
	ErrQuietZoneTruncated = errors.New("quiet zone truncated")
)
