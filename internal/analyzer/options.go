package analyzer

import (
	"fmt"
	"strings"
)

// ScanMode selects how the scan path is chosen
type ScanMode string

const (
	// ScanModeLocated samples through the located symbol and falls back to the
	// fixed traversal when no symbol is found
	ScanModeLocated ScanMode = "located"
	// ScanModeFixed always samples the fixed traversal
	ScanModeFixed ScanMode = "fixed"
)

// QuietZoneRules defines the minimum clear margin required around the symbol
type QuietZoneRules struct {
	// Modules is the required margin in module widths (1 for Data Matrix)
	Modules float64
	// MinPixels is the floor applied when the module size is small or unknown
	MinPixels int
}

// AnalysisOptions is the request-scoped configuration for one analysis
type AnalysisOptions struct {
	// Light/dark split for symbol contrast, on the 8-bit intensity scale
	Threshold uint8

	// Grid partition size for grid non-uniformity
	GridSize int

	// Scan path selection
	ScanMode       ScanMode
	Axis           Axis
	Channel        Channel
	FixedTraversal Traversal

	QuietZone QuietZoneRules
}

// DefaultOptions returns default analysis options
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		Threshold:      127,
		GridSize:       5,
		ScanMode:       ScanModeLocated,
		Axis:           AxisHorizontal,
		Channel:        ChannelRed,
		FixedTraversal: DefaultTraversal(),
		QuietZone: QuietZoneRules{
			Modules:   1,
			MinPixels: 1,
		},
	}
}

// WithThreshold returns options using a different light/dark threshold
func (opts AnalysisOptions) WithThreshold(threshold uint8) AnalysisOptions {
	opts.Threshold = threshold
	return opts
}

// WithGridSize returns options using an N×N grid of the given size
func (opts AnalysisOptions) WithGridSize(n int) AnalysisOptions {
	opts.GridSize = n
	return opts
}

// WithChannel returns options sampling the given channel on every traversal
func (opts AnalysisOptions) WithChannel(channel Channel) AnalysisOptions {
	opts.Channel = channel
	opts.FixedTraversal.Channel = channel
	return opts
}

// WithAxis returns options scanning along the given axis when a symbol is located
func (opts AnalysisOptions) WithAxis(axis Axis) AnalysisOptions {
	opts.Axis = axis
	return opts
}

// WithFixedTraversal pins the scan path, bypassing symbol location for the scan line
func (opts AnalysisOptions) WithFixedTraversal(t Traversal) AnalysisOptions {
	opts.ScanMode = ScanModeFixed
	t.Source = SourceFixed
	opts.FixedTraversal = t
	opts.Channel = t.Channel
	return opts
}

// Validate checks that the options can drive an analysis
func (opts AnalysisOptions) Validate() error {
	if opts.GridSize < 1 {
		return fmt.Errorf("grid size must be >= 1 (got %d)", opts.GridSize)
	}
	if opts.ScanMode != ScanModeLocated && opts.ScanMode != ScanModeFixed {
		return fmt.Errorf("unknown scan mode %q", opts.ScanMode)
	}
	if _, err := ParseAxis(string(opts.Axis)); err != nil {
		return err
	}
	if _, err := ParseChannel(string(opts.Channel)); err != nil {
		return err
	}
	if err := opts.FixedTraversal.validate(); err != nil {
		return err
	}
	if opts.QuietZone.Modules < 0 || opts.QuietZone.MinPixels < 0 {
		return fmt.Errorf("quiet zone rules must be non-negative")
	}
	return nil
}

// ParseScanMode parses a scan mode name
func ParseScanMode(s string) (ScanMode, error) {
	switch ScanMode(strings.ToLower(strings.TrimSpace(s))) {
	case ScanModeLocated:
		return ScanModeLocated, nil
	case ScanModeFixed:
		return ScanModeFixed, nil
	}
	return "", fmt.Errorf("unknown scan mode %q", s)
}
