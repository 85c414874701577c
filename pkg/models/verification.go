package models

import "time"

// VerificationResult is the complete, immutable record produced for one
// verified image. Metric values are pointers so that an unavailable metric
// serializes as null instead of a made-up number.
type VerificationResult struct {
	ID                string    `json:"id"`
	ImagePath         string    `json:"image_path"`
	Timestamp         time.Time `json:"timestamp"`
	ProcessingTimeSec float64   `json:"processing_time_sec"`

	MinimumReflectance  *float64 `json:"minimum_reflectance"`
	MinimumEdgeContrast *float64 `json:"minimum_edge_contrast"`
	SymbolContrast      *float64 `json:"symbol_contrast"`
	Modulation          *float64 `json:"modulation"`
	AxialNonUniformity  *float64 `json:"axial_non_uniformity"`
	GridNonUniformity   *float64 `json:"grid_non_uniformity"`

	QuietZone *QuietZoneReport `json:"quiet_zone"`

	Grades       map[Metric]Grade `json:"grades"`
	OverallGrade Grade            `json:"overall_grade"`

	DecodedData  *string       `json:"decoded_data"`
	Decode       DecodeReport  `json:"decode"`
	PayloadMatch *PayloadMatch `json:"payload_match,omitempty"`
	GS1Elements  []GS1Element  `json:"gs1_elements,omitempty"`

	ScanLine []int          `json:"scan_line"`
	ScanPath ScanPathReport `json:"scan_path"`
	Symbol   *SymbolReport  `json:"symbol,omitempty"`

	Conditions []Condition `json:"conditions,omitempty"`
}

// MetricValue returns the reported value of a metric, or nil when unavailable
func (r *VerificationResult) MetricValue(m Metric) *float64 {
	switch m {
	case MetricMinimumReflectance:
		return r.MinimumReflectance
	case MetricMinimumEdgeContrast:
		return r.MinimumEdgeContrast
	case MetricSymbolContrast:
		return r.SymbolContrast
	case MetricModulation:
		return r.Modulation
	case MetricAxialNonUniformity:
		return r.AxialNonUniformity
	case MetricGridNonUniformity:
		return r.GridNonUniformity
	case MetricQuietZone:
		if r.QuietZone == nil {
			return nil
		}
		v := float64(r.QuietZone.Min)
		return &v
	}
	return nil
}

// SetMetricValue stores v under the field for m. Unknown metrics are ignored.
func (r *VerificationResult) SetMetricValue(m Metric, v float64) {
	switch m {
	case MetricMinimumReflectance:
		r.MinimumReflectance = &v
	case MetricMinimumEdgeContrast:
		r.MinimumEdgeContrast = &v
	case MetricSymbolContrast:
		r.SymbolContrast = &v
	case MetricModulation:
		r.Modulation = &v
	case MetricAxialNonUniformity:
		r.AxialNonUniformity = &v
	case MetricGridNonUniformity:
		r.GridNonUniformity = &v
	}
}

// QuietZoneReport holds the measured clear margins around the symbol, in pixels
type QuietZoneReport struct {
	Left           int      `json:"left"`
	Right          int      `json:"right"`
	Top            int      `json:"top"`
	Bottom         int      `json:"bottom"`
	Min            int      `json:"min"`
	Required       int      `json:"required"`
	Compliant      bool     `json:"compliant"`
	TruncatedSides []string `json:"truncated_sides,omitempty"`
}

// DecodeStatus summarizes the outcome of the decode track
type DecodeStatus string

const (
	DecodeStatusDecoded     DecodeStatus = "decoded"
	DecodeStatusFailed      DecodeStatus = "failed"
	DecodeStatusUnavailable DecodeStatus = "unavailable"
)

// DecodeReport describes how the payload was (or was not) obtained
type DecodeReport struct {
	Status    DecodeStatus `json:"status"`
	Decoder   string       `json:"decoder,omitempty"`
	Symbology string       `json:"symbology,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// PayloadMatch compares the decoded payload against a caller-supplied expectation
type PayloadMatch struct {
	Expected   string  `json:"expected"`
	Matches    bool    `json:"matches"`
	Distance   int     `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// GS1Element is one application identifier and its value from a GS1 element string
type GS1Element struct {
	AI    string `json:"ai"`
	Title string `json:"title,omitempty"`
	Value string `json:"value"`
	Valid bool   `json:"valid"`
	Issue string `json:"issue,omitempty"`
}

// ScanPathReport records which traversal produced the scan line
type ScanPathReport struct {
	Source  string `json:"source"`
	Axis    string `json:"axis"`
	Index   int    `json:"index"`
	From    int    `json:"from"`
	To      int    `json:"to"`
	Channel string `json:"channel"`
}

// SymbolReport describes the located symbol geometry
type SymbolReport struct {
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	ModuleSize  float64 `json:"module_size"`
	Threshold   int     `json:"binarization_threshold"`
	FinderFound bool    `json:"finder_found"`
}

// Condition codes reported in VerificationResult.Conditions
const (
	ConditionMetricUnavailable  = "MetricUnavailable"
	ConditionQuietZoneTruncated = "QuietZoneTruncated"
	ConditionSymbolNotFound     = "SymbolNotFound"
	ConditionDecodeFailed       = "DecodeFailed"
	ConditionDecodeUnavailable  = "DecodeUnavailable"
	ConditionAnalysisWarning    = "AnalysisWarning"
)

// Condition is a non-fatal problem found while verifying an image
type Condition struct {
	Code    string `json:"code"`
	Metric  Metric `json:"metric,omitempty"`
	Message string `json:"message"`
}
