package models

// VerifyURLRequest asks the service to fetch an image and verify it
type VerifyURLRequest struct {
	URL          string             `json:"url" binding:"required,url"`
	ExpectedData string             `json:"expected_data,omitempty"`
	Options      *AnalysisOverrides `json:"options,omitempty"`
}

// AnalysisOverrides carries per-request changes to the analysis defaults.
// Nil fields keep the configured default.
type AnalysisOverrides struct {
	Threshold *int    `json:"threshold,omitempty"`
	GridSize  *int    `json:"grid_size,omitempty"`
	Channel   *string `json:"channel,omitempty"`
	Axis      *string `json:"axis,omitempty"`
	ScanMode  *string `json:"scan_mode,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ReportList is the body of GET /reports
type ReportList struct {
	Reports []*VerificationResult `json:"reports"`
	Count   int                   `json:"count"`
}
