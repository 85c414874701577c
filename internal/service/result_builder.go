package service

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/arbovm/levenshtein"

	"github.com/Suryanandx/2d-code-verifier/internal/analyzer"
	"github.com/Suryanandx/2d-code-verifier/internal/decoder"
	"github.com/Suryanandx/2d-code-verifier/pkg/grading"
	"github.com/Suryanandx/2d-code-verifier/pkg/gs1"
	"github.com/Suryanandx/2d-code-verifier/pkg/models"
)

// decodeOutcome is what the decode track produced
type decodeOutcome struct {
	payload *decoder.Payload
	err     error
}

func (d decodeOutcome) status() models.DecodeStatus {
	switch {
	case d.err == nil && d.payload != nil:
		return models.DecodeStatusDecoded
	case errors.Is(d.err, decoder.ErrDecodeUnavailable):
		return models.DecodeStatusUnavailable
	}
	return models.DecodeStatusFailed
}

// gradingInputs converts analyzer measurements into grader inputs
func gradingInputs(m *analyzer.Measurements) ([]grading.Measurement, grading.QuietZoneStatus) {
	metrics := make([]grading.Measurement, 0, len(m.Metrics))
	qz := grading.QuietZoneStatus{Err: grading.ErrMetricMissing}
	for _, v := range m.Metrics {
		if v.Metric == models.MetricQuietZone {
			qz = grading.QuietZoneStatus{Err: v.Err}
			if v.Err == nil && m.QuietZone != nil {
				qz.Compliant = m.QuietZone.Compliant
			}
			continue
		}
		metrics = append(metrics, grading.Measurement{Metric: v.Metric, Value: v.Value, Err: v.Err})
	}
	return metrics, qz
}

// buildResult assembles the immutable record for one verification. Values
// are copied from the measurements; nothing is synthesized for unavailable
// metrics.
func buildResult(id, imageRef string, at time.Time, elapsed time.Duration, m *analyzer.Measurements, report grading.Report, decoded decodeOutcome, expected string) *models.VerificationResult {
	result := &models.VerificationResult{
		ID:                id,
		ImagePath:         imageRef,
		Timestamp:         at,
		ProcessingTimeSec: elapsed.Seconds(),
		Grades:            report.Grades,
		OverallGrade:      report.Overall,
		ScanLine:          m.ScanLine.Ints(),
		ScanPath:          scanPathReport(m.ScanLine.Path),
	}

	for _, v := range m.Metrics {
		if v.Available() && v.Metric != models.MetricQuietZone {
			result.SetMetricValue(v.Metric, v.Value)
		}
	}
	if m.QuietZone != nil {
		result.QuietZone = quietZoneReport(m.QuietZone)
	}
	if g := m.Geometry; g != nil {
		result.Symbol = &models.SymbolReport{
			X:           g.Bounds.Min.X,
			Y:           g.Bounds.Min.Y,
			Width:       g.Bounds.Dx(),
			Height:      g.Bounds.Dy(),
			ModuleSize:  g.ModuleSize,
			Threshold:   int(g.Threshold),
			FinderFound: g.FinderFound,
		}
	}

	for _, u := range report.Unavailable {
		result.Conditions = append(result.Conditions, models.Condition{
			Code:    models.ConditionMetricUnavailable,
			Metric:  u.Metric,
			Message: u.Cause.Error(),
		})
	}
	for _, c := range m.Conditions {
		result.Conditions = append(result.Conditions, models.Condition{Code: conditionCode(c), Message: c.Error()})
	}

	applyDecode(result, decoded, expected)
	return result
}

// conditionCode classifies a non-fatal analyzer condition
func conditionCode(err error) string {
	switch {
	case errors.Is(err, analyzer.ErrQuietZoneTruncated):
		return models.ConditionQuietZoneTruncated
	case errors.Is(err, analyzer.ErrSymbolNotFound):
		return models.ConditionSymbolNotFound
	}
	return models.ConditionAnalysisWarning
}

func applyDecode(result *models.VerificationResult, decoded decodeOutcome, expected string) {
	result.Decode = models.DecodeReport{Status: decoded.status()}

	text := ""
	switch result.Decode.Status {
	case models.DecodeStatusDecoded:
		text = decoded.payload.Text
		result.DecodedData = &text
		result.Decode.Decoder = decoded.payload.Decoder
		result.Decode.Symbology = decoded.payload.Symbology
		if gs1.IsGS1(text) {
			if elements, err := gs1.Parse(text); err == nil {
				result.GS1Elements = gs1Elements(elements)
			}
		}
	case models.DecodeStatusUnavailable:
		result.Decode.Error = decoded.err.Error()
		result.Conditions = append(result.Conditions, models.Condition{
			Code:    models.ConditionDecodeUnavailable,
			Message: decoded.err.Error(),
		})
	default:
		msg := "decoder returned no payload"
		if decoded.err != nil {
			msg = decoded.err.Error()
		}
		result.Decode.Error = msg
		result.Conditions = append(result.Conditions, models.Condition{
			Code:    models.ConditionDecodeFailed,
			Message: msg,
		})
	}

	if expected != "" {
		result.PayloadMatch = matchPayload(expected, text)
	}
}

// matchPayload compares by edit distance; a missing payload is compared as empty
func matchPayload(expected, actual string) *models.PayloadMatch {
	distance := levenshtein.Distance(expected, actual)
	longest := max(utf8.RuneCountInString(expected), utf8.RuneCountInString(actual))
	similarity := 1.0
	if longest > 0 {
		similarity = 1 - float64(distance)/float64(longest)
	}
	return &models.PayloadMatch{
		Expected:   expected,
		Matches:    distance == 0,
		Distance:   distance,
		Similarity: similarity,
	}
}

func quietZoneReport(qz *analyzer.QuietZone) *models.QuietZoneReport {
	report := &models.QuietZoneReport{
		Left:      qz.Left,
		Right:     qz.Right,
		Top:       qz.Top,
		Bottom:    qz.Bottom,
		Min:       qz.Min,
		Required:  qz.Required,
		Compliant: qz.Compliant,
	}
	for _, side := range qz.TruncatedSides {
		report.TruncatedSides = append(report.TruncatedSides, string(side))
	}
	return report
}

func scanPathReport(t analyzer.Traversal) models.ScanPathReport {
	return models.ScanPathReport{
		Source:  string(t.Source),
		Axis:    string(t.Axis),
		Index:   t.Index,
		From:    t.From,
		To:      t.To,
		Channel: string(t.Channel),
	}
}

func gs1Elements(elements []gs1.Element) []models.GS1Element {
	out := make([]models.GS1Element, len(elements))
	for i, e := range elements {
		out[i] = models.GS1Element{AI: e.AI, Title: e.Title, Value: e.Value, Valid: e.Valid, Issue: e.Issue}
	}
	return out
}
