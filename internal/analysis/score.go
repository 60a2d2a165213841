package analysis

import (
	"math"

	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/fields"
)

// ScorePDF weighs keyword coverage and field completeness for text-layer documents.
func ScorePDF(ca ContentAnalysis, d fields.ExtractedData) int {
	s := math.Min(40, float64(ca.Score)) +
		math.Min(30, float64(d.FieldsPopulated*5)) +
		flag(d.Plate != "", 10) +
		flag(d.HasDescriptor(), 10) +
		flag(d.HasOwnerOrResult(), 10)
	return clampRound(s)
}

// ScoreImage adds OCR confidence to the mix with a lower keyword cap.
func ScoreImage(ca ContentAnalysis, d fields.ExtractedData) int {
	var ocr float64
	if ca.OCRConfidence != nil {
		ocr = *ca.OCRConfidence
	}
	s := math.Min(30, float64(ca.Score)) +
		math.Min(20, ocr/5) +
		math.Min(30, float64(d.FieldsPopulated*5)) +
		flag(d.Plate != "", 7) +
		flag(d.VehicleType != "" || d.Make != "", 7) +
		flag(d.HasOwnerOrResult(), 6)
	return clampRound(s)
}

// Score picks the profile for the document type.
func Score(docType constants.DocumentType, ca ContentAnalysis, d fields.ExtractedData) int {
	if docType == constants.IMAGE {
		return ScoreImage(ca, d)
	}
	return ScorePDF(ca, d)
}

// StatusFor maps a confidence onto its verdict bucket.
func StatusFor(confidence int) constants.VerificationStatus {
	switch {
	case confidence >= constants.ThresholdValid:
		return constants.StatusValid
	case confidence >= constants.ThresholdProbablyValid:
		return constants.StatusProbablyValid
	case confidence >= constants.ThresholdSuspicious:
		return constants.StatusSuspicious
	default:
		return constants.StatusInvalid
	}
}

func IsAuthentic(confidence int) bool {
	return confidence >= constants.AuthenticThreshold
}

func flag(ok bool, w float64) float64 {
	if ok {
		return w
	}
	return 0
}

func clampRound(s float64) int {
	return int(math.Round(math.Max(0, math.Min(100, s))))
}
