package analysis

import (
	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/fields"
)

const (
	IssueMissingPlate       = "No se encontró la patente del vehículo"
	IssueMissingDescriptor  = "No se identificó tipo, marca ni modelo del vehículo"
	IssueMissingOwner       = "No se encontró el nombre del propietario"
	IssueMissingResult      = "No se encontró el resultado de la revisión"
	IssueLowKeywordCoverage = "Contenido insuficiente de términos de revisión técnica"
	IssueLowOCRConfidence   = "Baja confianza de OCR"
	IssueShortText          = "Texto reconocido insuficiente"
)

const (
	minOCRConfidence = 50
	minImageText     = 200
)

// CollectIssues lists what is missing from a document. Documents at or above
// the authenticity threshold report no issues even if fields are missing.
func CollectIssues(ca ContentAnalysis, d fields.ExtractedData, confidence int, docType constants.DocumentType) []string {
	if IsAuthentic(confidence) {
		return nil
	}
	var issues []string
	if d.Plate == "" {
		issues = append(issues, IssueMissingPlate)
	}
	if !d.HasDescriptor() {
		issues = append(issues, IssueMissingDescriptor)
	}
	if d.OwnerName == "" {
		issues = append(issues, IssueMissingOwner)
	}
	if d.InspectionResult == "" {
		issues = append(issues, IssueMissingResult)
	}
	if ca.Score < MinKeywordScore {
		issues = append(issues, IssueLowKeywordCoverage)
	}
	if docType == constants.IMAGE {
		if ca.OCRConfidence == nil || *ca.OCRConfidence < minOCRConfidence {
			issues = append(issues, IssueLowOCRConfidence)
		}
		if ca.TextLength < minImageText {
			issues = append(issues, IssueShortText)
		}
	}
	return issues
}
