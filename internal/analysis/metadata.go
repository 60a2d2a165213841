package analysis

import (
	"strings"

	"github.com/joseph-ayodele/inspection-verifier/internal/ocr"
)

const notSpecified = "No especificado"

var editingSoftware = []string{"photoshop", "gimp", "paint", "canva"}

// MetadataAnalysis is informational. It never changes the score or the issue list.
type MetadataAnalysis struct {
	HasMetadata bool     `json:"hasMetadata"`
	Creator     string   `json:"creator,omitempty"`
	Producer    string   `json:"producer,omitempty"`
	Notes       []string `json:"notes,omitempty"`
}

func AnalyzeMetadata(md *ocr.PDFMetadata) MetadataAnalysis {
	if md == nil || !md.HasInfo {
		return MetadataAnalysis{Notes: []string{"Sin metadatos"}}
	}
	ma := MetadataAnalysis{
		HasMetadata: true,
		Creator:     orNotSpecified(md.Creator),
		Producer:    orNotSpecified(md.Producer),
	}
	creator := strings.ToLower(md.Creator)
	for _, sw := range editingSoftware {
		if strings.Contains(creator, sw) {
			ma.Notes = append(ma.Notes, "Creado con software de edición: "+sw)
		}
	}
	return ma
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return notSpecified
	}
	return s
}
