// Package analysis scores extracted certificate data and explains the verdict.
package analysis

import (
	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/fields"
)

// Excerpt lengths kept on results.
const (
	TextExcerptRunes = 300
	OCRExcerptRunes  = 500
)

// Result is the verdict for one document. It is not modified after it is built.
type Result struct {
	Type          constants.DocumentType       `json:"type"`
	Status        constants.VerificationStatus `json:"status"`
	Confidence    int                          `json:"confidence"`
	IsAuthentic   bool                         `json:"isAuthentic"`
	Issues        []string                     `json:"issues"`
	ExtractedData fields.ExtractedData         `json:"extractedData"`
	Details       Details                      `json:"details"`
	Summary       string                       `json:"summary"`
	ExtractedText string                       `json:"extractedText"`
}

// Details carries the raw signals behind a score. Exactly one of PDF or
// Image is set, matching Result.Type.
type Details struct {
	Content ContentAnalysis `json:"content"`
	File    FileDetails     `json:"file"`
	PDF     *PDFDetails     `json:"pdf,omitempty"`
	Image   *ImageDetails   `json:"image,omitempty"`
}

type FileDetails struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Path     string `json:"path,omitempty"`
}

type PDFDetails struct {
	Method   string           `json:"method"`
	Pages    int              `json:"pages"`
	Metadata MetadataAnalysis `json:"metadata"`
}

type ImageDetails struct {
	OCRConfidence float64 `json:"ocrConfidence"`
	OCRText       string  `json:"ocrText"`
	Method        string  `json:"method"`
}

// Verdict fills the score-derived fields of r from its content and data.
func (r *Result) Verdict() {
	r.Confidence = Score(r.Type, r.Details.Content, r.ExtractedData)
	r.Status = StatusFor(r.Confidence)
	r.IsAuthentic = IsAuthentic(r.Confidence)
	r.Issues = CollectIssues(r.Details.Content, r.ExtractedData, r.Confidence, r.Type)
	if r.Issues == nil {
		r.Issues = []string{}
	}
	r.Summary = Summary(r.Status, r.Confidence, r.Issues)
}

// Excerpt returns at most n runes of s.
func Excerpt(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
