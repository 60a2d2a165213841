package analysis

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/inspection-verifier/internal/fields"
)

// Keyword is a term expected on a genuine certificate and its weight.
type Keyword struct {
	Term   string
	Weight int
}

var Keywords = []Keyword{
	{Term: "revisión técnica", Weight: 25},
	{Term: "vehículo", Weight: 15},
	{Term: "patente", Weight: 20},
	{Term: "motor", Weight: 10},
	{Term: "certificado", Weight: 15},
	{Term: "válido", Weight: 10},
}

// MinKeywordScore is the keyword coverage a document needs to count as valid content.
const MinKeywordScore = 50

var rePlateShape = regexp.MustCompile(`(?i)[A-Z]{2,4}[\s-]?\d{2,4}`)

type ContentAnalysis struct {
	Score         int      `json:"score"`
	FoundTerms    []string `json:"foundTerms"`
	HasPlate      bool     `json:"hasPlate"`
	DateCount     int      `json:"dateCount"`
	TextLength    int      `json:"textLength"`
	OCRConfidence *float64 `json:"ocrConfidence,omitempty"`
	IsValid       bool     `json:"isValid"`
}

// AnalyzeContent measures keyword coverage and basic shape signals of text.
// Keywords match without regard to case or accents, since OCR drops both.
func AnalyzeContent(text string, ocrConfidence *float64) ContentAnalysis {
	folded := fold(text)
	ca := ContentAnalysis{
		FoundTerms:    []string{},
		HasPlate:      rePlateShape.MatchString(text),
		DateCount:     fields.CountDates(text),
		TextLength:    utf8.RuneCountInString(text),
		OCRConfidence: ocrConfidence,
	}
	for _, kw := range Keywords {
		if strings.Contains(folded, fold(kw.Term)) {
			ca.FoundTerms = append(ca.FoundTerms, kw.Term)
			ca.Score += kw.Weight
		}
	}
	ca.IsValid = ca.Score >= MinKeywordScore && ca.HasPlate
	return ca
}

// fold lowercases s and strips combining marks: "Revisión" -> "revision".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
