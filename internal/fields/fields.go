// Package fields pulls structured certificate fields out of recognized text
// with ordered regex rules.
package fields

import (
	"regexp"
	"strings"
)

// ExtractedData holds the fields found in one document. Empty fields are omitted.
type ExtractedData struct {
	Plate            string `json:"plate,omitempty"`
	IssueDate        string `json:"issueDate,omitempty"`
	ExpiryDate       string `json:"expiryDate,omitempty"`
	VehicleType      string `json:"vehicleType,omitempty"`
	Make             string `json:"make,omitempty"`
	Model            string `json:"model,omitempty"`
	OwnerName        string `json:"ownerName,omitempty"`
	EngineNumber     string `json:"engineNumber,omitempty"`
	ChassisNumber    string `json:"chassisNumber,omitempty"`
	InspectionResult string `json:"inspectionResult,omitempty"`
	Year             string `json:"year,omitempty"`
	ValidUntil       string `json:"validUntil,omitempty"`
	FieldsPopulated  int    `json:"fieldsPopulated"`
}

// plateBody is the labeled plate capture; a label vouches for it, so case is free.
const plateBody = `(?i:([A-Z]{2}[·.\- ]?[A-Z]{0,2}[·.\- ]?\d{2,4}))\b`

var (
	plateMatchers = []Matcher{
		Map(Labeled(regexp.MustCompile(`(?i:\bplaca\s+patente)\s*:?\s*`+plateBody)), NormalizePlate),
		Map(Labeled(regexp.MustCompile(`(?i:\bpatente)\s*:?\s*`+plateBody)), NormalizePlate),
		plateShape,
	}

	// uppercase only, so prose like "de 2023" is never a plate
	rePlateShape = regexp.MustCompile(`\b([A-Z]{2,4})[\s-]?\d{2,4}\b`)
	// words that precede a year in uppercase OCR text ("DE 2024")
	notPlatePrefix = map[string]bool{"DE": true, "DEL": true, "AL": true}

	vehicleTypeMatchers = labeledAll(`tipo\s+(?:de\s+)?veh[ií]culo`, `veh[ií]culo\s+tipo`, `clase`)
	bodyTypeMatchers    = labeledAll(`carrocer[ií]a`, `tipo\s+carrocer[ií]a`)
	makeMatchers        = labeledAll(`marca`, `fabricante`)
	modelMatchers       = labeledAll(`modelo`)
	ownerMatchers       = labeledAll(`propietario`, `due[ñn]o`, `nombre`)

	engineMatchers  = labeledAll(`(?:n[uú]mero\s+de\s+)?motor\s*(?:n[°ºo]\.?)?`)
	chassisMatchers = labeledAll(`(?:chasis|vin)\s*(?:n[°ºo]\.?)?`)
	yearMatchers    = []Matcher{
		Labeled(regexp.MustCompile(`(?i)\ba[nñ]o(?:\s+de\s+fabricaci[oó]n)?\s*:\s*(\d{4})\b`)),
	}
)

var reNotPlateChar = regexp.MustCompile(`[^A-Z0-9]`)

// NormalizePlate uppercases a plate and drops separators: "ab·cd-12" -> "ABCD12".
func NormalizePlate(s string) string {
	return reNotPlateChar.ReplaceAllString(strings.ToUpper(s), "")
}

// plateShape finds an unlabeled plate anywhere in text, ignoring dates.
func plateShape(text string) (string, bool) {
	masked := reAnyDate.ReplaceAllStringFunc(text, func(d string) string {
		return strings.Repeat(" ", len(d))
	})
	for _, m := range rePlateShape.FindAllStringSubmatch(masked, -1) {
		if notPlatePrefix[m[1]] {
			continue
		}
		return NormalizePlate(m[0]), true
	}
	return "", false
}

// Extract applies every field rule to text. It has no state, so the same
// text always yields the same data.
func Extract(text string) ExtractedData {
	var d ExtractedData

	d.Plate, _ = FirstMatch(text, plateMatchers...)

	var labeledExpiry bool
	d.IssueDate, d.ExpiryDate, labeledExpiry = extractDates(text)
	if labeledExpiry {
		d.ValidUntil = d.ExpiryDate
	}

	d.VehicleType, _ = FirstMatch(text, vehicleTypeMatchers...)
	if body, ok := FirstMatch(text, bodyTypeMatchers...); ok {
		d.VehicleType = strings.TrimSpace(d.VehicleType + " " + body)
	}
	d.Make, _ = FirstMatch(text, makeMatchers...)
	d.Model, _ = FirstMatch(text, modelMatchers...)
	d.OwnerName, _ = FirstMatch(text, ownerMatchers...)
	d.InspectionResult, _ = extractInspectionResult(text)

	d.EngineNumber, _ = FirstMatch(text, engineMatchers...)
	d.ChassisNumber, _ = FirstMatch(text, chassisMatchers...)
	d.Year, _ = FirstMatch(text, yearMatchers...)

	d.FieldsPopulated = d.count()
	return d
}

func (d ExtractedData) count() int {
	n := 0
	for _, v := range []string{
		d.Plate, d.IssueDate, d.ExpiryDate, d.VehicleType, d.Make, d.Model,
		d.OwnerName, d.EngineNumber, d.ChassisNumber, d.InspectionResult,
		d.Year, d.ValidUntil,
	} {
		if v != "" {
			n++
		}
	}
	return n
}

// HasDescriptor reports whether any of type, make or model was found.
func (d ExtractedData) HasDescriptor() bool {
	return d.VehicleType != "" || d.Make != "" || d.Model != ""
}

// HasOwnerOrResult reports whether the owner or the inspection result was found.
func (d ExtractedData) HasOwnerOrResult() bool {
	return d.OwnerName != "" || d.InspectionResult != ""
}
