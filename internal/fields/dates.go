package fields

import (
	"regexp"
)

const (
	months   = `enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre`
	dateExpr = `\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\d{1,2}\s+(?:de\s+)?(?:` + months + `)\s+(?:del?\s+)?\d{4}\b`
)

var (
	reAnyDate = regexp.MustCompile(`(?i)\b(?:` + dateExpr + `)`)

	issueDateLabels = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bfecha(?:\s+de\s+(?:emisi[oó]n|revisi[oó]n))?\s*:\s*(` + dateExpr + `)`),
	}
	expiryDateLabels = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bv[aá]lida\s+hasta\s*:?\s*(` + dateExpr + `)`),
		regexp.MustCompile(`(?i)\brevisi[oó]n\s+t[eé]cnica\s+v[aá]lida\s+hasta\s*:?\s*(` + dateExpr + `)`),
	}
)

type dateHit struct {
	value string
	pos   int
}

// allDates returns every date-like substring in text order.
func allDates(text string) []dateHit {
	locs := reAnyDate.FindAllStringIndex(text, -1)
	out := make([]dateHit, 0, len(locs))
	for _, l := range locs {
		out = append(out, dateHit{value: collapseSpace(text[l[0]:l[1]]), pos: l[0]})
	}
	return out
}

func firstLabeledDate(text string, res []*regexp.Regexp) (dateHit, bool) {
	for _, re := range res {
		if m := re.FindStringSubmatchIndex(text); m != nil && m[2] >= 0 {
			return dateHit{value: collapseSpace(text[m[2]:m[3]]), pos: m[2]}, true
		}
	}
	return dateHit{}, false
}

// extractDates resolves issue and expiry dates. Labels win; otherwise the
// first date is the issue date and the next different one is the expiry.
// labeledExpiry reports whether the expiry came from a "válida hasta" label.
func extractDates(text string) (issue, expiry string, labeledExpiry bool) {
	iss, issOK := firstLabeledDate(text, issueDateLabels)
	exp, expOK := firstLabeledDate(text, expiryDateLabels)
	if issOK && expOK {
		return iss.value, exp.value, true
	}

	dates := allDates(text)
	if !issOK {
		for _, d := range dates {
			if expOK && d.value == exp.value {
				continue
			}
			iss, issOK = d, true
			break
		}
	}
	if !expOK && issOK {
		for _, d := range dates {
			if d.pos > iss.pos && d.value != iss.value {
				return iss.value, d.value, false
			}
		}
	}
	return iss.value, exp.value, expOK
}

// looksLikeDate reports whether s contains a date expression.
func looksLikeDate(s string) bool {
	return reAnyDate.MatchString(s)
}

// CountDates returns how many date-like substrings text holds.
func CountDates(text string) int {
	return len(reAnyDate.FindAllStringIndex(text, -1))
}
