package fields

import (
	"regexp"
	"strings"
)

// Matcher tries to pull one value out of text.
type Matcher func(text string) (string, bool)

// FirstMatch evaluates matchers in order and returns the first hit.
func FirstMatch(text string, matchers ...Matcher) (string, bool) {
	for _, m := range matchers {
		if v, ok := m(text); ok {
			return v, true
		}
	}
	return "", false
}

// Labeled returns the first capture group of re, cut at the next known label.
func Labeled(re *regexp.Regexp) Matcher {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			return "", false
		}
		v := cleanValue(m[1])
		return v, v != ""
	}
}

// Whole returns the entire match of re.
func Whole(re *regexp.Regexp) Matcher {
	return func(text string) (string, bool) {
		v := strings.TrimSpace(re.FindString(text))
		return v, v != ""
	}
}

// Map post-processes a matcher's value. An empty result counts as a miss.
func Map(m Matcher, fn func(string) string) Matcher {
	return func(text string) (string, bool) {
		v, ok := m(text)
		if !ok {
			return "", false
		}
		v = fn(v)
		return v, v != ""
	}
}

// labelField builds `label: value` where value runs to the end of the line.
func labelField(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)\b(?:` + label + `)\s*:[ \t]*([^\n]+)`)
}

func labeledAll(labels ...string) []Matcher {
	out := make([]Matcher, 0, len(labels))
	for _, l := range labels {
		out = append(out, Labeled(labelField(l)))
	}
	return out
}

// reNextLabel finds the start of another field on the same line, as in
// "Marca: TOYOTA Modelo: YARIS".
var reNextLabel = regexp.MustCompile(`(?i)\s(?:placa\s+patente|patente|fecha(?:\s+de\s+\p{L}+)?|(?:revisi[oó]n\s+t[eé]cnica\s+)?v[aá]lida\s+hasta|tipo(?:\s+de)?\s+veh[ií]culo|veh[ií]culo(?:\s+tipo)?|clase|(?:tipo\s+)?carrocer[ií]a|marca|fabricante|modelo|propietario|due[ñn]o|nombre|resultado|(?:n[uú]mero\s+de\s+)?motor(?:\s*n[°ºo]\.?)?|(?:chasis|vin)(?:\s*n[°ºo]\.?)?|a[nñ]o(?:\s+de\s+fabricaci[oó]n)?|color|combustible|rut)\s*:`)

func cleanValue(v string) string {
	if loc := reNextLabel.FindStringIndex(v); loc != nil {
		v = v[:loc[0]]
	}
	return strings.Trim(v, " \t\r,;:")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
