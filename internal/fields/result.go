package fields

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/inspection-verifier/constants"
)

// markerWindow is how many runes either side of a result word are scanned
// for check marks.
const markerWindow = 30

// lineBreakGap is the extra distance a line break adds between a mark and a word.
const lineBreakGap = markerWindow

var (
	// boxes may be empty; the bare symbols and a stand-alone x always count as checked
	reMark        = regexp.MustCompile(`(?i)\[\s*[x✓✔]?\s*\]|\(\s*[x✓✔]?\s*\)|[✓✔•☒]|\bx\b`)
	reResultLabel = regexp.MustCompile(`(?im)\bresultado\s*:[ \t]*([^\n]+)`)
	reApproved    = regexp.MustCompile(`(?i)\baprobado\b`)
	reRejected    = regexp.MustCompile(`(?i)\brechazado\b`)
)

var resultMatchers = []Matcher{
	checkedWord,
	Map(Labeled(reResultLabel), classifyResultLabel),
	markerDensity,
	singleWord,
	bothWordsTie,
}

func extractInspectionResult(text string) (string, bool) {
	return FirstMatch(text, resultMatchers...)
}

type resultWord struct {
	start, end int
	value      string
}

// mark is a check box or symbol and the result word it sits next to.
type mark struct {
	word string
	gap  int
}

// checkedWord reads check boxes printed next to the result words. Each mark
// belongs to the closer of its neighbouring words; on an exact tie it takes
// the side the empty boxes use, else the word after it.
func checkedWord(text string) (string, bool) {
	words := resultWords(text)
	if len(words) == 0 {
		return "", false
	}
	locs := reMark.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return "", false
	}

	type side struct {
		prev, next       *resultWord
		prevGap, nextGap int
		checked          bool
	}
	sides := make([]side, 0, len(locs))
	before, after := 0, 0 // empty boxes leading or trailing a word
	for _, l := range locs {
		sd := side{checked: isChecked(text[l[0]:l[1]]), prevGap: -1, nextGap: -1}
		for i := range words {
			w := &words[i]
			if w.end <= l[0] {
				if g := wordGap(text[w.end:l[0]]); g >= 0 {
					sd.prev, sd.prevGap = w, g
				}
			} else if w.start >= l[1] && sd.next == nil {
				if g := wordGap(text[l[1]:w.start]); g >= 0 {
					sd.next, sd.nextGap = w, g
				}
			}
		}
		if !sd.checked {
			switch {
			case sd.next != nil && (sd.prev == nil || sd.nextGap < sd.prevGap):
				before++
			case sd.prev != nil && (sd.next == nil || sd.prevGap < sd.nextGap):
				after++
			}
		}
		sides = append(sides, sd)
	}

	var marks []mark
	for _, sd := range sides {
		if !sd.checked {
			continue
		}
		switch {
		case sd.prev == nil && sd.next == nil:
			continue
		case sd.prev == nil:
			marks = append(marks, mark{sd.next.value, sd.nextGap})
		case sd.next == nil:
			marks = append(marks, mark{sd.prev.value, sd.prevGap})
		case sd.prevGap < sd.nextGap, sd.prevGap == sd.nextGap && after > before:
			marks = append(marks, mark{sd.prev.value, sd.prevGap})
		default:
			marks = append(marks, mark{sd.next.value, sd.nextGap})
		}
	}
	return pickMarked(marks)
}

// pickMarked returns the marked word, or the closest one when marks point at both.
func pickMarked(marks []mark) (string, bool) {
	if len(marks) == 0 {
		return "", false
	}
	best := marks[0]
	tied := false
	for _, m := range marks[1:] {
		switch {
		case m.word == best.word:
			if m.gap < best.gap {
				best = m
			}
		case m.gap < best.gap:
			best, tied = m, false
		case m.gap == best.gap:
			tied = true
		}
	}
	if tied {
		return "", false
	}
	return best.word, true
}

func resultWords(text string) []resultWord {
	var words []resultWord
	for _, l := range reApproved.FindAllStringIndex(text, -1) {
		words = append(words, resultWord{l[0], l[1], constants.InspectionApproved})
	}
	for _, l := range reRejected.FindAllStringIndex(text, -1) {
		words = append(words, resultWord{l[0], l[1], constants.InspectionRejected})
	}
	sort.Slice(words, func(i, j int) bool { return words[i].start < words[j].start })
	return words
}

func isChecked(m string) bool {
	inner := strings.Trim(m, "[]() \t\n")
	return inner != ""
}

// wordGap measures whitespace between a mark and a word, or -1 when
// anything else sits in between.
func wordGap(s string) int {
	if strings.TrimSpace(s) != "" {
		return -1
	}
	return utf8.RuneCountInString(s) + strings.Count(s, "\n")*lineBreakGap
}

func classifyResultLabel(v string) string {
	up := strings.ToUpper(v)
	switch {
	case strings.Contains(up, constants.InspectionApproved):
		return constants.InspectionApproved
	case strings.Contains(up, constants.InspectionRejected):
		return constants.InspectionRejected
	case looksLikeDate(v):
		return ""
	default:
		return up
	}
}

// markerDensity settles documents where both words are printed (as option
// labels) by counting check marks around each occurrence.
func markerDensity(text string) (string, bool) {
	appr := reApproved.FindAllStringIndex(text, -1)
	rej := reRejected.FindAllStringIndex(text, -1)
	if len(appr) == 0 || len(rej) == 0 {
		return "", false
	}
	a, r := markersAround(text, appr), markersAround(text, rej)
	switch {
	case a > r:
		return constants.InspectionApproved, true
	case r > a:
		return constants.InspectionRejected, true
	}
	return "", false
}

func singleWord(text string) (string, bool) {
	appr, rej := reApproved.MatchString(text), reRejected.MatchString(text)
	switch {
	case appr && !rej:
		return constants.InspectionApproved, true
	case rej && !appr:
		return constants.InspectionRejected, true
	}
	return "", false
}

// bothWordsTie fires when both words appear and nothing distinguishes them.
// NOTE: defaulting a tie to approval is a policy choice pending product
// review; keep it until that decision is made.
func bothWordsTie(text string) (string, bool) {
	if reApproved.MatchString(text) && reRejected.MatchString(text) {
		return constants.InspectionApproved, true
	}
	return "", false
}

func markersAround(text string, locs [][]int) int {
	n := 0
	for _, l := range locs {
		start := runeOffsetBack(text, l[0], markerWindow)
		end := runeOffsetForward(text, l[1], markerWindow)
		n += countMarkers(text[start:end])
	}
	return n
}

// countMarkers counts check symbols plus stand-alone x, A and R letters.
func countMarkers(s string) int {
	rs := []rune(s)
	n := 0
	for i, c := range rs {
		switch c {
		case '•', '✓', '✔', '☒':
			n++
		case 'x', 'X', 'A', 'R':
			if standalone(rs, i) {
				n++
			}
		}
	}
	return n
}

func standalone(rs []rune, i int) bool {
	if i > 0 && isWordRune(rs[i-1]) {
		return false
	}
	if i+1 < len(rs) && isWordRune(rs[i+1]) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func runeOffsetBack(s string, from, n int) int {
	i := from
	for ; n > 0 && i > 0; n-- {
		i--
		for i > 0 && !startsRune(s[i]) {
			i--
		}
	}
	return i
}

func runeOffsetForward(s string, from, n int) int {
	i := from
	for ; n > 0 && i < len(s); n-- {
		i++
		for i < len(s) && !startsRune(s[i]) {
			i++
		}
	}
	return i
}

func startsRune(b byte) bool { return b&0xC0 != 0x80 }
