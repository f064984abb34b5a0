package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/stgrag/internal/doctree"
)

type treatmentField int

const (
	fieldFirstLine treatmentField = iota
	fieldSecondLine
	fieldDosage
	fieldDuration
)

const minTreatmentCapture = 6

type treatmentMarker struct {
	name    string
	pattern *regexp.Regexp
	field   treatmentField
}

// Evaluated in order; a line can yield one treatment per marker.
var treatmentMarkers = []treatmentMarker{
	{"first_line", regexp.MustCompile(`(?i)\bfirst[- ]line[:\s]+([^\n]+)`), fieldFirstLine},
	{"second_line", regexp.MustCompile(`(?i)\bsecond[- ]line[:\s]+([^\n]+)`), fieldSecondLine},
	{"alternative", regexp.MustCompile(`(?i)\balternative[:\s]+([^\n]+)`), fieldSecondLine},
	{"treatment", regexp.MustCompile(`(?i)\btreatment\s*:\s*([^\n]+)`), fieldFirstLine},
	{"drug", regexp.MustCompile(`(?i)\bdrugs?\s*:\s*([^\n]+)`), fieldFirstLine},
	{"dose", regexp.MustCompile(`(?i)\bdose[:\s]+([^\n]+)`), fieldDosage},
	{"duration", regexp.MustCompile(`(?i)\bduration[:\s]+([^\n]+)`), fieldDuration},
}

// sentenceEnd is a period followed by whitespace or end of text, so "2.4mg" survives.
var sentenceEnd = regexp.MustCompile(`\.(?:\s|$)`)

// ExtractTreatments finds explicit therapy markers and attributes each
// capture to conditionName.
func (e *Extractor) ExtractTreatments(text, conditionName string, page int) []doctree.Treatment {
	var out []doctree.Treatment
	for _, m := range treatmentMarkers {
		for _, sub := range m.pattern.FindAllStringSubmatch(text, -1) {
			val := cutSentence(sub[1])
			if utf8.RuneCountInString(val) < minTreatmentCapture {
				continue
			}
			t := doctree.Treatment{ConditionName: conditionName, Page: page}
			switch m.field {
			case fieldSecondLine:
				t.SecondLine = val
			case fieldDosage:
				t.Dosage = val
			case fieldDuration:
				t.Duration = val
			default:
				t.FirstLine = val
			}
			out = append(out, t)
		}
	}
	return out
}

func cutSentence(s string) string {
	if loc := sentenceEnd.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	return strings.TrimSpace(s)
}
