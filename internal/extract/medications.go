package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/stgrag/internal/doctree"
)

// Amoxicillin 500mg oral / Artesunate 2.4mg/kg IV. The trailing route group
// is appended by compileMedicationPattern from the route whitelist.
const strengthFirst = `\b([A-Z][a-z]+)\s+(\d+(?:\.\d+)?)\s*((?:mg|g|ml|IU|mcg|units?)(?:/kg)?)\b`

// Paracetamol tablets 500mg
var formFirst = regexp.MustCompile(`\b([A-Z][a-z]+)\s+(?:tablets?|capsules?|injection|syrup)\s+(\d+(?:\.\d+)?)\s*(mg|ml)\b`)

// compileMedicationPattern builds the strength-first matcher. Only a
// whitelisted route may follow the strength, so an adjacent drug name is
// never consumed as a route.
func compileMedicationPattern(routes []string) (*regexp.Regexp, error) {
	alts := make([]string, 0, len(routes))
	for _, rt := range routes {
		if rt = strings.TrimSpace(rt); rt != "" {
			alts = append(alts, regexp.QuoteMeta(rt))
		}
	}
	if len(alts) == 0 {
		return regexp.Compile(strengthFirst + `()`)
	}
	sort.SliceStable(alts, func(i, j int) bool { return len(alts[i]) > len(alts[j]) })
	return regexp.Compile(strengthFirst + `(?:[ \t]+(?i:(` + strings.Join(alts, "|") + `))\b)?`)
}

// ExtractMedications finds drug mentions with a strength. Matches from both
// pattern variants are kept even when they overlap.
func (e *Extractor) ExtractMedications(text string, page int) []doctree.Medication {
	var out []doctree.Medication
	for _, sub := range e.rules.medStrength.FindAllStringSubmatch(text, -1) {
		if !e.rules.validMedicationName(sub[1]) {
			continue
		}
		out = append(out, doctree.Medication{
			Name:     sub[1],
			Strength: sub[2] + sub[3],
			Route:    e.rules.canonicalRoute(sub[4]),
			Page:     page,
		})
	}
	for _, sub := range formFirst.FindAllStringSubmatch(text, -1) {
		if !e.rules.validMedicationName(sub[1]) {
			continue
		}
		out = append(out, doctree.Medication{
			Name:     sub[1],
			Strength: sub[2] + sub[3],
			Page:     page,
		})
	}
	return out
}
