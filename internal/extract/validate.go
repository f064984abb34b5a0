package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minLineLen      = 5
	maxLineLen      = 100
	minConditionLen = 5
	maxConditionLen = 60
	minMedNameLen   = 3
	maxMedNameLen   = 30
	maxPlainWords   = 4
)

var (
	leadingDigit = regexp.MustCompile(`^\d`)
	bareYear     = regexp.MustCompile(`\b\d{4}\b`)
)

// candidateLine reports whether a trimmed line is worth matching against
// condition rules.
func (c *compiledRules) candidateLine(line string) bool {
	n := utf8.RuneCountInString(line)
	if n < minLineLen || n > maxLineLen {
		return false
	}
	for _, re := range c.skip {
		if re.MatchString(line) {
			return false
		}
	}
	return true
}

// validateCondition applies the acceptance rules to a candidate name and
// returns a rejection reason when it fails.
func (c *compiledRules) validateCondition(name string) (bool, string) {
	n := utf8.RuneCountInString(name)
	if n < minConditionLen || n > maxConditionLen {
		return false, "length"
	}
	for _, kw := range c.institutional {
		if strings.Contains(name, kw) {
			return false, "institutional"
		}
	}
	if leadingDigit.MatchString(name) {
		return false, "leading digit"
	}
	if bareYear.MatchString(name) {
		return false, "year"
	}

	lower := strings.ToLower(name)
	for _, frag := range c.fragments {
		if strings.Contains(lower, frag) {
			return true, ""
		}
	}
	if startsUpper(name) && len(strings.Fields(name)) <= maxPlainWords {
		return true, ""
	}
	return false, "no medical term"
}

// ValidCondition reports whether name passes the default condition validator.
func ValidCondition(name string) bool {
	ok, _ := defaultCompiled().validateCondition(name)
	return ok
}

func (c *compiledRules) validMedicationName(name string) bool {
	n := utf8.RuneCountInString(name)
	if n < minMedNameLen || n > maxMedNameLen {
		return false
	}
	if !startsUpper(name) {
		return false
	}
	return !c.stopWords[name]
}

func (c *compiledRules) canonicalRoute(word string) string {
	return c.routes[strings.ToLower(word)]
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && unicode.IsUpper(r)
}
