package extract

import (
	"regexp"
	"strings"
)

var sectionSeparator = regexp.MustCompile(`^[:\s]+`)

type keywordSpan struct {
	start, end int
	keyword    string // normalized
}

// sectionIndex holds every section keyword occurrence in one page of text.
// Content for a heading runs until the next span of any type.
type sectionIndex struct {
	text  string
	spans []keywordSpan
}

func (c *compiledRules) indexSections(text string) sectionIndex {
	ix := sectionIndex{text: text}
	if c.sectionRe == nil {
		return ix
	}
	for _, loc := range c.sectionRe.FindAllStringIndex(text, -1) {
		ix.spans = append(ix.spans, keywordSpan{
			start:   loc[0],
			end:     loc[1],
			keyword: normalizeKeyword(text[loc[0]:loc[1]]),
		})
	}
	return ix
}

// content returns the collapsed text following the first synonym (in
// synonym order) that is followed by a separator, truncated to limit runes.
func (ix sectionIndex) content(synonyms []string, limit int) string {
	for _, syn := range synonyms {
		for i, sp := range ix.spans {
			if sp.keyword != syn {
				continue
			}
			sep := sectionSeparator.FindStringIndex(ix.text[sp.end:])
			if sep == nil {
				continue
			}
			start := sp.end + sep[1]
			end := len(ix.text)
			if i+1 < len(ix.spans) {
				end = ix.spans[i+1].start
			}
			return truncateRunes(collapseSpace(ix.text[start:end]), limit)
		}
	}
	return ""
}

// SectionContent extracts the text under the given section heading family.
func (e *Extractor) SectionContent(text string, typ SectionType, limit int) string {
	return e.rules.indexSections(text).content(e.rules.synonyms[typ], limit)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return strings.TrimSpace(s[:i])
		}
		n++
	}
	return s
}
