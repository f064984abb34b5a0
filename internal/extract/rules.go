package extract

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SectionType names a clinical section heading family.
type SectionType string

const (
	SectionClinicalFeatures SectionType = "clinical_features"
	SectionInvestigations   SectionType = "investigations"
	SectionTreatment        SectionType = "treatment"
	SectionComplications    SectionType = "complications"
)

// Section content caps, in characters.
const (
	ClinicalFeaturesCap = 500
	InvestigationsCap   = 300
	TreatmentCap        = 300
)

// ConditionRule is one ordered condition-header pattern. Group 1 is the
// condition name; ICDGroup, when non-zero, is the capture holding the ICD code.
type ConditionRule struct {
	Name       string
	Pattern    *regexp.Regexp
	ICDGroup   int
	Confidence float64
}

// DefaultConditionRules returns the built-in header patterns in priority order.
func DefaultConditionRules() []ConditionRule {
	return []ConditionRule{
		{
			Name:       "icd_coded",
			Pattern:    regexp.MustCompile(`^([A-Z][a-zA-Z\s\-]+?)\s*\((?:ICD[:\s-]*)?([A-Z]\d{2}(?:\.\d+)?)\)`),
			ICDGroup:   2,
			Confidence: 0.9,
		},
		{
			Name:       "acuity",
			Pattern:    regexp.MustCompile(`^((?:Acute|Chronic|Severe|Mild|Primary|Secondary)\s+[A-Za-z\s]+)$`),
			Confidence: 0.8,
		},
		{
			Name:       "morphology",
			Pattern:    regexp.MustCompile(`^([A-Z][a-z]+(?:itis|osis|emia|pathy|trophy|plasia|oma))\b`),
			Confidence: 0.7,
		},
		{
			Name:       "infection",
			Pattern:    regexp.MustCompile(`^([A-Z][a-z]+\s+(?:infection|disease|syndrome|disorder))\b`),
			Confidence: 0.7,
		},
		{
			Name:       "symptom",
			Pattern:    regexp.MustCompile(`^([A-Z][a-z]+\s+(?:pain|fever|cough|diarr?hoea))\b`),
			Confidence: 0.5,
		},
	}
}

// Rules holds the vocabularies the extractor matches against. Every field
// can be replaced from a YAML rules file.
type Rules struct {
	SkipPatterns          []string                 `yaml:"skip_patterns"`
	InstitutionalKeywords []string                 `yaml:"institutional_keywords"`
	MedicalFragments      []string                 `yaml:"medical_fragments"`
	MedicationStopWords   []string                 `yaml:"medication_stop_words"`
	Routes                []string                 `yaml:"routes"`
	SectionKeywords       map[SectionType][]string `yaml:"section_keywords"`
}

// DefaultRules returns the vocabularies tuned for national treatment guidelines.
func DefaultRules() Rules {
	return Rules{
		SkipPatterns: []string{
			`Department of`,
			`Ministry of`,
			`University of`,
			`World Health`,
			`Ghana National`,
			`Table of Contents`,
			`Chapter \d+`,
			`Page \d+`,
			`\d{4}`,
		},
		InstitutionalKeywords: []string{"Department", "Ministry", "University", "Ghana", "WHO"},
		MedicalFragments: []string{
			"infection", "disease", "syndrome", "disorder", "pain", "fever",
			"itis", "osis", "emia", "pathy", "trophy", "plasia", "oma",
			"acute", "chronic", "severe", "mild", "primary", "secondary",
			"malaria", "pneumonia", "diarrhea", "hypertension", "diabetes",
		},
		MedicationStopWords: []string{"Table", "Page", "Chapter", "Section", "And", "The", "For", "With"},
		Routes: []string{
			"IV", "IM", "SC", "PO", "PR", "SL", "oral", "orally", "intravenous", "intravenously",
			"intramuscular", "intramuscularly", "subcutaneous", "rectal", "topical", "inhaled", "nebulised",
		},
		SectionKeywords: map[SectionType][]string{
			SectionClinicalFeatures: {
				"clinical features", "signs and symptoms", "clinical presentation",
				"presenting features", "clinical manifestations",
			},
			SectionInvestigations: {
				"investigations", "diagnostic tests", "laboratory tests",
				"diagnostic procedures", "tests required",
			},
			SectionTreatment: {
				"treatment", "management", "therapy", "drug therapy",
				"pharmacological treatment", "medication",
			},
			SectionComplications: {"complications", "sequelae", "adverse outcomes"},
		},
	}
}

// LoadRules reads a YAML rules file on top of DefaultRules. Keys absent from
// the file keep their defaults; present keys replace the default list.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	var override Rules
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Rules{}, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	rules.merge(override)
	return rules, nil
}

func (r *Rules) merge(o Rules) {
	if o.SkipPatterns != nil {
		r.SkipPatterns = o.SkipPatterns
	}
	if o.InstitutionalKeywords != nil {
		r.InstitutionalKeywords = o.InstitutionalKeywords
	}
	if o.MedicalFragments != nil {
		r.MedicalFragments = o.MedicalFragments
	}
	if o.MedicationStopWords != nil {
		r.MedicationStopWords = o.MedicationStopWords
	}
	if o.Routes != nil {
		r.Routes = o.Routes
	}
	for typ, kws := range o.SectionKeywords {
		if r.SectionKeywords == nil {
			r.SectionKeywords = make(map[SectionType][]string)
		}
		r.SectionKeywords[typ] = kws
	}
}

// compiledRules is the matcher form of Rules.
type compiledRules struct {
	conditions    []ConditionRule
	skip          []*regexp.Regexp
	institutional []string
	fragments     []string
	stopWords     map[string]bool
	routes        map[string]string // lowercased -> canonical spelling
	medStrength   *regexp.Regexp
	sectionRe     *regexp.Regexp    // every section keyword, longest first
	synonyms      map[SectionType][]string
}

func compileRules(r Rules) (*compiledRules, error) {
	c := &compiledRules{
		conditions:    DefaultConditionRules(),
		institutional: r.InstitutionalKeywords,
		stopWords:     make(map[string]bool, len(r.MedicationStopWords)),
		routes:        make(map[string]string, len(r.Routes)),
		synonyms:      make(map[SectionType][]string, len(r.SectionKeywords)),
	}

	for _, p := range r.SkipPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile skip pattern %q: %w", p, err)
		}
		c.skip = append(c.skip, re)
	}
	for _, f := range r.MedicalFragments {
		c.fragments = append(c.fragments, strings.ToLower(f))
	}
	for _, w := range r.MedicationStopWords {
		c.stopWords[w] = true
	}
	for _, rt := range r.Routes {
		c.routes[strings.ToLower(rt)] = rt
	}
	med, err := compileMedicationPattern(r.Routes)
	if err != nil {
		return nil, fmt.Errorf("compile routes: %w", err)
	}
	c.medStrength = med

	var all []string
	seen := make(map[string]bool)
	for _, typ := range sectionTypeOrder(r.SectionKeywords) {
		for _, kw := range r.SectionKeywords[typ] {
			norm := normalizeKeyword(kw)
			if norm == "" {
				continue
			}
			c.synonyms[typ] = append(c.synonyms[typ], norm)
			if !seen[norm] {
				seen[norm] = true
				all = append(all, norm)
			}
		}
	}
	if len(all) > 0 {
		// Longest first so alternation behaves as leftmost-longest.
		sort.SliceStable(all, func(i, j int) bool { return len(all[i]) > len(all[j]) })
		alts := make([]string, len(all))
		for i, kw := range all {
			alts[i] = strings.Join(mapWords(kw, regexp.QuoteMeta), `\s+`)
		}
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("compile section keywords: %w", err)
		}
		c.sectionRe = re
	}
	return c, nil
}

// sectionTypeOrder lists the built-in section types first, then any extra
// types from a rules file in name order.
func sectionTypeOrder(kws map[SectionType][]string) []SectionType {
	order := []SectionType{SectionClinicalFeatures, SectionInvestigations, SectionTreatment, SectionComplications}
	known := make(map[SectionType]bool, len(order))
	for _, typ := range order {
		known[typ] = true
	}
	var extra []SectionType
	for typ := range kws {
		if !known[typ] {
			extra = append(extra, typ)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(order, extra...)
}

func normalizeKeyword(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func mapWords(s string, fn func(string) string) []string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = fn(w)
	}
	return words
}
