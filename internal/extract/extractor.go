// Package extract mines conditions, treatments and medications from page
// text with ordered, data-driven rules.
package extract

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/dgallion1/stgrag/internal/doctree"
)

// Context is the extraction state carried from one page to the next.
type Context struct {
	CurrentCondition string
}

// PageResult is everything extracted from a single page.
type PageResult struct {
	Page        int
	Conditions  []doctree.Condition
	Treatments  []doctree.Treatment
	Medications []doctree.Medication
	Rejected    int
}

// ScanResult aggregates a full document scan.
type ScanResult struct {
	Conditions  []doctree.Condition
	Treatments  []doctree.Treatment
	Medications []doctree.Medication
	Stats       Stats
	Context     Context // state after the last page
}

// Stats counts extraction outcomes.
type Stats struct {
	PagesProcessed   int `json:"pages_processed"`
	ConditionsFound  int `json:"conditions_found"`
	TreatmentsFound  int `json:"treatments_found"`
	MedicationsFound int `json:"medications_found"`
	Rejected         int `json:"rejected"`
}

// Extractor applies compiled rules to page text. It holds no per-document
// state and is safe for concurrent use.
type Extractor struct {
	rules *compiledRules
	log   *slog.Logger
}

var defaultCompiled = sync.OnceValue(func() *compiledRules {
	c, err := compileRules(DefaultRules())
	if err != nil {
		panic("extract: default rules do not compile: " + err.Error())
	}
	return c
})

// New compiles rules into an extractor. A nil logger discards output.
func New(rules Rules, log *slog.Logger) (*Extractor, error) {
	c, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Extractor{rules: c, log: log}, nil
}

// NewDefault returns an extractor using DefaultRules.
func NewDefault(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Extractor{rules: defaultCompiled(), log: log}
}

// DetectConditions matches every candidate line against the condition rules.
// The first rule whose candidate passes validation wins for a line.
func (e *Extractor) DetectConditions(text string, page int) ([]doctree.Condition, int) {
	var (
		out      []doctree.Condition
		rejected int
		ix       *sectionIndex
	)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if !e.rules.candidateLine(line) {
			continue
		}
		for _, rule := range e.rules.conditions {
			m := rule.Pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := strings.TrimSpace(m[1])
			if ok, reason := e.rules.validateCondition(name); !ok {
				rejected++
				e.log.Debug("condition candidate rejected",
					"name", name, "rule", rule.Name, "reason", reason, "page", page)
				continue
			}

			if ix == nil {
				built := e.rules.indexSections(text)
				ix = &built
			}
			cond := doctree.Condition{
				Name:             name,
				Page:             page,
				Confidence:       rule.Confidence,
				ClinicalFeatures: ix.content(e.rules.synonyms[SectionClinicalFeatures], ClinicalFeaturesCap),
				Investigations:   ix.content(e.rules.synonyms[SectionInvestigations], InvestigationsCap),
				Treatment:        ix.content(e.rules.synonyms[SectionTreatment], TreatmentCap),
			}
			if rule.ICDGroup > 0 && rule.ICDGroup < len(m) {
				cond.ICDCode = m[rule.ICDGroup]
			}
			out = append(out, cond)
			break
		}
	}
	return out, rejected
}

// ExtractPage runs condition detection, then treatment and medication
// extraction for one page. The returned Context must be passed to the next page.
func (e *Extractor) ExtractPage(page doctree.Page, ctx Context) (PageResult, Context) {
	res := PageResult{Page: page.Number}

	res.Conditions, res.Rejected = e.DetectConditions(page.Text, page.Number)
	if n := len(res.Conditions); n > 0 {
		ctx.CurrentCondition = res.Conditions[n-1].Name
	}
	res.Treatments = e.ExtractTreatments(page.Text, ctx.CurrentCondition, page.Number)
	res.Medications = e.ExtractMedications(page.Text, page.Number)
	return res, ctx
}

// Scan extracts every page in ascending page order starting from ctx.
func (e *Extractor) Scan(pages []doctree.Page, ctx Context) ScanResult {
	ordered := make([]doctree.Page, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })

	var out ScanResult
	for _, p := range ordered {
		var res PageResult
		res, ctx = e.ExtractPage(p, ctx)
		out.Conditions = append(out.Conditions, res.Conditions...)
		out.Treatments = append(out.Treatments, res.Treatments...)
		out.Medications = append(out.Medications, res.Medications...)
		out.Stats.Rejected += res.Rejected
		out.Stats.PagesProcessed++
	}
	out.Stats.ConditionsFound = len(out.Conditions)
	out.Stats.TreatmentsFound = len(out.Treatments)
	out.Stats.MedicationsFound = len(out.Medications)
	out.Context = ctx
	return out
}
