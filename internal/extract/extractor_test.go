package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/stgrag/internal/doctree"
)

const malariaPage = "Severe Malaria\n" +
	"Clinical features: High fever, convulsions and\n" +
	"   prostration.\n" +
	"Investigations: Blood film for malaria parasites.\n" +
	"Treatment: Artesunate 2.4mg/kg IV\n" +
	"Complications: Cerebral malaria"

func TestExtractPage_TreatmentInheritsContext(t *testing.T) {
	e := NewDefault(nil)
	page := doctree.Page{Number: 113, Text: "Treatment: Artesunate 2.4mg/kg IV"}

	res, ctx := e.ExtractPage(page, Context{CurrentCondition: "Severe Malaria"})

	if len(res.Conditions) != 0 {
		t.Errorf("expected no conditions, got %+v", res.Conditions)
	}
	if len(res.Treatments) != 1 {
		t.Fatalf("expected 1 treatment, got %d: %+v", len(res.Treatments), res.Treatments)
	}
	tr := res.Treatments[0]
	if tr.ConditionName != "Severe Malaria" {
		t.Errorf("expected condition Severe Malaria, got %q", tr.ConditionName)
	}
	if tr.FirstLine != "Artesunate 2.4mg/kg IV" {
		t.Errorf("expected first line %q, got %q", "Artesunate 2.4mg/kg IV", tr.FirstLine)
	}
	if tr.Page != 113 {
		t.Errorf("expected page 113, got %d", tr.Page)
	}
	if ctx.CurrentCondition != "Severe Malaria" {
		t.Errorf("expected context unchanged, got %q", ctx.CurrentCondition)
	}

	if len(res.Medications) != 1 {
		t.Fatalf("expected 1 medication, got %+v", res.Medications)
	}
	med := res.Medications[0]
	if med.Name != "Artesunate" || med.Strength != "2.4mg/kg" || med.Route != "IV" {
		t.Errorf("unexpected medication: %+v", med)
	}
}

func TestExtractPage_EmptyContext(t *testing.T) {
	e := NewDefault(nil)
	res, ctx := e.ExtractPage(doctree.Page{Number: 1, Text: "Dose: 20mg/kg daily"}, Context{})
	if len(res.Treatments) != 1 {
		t.Fatalf("expected 1 treatment, got %+v", res.Treatments)
	}
	if res.Treatments[0].ConditionName != "" {
		t.Errorf("expected empty condition name, got %q", res.Treatments[0].ConditionName)
	}
	if ctx.CurrentCondition != "" {
		t.Errorf("expected empty context, got %q", ctx.CurrentCondition)
	}
}

func TestExtractPage_ConditionWithSections(t *testing.T) {
	e := NewDefault(nil)
	res, ctx := e.ExtractPage(doctree.Page{Number: 112, Text: malariaPage}, Context{CurrentCondition: "Cholera"})

	if len(res.Conditions) != 1 {
		t.Fatalf("expected 1 condition, got %+v", res.Conditions)
	}
	c := res.Conditions[0]
	if c.Name != "Severe Malaria" {
		t.Errorf("expected Severe Malaria, got %q", c.Name)
	}
	if c.ClinicalFeatures != "High fever, convulsions and prostration." {
		t.Errorf("unexpected clinical features: %q", c.ClinicalFeatures)
	}
	if c.Investigations != "Blood film for malaria parasites." {
		t.Errorf("unexpected investigations: %q", c.Investigations)
	}
	if c.Treatment != "Artesunate 2.4mg/kg IV" {
		t.Errorf("unexpected treatment: %q", c.Treatment)
	}
	if c.Confidence != 0.8 {
		t.Errorf("expected acuity confidence 0.8, got %v", c.Confidence)
	}
	if ctx.CurrentCondition != "Severe Malaria" {
		t.Errorf("expected context Severe Malaria, got %q", ctx.CurrentCondition)
	}
	// Conditions are detected before treatments on the same page.
	if len(res.Treatments) != 1 || res.Treatments[0].ConditionName != "Severe Malaria" {
		t.Errorf("expected treatment attributed to Severe Malaria, got %+v", res.Treatments)
	}
}

func TestDetectConditions_Rules(t *testing.T) {
	e := NewDefault(nil)
	tests := []struct {
		line     string
		wantName string
		wantICD  string
	}{
		{"Malaria (ICD B50)", "Malaria", "B50"},
		{"Uncomplicated Malaria (B54)", "Uncomplicated Malaria", "B54"},
		{"Typhoid fever (ICD-A01.0)", "Typhoid fever", "A01.0"},
		{"Chronic Kidney Disease", "Chronic Kidney Disease", ""},
		{"Meningitis in children", "Meningitis", ""},
		{"Anaemia", "Anaemia", ""},
		{"Sickle disease crisis", "Sickle disease", ""},
		{"Abdominal pain", "Abdominal pain", ""},
	}
	for _, tc := range tests {
		got, _ := e.DetectConditions(tc.line, 1)
		if len(got) != 1 {
			t.Errorf("%q: expected 1 condition, got %+v", tc.line, got)
			continue
		}
		if got[0].Name != tc.wantName || got[0].ICDCode != tc.wantICD {
			t.Errorf("%q: got name=%q icd=%q, want name=%q icd=%q",
				tc.line, got[0].Name, got[0].ICDCode, tc.wantName, tc.wantICD)
		}
	}
}

func TestDetectConditions_Rejections(t *testing.T) {
	e := NewDefault(nil)
	lines := []string{
		"Ministry of Health",
		"Chapter 12 Infections",
		"Pain",
		"treatment of malaria",
		"Ghana disease",
	}
	got, rejected := e.DetectConditions(strings.Join(lines, "\n"), 1)
	if len(got) != 0 {
		t.Errorf("expected no conditions, got %+v", got)
	}
	if rejected != 1 {
		t.Errorf("expected 1 validator rejection, got %d", rejected)
	}
}

func TestSectionContent(t *testing.T) {
	e := NewDefault(nil)
	tests := []struct {
		name string
		text string
		typ  SectionType
		want string
	}{
		{"missing heading", "Fever and chills", SectionInvestigations, ""},
		{"case insensitive", "CLINICAL FEATURES:\nFever", SectionClinicalFeatures, "Fever"},
		{"heading split across lines", "Clinical\nfeatures: Fever", SectionClinicalFeatures, "Fever"},
		{"longest keyword wins", "Pharmacological treatment: Quinine 10mg/kg", SectionTreatment, "Quinine 10mg/kg"},
		{"drug therapy", "Drug therapy: Quinine", SectionTreatment, "Quinine"},
		{"no separator", "Treatment, see below", SectionTreatment, ""},
		{"stops at next heading", "Management: Oral fluids Complications: Shock", SectionTreatment, "Oral fluids"},
		{"synonym order", "Management: fluids\nTreatment: antibiotics", SectionTreatment, "antibiotics"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := e.SectionContent(tc.text, tc.typ, 300); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSectionContent_Cap(t *testing.T) {
	e := NewDefault(nil)
	text := "Clinical features: " + strings.Repeat("fever ", 200)
	got := e.SectionContent(text, SectionClinicalFeatures, ClinicalFeaturesCap)
	if n := len([]rune(got)); n > ClinicalFeaturesCap {
		t.Errorf("expected at most %d characters, got %d", ClinicalFeaturesCap, n)
	}
	if !strings.HasPrefix(got, "fever fever") {
		t.Errorf("unexpected content prefix: %q", got[:20])
	}
}

func TestExtractTreatments_Markers(t *testing.T) {
	e := NewDefault(nil)
	text := "First-line: Artemether-lumefantrine twice daily. Take with food\n" +
		"Second line: Quinine 10mg/kg\n" +
		"Alternative: Dihydroartemisinin\n" +
		"Dose: 20mg/kg once\n" +
		"Duration: 3 days\n" +
		"Dose: 5mg\n"

	got := e.ExtractTreatments(text, "Malaria", 7)
	if len(got) != 5 {
		t.Fatalf("expected 5 treatments, got %d: %+v", len(got), got)
	}
	if got[0].FirstLine != "Artemether-lumefantrine twice daily" {
		t.Errorf("first-line: got %q", got[0].FirstLine)
	}
	if got[1].SecondLine != "Quinine 10mg/kg" {
		t.Errorf("second-line: got %q", got[1].SecondLine)
	}
	if got[2].SecondLine != "Dihydroartemisinin" {
		t.Errorf("alternative: got %q", got[2].SecondLine)
	}
	if got[3].Dosage != "20mg/kg once" {
		t.Errorf("dose: got %q", got[3].Dosage)
	}
	if got[4].Duration != "3 days" {
		t.Errorf("duration: got %q", got[4].Duration)
	}
	for _, tr := range got {
		if tr.ConditionName != "Malaria" || tr.Page != 7 {
			t.Errorf("unexpected attribution: %+v", tr)
		}
	}
}

func TestExtractTreatments_OverlapsRetained(t *testing.T) {
	e := NewDefault(nil)
	got := e.ExtractTreatments("First-line treatment: Amoxicillin 500mg", "Pneumonia", 1)
	if len(got) != 2 {
		t.Fatalf("expected both marker variants kept, got %+v", got)
	}
	if got[0].FirstLine != "treatment: Amoxicillin 500mg" || got[1].FirstLine != "Amoxicillin 500mg" {
		t.Errorf("unexpected captures: %q / %q", got[0].FirstLine, got[1].FirstLine)
	}
}

func TestExtractMedications(t *testing.T) {
	e := NewDefault(nil)
	text := "Give Amoxicillin 500mg oral three times daily.\n" +
		"Paracetamol tablets 500mg\n" +
		"Ceftriaxone 1g daily\n" +
		"See Table 5mg and Page 12 units\n" +
		"Zn 20mg\n"

	got := e.ExtractMedications(text, 9)
	want := []struct{ name, strength, route string }{
		{"Amoxicillin", "500mg", "oral"},
		{"Ceftriaxone", "1g", ""},
		{"Paracetamol", "500mg", ""},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d medications, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		m := got[i]
		if m.Name != w.name || m.Strength != w.strength || m.Route != w.route || m.Page != 9 {
			t.Errorf("medication %d: got %+v, want %+v", i, m, w)
		}
	}
}

func TestExtractMedications_AdjacentDrugs(t *testing.T) {
	e := NewDefault(nil)
	text := "Paracetamol 500mg Ibuprofen 400mg\n" +
		"Amoxicillin 500mg Metronidazole 400mg IV"

	got := e.ExtractMedications(text, 4)
	want := []struct{ name, strength, route string }{
		{"Paracetamol", "500mg", ""},
		{"Ibuprofen", "400mg", ""},
		{"Amoxicillin", "500mg", ""},
		{"Metronidazole", "400mg", "IV"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d medications, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		m := got[i]
		if m.Name != w.name || m.Strength != w.strength || m.Route != w.route {
			t.Errorf("medication %d: got %+v, want %+v", i, m, w)
		}
	}
}

func TestExtractMedications_NoRoutes(t *testing.T) {
	rules := DefaultRules()
	rules.Routes = []string{}
	e, err := New(rules, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := e.ExtractMedications("Quinine 600mg IV Artemether 80mg", 1)
	if len(got) != 2 || got[0].Route != "" || got[1].Name != "Artemether" {
		t.Errorf("unexpected medications: %+v", got)
	}
}

func TestCompileRules_SharedSynonymDeterministic(t *testing.T) {
	rules := DefaultRules()
	rules.SectionKeywords[SectionTreatment] = append(rules.SectionKeywords[SectionTreatment], "management")
	rules.SectionKeywords[SectionComplications] = []string{"management", "complications"}
	rules.SectionKeywords["follow_up"] = []string{"follow up"}

	first, err := compileRules(rules)
	if err != nil {
		t.Fatalf("compileRules: %v", err)
	}
	for i := 0; i < 20; i++ {
		c, err := compileRules(rules)
		if err != nil {
			t.Fatalf("compileRules: %v", err)
		}
		if c.sectionRe.String() != first.sectionRe.String() {
			t.Fatalf("section pattern changed between compiles:\n%s\n%s", first.sectionRe, c.sectionRe)
		}
	}
	if n := strings.Count(first.sectionRe.String(), "management"); n != 1 {
		t.Errorf("expected shared keyword once in pattern, got %d", n)
	}
}

func TestScan_ThreadsContextInPageOrder(t *testing.T) {
	e := NewDefault(nil)
	pages := []doctree.Page{
		{Number: 3, Text: "Pneumonia (J18)\nFirst-line: Amoxicillin 500mg oral"},
		{Number: 2, Text: "Dose: 20mg/kg daily"},
		{Number: 1, Text: "Severe Malaria\nSome text"},
	}

	res := e.Scan(pages, Context{})

	if res.Stats.PagesProcessed != 3 {
		t.Errorf("expected 3 pages, got %d", res.Stats.PagesProcessed)
	}
	if res.Stats.ConditionsFound != 2 || res.Stats.TreatmentsFound != 2 || res.Stats.MedicationsFound != 1 {
		t.Errorf("unexpected stats: %+v", res.Stats)
	}
	if len(res.Treatments) != 2 {
		t.Fatalf("expected 2 treatments, got %+v", res.Treatments)
	}
	if res.Treatments[0].ConditionName != "Severe Malaria" || res.Treatments[0].Page != 2 {
		t.Errorf("page 2 treatment should inherit Severe Malaria, got %+v", res.Treatments[0])
	}
	if res.Treatments[1].ConditionName != "Pneumonia" {
		t.Errorf("page 3 treatment should belong to Pneumonia, got %+v", res.Treatments[1])
	}
	if res.Context.CurrentCondition != "Pneumonia" {
		t.Errorf("expected final context Pneumonia, got %q", res.Context.CurrentCondition)
	}
}

func TestLoadRules_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	yml := "routes: [stat]\nsection_keywords:\n  treatment: [regimen]\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(rules.MedicationStopWords) == 0 {
		t.Error("expected unspecified keys to keep defaults")
	}
	if got := rules.SectionKeywords[SectionClinicalFeatures]; len(got) == 0 {
		t.Error("expected clinical feature keywords to keep defaults")
	}

	e, err := New(rules, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	meds := e.ExtractMedications("Adrenaline 1mg stat", 1)
	if len(meds) != 1 || meds[0].Route != "stat" {
		t.Errorf("expected route stat, got %+v", meds)
	}
	if got := e.SectionContent("Regimen: Adrenaline 1mg", SectionTreatment, TreatmentCap); got != "Adrenaline 1mg" {
		t.Errorf("expected overridden treatment keyword, got %q", got)
	}
}

func TestLoadRules_Errors(t *testing.T) {
	if _, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("routes: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRules(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}

	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("LoadRules empty path: %v", err)
	}
	rules.SkipPatterns = []string{"("}
	if _, err := New(rules, nil); err == nil {
		t.Error("expected compile error for invalid skip pattern")
	}
}
