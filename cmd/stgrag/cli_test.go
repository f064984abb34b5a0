package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const guideline = "Contents\nChapter 1. Infections..........2\n186. Severe Malaria..........2" +
	"\f" +
	"Severe Malaria\nClinical features: High fever, convulsions\nTreatment: Artesunate 2.4mg/kg IV"

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("stgrag %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestIngestLocateSearch(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "stg.txt")
	if err := os.WriteFile(doc, []byte(guideline), 0o644); err != nil {
		t.Fatal(err)
	}
	db := filepath.Join(dir, "stg.db")

	out := run(t, "ingest", doc, "--db", db, "--toc-start", "1", "--toc-end", "1", "--content-start", "2")
	if !strings.Contains(out, "stg.txt") || !strings.Contains(out, "completed") {
		t.Errorf("unexpected ingest summary:\n%s", out)
	}

	out = run(t, "locate", "2", "--db", db)
	if !strings.Contains(out, "Chapter 1, Section 186, Page 2") || !strings.Contains(out, "Infections") {
		t.Errorf("unexpected locate output:\n%s", out)
	}

	out = run(t, "search", "malaria", "--db", db)
	if !strings.Contains(out, "Severe Malaria") {
		t.Errorf("unexpected search output:\n%s", out)
	}

	out = run(t, "search", "nonexistentterm", "--db", db)
	if !strings.Contains(out, "no results") {
		t.Errorf("expected no results, got:\n%s", out)
	}
}

func TestLocateRejectsBadPage(t *testing.T) {
	rootCmd.SetArgs([]string{"locate", "zero", "--db", filepath.Join(t.TempDir(), "x.db")})
	rootCmd.SetOut(&bytes.Buffer{})
	if err := rootCmd.Execute(); err == nil {
		t.Error("expected error for non-numeric page")
	}
}
