package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgallion1/stgrag/internal/embed"
	"github.com/dgallion1/stgrag/internal/extract"
	"github.com/dgallion1/stgrag/internal/pipeline"
	"github.com/spf13/cobra"
)

var ingestEmbed bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Parse, extract and chunk a guideline document",
	Long: `Reads the TOC page range into the chapter/section outline, scans the content
page range for conditions, treatments and medications, and stores chunks.
Supported formats: .pdf .txt .md .html .docx .csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateRanges(); err != nil {
			return err
		}
		log := newLogger()

		rules := extract.DefaultRules()
		if cfg.RulesFile != "" {
			var err error
			if rules, err = extract.LoadRules(cfg.RulesFile); err != nil {
				return err
			}
		}
		ex, err := extract.New(rules, log)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		st, err := openStore(log)
		if err != nil {
			return err
		}
		defer st.Close()

		var emb embed.Embedder
		if ingestEmbed {
			if emb = newEmbedder(); emb == nil {
				return fmt.Errorf("--embed needs EMBEDDING_URL")
			}
		}

		job := pipeline.NewJob(filepath.Base(args[0]), data)
		pipeline.NewWorker(st, ex, emb, log, cfg).Process(cmd.Context(), job)

		snap := job.Snapshot()
		formatIngestSummary(cmd.OutOrStdout(), snap)
		if snap.Status == pipeline.StatusFailed {
			return fmt.Errorf("ingest failed")
		}
		return nil
	},
}

func init() {
	f := ingestCmd.Flags()
	f.IntVar(&cfg.TOCStartPage, "toc-start", cfg.TOCStartPage, "First table-of-contents page")
	f.IntVar(&cfg.TOCEndPage, "toc-end", cfg.TOCEndPage, "Last table-of-contents page")
	f.IntVar(&cfg.ContentStartPage, "content-start", cfg.ContentStartPage, "First content page to scan")
	f.IntVar(&cfg.ContentMaxPages, "content-pages", cfg.ContentMaxPages, "Content pages to scan after --content-start (0 = to the end)")
	f.IntVar(&cfg.SectionMinNumber, "section-min", cfg.SectionMinNumber, "Section numbers at or below this are treated as noise")
	f.StringVar(&cfg.RulesFile, "rules", cfg.RulesFile, "YAML file overriding extraction rules (env RULES_FILE)")
	f.BoolVar(&cfg.PDFFallbackPdftotext, "pdftotext", cfg.PDFFallbackPdftotext, "Fall back to pdftotext when the PDF reader fails")
	f.BoolVar(&ingestEmbed, "embed", false, "Embed new chunks after ingesting")

	rootCmd.AddCommand(ingestCmd)
}
