package main

import (
	"fmt"

	"github.com/dgallion1/stgrag/internal/pipeline"
	"github.com/spf13/cobra"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Attach embeddings to chunks that do not have one yet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		emb := newEmbedder()
		if emb == nil {
			return fmt.Errorf("EMBEDDING_URL is not set")
		}
		log := newLogger()
		st, err := openStore(log)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := pipeline.Backfill(cmd.Context(), st, emb, cfg.EmbeddingBatch, log)
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d chunks\n", successStyle.Render("Embedded"), n)
		return err
	},
}

func init() {
	embedCmd.Flags().IntVar(&cfg.EmbeddingBatch, "batch", cfg.EmbeddingBatch, "Chunks per embedding request (env EMBEDDING_BATCH)")
	rootCmd.AddCommand(embedCmd)
}
