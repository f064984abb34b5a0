package main

import (
	"fmt"
	"strconv"

	"github.com/dgallion1/stgrag/internal/locator"
	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "locate <page>",
	Short: "Show the chapter and section covering a page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := strconv.Atoi(args[0])
		if err != nil || page < 1 {
			return fmt.Errorf("page must be a positive integer, got %q", args[0])
		}
		st, err := openStore(newLogger())
		if err != nil {
			return err
		}
		defer st.Close()

		outline, err := st.LoadOutline(cmd.Context())
		if err != nil {
			return err
		}
		formatLocation(cmd.OutOrStdout(), locator.New(outline).Resolve(page), page)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)
}
