package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the catalog by title",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cm.Get()

		src, err := newSourceClient(cfg)
		if err != nil {
			return err
		}

		hits, err := src.Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(hits) == 0 {
			fmt.Fprintln(out, "no results")
			return nil
		}
		for _, h := range hits {
			fmt.Fprintf(out, "%-12s %s by %s (%d chapters)\n", h.ID, h.Title, h.Author, h.ChapterCount)
		}
		return nil
	},
}
