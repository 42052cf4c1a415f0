package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/reviserx/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect study catalogs",
	}
	cmd.PersistentFlags().String("dir", "", "Catalog directory (default: built-in seed)")

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check a catalog against the schema and reference rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalogFlag(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, w := range cat.Warnings() {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			fmt.Fprintf(out, "ok: %d topics, %d questions, %d glossary terms\n",
				len(cat.Topics()), len(cat.Questions()), len(cat.Glossary()))
			return nil
		},
	})

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-topic question counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalogFlag(cmd)
			if err != nil {
				return err
			}
			minPerTopic, _ := cmd.Flags().GetInt("min")
			printStats(cmd, cat, minPerTopic)
			return nil
		},
	}
	statsCmd.Flags().Int("min", catalog.MinQuestionsPerTopic, "Top-up threshold per topic")
	cmd.AddCommand(statsCmd)

	return cmd
}

func loadCatalogFlag(cmd *cobra.Command) (*catalog.Catalog, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		return catalog.Seed()
	}
	cat, err := catalog.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

func printStats(cmd *cobra.Command, cat *catalog.Catalog, minPerTopic int) {
	out := cmd.OutOrStdout()
	generated := map[string]int{}
	for _, q := range cat.TopUp(minPerTopic) {
		generated[q.TopicID]++
	}

	fmt.Fprintf(out, "%-28s  %-24s  %-6s  %-6s  %-6s  %s\n",
		"Topic", "Category", "Basic", "Inter", "Adv", "Generated")
	fmt.Fprintln(out, strings.Repeat("─", 90))

	total := 0
	for _, t := range cat.Topics() {
		tiers := map[catalog.Difficulty]int{}
		for _, q := range cat.Questions() {
			if q.TopicID == t.ID {
				tiers[q.DifficultyLevel]++
			}
		}
		total += generated[t.ID]
		fmt.Fprintf(out, "%-28s  %-24s  %-6d  %-6d  %-6d  %d\n",
			t.ID, t.Category, tiers[catalog.Basic], tiers[catalog.Intermediate], tiers[catalog.Advanced], generated[t.ID])
	}
	fmt.Fprintln(out, strings.Repeat("─", 90))
	fmt.Fprintf(out, "%d categories, %d topics, %d authored questions, %d generated at startup, %d glossary terms\n",
		len(cat.Categories()), len(cat.Topics()), len(cat.Questions()), total, len(cat.Glossary()))
}
