package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "revisectl",
		Short:         "ReviseRx admin tool",
		Long:          "revisectl validates study catalogs and exports learner progress.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newCatalogCmd())
	root.AddCommand(newProgressCmd())
	return root
}
