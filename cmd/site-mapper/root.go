package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for site-mapper
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site-mapper",
		Short: "Map the link graph of a website",
		Long: `site-mapper crawls a website from a seed URL, stays on the seed's host,
and builds a directed graph of pages and the links between them.

The crawl is bounded by a maximum hop depth and a maximum number of links
followed per page. The finished graph is exported as YAML metadata, a TSV
edge list, an indented text tree and/or a SQLite database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to YAML config file (optional)")
	cmd.PersistentFlags().String("loglevel", "", "Log level (trace, debug, info, warn, error)")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits 1 on error
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
