package main

import (
	"strings"

	"github.com/spf13/cobra"

	"promptvault/internal/search"
)

var searchFlags struct {
	promptDir string
	tags      []string
	author    string
	limit     int
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the prompt library by text, tags, and author",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchFlags.promptDir, "prompts", "prompts", "directory of prompt YAML files")
	searchCmd.Flags().StringArrayVar(&searchFlags.tags, "tag", nil, "tag filter (repeatable, substring match)")
	searchCmd.Flags().StringVar(&searchFlags.author, "author", "", "exact author filter")
	searchCmd.Flags().IntVar(&searchFlags.limit, "limit", 0, "maximum results (default 10)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	library, err := loadLibrary(searchFlags.promptDir)
	if err != nil {
		return err
	}
	records, err := library.List(cmd.Context())
	if err != nil {
		return err
	}

	matches := search.Run(records, search.Query{
		Text:   strings.Join(args, " "),
		Tags:   searchFlags.tags,
		Author: searchFlags.author,
		Limit:  searchFlags.limit,
	})
	return printJSON(matches)
}
