package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justyntemme/shelf/internal/fs"
)

var searchDir string

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the library",
	Long: `Search item folders by tag, or files by directive query.

Every search is recorded in the history.

Examples:
  shelf search tags "red, large"
  shelf search advanced "ext:png size:>1MB"
  shelf search advanced --dir ~/library/posters "tag:vintage modified:2024-01-01..2024-06-30"`,
}

var searchTagsCmd = &cobra.Command{
	Use:   "tags <tags>",
	Short: "Find item folders carrying every given tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := lib.SearchTags(context.Background(), args[0])
		if err != nil {
			return err
		}
		printResults(entries)
		return nil
	},
}

var searchAdvancedCmd = &cobra.Command{
	Use:   "advanced <query>",
	Short: "Find files matching a directive query",
	Long: `Find files and folders below a directory matching a query.

Directives: name:, ext:, size:, modified:, tag:, case:. Bare words match names
and may use * wildcards.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := lib.SearchAdvanced(context.Background(), searchDir, args[0])
		if err != nil {
			return err
		}
		printResults(entries)
		return nil
	},
}

func printResults(entries []fs.Entry) {
	if len(entries) == 0 {
		fmt.Println("No results found")
		return
	}
	printEntries(entries)
	fmt.Printf("%d result(s)\n", len(entries))
}

func init() {
	searchAdvancedCmd.Flags().StringVarP(&searchDir, "dir", "d", "", "directory to search (default library base)")
	searchCmd.AddCommand(searchTagsCmd)
	searchCmd.AddCommand(searchAdvancedCmd)
	rootCmd.AddCommand(searchCmd)
}
