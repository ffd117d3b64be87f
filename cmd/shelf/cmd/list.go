package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/justyntemme/shelf/internal/fs"
)

var (
	listSort   string
	listFilter string
)

var listCmd = &cobra.Command{
	Use:   "list [dir]",
	Short: "List the children of a directory",
	Long: `List the direct children of a directory, hidden entries excluded.

Directories always pass the filter; files pass when their name contains
it, case-insensitively.

Examples:
  shelf list
  shelf list ~/library/posters --sort date --filter png`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := lib.Config().Library.Base
		if len(args) == 1 {
			dir = args[0]
		}

		ctx := context.Background()
		var (
			entries []fs.Entry
			err     error
		)
		if listSort == "" {
			entries, err = lib.Navigate(ctx, dir, listFilter)
		} else {
			entries, err = lib.List(ctx, dir, fs.ParseSortMode(listSort), listFilter)
		}
		if err != nil {
			return err
		}

		printEntries(entries)
		return nil
	},
}

// printEntries writes one row per entry: kind, size, age, name.
func printEntries(entries []fs.Entry) {
	if len(entries) == 0 {
		fmt.Println("No entries")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		kind, size := "file", humanize.Bytes(uint64(max(e.Size, 0)))
		if e.IsDir {
			kind, size = "dir", "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", kind, size, humanize.Time(e.ModTime), e.Path)
	}
	w.Flush()
}

func init() {
	listCmd.Flags().StringVarP(&listSort, "sort", "s", "", "sort mode: name, name-desc, date, date-asc, size, size-asc, type, type-files (default from config)")
	listCmd.Flags().StringVarP(&listFilter, "filter", "f", "", "case-insensitive substring files must contain")
	rootCmd.AddCommand(listCmd)
}
