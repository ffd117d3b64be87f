package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/justyntemme/shelf/internal/fs"
	"github.com/justyntemme/shelf/internal/store"
)

var (
	savedAdvanced  bool
	savedDir       string
	savedOverwrite bool
)

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "Manage named searches",
	Long: `Run a search and keep its criteria and results under a name.

Examples:
  shelf saved save big-red "red, large"
  shelf saved save posters --advanced "ext:png,jpg"
  shelf saved show big-red
  shelf saved delete big-red`,
}

var savedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		saved, err := lib.Store().SavedSearches()
		if err != nil {
			return err
		}
		if len(saved) == 0 {
			fmt.Println("No saved searches")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, s := range saved {
			fmt.Fprintf(w, "%s\t[%s]\t%q\t%d result(s)\t%s\n", s.Name, s.Type, s.Criteria, len(s.Results), humanize.Time(s.Timestamp))
		}
		return w.Flush()
	},
}

var savedSaveCmd = &cobra.Command{
	Use:   "save <name> <query>",
	Short: "Run a search and save it under a name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, query := args[0], args[1]

		ctx := context.Background()
		var (
			entries []fs.Entry
			err     error
		)
		searchType := store.SearchTypeTags
		if savedAdvanced {
			searchType = store.SearchTypeAdvanced
			entries, err = lib.SearchAdvanced(ctx, savedDir, query)
		} else {
			entries, err = lib.SearchTags(ctx, query)
		}
		if err != nil {
			return err
		}

		results := make([]string, len(entries))
		for i, e := range entries {
			results[i] = e.Path
		}

		err = lib.Store().SaveSearch(store.SavedSearch{
			Name:      name,
			Timestamp: time.Now(),
			Type:      searchType,
			Criteria:  query,
			Results:   results,
		}, savedOverwrite)
		if errors.Is(err, store.ErrExists) {
			return fmt.Errorf("%q already exists, use --overwrite to replace it", name)
		}
		if err != nil {
			return err
		}

		fmt.Printf("Saved %q with %d result(s)\n", name, len(results))
		return nil
	},
}

var savedShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print the criteria and results of a saved search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := lib.Store().SavedSearch(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s [%s] %q, saved %s\n", s.Name, s.Type, s.Criteria, humanize.Time(s.Timestamp))
		for _, p := range s.Results {
			fmt.Println(p)
		}
		return nil
	},
}

var savedDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deleted, err := lib.Store().DeleteSavedSearch(args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("%q: %w", args[0], store.ErrNotFound)
		}
		fmt.Printf("Deleted %q\n", args[0])
		return nil
	},
}

func init() {
	savedSaveCmd.Flags().BoolVarP(&savedAdvanced, "advanced", "a", false, "treat the query as a directive query instead of tags")
	savedSaveCmd.Flags().StringVarP(&savedDir, "dir", "d", "", "directory for an advanced search (default library base)")
	savedSaveCmd.Flags().BoolVar(&savedOverwrite, "overwrite", false, "replace an existing search with the same name")

	savedCmd.AddCommand(savedListCmd)
	savedCmd.AddCommand(savedSaveCmd)
	savedCmd.AddCommand(savedShowCmd)
	savedCmd.AddCommand(savedDeleteCmd)
	rootCmd.AddCommand(savedCmd)
}
