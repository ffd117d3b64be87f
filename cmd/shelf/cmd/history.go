package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear the search history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent searches, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := lib.Store().History()
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Println("No searches recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, h := range history {
			fmt.Fprintf(w, "%s\t[%s]\t%q\t%d result(s)\n", humanize.Time(h.Timestamp), h.Type, h.Criteria, h.Count)
		}
		return w.Flush()
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every history entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := lib.Store().ClearHistory(); err != nil {
			return err
		}
		fmt.Println("History cleared")
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}
