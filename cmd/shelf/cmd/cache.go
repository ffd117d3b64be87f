package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the thumbnail cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print thumbnail cache usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := lib.Cache().Stats()
		fmt.Printf("Directory: %s\n", lib.Cache().Dir())
		fmt.Printf("Memory:    %d / %d entries\n", s.MemoryEntries, s.MaxEntries)
		fmt.Printf("Disk:      %d files, %s / %s\n", s.DiskFiles,
			humanize.IBytes(uint64(s.DiskBytes)), humanize.IBytes(uint64(s.MaxDiskBytes)))
		return nil
	},
}

var cacheMaintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Trim the disk tier to its size budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := lib.Cache().Maintain()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d file(s)\n", removed)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheMaintainCmd)
	rootCmd.AddCommand(cacheCmd)
}
