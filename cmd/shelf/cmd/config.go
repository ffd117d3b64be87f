package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justyntemme/shelf/internal/config"
	"github.com/justyntemme/shelf/internal/fs"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the configuration file",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		fmt.Println(manager.Path())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration, backing up any existing one",
	RunE: func(cmd *cobra.Command, args []string) error {
		backup, err := config.GenerateConfig(configPath)
		if err != nil {
			return err
		}
		if backup != "" {
			fmt.Printf("Backed up existing config to %s\n", backup)
		}
		fmt.Println("Wrote default config")
		return nil
	},
}

var configSetBaseCmd = &cobra.Command{
	Use:   "set-base <dir>",
	Short: "Set the library base directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		return manager.SetBase(args[0])
	},
}

var configSetSortCmd = &cobra.Command{
	Use:   "set-sort <mode>",
	Short: "Set the default listing order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		// Round-trip through ParseSortMode so only canonical names are stored
		return manager.SetDefaultSort(fs.ParseSortMode(args[0]).String())
	},
}

func init() {
	for _, c := range []*cobra.Command{configPathCmd, configInitCmd, configSetBaseCmd, configSetSortCmd} {
		c.Annotations = map[string]string{"skipLibrary": "true"}
		configCmd.AddCommand(c)
	}
	rootCmd.AddCommand(configCmd)
}
