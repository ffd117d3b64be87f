package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/justyntemme/shelf/internal/app"
	"github.com/justyntemme/shelf/internal/config"
	"github.com/justyntemme/shelf/internal/debug"
)

var (
	configPath string
	baseDir    string
	debugLogs  bool

	manager   *config.Manager
	lib       *app.Library
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "shelf",
	Short: "Browse, tag, and search an item library",
	Long: `shelf manages a library of item folders. Each item folder may carry a
.meta.json sidecar with tags; shelf lists folders, edits tags, searches
by tag or by directive query, and renders cached thumbnails.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Annotations["skipLibrary"] == "true" {
			return nil
		}
		return openLibrary()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLibrary()
	},
}

// Execute runs the root command
func Execute() {
	err := rootCmd.Execute()
	// PostRun does not run after a failed RunE
	if cerr := closeLibrary(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default "+config.ConfigPath()+")")
	rootCmd.PersistentFlags().StringVarP(&baseDir, "base", "b", "", "library base directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debugLogs, "debug", false, "enable all debug log categories")
}

func loadConfig() (config.Config, error) {
	manager = config.NewManager()
	if err := manager.Load(configPath); err != nil {
		return config.Config{}, err
	}
	if err := manager.ParseError(); err != nil {
		log.Printf("Warning: %v, using defaults", err)
	}

	cfg := manager.Get()
	if baseDir != "" {
		cfg.Library.Base = baseDir
	}
	if cfg.Library.Base == "" {
		cfg.Library.Base = "."
	}
	return cfg, nil
}

func openLibrary() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if debugLogs {
		debug.EnableAll()
	}
	logCloser, err = app.SetupLogging(cfg.Log)
	if err != nil {
		return err
	}

	lib, err = app.Open(cfg)
	return err
}

func closeLibrary() error {
	var err error
	if lib != nil {
		err = lib.Close()
		lib = nil
	}
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
	return err
}
