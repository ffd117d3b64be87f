package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/justyntemme/shelf/internal/metrics"
)

var metricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "List a directory and list it again whenever it changes",
	Long: `List a directory, then watch it and print a fresh listing after each
debounced change until interrupted. Without a directory, the one shown
last (by any command that navigates) is used, or the library base.

With --metrics-addr, Prometheus metrics for cache, generation, search
and refresh activity are served at /metrics.

Examples:
  shelf watch ~/library
  shelf watch --metrics-addr :9090`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := lib.LastDirectory()
		if len(args) == 1 {
			dir = args[0]
		}
		if !lib.Config().Watcher.Enabled {
			return errors.New("watcher is disabled in config")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if metricsAddr != "" {
			srv := &http.Server{Addr: metricsAddr, Handler: metricsMux()}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Printf("Metrics server error: %v", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			fmt.Printf("Serving metrics on %s/metrics\n", metricsAddr)
		}

		entries, err := lib.Navigate(ctx, dir, "")
		if err != nil {
			return err
		}
		printEntries(entries)

		for {
			select {
			case <-ctx.Done():
				return nil
			case changed := <-lib.Refreshes():
				if changed != lib.Current() {
					continue
				}
				entries, err := lib.Navigate(ctx, changed, "")
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					log.Printf("Warning: refresh %s: %v", changed, err)
					continue
				}
				fmt.Printf("\n%s changed at %s\n", changed, time.Now().Format(time.TimeOnly))
				printEntries(entries)
			}
		}
	},
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func init() {
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(watchCmd)
}
