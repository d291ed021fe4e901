package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// newWatchCmd runs the periodic trigger loop over the configured watchlist.
func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run decision cycles on an interval for the configured watchlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			symbols := app.Config.Watch.Symbols
			if flagSymbols, _ := cmd.Flags().GetStringSlice("symbols"); len(flagSymbols) > 0 {
				symbols = flagSymbols
			}
			if len(symbols) == 0 {
				return fmt.Errorf("no symbols to watch: set watch.symbols or pass --symbols")
			}
			interval := app.Config.Watch.Interval
			if flagInterval, _ := cmd.Flags().GetDuration("interval"); flagInterval > 0 {
				interval = flagInterval
			}
			if interval <= 0 {
				return fmt.Errorf("watch interval must be positive: set watch.interval or pass --interval")
			}

			portfolio, err := loadPortfolio(cmd)
			if err != nil {
				return err
			}
			pipeline, err := app.buildPipeline(cmd, portfolio)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			output.Info("Watching %d symbols every %s (Ctrl-C to stop)", len(symbols), interval)
			if err := pipeline.Watch(ctx, symbols, interval); err != nil && ctx.Err() == nil {
				return err
			}
			if ctx.Err() == context.Canceled {
				output.Println("Watch stopped.")
			}
			return nil
		},
	}

	cmd.Flags().StringSlice("symbols", nil, "symbols to watch (overrides watch.symbols)")
	cmd.Flags().Duration("interval", 0, "cycle interval (overrides watch.interval)")
	addPortfolioFlags(cmd)
	return cmd
}
