package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"agent-trader/internal/models"
)

// newDataCmd manages the cached market data the pipeline reads from.
func newDataCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Manage cached market data",
	}
	cmd.AddCommand(newDataImportCmd(app))
	cmd.AddCommand(newDataMetaCmd(app))
	cmd.AddCommand(newDataNewsCmd(app))
	cmd.AddCommand(newDataHistoryCmd(app))
	return cmd
}

func newDataImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import market snapshots from a JSON file",
		Long:  "The file must contain a JSON array of bars with symbol, OHLC, prev_close, volume, turnover, and timestamp.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading snapshot file: %w", err)
			}
			var snapshots []models.MarketSnapshot
			if err := json.Unmarshal(data, &snapshots); err != nil {
				return fmt.Errorf("parsing snapshot file: %w", err)
			}
			if len(snapshots) == 0 {
				return fmt.Errorf("no snapshots in %s", args[0])
			}

			if err := app.Store.SaveSnapshots(cmd.Context(), snapshots); err != nil {
				return err
			}
			output.Success("Imported %d snapshots", len(snapshots))
			return nil
		},
	}
}

func newDataMetaCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta <symbol>",
		Short: "Set or show symbol metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := args[0]

			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				meta, err := app.Store.GetMeta(cmd.Context(), symbol)
				if err != nil {
					return err
				}
				if output.IsJSON() {
					return output.JSON(meta)
				}
				output.Printf("%s  %s  %s  halted=%v\n", meta.Symbol, meta.Name, meta.Industry, meta.Halted)
				return nil
			}

			industry, _ := cmd.Flags().GetString("industry")
			halted, _ := cmd.Flags().GetBool("halted")
			meta := models.SymbolMeta{Symbol: symbol, Name: name, Industry: industry, Halted: halted}
			if err := app.Store.SaveMeta(cmd.Context(), meta); err != nil {
				return err
			}
			output.Success("Metadata saved for %s", symbol)
			return nil
		},
	}
	cmd.Flags().String("name", "", "display name (setting this writes metadata)")
	cmd.Flags().String("industry", "", "industry classification")
	cmd.Flags().Bool("halted", false, "mark the symbol as halted")
	return cmd
}

func newDataNewsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "news <symbol> <file.json>",
		Short: "Import news documents for a symbol from a JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("reading news file: %w", err)
			}
			var items []models.NewsItem
			if err := json.Unmarshal(data, &items); err != nil {
				return fmt.Errorf("parsing news file: %w", err)
			}

			if err := app.Store.SaveNews(cmd.Context(), args[0], items); err != nil {
				return err
			}
			output.Success("Imported %d documents for %s", len(items), args[0])
			return nil
		},
	}
}

func newDataHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <symbol>",
		Short: "Show cached history bars for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			bars, _ := cmd.Flags().GetInt("bars")

			history, err := app.Store.GetHistory(cmd.Context(), args[0], bars)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(history)
			}
			if len(history) == 0 {
				output.Dim("No cached bars for %s.", args[0])
				return nil
			}
			output.Bold("%-12s %10s %10s %10s %10s %12s", "Date", "Open", "High", "Low", "Close", "Volume")
			for _, bar := range history {
				output.Printf("%-12s %10.2f %10.2f %10.2f %10.2f %12d\n",
					bar.Timestamp.Format("2006-01-02"), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
			}
			return nil
		},
	}
	cmd.Flags().Int("bars", 20, "number of bars to show")
	return cmd
}
