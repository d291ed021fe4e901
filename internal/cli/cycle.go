package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"agent-trader/internal/models"
)

// newCycleCmd runs one decision cycle for a symbol. Any terminal state -
// including inconclusive, hold, and risk rejection - exits zero; a non-zero
// exit means the cycle could not run to a terminal state.
func newCycleCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle <symbol>",
		Short: "Run one decision cycle for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := args[0]

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

			reason, _ := cmd.Flags().GetString("reason")
			result, runErr := pipeline.RunCycle(ctx, symbol, reason)
			if result == nil {
				return runErr
			}
			if output.IsJSON() {
				output.JSON(result)
			} else {
				printCycleResult(output, result)
			}
			if runErr != nil {
				return fmt.Errorf("cycle did not reach a decision: %w", runErr)
			}
			return nil
		},
	}

	cmd.Flags().String("reason", "manual", "trigger reason recorded on the cycle")
	addPortfolioFlags(cmd)
	return cmd
}

func printCycleResult(output *Output, r *models.CycleResult) {
	output.Bold("Cycle %s  %s", r.Symbol, r.EpochID)
	output.Printf("  State:    %s\n", r.State)
	output.Printf("  Elapsed:  %s\n", r.Elapsed.Round(time.Millisecond))

	if r.Score != nil {
		output.Printf("  Composite: %.4f -> %s\n", r.Score.Value, r.Score.Action)
		for team, stance := range r.Score.TeamStances {
			output.Dim("    %-12s %+.3f", team, stance)
		}
	}

	ok, timeout, failed := 0, 0, 0
	for _, op := range r.Opinions {
		switch op.Outcome {
		case models.OutcomeOk:
			ok++
		case models.OutcomeTimeout:
			timeout++
		default:
			failed++
		}
	}
	if len(r.Opinions) > 0 {
		output.Printf("  Opinions: %d ok, %d timeout, %d error\n", ok, timeout, failed)
	}

	if r.Risk != nil {
		output.Printf("  Risk:     %s", r.Risk.Verdict)
		if len(r.Risk.Checks) > 0 {
			output.Printf("  (%v)", r.Risk.Checks)
		}
		output.Println()
	}

	if r.Order != nil {
		side := output.Green(string(r.Order.Side))
		if r.Order.Side == models.SideSell {
			side = output.Red(string(r.Order.Side))
		}
		output.Printf("  Order:    %s %d @ %.2f  key=%s\n",
			side, r.Order.Quantity, r.Order.RefPrice, r.Order.IdempotencyKey)
	}

	if r.Err != "" {
		output.Error("  Error:    %s", r.Err)
	}
}
