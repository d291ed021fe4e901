package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"agent-trader/internal/models"
)

// newOrdersCmd lists persisted trade orders.
func newOrdersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List persisted trade orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			limit, _ := cmd.Flags().GetInt("limit")

			orders, err := app.Store.ListOrders(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(orders)
			}
			if len(orders) == 0 {
				output.Dim("No orders.")
				return nil
			}
			output.Bold("%-20s %-8s %-5s %10s %10s  %s", "Created", "Symbol", "Side", "Qty", "Price", "Key")
			for _, o := range orders {
				side := output.Green(string(o.Side))
				if o.Side == models.SideSell {
					side = output.Red(string(o.Side))
				}
				output.Printf("%-20s %-8s %-5s %10d %10.2f  %s\n",
					o.CreatedAt.Format("2006-01-02 15:04:05"), o.Symbol, side,
					o.Quantity, o.RefPrice, o.IdempotencyKey)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum orders to list")
	return cmd
}

// newCyclesCmd lists the cycle audit trail for a symbol.
func newCyclesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycles <symbol>",
		Short: "List recent decision cycles for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			limit, _ := cmd.Flags().GetInt("limit")

			cycles, err := app.Store.ListCycles(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(cycles)
			}
			if len(cycles) == 0 {
				output.Dim("No cycles recorded for %s.", args[0])
				return nil
			}
			for _, c := range cycles {
				composite := "-"
				if c.Score != nil {
					composite = fmt.Sprintf("%+.4f", c.Score.Value)
				}
				output.Printf("%-20s %-16s composite=%-8s reason=%s\n",
					c.StartedAt.Format("2006-01-02 15:04:05"), c.State, composite, c.Reason)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 10, "maximum cycles to list")
	return cmd
}
