package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"agent-trader/internal/analysts"
	"agent-trader/internal/config"
	"agent-trader/internal/decision"
	"agent-trader/internal/executor"
	"agent-trader/internal/logging"
	"agent-trader/internal/marketdata"
	"agent-trader/internal/models"
	"agent-trader/internal/quant"
	"agent-trader/internal/risk"
	"agent-trader/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-01-01"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Store     store.DataStore
	LLMClient analysts.LLMClient
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	dbPath := filepath.Join(config.DefaultConfigDir(), "pipeline.db")
	dataStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, falling back to memory")
		app.Store = store.NewMemoryStore()
	} else {
		app.Store = dataStore
		logger.Debug().Str("path", dbPath).Msg("SQLite store initialized")
	}

	if cfg.Credentials.OpenAI.APIKey != "" {
		app.LLMClient = analysts.NewOpenAIClient(cfg.Credentials.OpenAI.APIKey, cfg.Credentials.OpenAI.Model)
		logger.Debug().Str("model", cfg.Credentials.OpenAI.Model).Msg("OpenAI LLM client initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Agent Trader - multi-analyst trading decision pipeline",
		Long: `Agent Trader runs per-symbol decision cycles: a deterministic factor
engine and a pool of LLM-backed analyst units produce one bounded composite
score, which passes a risk gate before an idempotent trade order is emitted.

Use 'pipeline help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/agent-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("offline", false, "use the deterministic mock analyst client")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newCycleCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newOrdersCmd(app))
	rootCmd.AddCommand(newCyclesCmd(app))
	rootCmd.AddCommand(newDataCmd(app))

	return rootCmd
}

// buildPipeline wires a pipeline for a single invocation.
func (app *App) buildPipeline(cmd *cobra.Command, portfolio decision.PortfolioSource) (*decision.Pipeline, error) {
	client := app.LLMClient
	if offline, _ := cmd.Flags().GetBool("offline"); offline {
		client = analysts.NewMockClient()
	}
	if client == nil {
		return nil, fmt.Errorf("no LLM client: set openai.api_key in credentials.toml or pass --offline")
	}

	units := analysts.FromRoster(app.Config.Analysts, client)
	if len(units) == 0 {
		return nil, fmt.Errorf("analyst roster is empty: edit analysts.toml")
	}

	pool := analysts.NewPool(units,
		app.Config.Pipeline.PerCallTimeout,
		app.Config.Pipeline.PoolDeadline,
		app.Logger)

	return decision.NewPipeline(
		app.Config.Pipeline,
		quant.NewEngine(),
		pool,
		marketdata.NewStoreProvider(app.Store),
		risk.NewGate(app.Config.Risk),
		executor.New(app.Store, app.Config.Executor, app.Logger),
		portfolio,
		app.Store,
		app.Logger,
	), nil
}

// loadPortfolio builds the portfolio snapshot source from flags. A JSON file
// takes precedence; otherwise --portfolio-value seeds an all-cash account.
func loadPortfolio(cmd *cobra.Command) (decision.PortfolioSource, error) {
	if path, _ := cmd.Flags().GetString("portfolio"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading portfolio file: %w", err)
		}
		var state models.PortfolioState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("parsing portfolio file: %w", err)
		}
		return &decision.StaticPortfolio{State: state}, nil
	}

	value, _ := cmd.Flags().GetFloat64("portfolio-value")
	if value <= 0 {
		return nil, fmt.Errorf("portfolio required: pass --portfolio <file.json> or --portfolio-value")
	}
	return &decision.StaticPortfolio{State: models.PortfolioState{
		TotalValue:    value,
		AvailableCash: value,
	}}, nil
}

func addPortfolioFlags(cmd *cobra.Command) {
	cmd.Flags().String("portfolio", "", "path to a portfolio snapshot JSON file")
	cmd.Flags().Float64("portfolio-value", 0, "all-cash portfolio value when no snapshot file is given")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Agent Trader v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create configuration templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if err := config.WriteTemplates(dir); err != nil {
				return err
			}
			output.Success("Configuration templates written to %s", dir)
			output.Println("Edit config.toml, credentials.toml, and analysts.toml before running cycles.")
			return nil
		},
	}
}
