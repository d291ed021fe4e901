package main

import (
	"fmt"
	"os"

	"agent-trader/internal/cli"
	"agent-trader/internal/config"
	"agent-trader/internal/logging"
)

func main() {
	configDir := configDirFromArgs(os.Args[1:])

	cfg, err := config.Load(configDir)
	if err != nil {
		// init, version, and help must work before any config exists.
		if !configlessCommand(os.Args[1:]) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = &config.Config{}
	}

	logger := logging.NewLogger()

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configDirFromArgs pre-parses the --config flag so configuration can load
// before cobra takes over.
func configDirFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if len(arg) > len("--config=") && arg[:len("--config=")] == "--config=" {
			return arg[len("--config="):]
		}
	}
	return ""
}

func configlessCommand(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "init", "version", "help", "--help", "-h":
			return true
		}
	}
	return len(args) == 0
}
