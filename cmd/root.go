package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zerochrono/copilot-backend/internal/app"
	"github.com/zerochrono/copilot-backend/internal/config"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:           "copilot",
	Short:         "Clinical copilot backend",
	Long:          "Clinical copilot backend: CSV-grounded generation, knowledge graph construction and graph retrieval.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(
		serveCmd,
		buildGraphCmd,
		syncGraphCmd,
		askCmd,
	)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVarP(&envFile, "env", "e", "", "Environment file")
}

// boot loads configuration and wires the application.
func boot(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadWith(config.LoadOptions{ConfigPath: configPath, EnvFile: envFile})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(ctx, cfg)
}
