package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"Areopagus/internal/di"
	"Areopagus/internal/usecase"
	"Areopagus/pkg/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "areopagus",
		Short:         "Council consensus and risk governance engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	serve := serveCmd(&configPath)
	root.RunE = serve.RunE
	root.AddCommand(serve)
	root.AddCommand(replayCmd(&configPath))
	return root
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume candles and publish order intents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithEnv(*configPath)
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}

			app, cleanup, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization failed: %w", err)
			}
			defer cleanup()

			return app.Run(cmd.Context())
		},
	}
}

func replayCmd(configPath *string) *cobra.Command {
	var file string
	var showIntents bool
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Run a JSON-lines candle file through the engine with in-memory sinks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithEnv(*configPath)
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			deps, err := di.InitializeReplay(cfg)
			if err != nil {
				return fmt.Errorf("replay initialization failed: %w", err)
			}

			in := os.Stdin
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open replay file: %w", err)
				}
				defer f.Close()
				in = f
			}

			sum, err := usecase.Replay(cmd.Context(), deps.Engine, in, deps.Logger)
			if err != nil {
				return err
			}
			out := map[string]interface{}{
				"summary": sum,
				"status":  deps.Engine.Status(),
			}
			if showIntents {
				out["intents"] = deps.Intents.Intents()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "candle file, one JSON object per line (default stdin)")
	cmd.Flags().BoolVar(&showIntents, "intents", false, "include issued intents in the output")
	return cmd
}
