// Package cmd wires the command-line interface: an interactive streaming
// chat session and a local mock provider for offline work.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagProfile string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "chatstream",
	Short:         "Streaming chat client for OpenAI-compatible LLM endpoints",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		// Tokens live in the environment; a .env file is a convenience,
		// not a requirement.
		if err := godotenv.Load(); err == nil {
			slog.Debug("loaded .env file")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "chatstream.yaml", "path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "configuration profile to use (defaults to default_profile)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return fmt.Errorf("chatstream: %w", err)
	}
	return nil
}
