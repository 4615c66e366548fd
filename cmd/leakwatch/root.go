package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "leakwatch",
		Short: "Watchlist matching and webhook alerting for ingested credential logs.",
		Long: `leakwatch evaluates newly ingested devices against operator watchlists
and notifies linked webhooks with signed, retried deliveries.

Configuration is read from LEAKWATCH_* environment variables and an optional
YAML file passed with --config.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogging(opts.logLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (default $LEAKWATCH_CONFIG)")
	cmd.PersistentFlags().StringVarP(&opts.logLevel, "log-level", "l", "info", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newServeCmd(opts),
		newTriggerCmd(opts),
		newReplayCmd(opts),
	)

	return cmd
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("invalid --log-level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}
