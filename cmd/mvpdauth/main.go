package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mvpdauth/internal/config"
	"mvpdauth/internal/credentials"
	"mvpdauth/internal/models"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		if models.IsExpected(err) || errors.Is(err, credentials.ErrInterrupted) {
			fmt.Fprintln(os.Stderr, err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// globals holds settings resolved before any subcommand runs.
type globals struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "mvpdauth",
		Short:         "Exchange TV provider logins for media tokens",
		Long:          `mvpdauth signs in to a TV provider through the authorization broker and prints the short media token a video player needs.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return g.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", os.Getenv("MVPD_CONFIG"), "path to a YAML config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newAuthorizeCmd(g),
		newProvidersCmd(),
		newResourceCmd(),
		newCacheCmd(g),
		newServeCmd(g),
	)
	return root
}

func (g *globals) load() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	g.cfg = cfg
	return nil
}
