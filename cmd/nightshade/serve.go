package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"nightshade/pkg/ai"
	_ "nightshade/pkg/ai/providers"
	"nightshade/pkg/server"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	var provider string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local /api/chat endpoint for development",
		Long: `Serve POST /api/chat backed by an LLM provider, so the client can be
used without the hosted backend. Keys are read from the config file, the
environment, or a .env file in the working directory.

Providers: ` + providerList(),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if provider != "" {
				cfg.Server.Provider = strings.ToLower(provider)
			}
			if err := cfg.ValidateServer(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger := initLogging(cfg, cmd.ErrOrStderr())
			p, err := ai.GetProviderFromConfig(cfg)
			if err != nil {
				logger.Error("server_provider_init_failed", "provider", cfg.Server.Provider, "error", err)
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Serving /api/chat on %s with provider %s\n", cfg.Server.Addr, cfg.Server.Provider)
			return server.ListenAndServe(cmd.Context(), cfg.Server.Addr, server.New(p, logger).Handler(), logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default :3000)")
	cmd.Flags().StringVar(&provider, "provider", "", "Provider: google, openai or echo")
	return cmd
}

func providerList() string {
	infos := ai.ListProviders()
	lines := make([]string, 0, len(infos))
	for _, info := range infos {
		lines = append(lines, fmt.Sprintf("\n  %-8s %s", info.Type, info.Description))
	}
	return strings.Join(lines, "")
}
