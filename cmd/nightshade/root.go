package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"nightshade/pkg/chat"
	"nightshade/pkg/config"
	"nightshade/pkg/logging"
	"nightshade/pkg/pipe"
	"nightshade/pkg/stream"
	"nightshade/pkg/ui"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
	endpoint   string
	theme      string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "nightshade",
		Short: "Chat with Nightshade AI from the terminal",
		Long: `nightshade is a terminal chat client that streams replies from a
Nightshade AI /api/chat endpoint.

Examples:
  nightshade                                    # interactive chat
  nightshade --theme light
  echo "explain goroutines" | nightshade        # one reply to stdout
  nightshade serve --provider echo              # local endpoint for development`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.nightshade/config.json)")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "Chat endpoint URL (overrides config and NIGHTSHADE_ENDPOINT)")
	cmd.Flags().StringVar(&opts.theme, "theme", "", "Color theme: dark or light")

	cmd.AddCommand(newServeCmd(opts), newVersionCmd())
	return cmd
}

// loadConfig reads the config file, then applies environment and flags.
func loadConfig(opts *rootOptions) (config.Config, error) {
	path := strings.TrimSpace(opts.configPath)
	if path == "" {
		path = config.GetConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	cfg = config.ApplyEnv(cfg)

	if opts.endpoint != "" {
		cfg.Endpoint = opts.endpoint
	}
	if opts.theme != "" {
		cfg.Theme = strings.ToLower(opts.theme)
	}
	return cfg, nil
}

// initLogging opens the log file. A failure is reported but not fatal.
func initLogging(cfg config.Config, stderr io.Writer) *slog.Logger {
	logger, err := logging.Init(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "warning: logging disabled: %v\n", err)
	}
	return logger
}

func runChat(ctx context.Context, opts *rootOptions, in io.Reader, out, stderr io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := initLogging(cfg, stderr)
	logger.Info("nightshade_start",
		"endpoint", cfg.Endpoint,
		"theme", cfg.Theme,
		"timeout_seconds", cfg.RequestTimeoutSeconds,
	)

	client := stream.NewClient(cfg.Endpoint,
		stream.WithLogger(logger),
		stream.WithTimeout(time.Duration(cfg.RequestTimeoutSeconds)*time.Second),
	)
	session := chat.NewSession(client, cfg.Greeting, logger)

	if !isTerminal(in) {
		err := pipe.Run(ctx, session, in, out)
		if errors.Is(err, pipe.ErrEmptyInput) {
			return fmt.Errorf("%w (pipe a message on stdin or run in a terminal)", err)
		}
		return err
	}

	model := ui.NewModel(ctx, session, ui.Options{
		Theme:    cfg.Theme,
		Endpoint: cfg.Endpoint,
		Logger:   logger,
	})
	p := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		logger.Error("ui_run_failed", "error", err)
		return fmt.Errorf("run chat screen: %w", err)
	}
	return nil
}

// isTerminal reports whether r is a TTY. Anything else (pipes, files,
// buffers in tests) selects pipe mode.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
