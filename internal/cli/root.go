// Package cli implements the tabpile command line: the daemon plus a few
// offline commands against the same storage.
package cli

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/tabpile/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tabpile CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tabpile",
		Short: "Archive idle tabs to a bookmark pile",
		Long: `tabpile tracks how long each open tab has been idle and, past a
configurable max age, saves it to the "Pile of Shame" bookmark folder and
closes it. Configuration comes from the environment (see ENVIRONMENT,
DB_PATH, KV_BACKEND, MGMT_* and BROWSER_*).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewMaxAgeCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))
	cmd.AddCommand(NewRecordsCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// loadConfig reads the environment and the optional policy file.
func loadConfig() (*config.Config, *config.Policy, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	policy := &config.Policy{}
	if cfg.PolicyFile != "" {
		policy, err = config.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return nil, nil, err
		}
		policy.Apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, policy, nil
}

// newLogger builds the process logger: JSON to stdout, or a console
// writer in development.
func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(out).With().Timestamp().Caller().Logger()

	if cfg.Environment == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}
	return logger
}
