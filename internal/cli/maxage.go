package cli

import (
	"fmt"
	"strconv"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/tabpile/internal/record"
)

// maxAgeResult is the json output of the max-age command.
type maxAgeResult struct {
	MaxAgeMinutes int  `json:"max_age_minutes"`
	Set           bool `json:"set"`
}

// NewMaxAgeCommand creates the max-age command.
func NewMaxAgeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "max-age [minutes]",
		Short: "Show or set the idle age after which tabs are archived",
		Long: `Without an argument, prints the stored max age in minutes (or the
default of 1440 when none is stored). With an argument, stores it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			b, err := openBackends(ctx, cfg, zerolog.Nop())
			if err != nil {
				return err
			}
			defer b.close()

			records := record.NewAdapter(b.kv, clockwork.NewRealClock(), zerolog.Nop())

			if len(args) == 1 {
				minutes, err := strconv.Atoi(args[0])
				if err != nil || minutes <= 0 {
					return fmt.Errorf("max age must be a positive integer, got %q", args[0])
				}
				if err := records.SetThreshold(ctx, minutes); err != nil {
					return err
				}
			}

			minutes, set, err := records.Threshold(ctx)
			if err != nil {
				return err
			}
			if !set {
				minutes = record.DefaultMaxAgeMinutes
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, maxAgeResult{MaxAgeMinutes: minutes, Set: set})
			}
			if set {
				fmt.Fprintf(out, "max age: %d minutes\n", minutes)
			} else {
				fmt.Fprintf(out, "max age: %d minutes (default)\n", minutes)
			}
			return nil
		},
	}
}
