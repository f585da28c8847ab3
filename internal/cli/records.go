package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/tabpile/internal/record"
)

// NewRecordsCommand creates the records command group.
func NewRecordsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect lifecycle records",
	}
	cmd.AddCommand(newRecordsListCommand(rootOpts))
	return cmd
}

func newRecordsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every tracked resource with its idle time and override",
		Args:  cobra.NoArgs,
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

			clock := clockwork.NewRealClock()
			entries, err := record.NewAdapter(b.kv, clock, zerolog.Nop()).List(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "no records")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tIDLE\tDISABLED")
			now := clock.Now()
			for _, e := range entries {
				idle := now.Sub(time.UnixMilli(e.IdleSince)).Truncate(time.Second)
				fmt.Fprintf(w, "%s\t%s\t%t\n", e.Key, idle, e.Disabled)
			}
			return w.Flush()
		},
	}
}
