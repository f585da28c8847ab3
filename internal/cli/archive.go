package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/tabpile/internal/tabs"
)

// ArchiveListOptions holds options for archive list.
type ArchiveListOptions struct {
	*RootOptions
	Limit int
}

// NewArchiveCommand creates the archive command group.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect the archive folder",
	}
	cmd.AddCommand(newArchiveListCommand(rootOpts))
	return cmd
}

func newArchiveListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived tabs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Limit <= 0 {
				return fmt.Errorf("limit must be positive, got %d", opts.Limit)
			}
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

			bookmarks := b.store.Bookmarks()
			found, err := bookmarks.Search(ctx, cfg.ArchiveFolder)
			if err != nil {
				return err
			}

			var entries []tabs.Bookmark
			for _, f := range found {
				if !f.Folder {
					continue
				}
				entries, err = bookmarks.List(ctx, f.ID, opts.Limit)
				if err != nil {
					return err
				}
				break
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				if entries == nil {
					entries = []tabs.Bookmark{}
				}
				return writeJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintf(out, "%q is empty\n", cfg.ArchiveFolder)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ARCHIVED\tTITLE\tURL")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Title, e.URL)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum entries to print")
	return cmd
}
