package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/relayline/relayline/internal/store"
)

func newExportCmd() *cobra.Command {
	var (
		format string
		since  time.Duration
		limit  int
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the delivery log",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			logs := store.NewLogStore(db)
			cutoff := time.Now().Add(-since)
			switch format {
			case "csv":
				return logs.ExportCSV(w, cutoff, limit)
			case "json":
				return logs.ExportJSON(w, cutoff, limit)
			default:
				return fmt.Errorf("unknown format %q, expected csv or json", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "output format (csv or json)")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "how far back to export")
	cmd.Flags().IntVar(&limit, "limit", 10000, "maximum number of entries")
	cmd.Flags().StringVar(&out, "out", "", "write to file instead of stdout")
	return cmd
}
