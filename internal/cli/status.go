package cli

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/relayline/relayline/internal/config"
	"github.com/relayline/relayline/internal/domain"
	"github.com/relayline/relayline/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show account, queue and retry status",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			accounts, err := store.NewAccountStore(db).List()
			if err != nil {
				return err
			}
			depth, err := store.NewQueueStore(db).Depth()
			if err != nil {
				return err
			}
			retries := store.NewRetryStore(db)
			retrying, err := retries.CountByState(domain.TaskRetrying)
			if err != nil {
				return err
			}
			abandoned, err := retries.CountByState(domain.TaskAbandoned)
			if err != nil {
				return err
			}
			failures, err := store.NewMediaFailureStore(db).List()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT\tSTATE\tMESSAGES\tERRORS\tQUALITY")
			for _, a := range accounts {
				name := a.Name
				if name == "" {
					name = a.ID
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.2f\n",
					name, a.State, a.Health.MessageCount, a.Health.ErrorCount, a.Health.Quality)
			}
			w.Flush()

			fmt.Fprintf(cmd.OutOrStdout(), "\nqueue depth: %d\n", depth)
			fmt.Fprintf(cmd.OutOrStdout(), "retries pending: %d, abandoned: %d\n", retrying, abandoned)
			fmt.Fprintf(cmd.OutOrStdout(), "media failures: %d\n", len(failures))
			return nil
		},
	}
}

// openStore opens the database the relay uses, resolving the path the same
// way `relay run` does.
func openStore() (*store.DB, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return nil, err
	}
	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = filepath.Join(paths.Data, "relayline.db")
	}
	return store.Open(dbPath, log)
}
