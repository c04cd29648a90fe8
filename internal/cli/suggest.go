package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/relayline/relayline/internal/config"
	"github.com/relayline/relayline/internal/mapping"
	"github.com/relayline/relayline/internal/store"
)

func newSuggestCmd() *cobra.Command {
	var (
		sourceName string
		floor      float64
		extra      []string
	)

	cmd := &cobra.Command{
		Use:   "suggest <source-channel>",
		Short: "Suggest destination channels for an unmapped source channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if floor < 0 {
				floor = cfg.Mapping.SuggestFloor
			}

			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			st := store.NewMappingStore(db)
			engine := mapping.NewEngine(st, log)
			if err := engine.Refresh(); err != nil {
				return err
			}

			candidates, err := knownCandidates(st)
			if err != nil {
				return err
			}
			for _, spec := range extra {
				key, name, ok := strings.Cut(spec, "=")
				if !ok {
					return fmt.Errorf("invalid candidate %q, expected destKey=name", spec)
				}
				candidates = append(candidates, mapping.Candidate{DestKey: key, Name: name})
			}
			if len(candidates) == 0 {
				return fmt.Errorf("no candidate destinations known; pass --candidate destKey=name")
			}

			name := sourceName
			if name == "" {
				name = args[0]
			}
			suggestions, err := engine.Suggest(args[0], name, candidates, floor)
			if err != nil {
				return err
			}
			if len(suggestions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no suggestions above the confidence floor")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CANDIDATE\tCONFIDENCE\tREASON")
			for _, s := range suggestions {
				fmt.Fprintf(w, "%s\t%.2f\t%s\n", s.Candidate, s.Confidence, s.Reason)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&sourceName, "name", "", "display name of the source channel (defaults to its ID)")
	cmd.Flags().Float64Var(&floor, "floor", -1, "minimum confidence to surface (defaults to config)")
	cmd.Flags().StringArrayVar(&extra, "candidate", nil, "extra candidate as destKey=name (repeatable)")
	return cmd
}

// knownCandidates derives the candidate pool from every mapping already on
// record, so suggestions favor destinations the operator has used before.
func knownCandidates(st *store.MappingStore) ([]mapping.Candidate, error) {
	all, err := st.ListAll()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(all))
	var out []mapping.Candidate
	for _, m := range all {
		key := m.DestKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, mapping.Candidate{DestKey: key, Name: m.DestChannel})
	}
	return out, nil
}
