package commands

import (
	"fmt"

	"github.com/fly-io/flashcache-agent/pkg/db"
	"github.com/fly-io/flashcache-agent/pkg/errors"
	"github.com/spf13/cobra"
)

func (d *dispatcher) historyCmd() *cobra.Command {
	var limit int
	var all bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled start, stop and reload invocations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d.action = "history"

			cfg, err := d.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.JournalPath == "" {
				return errors.Args("journal is disabled (journal-path is empty)")
			}

			repo, err := db.NewRepository(cfg.JournalPath)
			if err != nil {
				return errors.Wrap(err, "journal open failed")
			}
			defer repo.Close()

			resource := cfg.Name
			if all {
				resource = ""
			}

			invocations, err := repo.List(cmd.Context(), resource, limit)
			if err != nil {
				return errors.Wrap(err, "list failed")
			}

			out := cmd.OutOrStdout()
			if len(invocations) == 0 {
				fmt.Fprintln(out, "No invocations found")
				return nil
			}

			fmt.Fprintf(out, "%-20s %-16s %-8s %-16s %-10s %s\n", "TIME", "RESOURCE", "ACTION", "STATUS", "DURATION", "ERROR")
			fmt.Fprintln(out, "------------------------------------------------------------------------------------------------")

			for _, inv := range invocations {
				errorMessage := inv.ErrorMessage
				if errorMessage == "" {
					errorMessage = "-"
				}
				fmt.Fprintf(out, "%-20s %-16s %-8s %-16s %-10s %s\n",
					inv.CreatedAt, inv.Resource, inv.Action, inv.Status,
					fmt.Sprintf("%dms", inv.DurationMS), errorMessage)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of invocations to show (0 for all)")
	cmd.Flags().BoolVar(&all, "all", false, "Show every resource, not just the configured one")
	return cmd
}
