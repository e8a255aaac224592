package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"patient-roster/internal/adapters/storage/migrate"
	"patient-roster/internal/router"
)

func NewMigrateCmd(ctx context.Context, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			onlyStatus, _ := cmd.Flags().GetBool("status")

			m, closeDB, err := router.OpenMigrator(ctx, e.cfg, e.log)
			if err != nil {
				return err
			}
			defer closeDB()

			if !onlyStatus {
				n, err := m.Up(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			}

			status, err := m.Status(ctx)
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), status)
		},
	}

	cmd.Flags().Bool("status", false, "only report which migrations are applied")
	return cmd
}

func printStatus(w io.Writer, status []migrate.Status) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED AT")
	for _, st := range status {
		applied := "pending"
		if st.AppliedAt != nil {
			applied = st.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", st.Version, st.Name, applied)
	}
	return tw.Flush()
}
