package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"patient-roster/internal/export"
)

func NewExportCmd(ctx context.Context, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "write the roster as CSV or XLSX",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatFlag, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("out")

			format, err := export.ParseFormat(formatFlag)
			if err != nil {
				return err
			}
			if format == export.FormatXLSX && out == "" {
				return fmt.Errorf("--out is required for xlsx")
			}

			filter, err := filterFromFlags(cmd)
			if err != nil {
				return err
			}
			items, err := search(ctx, e, filter)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			if err := export.Write(w, format, items, time.Now()); err != nil {
				return err
			}
			e.log.Info("roster exported", map[string]any{"format": string(format), "rows": len(items), "out": out})
			return nil
		},
	}

	cmd.Flags().String("format", "csv", "csv or xlsx")
	cmd.Flags().StringP("out", "o", "", "output file (stdout when empty, csv only)")
	addFilterFlags(cmd)
	return cmd
}
