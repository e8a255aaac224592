package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"patient-roster/internal/domain/patients"
	"patient-roster/internal/router"
)

func NewListCmd(ctx context.Context, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "print the roster, optionally filtered",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := filterFromFlags(cmd)
			if err != nil {
				return err
			}

			items, err := search(ctx, e, filter)
			if err != nil {
				return err
			}
			return printRoster(cmd.OutOrStdout(), items, time.Now())
		},
	}
	addFilterFlags(cmd)
	return cmd
}

func addFilterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("family", "", "family name contains (case-insensitive)")
	f.String("given", "", "given name contains (case-insensitive)")
	f.String("sex", "", "MALE or FEMALE")
	f.String("birth-date", "", "exact birth date, YYYY-MM-DD")
}

func filterFromFlags(cmd *cobra.Command) (patients.Filter, error) {
	family, _ := cmd.Flags().GetString("family")
	given, _ := cmd.Flags().GetString("given")
	sex, _ := cmd.Flags().GetString("sex")
	birth, _ := cmd.Flags().GetString("birth-date")

	out := patients.Filter{FamilyName: family, GivenName: given}
	if sex != "" {
		s, err := patients.ParseSex(sex)
		if err != nil {
			return patients.Filter{}, err
		}
		out.Sex = &s
	}
	if birth != "" {
		d, err := patients.ParseDate(birth)
		if err != nil {
			return patients.Filter{}, err
		}
		out.BirthDate = &d
	}
	return out, nil
}

func search(ctx context.Context, e *env, filter patients.Filter) ([]patients.Patient, error) {
	repo, closeStore, err := router.OpenStore(ctx, e.cfg, e.log)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	return patients.NewService(repo).Search(ctx, filter)
}

func printRoster(w io.Writer, items []patients.Patient, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSEX\tBIRTH DATE\tAGE\tPROFESSION\tEMAIL\tPHONE")
	for _, p := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			p.ID, p.FullName(), p.Sex, patients.FormatDate(p.BirthDate), p.Age(now),
			p.Profession, p.Email, p.PhoneNumber)
	}
	return tw.Flush()
}
