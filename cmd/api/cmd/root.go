package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"patient-roster/internal/config"
	"patient-roster/internal/platform/logger"
)

// env se completa en PersistentPreRunE y lo comparten los subcomandos.
type env struct {
	cfg *config.Config
	log logger.Logger
}

func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	e := &env{}

	cmd := &cobra.Command{
		Use:          "patient-roster",
		Short:        "clinic patient roster service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			cfg, err := config.Load(envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			e.cfg = cfg
			e.log = logger.New(cfg.LoggerOptions())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.log != nil {
				logger.Sync(e.log)
			}
		},
	}

	cmd.AddCommand(
		NewVersionCmd(gitsha),
		NewServeCmd(ctx, e),
		NewMigrateCmd(ctx, e),
		NewListCmd(ctx, e),
		NewExportCmd(ctx, e),
	)

	pf := cmd.PersistentFlags()
	pf.String("env-file", ".env", "optional .env file; environment variables take precedence")
	return cmd
}

func NewVersionCmd(gitsha string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "git sha for this build",
		// no necesita config
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), gitsha)
		},
	}
}
