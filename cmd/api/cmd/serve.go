package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"patient-roster/internal/domain/patients"
	"patient-roster/internal/platform/metrics"
	"patient-roster/internal/router"
	"patient-roster/internal/session"
)

func NewServeCmd(ctx context.Context, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(ctx, e)
		},
	}
}

func runServe(ctx context.Context, e *env) error {
	repo, closeStore, err := router.OpenStore(ctx, e.cfg, e.log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			e.log.Warn("close store", map[string]any{"err": err})
		}
	}()

	rec := metrics.New()
	svc := patients.NewService(repo).WithObserver(rec)
	reg := session.NewRegistry(svc, session.Options{
		Grace:       e.cfg.SessionGrace,
		IdleTimeout: e.cfg.SessionIdleTimeout,
		Logger:      e.log,
		Metrics:     rec,
	})

	srv := &http.Server{
		Addr: e.cfg.Addr(),
		Handler: router.NewRouter(router.Options{
			Registry: reg,
			Metrics:  rec,
			Logger:   e.log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		// sin WriteTimeout: /stream mantiene la respuesta abierta
	}

	errCh := make(chan error, 1)
	go func() {
		e.log.Info("starting server", map[string]any{"addr": srv.Addr, "store": e.cfg.StoreDriver})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	e.log.Info("shutting down", nil)
	// las sesiones primero: cierra los streams abiertos
	reg.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
