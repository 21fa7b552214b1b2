/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/josephgoksu/loomboard/internal/auth"
	"github.com/josephgoksu/loomboard/internal/config"
	"github.com/josephgoksu/loomboard/internal/logger"
	"github.com/josephgoksu/loomboard/internal/memory"
	"github.com/josephgoksu/loomboard/internal/retention"
	"github.com/josephgoksu/loomboard/internal/server"
	"github.com/josephgoksu/loomboard/internal/task"
	"github.com/josephgoksu/loomboard/internal/telemetry"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the board API and the daily maintenance jobs",
	Long: `Serve the session API under /api, the token API under /mcp, plus
/healthz and /metrics. Activity history older than 90 days is pruned every
day at 02:00 UTC.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireServe(); err != nil {
		return err
	}
	l, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	crash := logger.NewCrashReporter(afero.NewOsFs(), cfg.DataDir, version, l)
	defer crash.HandlePanic("serve")

	loc, err := cfg.Board.Location()
	if err != nil {
		return err
	}
	store, err := memory.NewSQLiteStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open board database: %w", err)
	}
	defer func() { _ = store.Close() }()

	svc := task.NewService(store, task.WithLocation(loc))
	metrics := telemetry.New()

	srv, err := server.New(server.Options{
		Addr:    cfg.Server.Addr,
		Service: svc,
		Health:  store,
		Tokens: auth.NewServiceAccounts(auth.ServiceAccount{
			Name:   "mcp",
			Token:  cfg.MCP.APIToken,
			UserID: cfg.MCP.UserID,
		}),
		Sessions: auth.NewSessionVerifier(cfg.Session.Secret, cfg.Session.Issuer),
		Metrics:  metrics,
		Crash:    crash,
		Logger:   l,
	})
	if err != nil {
		return fmt.Errorf("create API server: %w", err)
	}

	scheduler := retention.NewScheduler(l, metrics,
		retention.NewJanitor(store, l),
		retention.NewAutoArchiver(svc, cfg.Board.AutoArchiveAfter, l),
	)

	// Only the log level is reloadable; everything else needs a restart.
	if config.Watch(v, func(next *config.Config) {
		if err := logger.SetLevel(l, next.Log.Level); err != nil {
			l.WithError(err).Warn("ignoring log level from reloaded config")
			return
		}
		l.WithField("level", next.Log.Level).Info("config reloaded")
	}, func(err error) {
		l.WithError(err).Warn("ignoring invalid config change")
	}) {
		l.WithField("file", v.ConfigFileUsed()).Debug("watching config file")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	errChan := make(chan error, 1)
	srv.Start(&wg, errChan)
	scheduler.Start(ctx)
	l.WithField("data_dir", cfg.DataDir).Info("loomboard is running")

	select {
	case <-ctx.Done():
		l.Info("shutting down")
	case err = <-errChan:
		l.WithError(err).Error("API server stopped")
	}

	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		l.WithError(shutdownErr).Warn("server shutdown")
	}
	wg.Wait()
	return err
}
