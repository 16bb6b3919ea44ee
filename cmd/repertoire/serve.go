package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	apihttp "repertoire/internal/http"
	"repertoire/internal/metrics"
	"repertoire/internal/processor"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const gracefulShutdownTimeout = 5 * time.Second

var (
	hostFlag    string
	portFlag    int
	devFlag     bool
	pidPathFlag string
	pidLockFlag bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
)

func init() {
	f := serveCmd.Flags()
	f.StringVar(&hostFlag, "host", "", "API server host")
	f.IntVar(&portFlag, "port", 0, "API server port")
	f.BoolVar(&devFlag, "dev", false, "Development mode (relaxed rate limits, WAL journal)")
	f.StringVar(&pidPathFlag, "pid", "", "Optional path to write PID file")
	f.BoolVar(&pidLockFlag, "pid-lock", false, "Lock PID file to allow only one instance (requires --pid)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = hostFlag
	}
	if flags.Changed("port") {
		cfg.Server.Port = portFlag
	}
	if flags.Changed("dev") {
		cfg.Server.DevMode = devFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if pidLockFlag && pidPathFlag == "" {
		return fmt.Errorf("--pid-lock requires --pid")
	}
	if pidPathFlag != "" {
		cleanup, err := managePIDFile(pidPathFlag, pidLockFlag)
		if err != nil {
			return fmt.Errorf("manage PID file: %w", err)
		}
		defer cleanup()
		logger.Info("pid file created", "path", pidPathFlag, "lock", pidLockFlag)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	svc, err := openService(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Shutdown(); err != nil {
			logger.Error("service shutdown", "error", err)
		}
	}()

	proc := processor.New(svc, logger)
	app := apihttp.NewFiberApp(proc, svc, m, apihttp.Config{
		DevMode:   cfg.Server.DevMode,
		RateLimit: cfg.Server.RateLimit,
		AccessLog: cfg.Server.AccessLog,
	})

	addr := cfg.Addr()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		svc.RunCleanupJob(gctx, cfg.Session.CleanupInterval)
		return nil
	})
	g.Go(func() error {
		logger.Info("api server starting",
			"addr", "http://"+addr,
			"storage", cfg.Storage.Driver,
			"path", cfg.Storage.Path,
			"dev", cfg.Server.DevMode,
		)
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
