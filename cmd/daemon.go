package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/onwardseo/missiond/cmd/common"
	"github.com/onwardseo/missiond/pkg/logger"
)

// shutdownTimeout bounds the graceful HTTP drain on exit.
const shutdownTimeout = 5 * time.Second

func daemon(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "load_config", err)
		return nil
	}

	l := logger.NewStandardLogger(log.Default())
	sigCtx, stopSignals := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	c, err := initDaemonComponents(sigCtx, cfg, ctx.App.Version, l)
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "init_components", err)
		return nil
	}
	defer c.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Server.Start()
	}()
	l.Info("Listening on %s", cfg.Daemon.Addr)

	select {
	case <-c.Done():
	case err := <-errCh:
		if err != nil {
			common.PrintRuntimeErr(ctx, "daemon", "serve", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.Server.Shutdown(shutdownCtx); err != nil {
		l.Warning("Shutdown: %v", err)
	}
	l.Info("Daemon stopped")
	return nil
}
