package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/onwardseo/missiond/internal/admission"
	"github.com/onwardseo/missiond/internal/breaker"
	"github.com/onwardseo/missiond/internal/config"
	"github.com/onwardseo/missiond/internal/content"
	"github.com/onwardseo/missiond/internal/executor"
	"github.com/onwardseo/missiond/internal/health"
	"github.com/onwardseo/missiond/internal/mission"
	"github.com/onwardseo/missiond/internal/mlog"
	"github.com/onwardseo/missiond/internal/quota"
	"github.com/onwardseo/missiond/internal/retry"
	"github.com/onwardseo/missiond/internal/scheduler"
	"github.com/onwardseo/missiond/internal/server"
	"github.com/onwardseo/missiond/internal/store"
	"github.com/onwardseo/missiond/pkg/logger"
)

// healthJobName identifies the recurring health sweep on the scheduler.
const healthJobName = "health-sweep"

// DaemonComponents holds all initialized daemon components. Unified
// initialization and cleanup keeps console runs and tests on the same path.
type DaemonComponents struct {
	Store    *store.Store
	Log      *mlog.Log
	Sched    *scheduler.Scheduler
	Gate     *admission.Gate
	Executor *executor.Executor
	Monitor  *health.Monitor
	Server   *server.Server

	ctx    context.Context
	cancel context.CancelFunc
	logger logger.Logger
}

// Done is closed when the daemon should exit: parent cancellation or a
// system.stop RPC.
func (c *DaemonComponents) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close releases daemon resources in reverse order of initialization. The
// HTTP server is shut down separately by the daemon loop.
func (c *DaemonComponents) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.Log != nil {
		_ = c.Log.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.logger != nil {
		_ = c.logger.Close()
	}
}

// initDaemonComponents wires every component from the configuration. On
// error, partially initialized components are cleaned up before returning.
var initDaemonComponents = func(ctx context.Context, cfg config.Config, version string, log logger.Logger) (*DaemonComponents, error) {
	ctx, cancel := context.WithCancel(ctx)

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o750); err != nil {
		cancel()
		return nil, err
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		cancel()
		return nil, err
	}

	ml, err := mlog.Open(cfg.Log.Dir, mlog.Options{
		MaxSize:     cfg.Log.MaxSize,
		KeepBackups: cfg.Log.KeepBackups,
	})
	if err != nil {
		_ = st.Close()
		cancel()
		return nil, err
	}
	ml.SetEcho(log)

	items := content.NewSQLite(st.DB())
	records := mission.NewRecords(items)

	var dup content.Duplicator = content.Unavailable{}
	if cfg.Mission.DuplicationEnabled {
		dup = content.NewLocalDuplicator(items)
	}

	// The trigger closure captures the executor built below; the scheduler
	// only fires after wiring completes.
	var exec *executor.Executor
	sched := scheduler.New(ctx, func(itemID string) {
		if cfg.Mission.EmergencyStop {
			_ = ml.Writef(mlog.CatSkip, "Emergency stop active - item %s not executed", itemID)
			return
		}
		if err := exec.Execute(ctx, itemID); err != nil {
			_ = ml.Writef(mlog.CatError, "Execution error for item %s: %v", itemID, err)
		}
	})

	ledger := quota.NewLedger(st, cfg.Mission.DailyLimit, ml)
	brk := breaker.New(st, cfg.Mission.BreakerTimeout())
	policy := retry.NewPolicy(st, sched, ml,
		cfg.Mission.FailureCap, cfg.Mission.RetryDelay, cfg.Mission.FailureDecay)

	exec = executor.New(executor.Config{
		TargetLanguages:  cfg.Mission.TargetLanguages,
		PacingDelay:      cfg.Mission.PacingDelay,
		BusyDelay:        cfg.Mission.BusyDelay,
		MaxExecutionTime: cfg.Mission.MaxExecutionTime,
	}, items, records, dup, brk, ledger, policy, st, sched, ml)

	gate := admission.NewGate(items, records, ledger, sched, ml, cfg.Mission.ScheduleDelay)
	monitor := health.NewMonitor(records, policy, ledger, ml, cfg.Mission.StaleAfter)

	if err := sched.ScheduleRecurring(healthJobName, cfg.Health.Schedule, func() {
		monitor.Sweep(ctx)
	}); err != nil {
		_ = ml.Close()
		_ = st.Close()
		cancel()
		return nil, err
	}

	rpc := server.NewRPCServer(&server.RPCConfig{
		Secret:        cfg.Daemon.Token,
		CallerSalt:    cfg.Mission.CallerSalt,
		Version:       version,
		EmergencyStop: cfg.Mission.EmergencyStop,
	}, items, gate, records, exec, brk, ledger, policy, st, ml, cancel)
	srv := server.New(cfg.Daemon.Addr, rpc)

	c := &DaemonComponents{
		Store:    st,
		Log:      ml,
		Sched:    sched,
		Gate:     gate,
		Executor: exec,
		Monitor:  monitor,
		Server:   srv,
		ctx:      ctx,
		cancel:   cancel,
		logger:   log,
	}

	recovered, err := monitor.RecoverPending(ctx, sched, cfg.Mission.ScheduleDelay)
	if err != nil {
		log.Warning("Failed to recover pending missions: %v", err)
	}

	_ = ml.Writef(mlog.CatDiagnostics,
		"Mission controller %s started (limit %d/day, targets %s, recovered %d)",
		version, cfg.Mission.DailyLimit,
		strings.Join(cfg.Mission.TargetLanguages, ","), recovered)
	if cfg.Mission.EmergencyStop {
		_ = ml.Write(mlog.CatWarn, "Emergency stop is active: admission and execution disabled")
	}
	return c, nil
}
