// Package app wires configuration, logging, storage and the services into
// one daemon lifecycle.
package app

import (
	"context"
	"time"

	"timekeep/internal/config"
	"timekeep/internal/runtime/supervisor"
	"timekeep/internal/services/debughttp"
	"timekeep/internal/services/jobs"
	"timekeep/internal/services/watchdog"
	"timekeep/internal/storage"
	"timekeep/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	jobs  *jobs.Service
	wdog  *watchdog.Service
	debug *debughttp.Service

	// appliedStorage is what the running store was opened with; a reload
	// that changes it cannot take effect without a restart.
	appliedStorage storage.Config
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	storeCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storeCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	if store != nil {
		log.Info("run history enabled", logx.String("driver", cfg.Storage.Driver))
	}

	jobsCfg, defs, err := mapJobsConfig(cfg)
	if err != nil {
		return nil, err
	}
	jobsSvc := jobs.New(jobsCfg, log.With(logx.String("comp", "jobs")), store)
	jobsSvc.Apply(jobsCfg, defs)

	wdogSvc := watchdog.New(watchdog.Config{Enabled: cfg.Watchdog.Enabled},
		log.With(logx.String("comp", "watchdog")))

	debugSvc := debughttp.New(mapDebugConfig(cfg),
		log.With(logx.String("comp", "debug")), jobsSvc, store)

	return &App{
		cfgPath:        cfgPath,
		cfgm:           cfgm,
		log:            log,
		logs:           logSvc,
		store:          store,
		jobs:           jobsSvc,
		wdog:           wdogSvc,
		debug:          debugSvc,
		appliedStorage: storeCfg,
	}, nil
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		// Reject a hot reload whose mapped configs would not start.
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		_, _, err := mapJobsConfig(cfg)
		return err
	})

	if a.jobs.Enabled() {
		a.jobs.Start(a.sup.Context())
	}
	a.wdog.Start(a.sup.Context())
	if a.debug.Enabled() {
		a.debug.Start(a.sup.Context())
	}

	// The watcher loop self-heals internally, but a panic there should not
	// take the daemon down either.
	a.sup.GoRestart("config.watch", a.cfgm.Watch)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(c, newCfg)
			}
		}
	})

	a.log.Info("daemon started")
	return nil
}

func (a *App) applyReload(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(mapLogConfig(cfg))
	a.debug.Reconfigure(ctx, mapDebugConfig(cfg))

	if sc, err := mapStorageConfig(cfg); err == nil && sc != a.appliedStorage {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	jobsCfg, defs, err := mapJobsConfig(cfg)
	if err != nil {
		// The validator already rejected these; a race with Get() is the
		// only way here. Keep the previous job set.
		a.log.Warn("invalid jobs config; keeping previous", logx.Err(err))
		return
	}

	prevEnabled := a.jobs.Enabled()
	a.jobs.Apply(jobsCfg, defs)
	switch {
	case prevEnabled && !jobsCfg.Enabled:
		a.log.Info("jobs disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.jobs.Stop(stopCtx)
		cancel()
	case !prevEnabled && jobsCfg.Enabled:
		a.log.Info("jobs enabled via config")
		a.jobs.Start(ctx)
	}
	a.log.Info("config applied", logx.Int("jobs", len(defs)))
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	stopCtx := ctx
	if _, has := ctx.Deadline(); !has {
		var cancel context.CancelFunc
		stopCtx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	a.wdog.Stop(stopCtx)
	a.debug.Stop(stopCtx)
	a.jobs.Stop(stopCtx)
	err := a.sup.Stop(stopCtx)

	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil {
			a.log.Warn("store close failed", logx.Err(cerr))
		}
	}
	a.log.Info("daemon stopped")
	a.logs.Close()
	return err
}
