package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"digital.vasic.challengeboard/pkg/config"
	"digital.vasic.challengeboard/pkg/engine"
	"digital.vasic.challengeboard/pkg/httpapi"
	"digital.vasic.challengeboard/pkg/logging"
	"digital.vasic.challengeboard/pkg/metrics"
	"digital.vasic.challengeboard/pkg/monitor"
	"digital.vasic.challengeboard/pkg/registry"
	"digital.vasic.challengeboard/pkg/report"
	"digital.vasic.challengeboard/pkg/scheduler"
	"digital.vasic.challengeboard/pkg/store"
	"digital.vasic.challengeboard/pkg/store/sqlite"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine with its scheduler, API and monitor",
		Long: `Loads the catalog, restores saved rotations and profiles, then runs
the tick scheduler, the HTTP API and the event monitor until
interrupted. State is saved on shutdown. SIGHUP reloads the catalog.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(
				cmd.Context(), os.Interrupt, syscall.SIGTERM,
			)
			defer stop()
			return a.serve(ctx)
		},
	}

	flags := cmd.Flags()
	flags.String("http-addr", "", "API listen address")
	flags.String("monitor-addr", "", "monitor listen address, empty to use the configured one")
	flags.String("store", "", "store driver: memory, file, sqlite")
	flags.String("store-path", "", "store directory or database file")
	flags.String("policy", "", "rotation policy: preserve-active, cancel-and-reshuffle")
	flags.String("webhook-url", "", "game server base URL receiving notices and rewards")
	flags.String("history-file", "", "append completions to this JSON lines file")
	for key, flag := range map[string]string{
		"http_addr":       "http-addr",
		"monitor_addr":    "monitor-addr",
		"store_driver":    "store",
		"store_path":      "store-path",
		"rotation_policy": "policy",
		"webhook_url":     "webhook-url",
		"history_file":    "history-file",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	case config.StoreSQLite:
		return sqlite.Open(cfg.StorePath)
	default:
		return store.NewFileStore(cfg.StorePath)
	}
}

// buildEngine creates the engine, loads the catalog and restores
// saved state. opts add collaborators such as the observer.
func (a *app) buildEngine(
	ctx context.Context, st store.Store, opts ...engine.Option,
) (*engine.Engine, error) {
	cfg := a.cfg
	policy, err := engine.ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}

	base := []engine.Option{
		engine.WithLogger(a.logger),
		engine.WithPolicy(policy),
		engine.WithReplacementTimeout(cfg.ReplacementTimeout),
		engine.WithTestingMode(cfg.Testing),
		engine.WithLoader(registry.NewLoader(
			registry.WithLoaderLogger(a.logger),
		)),
	}
	e := engine.New(append(base, opts...)...)

	err = e.Suspend(func() error {
		cat, err := e.LoadDir(cfg.CatalogDir)
		if err != nil {
			return err
		}
		if n := len(cat.AllProblems()); n > 0 {
			a.logger.Warn("catalog loaded with problems",
				logging.IntField("problems", n),
			)
		}
		return e.Restore(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (a *app) reloader(e *engine.Engine) func(context.Context) error {
	return func(context.Context) error {
		cat, err := e.Loader().LoadDir(a.cfg.CatalogDir)
		if err != nil {
			return err
		}
		return e.Reload(cat)
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	collector := monitor.NewEventCollector(monitor.DefaultHistory)
	var history *report.History
	if cfg.HistoryFile != "" {
		history = report.NewHistory(cfg.HistoryFile, a.logger)
		collector.OnEvent(history.Record)
	}
	m := metrics.NewInMemoryMetrics()
	out := a.outbound()
	e, err := a.buildEngine(ctx, st,
		engine.WithObserver(collector),
		engine.WithMetrics(m),
		engine.WithNotifier(out.notifier),
		engine.WithRewardDispatcher(out.rewards),
	)
	if err != nil {
		return err
	}
	reload := a.reloader(e)

	sched := scheduler.New(
		scheduler.WithTickInterval(cfg.TickInterval),
		scheduler.WithLogger(a.logger),
	)
	iv := scheduler.Intervals{
		Rotation: cfg.RotationTicks,
		Refresh:  cfg.RefreshTicks,
		Save:     cfg.SaveTicks,
		PlayTime: cfg.PlayTimeTicks,
	}
	if err := scheduler.Register(
		sched, scheduler.EngineTasks(e, st, iv, cfg.TickInterval),
	); err != nil {
		return err
	}

	api := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(e,
			httpapi.WithLogger(a.logger),
			httpapi.WithMetrics(m),
			httpapi.WithReloader(reload),
		),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error {
		a.logger.Info("api listening", logging.StringField("addr", cfg.HTTPAddr))
		if err := api.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()
		return api.Shutdown(shutdownCtx)
	})
	if cfg.MonitorAddr != "" {
		mon := monitor.NewServer(
			cfg.MonitorAddr, collector, monitor.BuildDashboard(collector),
			a.logger,
		)
		g.Go(func() error { return mon.Start(gctx) })
	}
	g.Go(func() error { return a.watchReload(gctx, reload) })
	if out.hook != nil {
		a.logger.Info("webhook enabled",
			logging.StringField("url", config.RedactURL(cfg.WebhookURL)),
		)
		g.Go(func() error { return out.hook.Run(gctx) })
	}
	if history != nil {
		g.Go(func() error { return history.Run(gctx) })
	}

	err = g.Wait()

	saveCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := e.Save(saveCtx, st); serr != nil {
		a.logger.Error("final save failed", logging.ErrorField(serr))
		err = errors.Join(err, serr)
	} else {
		a.logger.Info("state saved")
	}
	return err
}

// watchReload reloads the catalog on SIGHUP.
func (a *app) watchReload(
	ctx context.Context, reload func(context.Context) error,
) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if err := reload(ctx); err != nil {
				a.logger.Error("reload failed", logging.ErrorField(err))
				continue
			}
			a.logger.Info("catalog reloaded",
				logging.StringField("dir", a.cfg.CatalogDir),
			)
		}
	}
}
