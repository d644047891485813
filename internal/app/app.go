package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"homeworkbot/internal/config"
	"homeworkbot/internal/homework"
	"homeworkbot/internal/observability/debug"
	"homeworkbot/internal/poller"
	"homeworkbot/internal/practicum"
	rtsup "homeworkbot/internal/runtime/supervisor"
	"homeworkbot/internal/storage"
	"homeworkbot/internal/transport/telegram"
	logx "homeworkbot/pkg/logx"
	"homeworkbot/pkg/systemd"
)

// Options are fixed for the lifetime of the process.
type Options struct {
	ConfigPath string
	Secrets    config.Secrets
}

type App struct {
	cfgm    *config.ConfigManager
	cfg     *config.Config
	secrets config.Secrets
	sup     *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter  *telegram.Adapter
	store    storage.Store
	loop     *poller.Loop
	metrics  *debug.Metrics
	debugSrv *debug.Server
	sd       *systemd.Notifier
}

// New wires every component. It performs no network calls.
func New(ctx context.Context, opts Options) (*App, error) {
	cfgm := config.NewConfigManager(opts.ConfigPath)
	cfgm.SetValidator(validateRuntime)
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, err
	}
	secrets := opts.Secrets

	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))
	tcfg, err := mapTelegramConfig(cfg, secrets)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(tcfg, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap with the Telegram sink off, point it at the chat, then apply
	// the final config.
	logCfg := mapLoggingConfig(cfg)
	bootCfg := logCfg
	bootCfg.Telegram.Enabled = false
	logSvc, log := logx.New(bootCfg, ad)
	logSvc.SetTelegramTarget(tcfg.Chat)
	logSvc.Apply(logCfg)
	log = log.With(logx.String("comp", "app"))

	a := &App{
		cfgm:    cfgm,
		cfg:     cfg,
		secrets: secrets,
		log:     log,
		logs:    logSvc,
		adapter: ad,
		sd:      systemd.NewNotifier(log.With(logx.String("comp", "systemd"))),
	}

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, a.closeOnError(err)
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, a.closeOnError(fmt.Errorf("open delivery journal: %w", err))
		}
		a.store = st
		log.Info("delivery journal enabled", logx.String("driver", sc.Driver))
	}

	pcfg, err := MapPracticumConfig(cfg, secrets)
	if err != nil {
		return nil, a.closeOnError(err)
	}
	client, err := practicum.NewClient(pcfg)
	if err != nil {
		return nil, a.closeOnError(err)
	}
	lcfg, err := MapPollerConfig(cfg, secrets)
	if err != nil {
		return nil, a.closeOnError(err)
	}

	loopOpts := []poller.Option{
		poller.WithLogger(log.With(logx.String("comp", "poller"))),
		poller.WithHeartbeat(a.heartbeat),
	}
	if a.store != nil {
		loopOpts = append(loopOpts, poller.WithJournal(a.store))
	}
	if cfg.Debug.Enabled {
		if cfg.Debug.MetricsEnabled() {
			a.metrics = debug.NewMetrics()
			loopOpts = append(loopOpts, poller.WithRecorder(a.metrics))
		}
		dcfg := mapDebugConfig(cfg)
		dcfg.Metrics = a.metrics
		dcfg.Health = func() bool { return a.loop.Status().Healthy() }
		a.debugSrv = debug.New(dcfg, log.With(logx.String("comp", "debug")))
	}
	a.loop = poller.New(lcfg, homework.NewCycle(client, homework.DefaultCatalog()), ad, loopOpts...)

	if cfg.Telegram.Commands {
		ad.Handle("status", "Show poller status", statusCommand(a.loop, a.workers))
		ad.Handle("history", "Show recent notifications", historyCommand(a.store))
	}
	return a, nil
}

// validateRuntime rejects configs that parse but can't be wired.
func validateRuntime(ctx context.Context, cfg *config.Config) error {
	if _, err := poller.ParseSchedule(cfg.Poll.Interval); err != nil {
		return fmt.Errorf("poll.interval: %w", err)
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	return nil
}

func (a *App) closeOnError(err error) error {
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logs.Close()
	return err
}

// Done is closed when the app stops on its own or Stop is called.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// workers reports the app supervisor's goroutines; zero before Start.
func (a *App) workers() rtsup.Counters {
	if a.sup == nil {
		return rtsup.Counters{}
	}
	return a.sup.Counters()
}

// Logger returns the application logger.
func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	if err := a.adapter.Start(a.sup.Context()); err != nil {
		return err
	}
	if a.debugSrv != nil {
		// Observability is optional; a bad bind must not stop polling.
		if err := a.debugSrv.Start(a.sup.Context()); err != nil {
			a.log.Warn("debug server not started", logx.Err(err))
		}
	}

	a.sup.GoRestart("poll.loop", a.loop.Run,
		rtsup.WithRestartBackoff(time.Second, time.Minute),
	)

	if wd := a.sd.WatchdogInterval(); wd > 0 {
		// A poll interval longer than WatchdogSec would otherwise trip the watchdog.
		a.sup.Go0("systemd.watchdog", func(c context.Context) {
			t := time.NewTicker(wd / 2)
			defer t.Stop()
			for {
				select {
				case <-c.Done():
					return
				case <-t.C:
					a.sd.Watchdog()
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(newCfg)
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.sd.Ready()
	a.log.Info("app started",
		logx.String("config", a.cfgm.Path()),
		logx.String("chat", a.secrets.ChatLabel()),
		logx.String("poll_interval", a.cfg.Poll.Interval),
		logx.Bool("commands", a.cfg.Telegram.Commands),
		logx.Bool("journal", a.store != nil),
	)
	return nil
}

// applyConfig applies logging live; every other section needs a restart.
func (a *App) applyConfig(newCfg *config.Config) {
	sections, attrs, restart := config.SummarizeConfigChange(a.cfg, newCfg)
	a.cfg = newCfg
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.logs.Apply(mapLoggingConfig(newCfg))

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config change applied", fields...)
	if len(restart) > 0 {
		a.log.Warn("restart required for config changes to take effect", logx.String("sections", strings.Join(restart, ",")))
	}
}

func (a *App) heartbeat() {
	a.sd.Watchdog()
	st := a.loop.Status()
	a.sd.Status(fmt.Sprintf("watermark=%d cycles=%d failures=%d", st.Watermark, st.Cycles, st.Failures))
}

// Stop shuts every component down. Each step is bounded so one stuck
// component can't stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()
	a.sup.Cancel()

	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("adapter", 2*time.Second, a.adapter.Stop)
	step("debug", time.Second, func(c context.Context) error {
		if a.debugSrv != nil {
			return a.debugSrv.Stop(c)
		}
		return nil
	})
	step("supervisor", 3*time.Second, a.sup.Wait)
	step("storage", time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	st := a.loop.Status()
	a.log.Info("stopped", logx.Int64("watermark", st.Watermark), logx.Uint64("cycles", st.Cycles))
	return a.logs.Close()
}
