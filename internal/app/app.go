// Package app wires the job scheduler daemon together: config, logging, event
// bus, job scheduler, background triggers, debug server and the frame loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"jobsys/internal/config"
	"jobsys/internal/eventbus"
	"jobsys/internal/observability/pprof"
	rtsup "jobsys/internal/runtime/supervisor"
	"jobsys/internal/task/engine"
	"jobsys/internal/task/job"
	"jobsys/internal/task/trigger"
	logx "jobsys/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	engine *engine.Scheduler
	trig   *trigger.Service
	pprof  *pprof.Service
	sd     notifier

	frames      atomic.Pointer[frameSettings]
	stopTimeout atomic.Int64
	framesRun   atomic.Uint64
	overruns    atomic.Uint64
	overrunLog  *rate.Limiter

	bgMu    sync.Mutex
	bgNames map[string]bool
}

// New loads the config at cfgPath and builds every component. Nothing runs
// until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(context.Background(), cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	bus := eventbus.New()

	engCfg, err := mapEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	fs, err := mapFrameSettings(cfg)
	if err != nil {
		return nil, err
	}
	stopTimeout, err := mapStopTimeout(cfg)
	if err != nil {
		return nil, err
	}
	pprofCfg, err := mapPprofConfig(cfg)
	if err != nil {
		return nil, err
	}

	eng := engine.New(engCfg, log.With(logx.String("comp", "jobs")), bus)
	a := &App{
		cfgm:       cfgm,
		log:        log.With(logx.String("comp", "app")),
		logs:       logSvc,
		bus:        bus,
		engine:     eng,
		trig:       trigger.New(mapTriggerConfig(cfg), eng, log.With(logx.String("comp", "trigger")), bus),
		pprof:      pprof.New(pprofCfg, log),
		sd:         newNotifier(log.With(logx.String("comp", "systemd"))),
		overrunLog: rate.NewLimiter(rate.Every(5*time.Second), 1),
		bgNames:    map[string]bool{},
	}
	a.frames.Store(&fs)
	a.stopTimeout.Store(int64(stopTimeout))
	a.pprof.SetSnapshotFunc(a.Snapshot)

	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(validate)

	if err := a.syncBackground(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

// Engine exposes the job scheduler.
func (a *App) Engine() *engine.Scheduler { return a.engine }

// Triggers exposes the background trigger service.
func (a *App) Triggers() *trigger.Service { return a.trig }

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the app supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Snapshot is the document served at /debug/jobs.
type Snapshot struct {
	Engine    engine.Snapshot  `json:"engine"`
	Triggers  trigger.Snapshot `json:"triggers"`
	Frames    uint64           `json:"frames"`
	Overruns  uint64           `json:"overruns"`
	BusDrops  uint64           `json:"bus_dropped"`
	Generated time.Time        `json:"generated"`
}

func (a *App) Snapshot() any {
	return Snapshot{
		Engine:    a.engine.Snapshot(),
		Triggers:  a.trig.Snapshot(),
		Frames:    a.framesRun.Load(),
		Overruns:  a.overruns.Load(),
		BusDrops:  a.bus.Dropped(),
		Generated: time.Now(),
	}
}

// Start brings up the engine, triggers and debug server and launches the
// supervised loops (config watch and reload, event log).
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	c := a.sup.Context()

	// The engine outlives the app context; Stop closes it in order.
	a.engine.Start(context.WithoutCancel(c))
	a.trig.Start(c)
	a.pprof.Apply(c, a.pprofConfig())

	if a.bus != nil {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.sd.ready(fmt.Sprintf("workers=%d", a.engine.WorkerCount()))
	a.log.Info("app started", logx.Int("workers", a.engine.WorkerCount()))
	return nil
}

func (a *App) pprofConfig() pprof.Config {
	pc, err := mapPprofConfig(a.cfgm.Get())
	if err != nil {
		a.log.Warn("invalid pprof config; debug server disabled", logx.Err(err))
		return pprof.Config{}
	}
	return pc
}

// Run starts the app, drives the frame loop and the systemd watchdog until ctx
// is done or a fatal error occurs, then stops with reason.
func (a *App) Run(ctx context.Context, reason func() StopReason) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(a.sup.Context())
	g.Go(func() error { return a.runFrames(gctx) })
	g.Go(func() error { return a.sd.watchdog(gctx) })
	runErr := g.Wait()

	r := StopAppStop
	if err := a.Err(); err != nil {
		r = StopFatalError
		runErr = errors.Join(runErr, err)
	} else if reason != nil {
		r = reason()
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Duration(a.stopTimeout.Load()))
	defer cancel()
	return errors.Join(runErr, a.Stop(stopCtx, r))
}

// Stop shuts everything down in dependency order. Each step is bounded so one
// component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.stopping()

	// Unwind background loops first.
	a.sup.Cancel()

	var errs []error
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		if err := a.stopStep(ctx, name, max, fn); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	stopTimeout := time.Duration(a.stopTimeout.Load())
	step("triggers", 2*time.Second, func(c context.Context) error { a.trig.Stop(c); return nil })
	step("jobs", stopTimeout, a.engine.Close)
	step("pprof", time.Second, func(c context.Context) error { a.pprof.Stop(c); return nil })
	step("supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped", logx.Uint64("frames", a.framesRun.Load()))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}

func (a *App) stopStep(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

	stepCtx := ctx
	if max > 0 {
		// Never extend the caller's deadline.
		if dl, ok := ctx.Deadline(); !ok || time.Until(dl) > max {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
	}

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
		took := time.Since(start)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
			return err
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		return nil
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		go func() {
			err := <-done
			a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", time.Since(start)), logx.Bool("error", err != nil))
		}()
		return stepCtx.Err()
	}
}

// syncBackground makes the registered background triggers match cfg.
func (a *App) syncBackground(cfg *config.Config) error {
	a.bgMu.Lock()
	defer a.bgMu.Unlock()

	want := make(map[string]bool, len(cfg.Background.Jobs))
	for _, bj := range cfg.Background.Jobs {
		name := strings.TrimSpace(bj.Name)
		fn, err := backgroundFunc(a.engine, a.log, bj)
		if err != nil {
			return fmt.Errorf("background job %q: %w", name, err)
		}
		prio, _ := job.ParsePriority(bj.Priority)
		if err := a.trig.AddSchedule(name, bj.Schedule, prio, fn); err != nil {
			return fmt.Errorf("background job %q: %w", name, err)
		}
		want[name] = true
	}
	for name := range a.bgNames {
		if !want[name] {
			a.trig.Remove(name)
		}
	}
	a.bgNames = want
	return nil
}
