package trigger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jobsys/internal/eventbus"
	"jobsys/internal/task/job"
	logx "jobsys/pkg/logx"
)

const submitWarnThrottle = 5 * time.Second

type def struct {
	name string
	spec Spec
	prio job.Priority
	fn   job.Func

	entryID cron.EntryID

	once  bool
	at    time.Time
	timer *time.Timer

	mu      sync.Mutex
	last    job.Handle
	fired   uint64
	skipped uint64
}

type Service struct {
	mu sync.Mutex

	cfg Config
	log logx.Logger
	bus eventbus.Bus
	sub Submitter

	parser cron.Parser
	c      *cron.Cron
	loc    *time.Location
	ctx    context.Context
	defs   map[string]*def

	warnMu   sync.Mutex
	lastWarn map[string]time.Time
}

func New(cfg Config, sub Submitter, log logx.Logger, bus eventbus.Bus) *Service {
	return &Service{
		cfg: cfg,
		log: log,
		bus: bus,
		sub: sub,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser:   cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		defs:     map[string]*def{},
		lastWarn: map[string]time.Time{},
	}
}

// Start begins firing registered triggers. ctx is handed to SubmitJob, so it
// must not be a worker context.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Kept even when disabled so Apply can start the service later.
	s.ctx = ctx
	if s.c != nil || !s.cfg.Enabled {
		return
	}
	s.startLocked()
	s.log.Info("trigger service started", logx.String("tz", s.loc.String()), logx.Int("triggers", len(s.defs)))
}

func (s *Service) startLocked() {
	s.loc = loadLocation(s.cfg.Timezone, s.log)
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for _, d := range s.defs {
		s.armLocked(d)
	}
	s.c.Start()
}

// Stop halts firing. Definitions are kept and rearmed by the next Start;
// jobs already submitted are not affected.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	c := s.c
	s.c = nil
	for _, d := range s.defs {
		s.disarmLocked(d)
	}
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("trigger service stopped")
}

// Apply swaps cfg. A timezone change rearms every trigger; toggling Enabled
// starts or stops the service.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	c := s.c
	ctx := s.ctx
	restart := c != nil && cfg.Enabled && strings.TrimSpace(prev.Timezone) != strings.TrimSpace(cfg.Timezone)
	if restart {
		s.c = nil
		for _, d := range s.defs {
			s.disarmLocked(d)
		}
	}
	s.mu.Unlock()

	switch {
	case restart:
		// Running firings take s.mu, so wait for them unlocked.
		<-c.Stop().Done()
		s.mu.Lock()
		if s.c == nil {
			s.startLocked()
		}
		s.mu.Unlock()
		s.log.Info("trigger service restarted", logx.String("tz", cfg.Timezone))
	case c != nil && !cfg.Enabled:
		s.Stop(context.Background())
	case c == nil && cfg.Enabled && ctx != nil:
		s.Start(ctx)
	}
}

// AddSchedule registers a recurring trigger. Registering an existing name replaces it.
func (s *Service) AddSchedule(name, schedule string, prio job.Priority, fn job.Func) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("trigger name required")
	}
	if fn == nil {
		return job.ErrNoWork
	}
	spec, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}
	if spec.Kind == KindCron {
		if _, err := s.parser.Parse(spec.Cron); err != nil {
			return fmt.Errorf("trigger %q: %w", name, err)
		}
	}
	d := &def{name: name, spec: spec, prio: prio, fn: fn}
	s.put(d)
	s.log.Debug("trigger registered", logx.String("trigger", name), logx.String("spec", spec.String()), logx.String("priority", prio.String()))
	return nil
}

// AddOnce registers a trigger that fires once at at. A time in the past fires
// as soon as the service runs.
func (s *Service) AddOnce(name string, at time.Time, prio job.Priority, fn job.Func) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("trigger name required")
	}
	if at.IsZero() {
		return errors.New("trigger time required")
	}
	if fn == nil {
		return job.ErrNoWork
	}
	s.put(&def{name: name, prio: prio, fn: fn, once: true, at: at})
	return nil
}

func (s *Service) put(d *def) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old := s.defs[d.name]; old != nil {
		s.disarmLocked(old)
	}
	s.defs[d.name] = d
	if s.c != nil {
		s.armLocked(d)
	}
}

// Remove unregisters name and reports whether it existed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.defs[strings.TrimSpace(name)]
	if d == nil {
		return false
	}
	s.disarmLocked(d)
	delete(s.defs, d.name)
	s.log.Debug("trigger removed", logx.String("trigger", d.name))
	return true
}

func (s *Service) armLocked(d *def) {
	if d.once {
		delay := max(time.Until(d.at), 0)
		d.timer = time.AfterFunc(delay, func() {
			s.mu.Lock()
			cur := s.defs[d.name]
			if cur == d {
				delete(s.defs, d.name)
			}
			s.mu.Unlock()
			if cur == d {
				s.fire(d)
			}
		})
		return
	}

	var sched cron.Schedule
	if d.spec.Kind == KindInterval {
		sched, _ = intervalSchedule(d.spec.Every, time.Now().In(s.loc), d.name, s.cfg.StartupSpread)
	} else {
		var err error
		sched, err = s.parser.Parse(d.spec.Cron)
		if err != nil {
			s.log.Error("trigger register failed", logx.String("trigger", d.name), logx.Err(err))
			return
		}
	}
	d.entryID = s.c.Schedule(sched, cron.FuncJob(func() { s.fire(d) }))
}

func (s *Service) disarmLocked(d *def) {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.entryID != 0 && s.c != nil {
		s.c.Remove(d.entryID)
	}
	d.entryID = 0
}

// fire submits one run of d unless the previous one is still pending.
func (s *Service) fire(d *def) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last.Valid() && !d.last.IsComplete() {
		d.skipped++
		s.log.Debug("trigger skipped: previous run pending", logx.String("trigger", d.name))
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeTriggerSkipped, Time: time.Now(), Data: SkipEvent{Name: d.name}})
		}
		return
	}
	h, err := s.sub.SubmitJob(ctx, job.Desc{Name: d.name, Func: d.fn, Priority: d.prio})
	if err != nil {
		s.reportSubmitError(d.name, err)
		return
	}
	d.last = h
	d.fired++
}

func (s *Service) reportSubmitError(name string, err error) {
	now := time.Now()
	s.warnMu.Lock()
	last := s.lastWarn[name]
	if !last.IsZero() && now.Sub(last) < submitWarnThrottle {
		s.warnMu.Unlock()
		return
	}
	s.lastWarn[name] = now
	s.warnMu.Unlock()

	s.log.Warn("trigger failed to submit job", logx.String("trigger", name), logx.Err(err))
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{Enabled: s.cfg.Enabled, Running: s.c != nil}
	if s.loc != nil {
		snap.Timezone = s.loc.String()
	}
	for _, d := range s.defs {
		it := Info{Name: d.name, Priority: d.prio, Once: d.once}
		if d.once {
			it.Spec = "once"
			it.Next = d.at
		} else {
			it.Spec = d.spec.String()
			if s.c != nil && d.entryID != 0 {
				e := s.c.Entry(d.entryID)
				it.Next, it.Prev = e.Next, e.Prev
			}
		}
		d.mu.Lock()
		it.Fired, it.Skipped = d.fired, d.skipped
		if d.last.Valid() && d.last.IsComplete() {
			it.Last = d.last.Result().String()
		}
		d.mu.Unlock()
		snap.Triggers = append(snap.Triggers, it)
	}
	s.mu.Unlock()

	sort.Slice(snap.Triggers, func(i, j int) bool { return snap.Triggers[i].Name < snap.Triggers[j].Name })
	return snap
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
