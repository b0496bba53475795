package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobsys/internal/eventbus"
	"jobsys/internal/task/job"
	logx "jobsys/pkg/logx"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	names    []string
	counters []*job.Counter
	err      error
}

func (f *fakeSubmitter) SubmitJob(_ context.Context, d job.Desc) (job.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return job.Handle{}, f.err
	}
	c := job.NewCounter(1)
	f.names = append(f.names, d.Name)
	f.counters = append(f.counters, c)
	return job.NewHandle(c), nil
}

func (f *fakeSubmitter) submitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.names)
}

func noop(context.Context) error { return nil }

func TestOverlapGuardSkipsPendingRun(t *testing.T) {
	t.Parallel()
	sub := &fakeSubmitter{}
	bus := eventbus.New()
	skips, unsub := bus.Subscribe(4, eventbus.TypeTriggerSkipped)
	defer unsub()

	s := New(Config{Enabled: true}, sub, logx.Nop(), bus)
	require.NoError(t, s.AddSchedule("compact", "@every 1h", job.PriorityLow, noop))
	d := s.defs["compact"]

	s.fire(d)
	s.fire(d)
	require.Equal(t, 1, sub.submitted())
	require.Len(t, skips, 1)
	skip := <-skips
	require.False(t, skip.Time.IsZero())
	require.Equal(t, SkipEvent{Name: "compact"}, skip.Data)

	sub.counters[0].Finish(job.ResultSuccess, nil)
	s.fire(d)
	require.Equal(t, 2, sub.submitted())

	snap := s.Snapshot()
	require.Len(t, snap.Triggers, 1)
	require.EqualValues(t, 2, snap.Triggers[0].Fired)
	require.EqualValues(t, 1, snap.Triggers[0].Skipped)
	require.Equal(t, "@every 1h0m0s", snap.Triggers[0].Spec)
}

func TestAddOnceFiresAfterStart(t *testing.T) {
	t.Parallel()
	sub := &fakeSubmitter{}
	s := New(Config{Enabled: true}, sub, logx.Nop(), nil)
	require.NoError(t, s.AddOnce("warmup", time.Now(), job.PriorityHigh, noop))

	time.Sleep(10 * time.Millisecond)
	require.Equal(t, 0, sub.submitted())

	s.Start(context.Background())
	defer s.Stop(context.Background())
	require.Eventually(t, func() bool { return sub.submitted() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Empty(t, s.Snapshot().Triggers)
}

func TestRemoveCancelsOnce(t *testing.T) {
	t.Parallel()
	sub := &fakeSubmitter{}
	s := New(Config{Enabled: true}, sub, logx.Nop(), nil)
	s.Start(context.Background())
	defer s.Stop(context.Background())

	require.NoError(t, s.AddOnce("later", time.Now().Add(50*time.Millisecond), job.PriorityNormal, noop))
	require.True(t, s.Remove("later"))
	require.False(t, s.Remove("later"))
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 0, sub.submitted())
}

func TestAddScheduleValidation(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &fakeSubmitter{}, logx.Nop(), nil)
	require.Error(t, s.AddSchedule("", "@hourly", job.PriorityNormal, noop))
	require.ErrorIs(t, s.AddSchedule("x", "@hourly", job.PriorityNormal, nil), job.ErrNoWork)
	require.Error(t, s.AddSchedule("x", "61 * * * *", job.PriorityNormal, noop))
	require.Error(t, s.AddOnce("x", time.Time{}, job.PriorityNormal, noop))
}

func TestSubmitErrorIsContained(t *testing.T) {
	t.Parallel()
	sub := &fakeSubmitter{err: errors.New("stopped")}
	s := New(Config{Enabled: true}, sub, logx.Nop(), nil)
	require.NoError(t, s.AddSchedule("x", "@daily", job.PriorityNormal, noop))
	s.fire(s.defs["x"])
	s.fire(s.defs["x"])
	require.Equal(t, 0, sub.submitted())
	require.EqualValues(t, 0, s.Snapshot().Triggers[0].Fired)
}

func TestStartDisabledThenEnabledByApply(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: false}, &fakeSubmitter{}, logx.Nop(), nil)
	s.Apply(Config{Enabled: true})
	// Never started, so there is no context to start with.
	require.False(t, s.Snapshot().Running)
	s.Apply(Config{Enabled: false})

	s.Start(context.Background())
	require.False(t, s.Snapshot().Running)

	s.Apply(Config{Enabled: true})
	require.True(t, s.Snapshot().Running)

	s.Apply(Config{Enabled: false})
	require.False(t, s.Snapshot().Running)
}

func TestApplyTimezoneRearms(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, &fakeSubmitter{}, logx.Nop(), nil)
	require.NoError(t, s.AddSchedule("nightly", "0 3 * * *", job.PriorityLow, noop))
	s.Start(context.Background())
	defer s.Stop(context.Background())

	s.Apply(Config{Enabled: true, Timezone: "UTC"})
	snap := s.Snapshot()
	require.True(t, snap.Running)
	require.Equal(t, "UTC", snap.Timezone)
	require.Len(t, snap.Triggers, 1)
	require.False(t, snap.Triggers[0].Next.IsZero())
}
