package trigger

import (
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"
)

const maxStartupSpread = 30 * time.Second

// spreadSchedule delays the first run of an interval by a per-name jitter so
// triggers registered together don't all fire on the same tick.
type spreadSchedule struct {
	base  cron.Schedule
	first time.Time
}

func (s *spreadSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return s.base.Next(t)
}

func intervalSchedule(every time.Duration, now time.Time, name string, spread bool) (cron.Schedule, time.Duration) {
	base := cron.Every(every)
	window := min(every, maxStartupSpread)
	if !spread || window <= 0 {
		return base, 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	rng := rand.New(rand.NewSource(now.UnixNano() ^ int64(h.Sum64())))
	jitter := time.Duration(rng.Int63n(int64(window)))
	return &spreadSchedule{base: base, first: now.Add(every + jitter)}, jitter
}
