package trigger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Kind int

const (
	KindCron Kind = iota
	KindInterval
)

func (k Kind) String() string {
	if k == KindInterval {
		return "interval"
	}
	return "cron"
}

// Spec is a parsed schedule string.
//
// Accepted forms:
//   - cron: "*/5 * * * *", "*/10 * * * * *" (with seconds), "@hourly", "@every 30s"
//   - Go duration: "250ms", "2h30m"
//   - HH:MM interval: "00:50" (50 minutes)
//
// "cron:" forces cron parsing, "every:" or "interval:" forces an interval.
type Spec struct {
	Kind  Kind
	Cron  string
	Every time.Duration
}

func (s Spec) String() string {
	if s.Kind == KindInterval {
		return "@every " + s.Every.String()
	}
	return s.Cron
}

var reHHMM = regexp.MustCompile(`^(\d{1,3}):(\d{2})$`)

func ParseSchedule(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return Spec{}, fmt.Errorf("cron expression required after 'cron:'")
		}
		return Spec{Kind: KindCron, Cron: expr}, nil
	case strings.HasPrefix(low, "every:"):
		return parseInterval(s[len("every:"):])
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(s[len("interval:"):])
	case strings.HasPrefix(low, "@every"):
		return parseInterval(s[len("@every"):])
	case strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t"):
		return Spec{Kind: KindCron, Cron: s}, nil
	}

	if spec, err := parseInterval(s); err == nil {
		return spec, nil
	}
	return Spec{}, fmt.Errorf("invalid schedule %q (use cron like '*/5 * * * *', HH:MM like '02:30', or a duration like '55m')", raw)
}

func parseInterval(v string) (Spec, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return Spec{}, fmt.Errorf("interval required")
	}
	var d time.Duration
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return Spec{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d = time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	} else {
		var err error
		d, err = time.ParseDuration(v)
		if err != nil {
			return Spec{}, fmt.Errorf("invalid interval %q: %w", v, err)
		}
	}
	if d <= 0 {
		return Spec{}, fmt.Errorf("interval must be > 0")
	}
	return Spec{Kind: KindInterval, Every: d}, nil
}
