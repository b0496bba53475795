package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "jobsys/pkg/logx"
)

// notifier reports service state to systemd. Outside a systemd unit
// (no NOTIFY_SOCKET) every call is a no-op.
type notifier struct {
	log logx.Logger
}

func newNotifier(log logx.Logger) notifier { return notifier{log: log} }

func (n notifier) send(states ...string) {
	for _, st := range states {
		sent, err := daemon.SdNotify(false, st)
		if err != nil {
			n.log.Warn("sd_notify failed", logx.String("state", st), logx.Err(err))
			return
		}
		if !sent {
			return
		}
	}
}

func (n notifier) ready(status string) {
	n.send(daemon.SdNotifyReady, "STATUS="+status)
}

func (n notifier) reloaded(status string) {
	n.send("STATUS=" + status)
}

func (n notifier) stopping() {
	n.send(daemon.SdNotifyStopping)
}

// watchdog pings systemd at half the unit's WatchdogSec until ctx is done.
// It returns at once when the watchdog is not enabled.
func (n notifier) watchdog(ctx context.Context) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.log.Warn("systemd watchdog check failed", logx.Err(err))
		return nil
	}
	if interval <= 0 {
		return nil
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	n.log.Debug("systemd watchdog enabled", logx.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
