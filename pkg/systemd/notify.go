// Package systemd reports service state to the systemd manager via sd_notify.
// Every call is a no-op when the process is not started by systemd.
package systemd

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "homeworkbot/pkg/logx"
)

type Notifier struct {
	log logx.Logger
}

func NewNotifier(log logx.Logger) *Notifier {
	return &Notifier{log: log}
}

// Ready tells systemd that startup has finished (Type=notify units).
func (n *Notifier) Ready() { n.send(daemon.SdNotifyReady) }

// Stopping tells systemd that shutdown has begun.
func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Watchdog pings the watchdog. Call it at least every WatchdogInterval.
func (n *Notifier) Watchdog() { n.send(daemon.SdNotifyWatchdog) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(msg string) { n.send("STATUS=" + msg) }

// WatchdogInterval returns WatchdogSec as configured for the unit, or 0.
func (n *Notifier) WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.log.Warn("invalid watchdog environment", logx.Err(err))
		return 0
	}
	return d
}

func (n *Notifier) send(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Trace("sd_notify sent", logx.String("state", state))
	}
}
