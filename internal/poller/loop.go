package poller

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"homeworkbot/internal/homework"
	"homeworkbot/internal/storage"
	kit "homeworkbot/internal/transport"
	logx "homeworkbot/pkg/logx"
)

// FailurePrefix starts every diagnostic notification.
const FailurePrefix = "Program failure: "

// CycleRunner runs one poll cycle. *homework.Cycle implements it.
type CycleRunner interface {
	Run(ctx context.Context, watermark int64) (homework.Result, error)
}

// Recorder receives per-cycle measurements. Implementations must be cheap.
type Recorder interface {
	ObserveCycle(kind homework.Kind, took time.Duration)
	ObserveDelivery(ok bool)
	SetWatermark(v int64)
}

// Config is fixed for the lifetime of a Loop.
type Config struct {
	Chat     kit.ChatTarget
	Schedule cron.Schedule // nil means every DefaultInterval
	Lookback time.Duration // initial watermark is now minus Lookback
}

type Option func(*Loop)

func WithLogger(log logx.Logger) Option { return func(l *Loop) { l.log = log } }

func WithRecorder(r Recorder) Option { return func(l *Loop) { l.metrics = r } }

// WithJournal records every delivery attempt. Write errors are logged and ignored.
func WithJournal(st storage.Store) Option { return func(l *Loop) { l.journal = st } }

// WithHeartbeat installs fn to be called after every cycle (systemd watchdog).
func WithHeartbeat(fn func()) Option { return func(l *Loop) { l.heartbeat = fn } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(l *Loop) { l.now = now } }

// WithWait overrides how the loop sleeps between cycles.
func WithWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Loop) { l.wait = wait }
}

// Loop polls forever on a fixed schedule and forwards changed notifications.
//
// The watermark and the last sent text are owned by the goroutine running
// Run/Tick. Status() may be called from anywhere.
type Loop struct {
	cfg    Config
	cycle  CycleRunner
	sender kit.Sender

	log       logx.Logger
	metrics   Recorder
	journal   storage.Store
	heartbeat func()
	now       func() time.Time
	wait      func(ctx context.Context, d time.Duration) error

	watermark int64
	lastSent  string

	statusMu sync.RWMutex
	status   Status
}

// Outcome describes what one Tick did.
type Outcome struct {
	CycleID     string
	Text        string // candidate notification
	Err         error  // cycle failure, if any
	Delivered   bool
	DeliveryErr error
	Watermark   int64 // watermark after the tick
	Advanced    bool
}

func New(cfg Config, cycle CycleRunner, sender kit.Sender, opts ...Option) *Loop {
	l := &Loop{
		cfg:    cfg,
		cycle:  cycle,
		sender: sender,
		now:    time.Now,
		wait:   sleepCtx,
	}
	for _, o := range opts {
		o(l)
	}
	if l.log.IsZero() {
		l.log = logx.Nop()
	}
	if l.cfg.Schedule == nil {
		l.cfg.Schedule = cron.Every(DefaultInterval)
	}
	l.watermark = l.now().Add(-cfg.Lookback).Unix()
	l.status.Watermark = l.watermark
	if l.metrics != nil {
		l.metrics.SetWatermark(l.watermark)
	}
	return l
}

// Run ticks until ctx is cancelled. Cycle failures never stop it.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("poll loop started", logx.Int64("watermark", l.watermark), logx.String("chat", l.cfg.Chat.Recipient()))
	for {
		l.Tick(ctx)
		if ctx.Err() != nil {
			break
		}
		now := l.now()
		delay := l.cfg.Schedule.Next(now).Sub(now)
		l.log.Debug("next poll scheduled", logx.Duration("in", delay), logx.Time("at", now.Add(delay)))
		if err := l.wait(ctx, delay); err != nil {
			break
		}
	}
	l.log.Info("poll loop stopped", logx.Int64("watermark", l.watermark))
	return nil
}

// Tick runs one cycle and applies the dedup, delivery and watermark rules.
func (l *Loop) Tick(ctx context.Context) Outcome {
	start := l.now()
	out := Outcome{CycleID: uuid.NewString(), Watermark: l.watermark}
	log := l.log.With(logx.String("cycle_id", out.CycleID))

	res, err := l.cycle.Run(ctx, l.watermark)
	if err != nil && ctx.Err() != nil {
		// Shutting down; don't report our own cancellation as a failure.
		log.Debug("poll cycle interrupted", logx.Err(err))
		out.Err = err
		return out
	}
	kind := homework.KindOf(err)
	if l.metrics != nil {
		l.metrics.ObserveCycle(kind, l.now().Sub(start))
	}

	if err != nil {
		log.Error("poll cycle failed",
			logx.String("stage", string(homework.StageOf(err))),
			logx.String("kind", string(kind)),
			logx.Int64("watermark", l.watermark),
			logx.Err(err),
			logx.NoRelay(),
		)
		out.Err = err
		out.Text = FailureText(err)
	} else {
		log.Debug("poll cycle ok",
			logx.Int("records", res.Records),
			logx.String("status", res.Status),
			logx.Int64("next_watermark", res.Watermark),
		)
		out.Text = res.Text
	}

	if out.Text == l.lastSent {
		log.Debug("notification unchanged; not sending")
	} else {
		out.DeliveryErr = l.deliver(ctx, out.CycleID, kind, out.Text)
		out.Delivered = out.DeliveryErr == nil
		if out.Delivered {
			l.lastSent = out.Text
		} else {
			log.Error("delivery failed",
				logx.String("stage", string(homework.StageDeliver)),
				logx.String("kind", string(homework.KindDeliveryFailed)),
				logx.Err(out.DeliveryErr),
				logx.NoRelay(),
			)
		}
	}

	// Only a successful cycle whose text is known to be delivered moves the
	// window forward; otherwise the next cycle re-reads the same window.
	if err == nil && out.DeliveryErr == nil {
		out.Advanced = res.Watermark != l.watermark
		l.watermark = res.Watermark
		out.Watermark = l.watermark
		if l.metrics != nil {
			l.metrics.SetWatermark(l.watermark)
		}
	}

	l.recordStatus(start, out)
	if l.heartbeat != nil {
		l.heartbeat()
	}
	return out
}

func (l *Loop) deliver(ctx context.Context, cycleID string, kind homework.Kind, text string) error {
	_, err := l.sender.SendText(ctx, l.cfg.Chat, text, &kit.SendOptions{DisablePreview: true})
	if err != nil {
		err = &homework.DeliveryError{Cause: err}
	} else {
		l.log.Debug("notification sent", logx.String("cycle_id", cycleID), logx.String("text", text))
	}
	if l.metrics != nil {
		l.metrics.ObserveDelivery(err == nil)
	}
	if l.journal != nil {
		d := storage.Delivery{
			At:      l.now(),
			CycleID: cycleID,
			ChatID:  l.cfg.Chat.ChatID,
			Kind:    string(kind),
			Text:    text,
			OK:      err == nil,
		}
		if err != nil {
			d.Error = err.Error()
		}
		if jerr := l.journal.AppendDelivery(ctx, d); jerr != nil {
			l.log.Warn("delivery journal write failed", logx.String("cycle_id", cycleID), logx.Err(jerr))
		}
	}
	return err
}

func (l *Loop) recordStatus(start time.Time, out Outcome) {
	l.statusMu.Lock()
	defer l.statusMu.Unlock()
	st := &l.status
	st.Cycles++
	st.LastAttempt = start
	st.Watermark = l.watermark
	if out.Err != nil {
		st.Failures++
		st.ConsecutiveFailures++
		st.LastError = out.Err.Error()
	} else {
		st.ConsecutiveFailures = 0
		st.LastError = ""
		st.LastSuccess = start
	}
	if out.Delivered {
		st.Deliveries++
		st.LastSent = out.Text
		st.LastSentAt = l.now()
	}
	if out.DeliveryErr != nil {
		st.DeliveryFailures++
	}
}

// Status returns a snapshot of the loop state.
func (l *Loop) Status() Status {
	l.statusMu.RLock()
	defer l.statusMu.RUnlock()
	return l.status
}

// FailureText is the diagnostic notification for a failed cycle.
func FailureText(err error) string {
	return FailurePrefix + err.Error()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
