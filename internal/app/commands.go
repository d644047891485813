package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"homeworkbot/internal/poller"
	rtsup "homeworkbot/internal/runtime/supervisor"
	"homeworkbot/internal/storage"
	kit "homeworkbot/internal/transport"
)

const (
	historyDefault = 5
	historyMax     = 20
	previewRunes   = 200
)

type statusSource interface {
	Status() poller.Status
}

// statusCommand answers /status. workers may be nil.
func statusCommand(src statusSource, workers func() rtsup.Counters) kit.CommandHandler {
	return func(ctx context.Context, cmd kit.Command) (string, error) {
		out := formatStatus(src.Status())
		if workers != nil {
			c := workers()
			out += fmt.Sprintf("\nWorkers: %d running, %d started", c.Active, c.Started)
		}
		return out, nil
	}
}

func formatStatus(st poller.Status) string {
	var b strings.Builder
	health := "healthy"
	if !st.Healthy() {
		health = "degraded"
	}
	fmt.Fprintf(&b, "Status: %s\n", health)
	fmt.Fprintf(&b, "Watermark: %s (%d)\n", time.Unix(st.Watermark, 0).UTC().Format(time.DateTime), st.Watermark)
	fmt.Fprintf(&b, "Cycles: %d, failed %d, failing in a row %d\n", st.Cycles, st.Failures, st.ConsecutiveFailures)
	fmt.Fprintf(&b, "Deliveries: %d, failed %d\n", st.Deliveries, st.DeliveryFailures)
	if !st.LastAttempt.IsZero() {
		fmt.Fprintf(&b, "Last poll: %s\n", st.LastAttempt.UTC().Format(time.DateTime))
	}
	if st.LastError != "" {
		fmt.Fprintf(&b, "Last error: %s\n", preview(st.LastError))
	}
	if st.LastSent != "" {
		fmt.Fprintf(&b, "Last sent at %s: %s\n", st.LastSentAt.UTC().Format(time.DateTime), preview(st.LastSent))
	}
	return strings.TrimRight(b.String(), "\n")
}

// historyCommand lists recent delivery attempts: /history [n].
func historyCommand(store storage.Store) kit.CommandHandler {
	return func(ctx context.Context, cmd kit.Command) (string, error) {
		if store == nil {
			return "Delivery journal is disabled.", nil
		}
		n := historyDefault
		if arg := strings.TrimSpace(cmd.Args); arg != "" {
			v, err := strconv.Atoi(arg)
			if err != nil || v <= 0 {
				return "Usage: /history [1-" + strconv.Itoa(historyMax) + "]", nil
			}
			n = min(v, historyMax)
		}
		rows, err := store.RecentDeliveries(ctx, n)
		if err != nil {
			return "", err
		}
		if len(rows) == 0 {
			return "No deliveries recorded yet.", nil
		}
		var b strings.Builder
		for _, d := range rows {
			mark := "ok"
			if !d.OK {
				mark = "FAILED"
			}
			fmt.Fprintf(&b, "%s [%s] %s\n", d.At.UTC().Format(time.DateTime), mark, preview(d.Text))
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}
}

func preview(s string) string {
	rs := []rune(s)
	if len(rs) <= previewRunes {
		return s
	}
	return string(rs[:previewRunes]) + "…"
}
