package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeworkbot/internal/homework"
	"homeworkbot/internal/storage"
	kit "homeworkbot/internal/transport"
	logx "homeworkbot/pkg/logx"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// scriptedFetcher replays one step per call and records the requested watermark.
type scriptedFetcher struct {
	steps []fetchStep
	calls []int64
}

type fetchStep struct {
	payload string
	err     error
}

func (f *scriptedFetcher) Fetch(ctx context.Context, since int64) ([]byte, error) {
	f.calls = append(f.calls, since)
	if len(f.steps) == 0 {
		return nil, errors.New("script exhausted")
	}
	st := f.steps[0]
	f.steps = f.steps[1:]
	if st.err != nil {
		return nil, st.err
	}
	return []byte(st.payload), nil
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	fails int // fail this many sends before succeeding
}

func (s *fakeSender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	if s.fails > 0 {
		s.fails--
		return kit.MessageRef{}, errors.New("telegram: Forbidden: bot was blocked by the user (403)")
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(s.sent)}, nil
}

func (s *fakeSender) attempts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type memJournal struct {
	entries []storage.Delivery
}

func (m *memJournal) AppendDelivery(ctx context.Context, d storage.Delivery) error {
	m.entries = append(m.entries, d)
	return nil
}

func (m *memJournal) RecentDeliveries(ctx context.Context, n int) ([]storage.Delivery, error) {
	return nil, nil
}

func (m *memJournal) Close() error { return nil }

func approvedPayload(cursor string) string {
	return `{"homeworks": [{"homework_name": "proj1", "status": "approved", "date_updated": "2024-05-01T10:00:00Z"}], "current_date": ` + cursor + `}`
}

func newTestLoop(f homework.Fetcher, s kit.Sender, opts ...Option) *Loop {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(Config{Chat: kit.ChatTarget{ChatID: 42}}, homework.NewCycle(f, homework.DefaultCatalog()), s, opts...)
}

func TestInitialWatermarkUsesLookback(t *testing.T) {
	l := New(Config{Lookback: time.Hour}, homework.NewCycle(&scriptedFetcher{}, homework.DefaultCatalog()), &fakeSender{},
		WithClock(func() time.Time { return testNow }))
	assert.Equal(t, testNow.Add(-time.Hour).Unix(), l.Status().Watermark)
}

func TestTickDeduplicatesIdenticalText(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{
		{payload: approvedPayload("1714560000")},
		{payload: approvedPayload("1714560600")},
	}}
	s := &fakeSender{}
	l := newTestLoop(f, s)

	first := l.Tick(context.Background())
	second := l.Tick(context.Background())

	assert.True(t, first.Delivered)
	assert.False(t, second.Delivered)
	assert.Len(t, s.attempts(), 1, "identical text must be sent once")
	assert.Equal(t, int64(1714560600), second.Watermark, "unchanged text still advances the window")
}

func TestTickDeliveryFailureKeepsWatermarkAndRetries(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{
		{payload: approvedPayload("1714560000")},
		{payload: approvedPayload("1714560000")},
	}}
	s := &fakeSender{fails: 1}
	l := newTestLoop(f, s)
	start := l.Status().Watermark

	out := l.Tick(context.Background())
	require.Error(t, out.DeliveryErr)
	assert.True(t, errors.Is(out.DeliveryErr, homework.ErrDeliveryFailed))
	assert.Equal(t, start, out.Watermark)
	assert.Equal(t, "", l.Status().LastSent)

	out = l.Tick(context.Background())
	require.NoError(t, out.DeliveryErr)
	assert.True(t, out.Delivered)
	assert.Equal(t, []int64{start, start}, f.calls, "second cycle re-reads the same window")
	assert.Len(t, s.attempts(), 2)
	assert.Equal(t, int64(1714560000), l.Status().Watermark)
	assert.Equal(t, uint64(1), l.Status().DeliveryFailures)
}

func TestTickFailureDoesNotAdvanceWatermark(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{
		{err: errors.New("dial tcp: connection refused")},
		{payload: `{"homeworks": [], "current_date": 1714560000}`},
	}}
	s := &fakeSender{}
	l := newTestLoop(f, s)
	start := l.Status().Watermark

	out := l.Tick(context.Background())
	require.Error(t, out.Err)
	assert.Equal(t, homework.KindFetchFailed, homework.KindOf(out.Err))
	assert.Equal(t, start, out.Watermark)
	assert.True(t, strings.HasPrefix(out.Text, FailurePrefix))
	assert.Equal(t, 1, l.Status().ConsecutiveFailures)

	// The next cycle runs from the same watermark.
	out = l.Tick(context.Background())
	require.NoError(t, out.Err)
	assert.Equal(t, []int64{start, start}, f.calls)
	assert.Equal(t, homework.NothingPending, out.Text)
	assert.Equal(t, int64(1714560000), out.Watermark)
	assert.Equal(t, 0, l.Status().ConsecutiveFailures)
}

func TestTickRepeatedFailureIsSentOnce(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{
		{payload: `{"homeworks": "x"}`},
		{payload: `{"homeworks": "x"}`},
		{payload: `{}`},
	}}
	s := &fakeSender{}
	l := newTestLoop(f, s)

	l.Tick(context.Background())
	l.Tick(context.Background())
	l.Tick(context.Background())

	sent := s.attempts()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0], "malformed response")
	assert.Contains(t, sent[1], `missing field "homeworks"`)
	assert.Equal(t, uint64(3), l.Status().Failures)
	assert.False(t, l.Status().Healthy())
}

func TestEndToEndScenario(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{
		{payload: approvedPayload("1714560000")},
		{payload: approvedPayload("1714560600")},
		{err: errors.New("dial tcp 1.2.3.4:443: connect: connection refused")},
	}}
	s := &fakeSender{}
	j := &memJournal{}
	var beats int
	l := newTestLoop(f, s, WithJournal(j), WithHeartbeat(func() { beats++ }))
	ctx := context.Background()

	// Cycle 1: approval is delivered and the window advances.
	out := l.Tick(ctx)
	require.True(t, out.Delivered)
	verdict, _ := homework.DefaultCatalog().Render(homework.StatusApproved)
	assert.Contains(t, s.attempts()[0], verdict)
	assert.Equal(t, int64(1714560000), out.Watermark)

	// Cycle 2: same homework, nothing is sent.
	out = l.Tick(ctx)
	assert.False(t, out.Delivered)
	assert.Len(t, s.attempts(), 1)
	wm2 := out.Watermark
	assert.Equal(t, int64(1714560600), wm2)

	// Cycle 3: connection error, one diagnostic, watermark unchanged.
	out = l.Tick(ctx)
	require.Error(t, out.Err)
	sent := s.attempts()
	require.Len(t, sent, 2)
	assert.True(t, strings.HasPrefix(sent[1], FailurePrefix))
	assert.Contains(t, sent[1], "connection refused")
	assert.Equal(t, wm2, out.Watermark)
	assert.Equal(t, wm2, l.Status().Watermark)

	require.Len(t, j.entries, 2)
	assert.Equal(t, "", j.entries[0].Kind)
	assert.Equal(t, string(homework.KindFetchFailed), j.entries[1].Kind)
	assert.Equal(t, 3, beats)
}

type countingRecorder struct {
	cycles     map[homework.Kind]int
	deliveries []bool
	watermark  int64
}

func (r *countingRecorder) ObserveCycle(kind homework.Kind, took time.Duration) { r.cycles[kind]++ }
func (r *countingRecorder) ObserveDelivery(ok bool)                            { r.deliveries = append(r.deliveries, ok) }
func (r *countingRecorder) SetWatermark(v int64)                               { r.watermark = v }

func TestTickReportsMetrics(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{
		{payload: approvedPayload("1714560000")},
		{payload: `{"homeworks": [{"homework_name": "x", "status": "pending", "date_updated": "y"}]}`},
	}}
	rec := &countingRecorder{cycles: map[homework.Kind]int{}}
	l := newTestLoop(f, &fakeSender{}, WithRecorder(rec))

	l.Tick(context.Background())
	l.Tick(context.Background())

	assert.Equal(t, 1, rec.cycles[homework.KindNone])
	assert.Equal(t, 1, rec.cycles[homework.KindUnknownStatus])
	assert.Equal(t, []bool{true, true}, rec.deliveries)
	assert.Equal(t, int64(1714560000), rec.watermark)
}

func TestRunSurvivesFailuresUntilCancelled(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{
		{err: errors.New("timeout")},
		{err: errors.New("timeout")},
		{payload: approvedPayload("1714560000")},
	}}
	s := &fakeSender{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var waits []time.Duration
	l := newTestLoop(f, s,
		WithWait(func(c context.Context, d time.Duration) error {
			waits = append(waits, d)
			if len(waits) == 3 {
				cancel()
				return c.Err()
			}
			return nil
		}),
	)
	l.cfg.Schedule = cron.Every(5 * time.Minute)

	require.NoError(t, l.Run(ctx))
	assert.Len(t, f.calls, 3, "failures never stop the loop")
	assert.Equal(t, []time.Duration{5 * time.Minute, 5 * time.Minute, 5 * time.Minute}, waits)
	assert.Equal(t, uint64(3), l.Status().Cycles)
	assert.Len(t, s.attempts(), 2, "the repeated timeout diagnostic is sent once")
}

func TestTickCancelledContextSendsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &fakeSender{}
	l := newTestLoop(&scriptedFetcher{steps: []fetchStep{{err: context.Canceled}}}, s)

	out := l.Tick(ctx)
	require.Error(t, out.Err)
	assert.Empty(t, s.attempts())
}

func TestFailureLogsStayOutOfTelegramSink(t *testing.T) {
	var buf bytes.Buffer
	f := &scriptedFetcher{steps: []fetchStep{{err: errors.New("dial tcp: connection refused")}}}
	l := newTestLoop(f, &fakeSender{fails: 1}, WithLogger(logx.NewWriter(&buf, "info")))

	l.Tick(context.Background())

	var errorLines int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		if m["level"] != "error" {
			continue
		}
		errorLines++
		assert.Equal(t, true, m["no_relay"], m["message"])
	}
	assert.Equal(t, 2, errorLines, "cycle failure and delivery failure")
}
