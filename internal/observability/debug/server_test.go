package debug

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeworkbot/internal/homework"
	logx "homeworkbot/pkg/logx"
)

func get(t *testing.T, h http.Handler, target string, header ...string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	body, _ := io.ReadAll(rec.Result().Body)
	return rec.Code, string(body)
}

func TestMetricsEndpoint(t *testing.T) {
	m := NewMetrics()
	m.ObserveCycle(homework.KindNone, 200*time.Millisecond)
	m.ObserveCycle(homework.KindFetchFailed, time.Second)
	m.ObserveDelivery(true)
	m.ObserveDelivery(false)
	m.SetWatermark(1714560000)

	h := New(Config{Metrics: m}, logx.Nop()).Handler()
	code, body := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `homeworkbot_poll_cycles_total{kind="ok"} 1`)
	assert.Contains(t, body, `homeworkbot_poll_cycles_total{kind="fetch_failed"} 1`)
	assert.Contains(t, body, `homeworkbot_deliveries_total{result="failed"} 1`)
	assert.Contains(t, body, `homeworkbot_watermark_seconds 1.71456e+09`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsDisabled(t *testing.T) {
	h := New(Config{}, logx.Nop()).Handler()
	code, _ := get(t, h, "/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthz(t *testing.T) {
	healthy := true
	h := New(Config{Health: func() bool { return healthy }}, logx.Nop()).Handler()

	code, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	healthy = false
	code, _ = get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestTokenAuth(t *testing.T) {
	h := New(Config{Token: "s3cret"}, logx.Nop()).Handler()

	code, _ := get(t, h, "/healthz")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = get(t, h, "/healthz", "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get(t, h, "/healthz?token=s3cret")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get(t, h, "/debug/pprof/?token=wrong")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestPprofIndex(t *testing.T) {
	h := New(Config{}, logx.Nop()).Handler()
	code, body := get(t, h, "/debug/pprof/")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, strings.Contains(body, "goroutine"))
}

func TestStartRefusesPublicBindWithoutToken(t *testing.T) {
	s := New(Config{Addr: "0.0.0.0:0"}, logx.Nop())
	assert.Error(t, s.Start(context.Background()))
}

func TestStartServesAndStops(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, logx.Nop())
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return s.Addr() != "" }, 5*time.Second, 10*time.Millisecond)
	assert.True(t, s.Running())
	assert.NoError(t, s.Err())
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestStartGivesUpOnTakenPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	s := New(Config{Addr: ln.Addr().String()}, logx.Nop())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	require.Eventually(t, func() bool { return !s.Running() }, 15*time.Second, 50*time.Millisecond)
	assert.Error(t, s.Err())
	assert.Empty(t, s.Addr())
}
