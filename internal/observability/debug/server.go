package debug

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	rtsup "homeworkbot/internal/runtime/supervisor"
	logx "homeworkbot/pkg/logx"
)

const pprofPrefix = "/debug/pprof/"

// Config controls the optional debug HTTP server.
//
// A non-loopback Addr requires Token or AllowInsecure.
type Config struct {
	Addr          string
	Token         string
	AllowInsecure bool
	// Metrics is nil when /metrics should not be served.
	Metrics *Metrics
	// Health reports liveness for /healthz; nil means always healthy.
	Health func() bool
}

// Server serves /healthz, /metrics and the pprof endpoints.
type Server struct {
	cfg Config
	log logx.Logger

	mu   sync.Mutex
	sup  *rtsup.Supervisor
	addr string
}

func New(cfg Config, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6060"
	}
	return &Server{cfg: cfg, log: log}
}

// Handler builds the routing table. Every route sits behind the token check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	wrap := func(h http.Handler) http.Handler { return withAuth(s.cfg.Token, h) }

	mux.Handle("/healthz", wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Health != nil && !s.cfg.Health() {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})))
	if s.cfg.Metrics != nil {
		mux.Handle("/metrics", wrap(promhttp.HandlerFor(s.cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}
	mux.Handle(pprofPrefix, wrap(http.HandlerFunc(hpprof.Index)))
	mux.Handle(pprofPrefix+"cmdline", wrap(http.HandlerFunc(hpprof.Cmdline)))
	mux.Handle(pprofPrefix+"profile", wrap(http.HandlerFunc(hpprof.Profile)))
	mux.Handle(pprofPrefix+"symbol", wrap(http.HandlerFunc(hpprof.Symbol)))
	mux.Handle(pprofPrefix+"trace", wrap(http.HandlerFunc(hpprof.Trace)))
	return mux
}

// Start listens and serves in the background, restarting the listener if it
// dies. An insecure public bind is refused.
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.AllowInsecure && s.cfg.Token == "" && !isLoopbackAddr(s.cfg.Addr) {
		return errors.New("debug server refused to start: non-loopback addr requires token or allow_insecure")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return nil
	}
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	// A port that stays taken is not worth retrying forever.
	s.sup.GoRestart("debug.http", s.serveOnce,
		rtsup.WithPublishFirstError(true),
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithMaxRestarts(maxListenRestarts),
	)
	return nil
}

const maxListenRestarts = 3

// Running reports whether the listener goroutine is still alive.
func (s *Server) Running() bool {
	s.mu.Lock()
	sup := s.sup
	s.mu.Unlock()
	return sup != nil && sup.Counters().Active > 0
}

// Err returns the first listener failure, if any.
func (s *Server) Err() error {
	s.mu.Lock()
	sup := s.sup
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Err()
}

// Addr returns the bound address once listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) serveOnce(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(cctx)
	}()

	s.log.Info("debug server started",
		logx.String("addr", ln.Addr().String()),
		logx.Bool("metrics", s.cfg.Metrics != nil),
		logx.Bool("token_set", s.cfg.Token != ""),
	)
	err = srv.Serve(ln)
	if ctx.Err() != nil {
		return context.Canceled
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("debug server exited unexpectedly")
	}
	return err
}

// Stop shuts the server down and waits for it, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	err := sup.Stop(ctx)
	s.log.Info("debug server stopped")
	if errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func withAuth(token string, h http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Bearer header or ?token= for browsers.
		got := r.URL.Query().Get("token")
		if got == "" {
			if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, "Bearer ") {
				got = strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))
			}
		}
		if got != tok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
