// Package pprof runs the optional debug HTTP server: net/http/pprof under a
// configurable prefix, /healthz and a JSON scheduler snapshot at /debug/jobs.
package pprof

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	rtsup "jobsys/internal/runtime/supervisor"
	logx "jobsys/pkg/logx"
)

const (
	defaultAddr   = "127.0.0.1:6060"
	defaultPrefix = "/debug/pprof/"
	jobsPath      = "/debug/jobs"
)

// Config controls the debug server.
//
// Binding to a non-loopback address requires Token or AllowInsecure.
type Config struct {
	Enabled       bool
	Addr          string
	Prefix        string
	Token         string
	AllowInsecure bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MutexProfileFraction int
	BlockProfileRate     int
	MemProfileRate       int
}

// SnapshotFunc produces the document served at /debug/jobs.
type SnapshotFunc func() any

type Service struct {
	mu       sync.Mutex
	log      logx.Logger
	cfg      Config
	snapshot SnapshotFunc

	addr     string
	srv      *http.Server
	sup      *rtsup.Supervisor
	stopDone chan struct{}
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log.With(logx.String("comp", "pprof"))}
}

// SetSnapshotFunc installs the /debug/jobs source. Takes effect on the next request.
func (s *Service) SetSnapshotFunc(fn SnapshotFunc) {
	s.mu.Lock()
	s.snapshot = fn
	s.mu.Unlock()
}

// Addr returns the bound listen address, or "" when not serving.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Supervisor returns the server's supervisor (nil if not started).
func (s *Service) Supervisor() *rtsup.Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sup
}

// Apply installs cfg, starting, stopping or restarting the server as needed.
// Runtime profiling rates are applied even when the server is disabled.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	applyRuntimeRates(cfg)

	s.mu.Lock()
	prev := s.cfg
	running := s.sup != nil
	s.cfg = cfg
	s.mu.Unlock()

	switch {
	case !cfg.Enabled:
		if running {
			s.Stop(ctx)
		}
	case !running:
		s.Start(ctx)
	case needsRestart(prev, cfg):
		s.Stop(ctx)
		s.Start(ctx)
	}
}

func needsRestart(a, b Config) bool {
	return a.Addr != b.Addr ||
		normalizePrefix(a.Prefix) != normalizePrefix(b.Prefix) ||
		a.Token != b.Token ||
		a.AllowInsecure != b.AllowInsecure ||
		a.ReadTimeout != b.ReadTimeout ||
		a.WriteTimeout != b.WriteTimeout ||
		a.IdleTimeout != b.IdleTimeout
}

func applyRuntimeRates(cfg Config) {
	if cfg.MutexProfileFraction >= 0 {
		runtime.SetMutexProfileFraction(cfg.MutexProfileFraction)
	}
	if cfg.BlockProfileRate >= 0 {
		runtime.SetBlockProfileRate(cfg.BlockProfileRate)
	}
	if cfg.MemProfileRate > 0 {
		runtime.MemProfileRate = cfg.MemProfileRate
	}
}

// Start is idempotent. It waits for an in-flight Stop before starting again.
func (s *Service) Start(ctx context.Context) {
	for {
		s.mu.Lock()
		if done := s.stopDone; done != nil {
			s.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return
			}
		}
		if s.sup != nil || !s.cfg.Enabled {
			s.mu.Unlock()
			return
		}
		s.sup = rtsup.New(context.WithoutCancel(ctx),
			rtsup.WithLogger(s.log),
			// Debug endpoints are optional; never take the process down.
			rtsup.WithCancelOnError(false),
		)
		sup := s.sup
		s.mu.Unlock()

		sup.GoRestart("http.serve", s.serveOnce, rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
		return
	}
}

// Stop shuts the server down. If ctx ends first the supervisor is cancelled and
// shutdown completes in the background.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.sup == nil {
		s.mu.Unlock()
		return
	}
	if done := s.stopDone; done != nil {
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	srv, sup := s.srv, s.sup
	s.mu.Unlock()

	go func() {
		defer close(done)
		if srv != nil {
			_ = srv.Shutdown(ctx)
			_ = srv.Close()
		}
		sup.Cancel()
		_ = sup.Wait(context.Background())

		s.mu.Lock()
		s.srv, s.sup, s.addr, s.stopDone = nil, nil, "", nil
		s.mu.Unlock()
		s.log.Info("pprof stopped")
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sup.Cancel()
	}
}

func (s *Service) serveOnce(ctx context.Context) error {
	s.mu.Lock()
	cur := s.cfg
	s.mu.Unlock()
	if !cur.Enabled {
		return nil
	}

	addr := strings.TrimSpace(cur.Addr)
	if addr == "" {
		addr = defaultAddr
	}
	tokenSet := strings.TrimSpace(cur.Token) != ""
	if !tokenSet && !isLoopbackAddr(addr) {
		if !cur.AllowInsecure {
			s.log.Error("pprof refused to start: non-loopback addr requires token or allow_insecure", logx.String("addr", addr))
			return errors.New("pprof refused to start: insecure bind")
		}
		s.log.Warn("pprof running without token on non-loopback addr (insecure)", logx.String("addr", addr))
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.log.Error("pprof listen failed", logx.String("addr", addr), logx.Err(err))
		return err
	}

	srv := &http.Server{
		Handler:      s.Handler(cur),
		ReadTimeout:  cur.ReadTimeout,
		WriteTimeout: cur.WriteTimeout,
		IdleTimeout:  cur.IdleTimeout,
	}
	defer func() { _ = srv.Close() }()

	bound := ln.Addr().String()
	s.mu.Lock()
	s.srv, s.addr = srv, bound
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(cctx)
	})
	defer stop()

	prefix := normalizePrefix(cur.Prefix)
	s.log.Info("pprof started",
		logx.String("addr", bound),
		logx.String("prefix", prefix),
		logx.Bool("token_set", tokenSet),
		logx.String("hint", fmt.Sprintf("http://%s%s", bound, prefix)),
	)

	err = srv.Serve(ln)

	s.mu.Lock()
	if s.srv == srv {
		s.srv, s.addr = nil, ""
	}
	stopping := s.stopDone != nil
	s.mu.Unlock()

	if stopping || ctx.Err() != nil {
		return nil
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("pprof server exited unexpectedly")
	}
	return err
}

// Handler builds the mux for cfg. Exposed for tests.
func (s *Service) Handler(cfg Config) http.Handler {
	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withAuth(cfg.Token, h) }

	mux.HandleFunc("/healthz", wrap(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	mux.HandleFunc(jobsPath, wrap(s.serveJobs))
	registerPprof(mux, normalizePrefix(cfg.Prefix), wrap)
	return mux
}

func (s *Service) serveJobs(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	fn := s.snapshot
	s.mu.Unlock()
	if fn == nil {
		http.Error(w, "no snapshot source", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fn()); err != nil {
		s.log.Warn("debug/jobs encode failed", logx.Err(err))
	}
}

func withAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		// Authorization: Bearer <token>, or ?token=<token>.
		if got := r.URL.Query().Get("token"); got != "" {
			if got == tok {
				h(w, r)
				return
			}
			unauthorized(w)
			return
		}
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(ah[len(p):]) == tok {
			h(w, r)
			return
		}
		unauthorized(w)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// All interfaces.
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
