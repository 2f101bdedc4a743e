// Package ops serves the optional operational HTTP endpoint: liveness,
// a JSON status snapshot, and pprof. It binds to loopback only unless
// explicitly overridden.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	rtsup "anibot/internal/runtime/supervisor"
	logx "anibot/pkg/logx"
)

type Config struct {
	Enabled       bool
	Addr          string
	AllowInsecure bool
}

// StatusFunc produces the /statusz payload. Keep it cheap; it runs on every
// request.
type StatusFunc func() any

type Service struct {
	mu  sync.Mutex
	log logx.Logger
	cfg Config

	status StatusFunc

	ln  net.Listener
	srv *http.Server
	sup *rtsup.Supervisor
}

func New(cfg Config, status StatusFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, status: status, log: log}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Start is idempotent and a no-op when disabled.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil || !s.cfg.Enabled {
		return
	}

	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "ops"))),
		// Observability is optional; never hard-kill the app over it.
		rtsup.WithCancelOnError(false),
	)
	s.sup.GoRestart("http.serve", s.serveOnce)
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	sup := s.sup
	srv := s.srv
	ln := s.ln
	s.sup = nil
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()

	if sup == nil {
		return
	}
	if srv != nil {
		_ = srv.Shutdown(ctx)
		_ = srv.Close()
	}
	if ln != nil {
		_ = ln.Close()
	}
	sup.Cancel()
	_ = sup.Wait(ctx)
}

func (s *Service) serveOnce(ctx context.Context) error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:6060"
	}
	// Guard against accidental public exposure: pprof has no auth here.
	if !cfg.AllowInsecure && !isLoopbackAddr(addr) {
		s.log.Error("ops refused to start: non-loopback addr requires allow_insecure", logx.String("addr", addr))
		return errors.New("ops refused to start: insecure bind")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/statusz", func(w http.ResponseWriter, _ *http.Request) {
		var payload any = map[string]string{"status": "ok"}
		if s.status != nil {
			payload = s.status()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	})

	r.Route("/debug/pprof", func(r chi.Router) {
		r.Get("/", http.HandlerFunc(hpprof.Index).ServeHTTP)
		r.Get("/cmdline", hpprof.Cmdline)
		r.Get("/profile", hpprof.Profile)
		r.Get("/symbol", hpprof.Symbol)
		r.Post("/symbol", hpprof.Symbol)
		r.Get("/trace", hpprof.Trace)
		r.Get("/{name}", func(w http.ResponseWriter, req *http.Request) {
			hpprof.Handler(chi.URLParam(req, "name")).ServeHTTP(w, req)
		})
	})

	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
	}

	s.mu.Lock()
	s.ln = ln
	s.srv = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	s.log.Info("ops server started", logx.String("addr", ln.Addr().String()))

	err = srv.Serve(ln)
	if ctx.Err() != nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
