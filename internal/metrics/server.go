package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"

	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
)

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Server exposes /metrics and /healthz.
type Server struct {
	addr     string
	maxConns int
	srv      *http.Server
	ln       net.Listener
	done     chan error
}

// NewServer builds a metrics server for reg. Go and process collectors are
// added to the registry. maxConns <= 0 leaves the listener uncapped.
func NewServer(addr string, reg *prom.Registry, maxConns int) *Server {
	reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", HTTPHandler(reg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return &Server{
		addr:     addr,
		maxConns: maxConns,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return ferrors.NetworkError("failed to bind metrics listener").
			WithCause(err).
			WithContext("addr", s.addr).
			Build()
	}
	if s.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.maxConns)
	}
	s.ln = ln
	s.done = make(chan error, 1)

	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()

	slog.Info("Metrics server listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, useful when listening on ":0".
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.ln == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-s.done
}
