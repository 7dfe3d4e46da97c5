package main

import (
	"context"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime/trace"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// profiler serves pprof endpoints and records an execution trace while a
// command runs. Both are optional; a zero profiler does nothing.
type profiler struct {
	addr      string
	tracePath string

	server    *http.Server
	traceFile *os.File
}

func newProfiler(c *cli.Context) *profiler {
	return &profiler{addr: c.String("pprof-addr"), tracePath: c.String("trace-out")}
}

func (p *profiler) start() error {
	if p.addr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		p.server = &http.Server{Addr: p.addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func(s *http.Server) {
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logrus.WithError(err).Warn("profiling server stopped")
			}
		}(p.server)
		logrus.WithField("addr", p.addr).Info("profiling server started")
	}

	if p.tracePath != "" {
		f, err := os.Create(p.tracePath)
		if err != nil {
			return errors.Wrap(err, "create trace file")
		}
		if err := trace.Start(f); err != nil {
			f.Close()
			return errors.Wrap(err, "start trace")
		}
		p.traceFile = f
	}
	return nil
}

func (p *profiler) stop() {
	if p.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.server.Shutdown(ctx); err != nil {
			logrus.WithError(err).Warn("shut down profiling server")
		}
		p.server = nil
	}
	if p.traceFile != nil {
		trace.Stop()
		p.traceFile.Close()
		p.traceFile = nil
	}
}
