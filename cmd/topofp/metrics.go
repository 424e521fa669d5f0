package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/topofingerprint/internal/monitoring"
)

// metricsServer exposes batch metrics on /metrics for the lifetime of a
// command.
type metricsServer struct {
	metrics *monitoring.Metrics
	addr    string
	srv     *http.Server
}

// startMetrics registers the batch collectors on a fresh registry and
// serves it on addr.
func startMetrics(addr string) (*metricsServer, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := monitoring.NewMetrics(reg)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			monitoring.Logf("[metrics] serve: %v", err)
		}
	}()
	return &metricsServer{metrics: m, addr: ln.Addr().String(), srv: srv}, nil
}

func (s *metricsServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
