// ABOUTME: RPC metrics interceptor plus the HTTP side channel of the daemon
// ABOUTME: Serves /metrics, /health, /ready and pprof next to the gRPC port

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/nainya/standardstore/internal/logger"
	"github.com/nainya/standardstore/internal/metrics"
)

// GrpcMetricsInterceptor counts, times and logs every unary call by method and status code.
func GrpcMetricsInterceptor(m *metrics.Metrics, log *logger.Logger) grpc.UnaryServerInterceptor {
	log = logger.OrNop(log)
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		done := m.InFlight()
		defer done()

		resp, err := handler(ctx, req)

		duration := time.Since(start)
		m.RecordGrpcRequest(info.FullMethod, status.Code(err).String(), duration)
		log.RPCLogger(info.FullMethod).LogRPCRequest(duration, err)

		return resp, err
	}
}

// ReadyFunc reports whether the service can serve traffic.
type ReadyFunc func(ctx context.Context) error

// ObservabilityServer is the plain HTTP listener next to the gRPC port.
type ObservabilityServer struct {
	server *http.Server
	log    *logger.Logger
}

// NewObservabilityServer creates a new HTTP server for observability. gatherer
// backs /metrics; ready backs /ready and may be nil.
func NewObservabilityServer(port int, gatherer prometheus.Gatherer, ready ReadyFunc, log *logger.Logger) *ObservabilityServer {
	return &ObservabilityServer{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      observabilityMux(gatherer, ready),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: logger.OrNop(log),
	}
}

func observabilityMux(gatherer prometheus.Gatherer, ready ReadyFunc) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"standardstore"}`))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = fmt.Fprintf(w, `{"status":"not_ready","reason":%q}`, err.Error())
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	for _, name := range []string{"heap", "goroutine", "threadcreate", "block", "mutex", "allocs"} {
		mux.Handle("/debug/pprof/"+name, pprof.Handler(name))
	}
	return mux
}

// Start listens on the configured port until Shutdown.
func (o *ObservabilityServer) Start() error {
	lis, err := net.Listen("tcp", o.server.Addr)
	if err != nil {
		return fmt.Errorf("observability listen %s: %w", o.server.Addr, err)
	}
	return o.Serve(lis)
}

// Serve runs the server on an existing listener.
func (o *ObservabilityServer) Serve(lis net.Listener) error {
	base := "http://" + lis.Addr().String()
	o.log.Info("Observability endpoints up").
		Str("metrics", base+"/metrics").
		Str("ready", base+"/ready").
		Str("pprof", base+"/debug/pprof/").
		Send()

	err := o.server.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("observability server: %w", err)
}

// Shutdown drains in-flight scrapes and probes.
func (o *ObservabilityServer) Shutdown(ctx context.Context) error {
	o.log.Debug("Observability server stopping").Send()
	return o.server.Shutdown(ctx)
}
