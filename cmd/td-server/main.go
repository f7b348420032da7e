package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/td-engine/catalog"
	"github.com/signalsfoundry/td-engine/internal/api"
	"github.com/signalsfoundry/td-engine/internal/broadcast"
	"github.com/signalsfoundry/td-engine/internal/config"
	"github.com/signalsfoundry/td-engine/internal/console"
	"github.com/signalsfoundry/td-engine/internal/logging"
	"github.com/signalsfoundry/td-engine/internal/observability"
	"github.com/signalsfoundry/td-engine/internal/room"
)

func main() {
	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error(ctx, "invalid environment", logging.Err(err))
		os.Exit(1)
	}
	flag.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "TCP address the match gRPC service listens on")
	flag.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP address for the websocket endpoint (empty disables)")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "HTTP address for Prometheus /metrics (empty disables)")
	flag.StringVar(&cfg.SSHAddr, "ssh-addr", cfg.SSHAddr, "address of the operator SSH console (empty disables)")
	flag.StringVar(&cfg.SSHHostKey, "ssh-host-key", cfg.SSHHostKey, "SSH host key path")
	flag.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "optional JSON catalog file")
	flag.DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "simulation tick interval")
	flag.DurationVar(&cfg.SpawnInterval, "spawn", cfg.SpawnInterval, "enemy spawn interval")
	flag.DurationVar(&cfg.ReapAfter, "reap-after", cfg.ReapAfter, "destroy finished, unwatched matches after this idle time (0 disables)")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Error(ctx, "invalid configuration", logging.Err(err))
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.GRPCAddr), logging.Err(err))
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(runCtx, cfg, log, lis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves every front end until ctx is cancelled. lis carries the gRPC
// service; the HTTP, metrics and SSH listeners are opened from cfg and
// skipped when their address is empty.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rpcMetrics, err := observability.NewRPCCollector(reg)
	if err != nil {
		return err
	}
	matchMetrics, err := observability.NewMatchCollector(reg)
	if err != nil {
		return err
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		if cat, err = catalog.LoadFile(cfg.CatalogPath); err != nil {
			return err
		}
		log.Info(ctx, "loaded catalog", logging.String("path", cfg.CatalogPath), logging.Int("waves", cat.WaveCount()))
	}

	registry, err := room.NewRegistry(cfg.RoomConfig(), cat,
		room.WithLogger(log),
		room.WithMetrics(matchMetrics),
	)
	if err != nil {
		return err
	}

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			api.RequestIDUnaryServerInterceptor(log),
			api.TracingUnaryServerInterceptor(),
			rpcMetrics.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			api.RequestIDStreamServerInterceptor(log),
			api.TracingStreamServerInterceptor(),
			rpcMetrics.StreamServerInterceptor(),
		),
	)
	api.RegisterMatchService(server, api.NewMatchService(registry, log))

	serveErr := make(chan error, 4)
	log.Info(ctx, "starting match gRPC server", logging.String("addr", lis.Addr().String()))
	go func() {
		if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- err
		}
	}()

	var httpServers []*http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rpcMetrics.Handler())
		httpServers = append(httpServers, serveHTTP(ctx, "metrics", cfg.MetricsAddr, mux, log, serveErr))
	}
	if cfg.HTTPAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", broadcast.NewServer(registry, broadcast.WithLogger(log)))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		httpServers = append(httpServers, serveHTTP(ctx, "websocket", cfg.HTTPAddr, mux, log, serveErr))
	}

	var sshServer *ssh.Server
	if cfg.SSHAddr != "" {
		sshServer, err = console.NewSSHServer(cfg.SSHAddr, cfg.SSHHostKey, console.New(registry, log))
		if err != nil {
			server.Stop()
			registry.Shutdown()
			return err
		}
		log.Info(ctx, "starting operator console", logging.String("addr", cfg.SSHAddr))
		go func() {
			if err := sshServer.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
				serveErr <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
		log.Error(ctx, "listener failed; shutting down", logging.Err(runErr))
	}

	log.Info(context.Background(), "shutting down match server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if sshServer != nil {
		_ = sshServer.Shutdown(shutdownCtx)
	}
	for _, srv := range httpServers {
		_ = srv.Shutdown(shutdownCtx)
	}
	// Closing the rooms ends every snapshot stream, so GracefulStop can drain.
	registry.Shutdown()
	server.GracefulStop()
	return runErr
}

func serveHTTP(ctx context.Context, name, addr string, h http.Handler, log logging.Logger, errCh chan<- error) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info(ctx, "serving HTTP", logging.String("server", name), logging.String("addr", addr))
	return srv
}
