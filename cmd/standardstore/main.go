// StandardStore daemon
// Serves standards search and lookup over gRPC and MCP
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/standardstore/internal/app"
	"github.com/nainya/standardstore/internal/config"
	"github.com/nainya/standardstore/internal/mcpserver"
	"github.com/nainya/standardstore/internal/server"
	"github.com/nainya/standardstore/pkg/processor"
)

const version = "1.0.0"

// CLI is the standardstore command line.
type CLI struct {
	Config string   `short:"c" type:"path" env:"STANDARDSTORE_CONFIG" help:"YAML configuration file."`
	Serve  ServeCmd `cmd:"" help:"Run the gRPC service with the metrics endpoint."`
	MCP    MCPCmd   `cmd:"" name:"mcp" help:"Run the MCP tool server over stdio."`
}

// ServeCmd runs the gRPC daemon.
type ServeCmd struct {
	Port         int  `short:"p" help:"gRPC port (overrides config)."`
	MetricsPort  int  `help:"Metrics and health port (overrides config)."`
	FailFast     bool `help:"Abort ProcessSet on the first invalid node."`
	AllowPartial bool `help:"Let ProcessSet persist sets with failed nodes."`
}

// MCPCmd runs the MCP stdio server.
type MCPCmd struct{}

func (cmd *ServeCmd) Run(cfg *config.Config) error {
	if cmd.Port > 0 {
		cfg.Server.Port = cmd.Port
	}
	if cmd.MetricsPort > 0 {
		cfg.Server.MetricsPort = cmd.MetricsPort
	}
	a := app.New(cfg)
	log := a.Log

	log.LogServerStart(cfg.Server.Port, cfg.Index.Path)

	ix, err := a.OpenIndex()
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer ix.Close()

	srv, err := server.NewServer(server.Deps{
		Tools:   a.Tools(ix),
		Stats:   ix,
		Store:   a.Store,
		Process: processor.Options{FailFast: cmd.FailFast, AllowPartial: cmd.AllowPartial},
		Logger:  log,
		Metrics: a.Metrics,
	})
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(16*1024*1024),
		grpc.MaxSendMsgSize(16*1024*1024),
		grpc.UnaryInterceptor(server.GrpcMetricsInterceptor(a.Metrics, log)),
	)
	server.RegisterStandardStoreServer(grpcServer, srv)

	// Reflection for grpcurl/grpcui
	reflection.Register(grpcServer)

	obs := server.NewObservabilityServer(cfg.Server.MetricsPort, a.Registry, func(ctx context.Context) error {
		_, err := ix.Stats(ctx)
		return err
	}, log)
	go func() {
		if err := obs.Start(); err != nil {
			log.Error("Observability server stopped").Err(err).Send()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.LogServerShutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = obs.Shutdown(ctx)
		grpcServer.GracefulStop()
	}()

	log.Info("Server configured").Stringer("server", srv).Send()
	log.LogServerReady(cfg.Server.Port)
	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func (cmd *MCPCmd) Run(cfg *config.Config) error {
	a := app.New(cfg)

	ix, err := a.OpenIndex()
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer ix.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Log.Info("Starting MCP server").Str("transport", "stdio").Send()
	return mcpserver.RunStdio(ctx, mcpserver.New(a.Tools(ix), version, a.Log))
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("standardstore"),
		kong.Description("Educational standards search service (gRPC and MCP)."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "standardstore: %v\n", err)
		os.Exit(1)
	}
	ctx.Bind(cfg)

	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}
