package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	protocol "lendingpool/config"
	"lendingpool/core"
	"lendingpool/observability/logging"
	telemetry "lendingpool/observability/otel"
	"lendingpool/services/lendingd/config"
	"lendingpool/services/lendingd/eventlog"
	"lendingpool/services/lendingd/server"
	"lendingpool/storage"
)

func main() {
	var (
		cfgPath    string
		exportPath string
		exportType string
	)
	flag.StringVar(&cfgPath, "config", "services/lendingd/config.yaml", "path to lendingd config")
	flag.StringVar(&exportPath, "export-events", "", "write the event journal to this parquet file and exit")
	flag.StringVar(&exportType, "export-type", "", "restrict -export-events to one event type")
	flag.Parse()

	if err := run(cfgPath, exportPath, exportType); err != nil {
		slog.Error("lendingd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfgPath, exportPath, exportType string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("LENDINGD_ENV"))
	logOpts := []logging.Option{logging.WithLevel(logging.ParseLevel(cfg.Log.Level))}
	if cfg.Log.File != "" {
		logOpts = append(logOpts, logging.WithFile(logging.FileOptions{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			Compress:   true,
		}))
	}
	logger := logging.Setup("lendingd", env, logOpts...)

	journal, err := eventlog.Open(eventlog.Config{DSN: cfg.Journal.DSN, SQLitePath: cfg.Journal.SQLitePath})
	if err != nil {
		return err
	}
	defer journal.Close()
	if cfg.Journal.DSN != "" {
		logger.Info("event journal connected", slog.String("dsn", logging.MaskDSN(cfg.Journal.DSN)))
	}

	if exportPath != "" {
		written, err := journal.ExportParquet(context.Background(), exportPath, eventlog.Filter{Type: exportType})
		if err != nil {
			return err
		}
		logger.Info("event journal exported", slog.String("path", exportPath), slog.Int("rows", written))
		return nil
	}

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "lendingd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	protocolCfg, err := protocol.Load(cfg.ProtocolConfig)
	if err != nil {
		return fmt.Errorf("load protocol config: %w", err)
	}
	db, err := storage.Open(protocolCfg.Storage.Backend, protocolCfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	node, err := core.NewNode(db, protocolCfg, core.WithLogger(logger), core.WithEventSink(journal))
	if err != nil {
		db.Close()
		return err
	}
	defer node.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := server.New(node, server.Config{
		Auth: server.AuthConfig{
			HMACSecret: cfg.Auth.JWTSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.ClockSkew,
		},
		RateLimit: server.RateLimit{
			RequestsPerMinute: float64(cfg.RateLimit.RequestsPerMinute),
			Burst:             cfg.RateLimit.Burst,
		},
		Journal: journal,
		Logger:  logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	health := server.NewHealth(node)
	go health.Run(ctx, 5*time.Second)
	grpcServer := server.NewGRPCServer(health)
	grpcListener, err := net.Listen("tcp", cfg.GRPCListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCListenAddress, err)
	}

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}
	if !cfg.TLS.Enabled() {
		tcpAddr, _ := listener.Addr().(*net.TCPAddr)
		loopback := tcpAddr != nil && tcpAddr.IP != nil && tcpAddr.IP.IsLoopback()
		if !strings.EqualFold(env, "dev") && !loopback {
			listener.Close()
			return errors.New("plaintext lendingd mode is restricted to loopback listeners or dev environment")
		}
	}

	serverErr := make(chan error, 2)
	go func() {
		logger.Info("lendingd listening", slog.String("listen", cfg.ListenAddress), slog.Bool("tls", cfg.TLS.Enabled()))
		var err error
		if cfg.TLS.Enabled() {
			err = httpServer.ServeTLS(listener, cfg.TLS.CertPath, cfg.TLS.KeyPath)
		} else {
			err = httpServer.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("serve http: %w", err)
		}
	}()
	go func() {
		logger.Info("health service listening", slog.String("listen", cfg.GRPCListenAddress))
		if err := grpcServer.Serve(grpcListener); err != nil {
			serverErr <- fmt.Errorf("serve grpc: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-serverErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forcing http server stop", slog.Any("error", err))
		_ = httpServer.Close()
	}
	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("forcing grpc server stop")
		grpcServer.Stop()
	}
	return runErr
}
