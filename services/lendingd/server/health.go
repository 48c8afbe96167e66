package server

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"lendingpool/native/flashloan"
	"lendingpool/native/lending"
)

// PauseSource reports module pause flags.
type PauseSource interface {
	IsPaused(module string) bool
}

// Health publishes the gRPC health status of the lending and flash-loan
// services. A paused module reports NOT_SERVING.
type Health struct {
	server *health.Server
	source PauseSource
}

// NewHealth creates a health reporter backed by source.
func NewHealth(source PauseSource) *Health {
	h := &Health{server: health.NewServer(), source: source}
	h.Refresh()
	return h
}

// Refresh copies the current pause flags into the health server.
func (h *Health) Refresh() {
	overall := healthpb.HealthCheckResponse_SERVING
	for _, module := range []string{lending.ModuleName, flashloan.ModuleName} {
		status := healthpb.HealthCheckResponse_SERVING
		if h.source.IsPaused(module) {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			if module == lending.ModuleName {
				overall = status
			}
		}
		h.server.SetServingStatus(module, status)
	}
	h.server.SetServingStatus("", overall)
}

// Run refreshes the status every interval until ctx is done.
func (h *Health) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Refresh()
		}
	}
}

// Server exposes the underlying health service implementation.
func (h *Health) Server() healthpb.HealthServer { return h.server }

// NewGRPCServer returns a traced gRPC server with the health service
// registered.
func NewGRPCServer(h *Health, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, h.server)
	return srv
}
