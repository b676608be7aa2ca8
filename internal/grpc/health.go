package grpc

import (
	"context"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	ggrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"research-chat/internal/observability"
)

// Check probes one dependency; a nil error means serving.
type Check func(ctx context.Context) error

// HealthServer exposes grpc.health.v1 with the overall status derived from checks.
type HealthServer struct {
	server *ggrpc.Server
	health *health.Server
	log    *zap.Logger

	mu     sync.Mutex
	checks map[string]Check
}

// NewHealthServer builds the server. checks may be empty.
func NewHealthServer(log *zap.Logger, checks map[string]Check) *HealthServer {
	if log == nil {
		log = zap.NewNop()
	}
	srv := ggrpc.NewServer(
		ggrpc.StatsHandler(otelgrpc.NewServerHandler()),
		ggrpc.UnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	if checks == nil {
		checks = map[string]Check{}
	}
	return &HealthServer{server: srv, health: hs, log: log, checks: checks}
}

// Refresh runs every check once and publishes the statuses. The overall
// service ("") is serving only when every check passes.
func (s *HealthServer) Refresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	overall := healthpb.HealthCheckResponse_SERVING
	for name, check := range s.checks {
		status := healthpb.HealthCheckResponse_SERVING
		if err := check(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = status
			s.log.Warn("health check failed", zap.String("check", name), zap.Error(err))
		}
		s.health.SetServingStatus(name, status)
	}
	s.health.SetServingStatus("", overall)
}

// Watch refreshes on every tick until ctx is done.
func (s *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

func (s *HealthServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Stop marks everything not serving and drains in-flight calls.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
