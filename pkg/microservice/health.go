package microservice

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Ingenimax/llmops-agent/pkg/logging"
)

// HealthServer serves grpc.health.v1.Health. The empty service name reports overall
// status and each registered agent is reported under its own name.
type HealthServer struct {
	agents AgentSource
	port   int
	logger logging.Logger
	health *health.Server
	server *grpc.Server
}

// NewHealthServer creates a gRPC health server for the agents in source
func NewHealthServer(agents AgentSource, port int, logger logging.Logger) *HealthServer {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	hs := &HealthServer{
		agents: agents,
		port:   port,
		logger: logger,
		health: health.NewServer(),
		server: grpc.NewServer(),
	}
	healthpb.RegisterHealthServer(hs.server, hs.health)
	hs.MarkServing()
	return hs
}

// MarkServing sets the overall status and every agent to SERVING
func (s *HealthServer) MarkServing() {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	for _, name := range s.agents.List() {
		s.health.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
}

// Start listens on the configured port and blocks until the server stops
func (s *HealthServer) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}
	return s.Serve(lis)
}

// Serve serves gRPC on lis and blocks until the server stops.
// After Stop it returns nil at once.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.logger.Info(context.Background(), "gRPC health server starting", map[string]interface{}{
		"addr": lis.Addr().String(),
	})
	err := s.server.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Stop reports NOT_SERVING, then stops accepting calls and waits for pending ones
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
