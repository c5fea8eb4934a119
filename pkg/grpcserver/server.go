// Package grpcserver exposes the standard gRPC health service, fed from the
// application health checker.
package grpcserver

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	apphealth "tabletop-chat/backend/pkg/health"
	"tabletop-chat/backend/pkg/logger"
)

// ServiceName is the health service name reported next to the overall ""
const ServiceName = "tabletop.Chat"

// Server wraps a grpc.Server with the health service registered
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    *logger.Logger
}

// New creates the server. When checker is set the serving status follows
// the checker's overall health.
func New(checker *apphealth.Checker, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		log:    log,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	s.SetServing(false)
	if checker != nil {
		checker.OnChange(s.SetServing)
	}
	return s
}

// SetServing updates the status of both the overall and the named service
func (s *Server) SetServing(healthy bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if healthy {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve accepts connections on lis until Stop
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// ListenAndServe listens on the tcp port and serves
func (s *Server) ListenAndServe(port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", port, err)
	}
	return s.Serve(lis)
}

// Stop drains in-flight calls and stops the server
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
