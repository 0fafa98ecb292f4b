// Package rpc exposes the standard gRPC health service. The serving status
// follows the session: SERVING from "ready" until "stopped".
package rpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/vitals.report/internal/monitoring"
	"github.com/banshee-data/vitals.report/internal/session"
)

// ServiceName is the health service name reported for the session.
const ServiceName = "vitals.Session"

// Server is a gRPC server carrying the health service. It is also a sink,
// so it sees the session's status stream.
type Server struct {
	addr     string
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewServer prepares a server for addr. Nothing listens until Start.
func NewServer(addr string) *Server {
	s := &Server{
		addr:   addr,
		server: grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	if s.running.Load() {
		return fmt.Errorf("rpc server already running")
	}
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = lis
	s.running.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		monitoring.Logf("[rpc] gRPC health server listening on %s", lis.Addr())
		if err := s.server.Serve(lis); err != nil && s.running.Load() {
			monitoring.Logf("[rpc] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Addr is the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// SetServing flips both the overall and the session status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *Server) Name() string { return "grpc-health" }

// PublishMetrics is a no-op; health only follows the status stream.
func (s *Server) PublishMetrics(context.Context, session.Metrics) error { return nil }

func (s *Server) PublishStatus(_ context.Context, st session.Status) error {
	switch st.Status {
	case session.StatusReady, session.StatusProcessing:
		s.SetServing(true)
	case session.StatusStopped:
		s.SetServing(false)
	}
	return nil
}

// Close stops the server. Watchers see NOT_SERVING before the transport
// goes away.
func (s *Server) Close() error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)
	s.health.Shutdown()
	s.server.GracefulStop()
	s.wg.Wait()
	monitoring.Logf("[rpc] gRPC server stopped")
	return nil
}
