// Package grpc exposes the gRPC listener: the standard health service behind the
// recovery, logging and bearer authentication interceptors.
package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/turtacn/ssoguard/pkg/logger"
)

// ReadinessFunc reports whether the service can take traffic.
type ReadinessFunc func(ctx context.Context) error

// Server gRPC 服务器
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	log        logger.Logger
}

// NewServer builds the gRPC server with the interceptor chain and registers the health
// and reflection services.
func NewServer(ic *InterceptorChain, log logger.Logger, opts ...grpc.ServerOption) *Server {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	opts = append([]grpc.ServerOption{ic.ChainUnaryInterceptors()}, opts...)
	s := &Server{
		grpcServer: grpc.NewServer(opts...),
		health:     health.NewServer(),
		log:        log.WithComponent("grpc_server"),
	}
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)
	return s
}

// GRPCServer returns the underlying server for registering further services.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// SetServing flips the overall health status.
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
}

// MonitorReadiness polls ready every interval and mirrors the result into the health
// service until ctx is done.
func (s *Server) MonitorReadiness(ctx context.Context, ready ReadinessFunc, interval time.Duration) {
	check := func() {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		err := ready(checkCtx)
		if err != nil {
			s.log.Warn(ctx, "readiness check failed", logger.Error(err))
		}
		s.SetServing(err == nil)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// Start listens on addr and serves until Shutdown.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info(context.Background(), "starting gRPC server", logger.String("address", ln.Addr().String()))
	if err := s.grpcServer.Serve(ln); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Shutdown stops gracefully, forcing the stop when ctx expires first.
func (s *Server) Shutdown(ctx context.Context) {
	s.log.Info(ctx, "stopping gRPC server")
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
		<-done
	}
}
