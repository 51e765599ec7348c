package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewGRPCServer returns a gRPC server exposing the standard health service backed by hs.
// The health status itself is maintained by the health handler's Watch loop.
func NewGRPCServer(hs *health.Server) *grpc.Server {
	s := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	RegisterServices(s, hs)
	return s
}

// RegisterServices registers the gRPC services with s.
func RegisterServices(s grpc.ServiceRegistrar, hs *health.Server) {
	healthpb.RegisterHealthServer(s, hs)
	if r, ok := s.(reflection.GRPCServer); ok {
		reflection.Register(r)
	}
}
