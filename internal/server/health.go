package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// ServiceName is the health service name reported for the game server.
const ServiceName = "khofo.game.v1.GameServer"

// HealthServer serves the standard gRPC health protocol for load balancers
// and orchestrators.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewHealthServer creates a gRPC server with only the health service
// registered. Both the overall and the game service start SERVING.
func NewHealthServer(logger *zap.Logger) *HealthServer {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &HealthServer{grpc: s, health: hs, logger: logger}
}

// Serve blocks serving lis until Shutdown.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.logger.Info("starting health server", zap.String("address", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

// SetServing flips the game service status.
func (s *HealthServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
}

// Shutdown reports NOT_SERVING and drains in-flight checks.
func (s *HealthServer) Shutdown() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// RecoveryInterceptor turns a handler panic into codes.Internal.
func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in rpc handler",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = status.Errorf(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs every call at debug level and failures at warn.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("peer", peerHost(ctx)),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			logger.Warn("rpc failed", append(fields, zap.Stringer("code", status.Code(err)), zap.Error(err))...)
		} else {
			logger.Debug("rpc completed", fields...)
		}
		return resp, err
	}
}

func peerHost(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != net.Addr(nil) {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
