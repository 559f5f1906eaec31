package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

func startHealth(t *testing.T) (*HealthServer, healthpb.HealthClient) {
	t.Helper()
	hs := NewHealthServer(zaptest.NewLogger(t))
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- hs.Serve(lis) }()
	t.Cleanup(func() {
		hs.Shutdown()
		assert.NoError(t, <-done)
	})

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return hs, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthServing(t *testing.T) {
	_, client := startHealth(t)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceName))
}

func TestHealthSetServing(t *testing.T) {
	hs, client := startHealth(t)

	hs.SetServing(false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))

	hs.SetServing(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceName))
}

func TestHealthUnknownService(t *testing.T) {
	_, client := startHealth(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestRecoveryInterceptor(t *testing.T) {
	intercept := RecoveryInterceptor(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Panic"}

	_, err := intercept(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestLoggingInterceptorPassesThrough(t *testing.T) {
	intercept := LoggingInterceptor(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Echo"}

	resp, err := intercept(context.Background(), "req", info, func(_ context.Context, req any) (any, error) {
		return req, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "req", resp)

	_, err = intercept(context.Background(), "req", info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.Unavailable, "down")
	})
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Equal(t, "unknown", peerHost(context.Background()))
}
