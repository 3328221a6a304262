package api

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"bookinggate/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

func TestGRPCHealth(t *testing.T) {
	logger := zerolog.New(io.Discard)
	srv, err := NewGRPCServer(config.APIConfig{GRPC: config.APIGRPCConfig{Enabled: true, Port: 0}}, &logger)
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	_, port, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	conn, err := grpc.NewClient("127.0.0.1:"+port, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, requestIDMetadataKey, "rid-1")

	var header metadata.MD
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: GatewayServiceName}, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	assert.Equal(t, []string{"rid-1"}, header.Get(requestIDMetadataKey))

	srv.SetReady(false)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: GatewayServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestWatchReadiness(t *testing.T) {
	logger := zerolog.New(io.Discard)
	srv, err := NewGRPCServer(config.APIConfig{}, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { srv.listener.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.WatchReadiness(ctx, func(context.Context) error { return context.DeadlineExceeded }, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		resp, err := srv.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: GatewayServiceName})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestChainUnaryInterceptorsOrder(t *testing.T) {
	var order []string
	mk := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name)
			return handler(ctx, req)
		}
	}
	chain := ChainUnaryInterceptors(mk("a"), mk("b"))
	resp, err := chain(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/x"}, func(ctx context.Context, req any) (any, error) {
		order = append(order, "handler")
		return req, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "req", resp)
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestRateLimitUnaryInterceptor(t *testing.T) {
	lim := newRateLimiter(config.APIRateLimitConfig{RPS: 0.001, Burst: 1})
	interceptor := RateLimitUnaryInterceptor(lim)
	handler := func(ctx context.Context, req any) (any, error) { return "ok", nil }

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	require.NoError(t, err)
	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	require.Error(t, err)
}
