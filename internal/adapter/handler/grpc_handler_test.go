package handler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func TestHealthHandler_HTTP(t *testing.T) {
	var dbErr error
	health := NewHealthHandler("order-service", zap.NewNop(),
		Probe{Name: "mysql", Check: func(ctx context.Context) error { return dbErr }},
	)
	router := NewOrderRouter(NewOrderHandler(&fakeOrders{}, zap.NewNop()), health, nil, zap.NewNop())

	// nothing probed yet
	w := doRequest(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.True(t, health.CheckNow(context.Background()))
	w = doRequest(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"order-service","checks":{"mysql":"ok"}}`, w.Body.String())

	dbErr = errors.New("connection refused")
	require.False(t, health.CheckNow(context.Background()))
	w = doRequest(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestHealthHandler_GRPC(t *testing.T) {
	var redisErr error
	health := NewHealthHandler("inventory-service", zap.NewNop(),
		Probe{Name: "redis", Check: func(ctx context.Context) error { return redisErr }},
	)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	health.Register(srv)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	client := grpc_health_v1.NewHealthClient(conn)
	ctx := context.Background()

	health.CheckNow(ctx)
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: "inventory-service"})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())

	redisErr = errors.New("redis down")
	health.CheckNow(ctx)
	resp, err = client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
