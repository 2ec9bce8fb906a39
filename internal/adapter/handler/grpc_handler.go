package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Probe checks one dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler runs dependency probes and reports the result over the gRPC
// health protocol and on GET /health.
type HealthHandler struct {
	service string
	server  *health.Server
	probes  []Probe
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.RWMutex
	results map[string]string
	healthy bool
}

func NewHealthHandler(service string, logger *zap.Logger, probes ...Probe) *HealthHandler {
	h := &HealthHandler{
		service: service,
		server:  health.NewServer(),
		probes:  probes,
		timeout: 2 * time.Second,
		logger:  logger,
		results: make(map[string]string),
	}
	h.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *HealthHandler) Register(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, h.server)
}

// Run probes every interval until ctx is done.
func (h *HealthHandler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.CheckNow(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.CheckNow(ctx)
		}
	}
}

// CheckNow runs every probe once and publishes the combined status.
func (h *HealthHandler) CheckNow(ctx context.Context) bool {
	results := make(map[string]string, len(h.probes))
	healthy := true

	for _, p := range h.probes {
		probeCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := p.Check(probeCtx)
		cancel()

		if err != nil {
			healthy = false
			results[p.Name] = err.Error()
			h.logger.Warn("health probe failed", zap.String("probe", p.Name), zap.Error(err))
			continue
		}
		results[p.Name] = "ok"
	}

	h.mu.Lock()
	h.results = results
	h.healthy = healthy
	h.mu.Unlock()

	if healthy {
		h.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	} else {
		h.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
	return healthy
}

// Shutdown marks the service as not serving for the rest of the process.
func (h *HealthHandler) Shutdown() {
	h.server.Shutdown()
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	h.mu.RLock()
	healthy := h.healthy
	checks := make(map[string]string, len(h.results))
	for k, v := range h.results {
		checks[k] = v
	}
	h.mu.RUnlock()

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unavailable"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"service": h.service,
		"checks":  checks,
	})
}

func (h *HealthHandler) setStatus(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(h.service, status)
}
