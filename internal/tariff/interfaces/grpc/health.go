package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/wyfcoding/cargotariff/pkg/logger"
)

// ServiceName 健康检查中的服务名。
const ServiceName = "cargotariff.v1.TariffService"

// Check 单项依赖检查。
type Check func(ctx context.Context) error

// HealthReporter 按依赖检查结果维护 gRPC 健康状态。
type HealthReporter struct {
	srv      *health.Server
	checks   map[string]Check
	interval time.Duration
}

// NewServer 创建带拦截器的 gRPC 服务并注册健康检查与反射。
func NewServer(checks map[string]Check, interval time.Duration, maxStreams uint32, opts ...grpc.ServerOption) (*grpc.Server, *HealthReporter) {
	if maxStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(maxStreams))
	}
	s := grpc.NewServer(opts...)

	r := NewHealthReporter(checks, interval)
	healthpb.RegisterHealthServer(s, r.srv)
	reflection.Register(s)
	return s, r
}

// NewHealthReporter interval 为 0 时使用 10 秒。
func NewHealthReporter(checks map[string]Check, interval time.Duration) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	srv := health.NewServer()
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthReporter{srv: srv, checks: checks, interval: interval}
}

// Server 底层 health.Server。
func (r *HealthReporter) Server() *health.Server { return r.srv }

// Probe 执行一次全部检查并更新状态，返回第一个失败。
func (r *HealthReporter) Probe(ctx context.Context) error {
	var firstErr error
	for name, check := range r.checks {
		if err := check(ctx); err != nil {
			logger.Warn(ctx, "dependency check failed", "dependency", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if firstErr != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	r.srv.SetServingStatus(ServiceName, status)
	r.srv.SetServingStatus("", status)
	return firstErr
}

// Run 周期性探测直到 ctx 结束，结束时将所有服务置为 NOT_SERVING。
func (r *HealthReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	_ = r.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			r.srv.Shutdown()
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, r.interval)
			_ = r.Probe(probeCtx)
			cancel()
		}
	}
}
