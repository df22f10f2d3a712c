// Package app 组织服务进程的启动顺序与优雅关闭。
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/wyfcoding/cargotariff/pkg/logger"
)

// Worker 后台任务，ctx 结束时应返回。
type Worker func(ctx context.Context) error

type namedWorker struct {
	name string
	run  Worker
}

// App 一个服务进程。
type App struct {
	name            string
	httpServer      *http.Server
	grpcServer      *grpc.Server
	grpcAddr        string
	workers         []namedWorker
	cleanups        []func()
	shutdownTimeout time.Duration
}

// Builder 链式构建 App。
type Builder struct {
	app *App
}

// NewBuilder 创建构建器。
func NewBuilder(name string) *Builder {
	return &Builder{app: &App{name: name, shutdownTimeout: 10 * time.Second}}
}

// WithHTTP 挂载 HTTP 服务。
func (b *Builder) WithHTTP(srv *http.Server) *Builder {
	b.app.httpServer = srv
	return b
}

// WithGRPC 挂载 gRPC 服务。
func (b *Builder) WithGRPC(addr string, srv *grpc.Server) *Builder {
	b.app.grpcAddr = addr
	b.app.grpcServer = srv
	return b
}

// WithWorker 注册后台任务。
func (b *Builder) WithWorker(name string, w Worker) *Builder {
	b.app.workers = append(b.app.workers, namedWorker{name: name, run: w})
	return b
}

// WithCleanup 注册退出清理，按注册的逆序执行。
func (b *Builder) WithCleanup(fn func()) *Builder {
	b.app.cleanups = append(b.app.cleanups, fn)
	return b
}

// WithShutdownTimeout 设置 HTTP 优雅关闭的等待时间。
func (b *Builder) WithShutdownTimeout(d time.Duration) *Builder {
	if d > 0 {
		b.app.shutdownTimeout = d
	}
	return b
}

// Build 返回 App。
func (b *Builder) Build() *App {
	return b.app
}

// Run 运行直到收到 SIGINT/SIGTERM。
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext 运行直到 ctx 结束或任一组件失败。
func (a *App) RunContext(ctx context.Context) error {
	defer a.cleanup()

	var lis net.Listener
	if a.grpcServer != nil {
		var err error
		if lis, err = net.Listen("tcp", a.grpcAddr); err != nil {
			return fmt.Errorf("listen grpc %s: %w", a.grpcAddr, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, w := range a.workers {
		g.Go(func() error {
			logger.Info(ctx, "worker starting", "service", a.name, "worker", w.name)
			if err := w.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("worker %s: %w", w.name, err)
			}
			return nil
		})
	}

	if a.grpcServer != nil {
		g.Go(func() error {
			logger.Info(ctx, "gRPC server starting", "service", a.name, "addr", lis.Addr().String())
			return a.grpcServer.Serve(lis)
		})
	}

	if a.httpServer != nil {
		g.Go(func() error {
			logger.Info(ctx, "HTTP server starting", "service", a.name, "addr", a.httpServer.Addr)
			if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info(context.Background(), "shutting down", "service", a.name)
		if a.httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
			defer cancel()
			if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn(shutdownCtx, "http shutdown", "error", err)
			}
		}
		if a.grpcServer != nil {
			a.grpcServer.GracefulStop()
		}
		return nil
	})

	return g.Wait()
}

func (a *App) cleanup() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
}
