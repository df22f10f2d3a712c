// TariffService 主程序
// 功能：货物保价费率表的导入对账、保费计算与费率维护。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/wyfcoding/cargotariff/internal/tariff/application"
	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
	"github.com/wyfcoding/cargotariff/internal/tariff/infrastructure/messaging"
	"github.com/wyfcoding/cargotariff/internal/tariff/infrastructure/persistence/mysql"
	tariffredis "github.com/wyfcoding/cargotariff/internal/tariff/infrastructure/persistence/redis"
	grpchandler "github.com/wyfcoding/cargotariff/internal/tariff/interfaces/grpc"
	httphandler "github.com/wyfcoding/cargotariff/internal/tariff/interfaces/http"
	"github.com/wyfcoding/cargotariff/pkg/app"
	"github.com/wyfcoding/cargotariff/pkg/cache"
	"github.com/wyfcoding/cargotariff/pkg/config"
	"github.com/wyfcoding/cargotariff/pkg/db"
	"github.com/wyfcoding/cargotariff/pkg/logger"
	"github.com/wyfcoding/cargotariff/pkg/metrics"
	"github.com/wyfcoding/cargotariff/pkg/middleware"
	"github.com/wyfcoding/cargotariff/pkg/mq"
	"github.com/wyfcoding/cargotariff/pkg/ratelimit"
	"github.com/wyfcoding/cargotariff/pkg/tracing"
)

var configPath = flag.String("config", "configs/tariff/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. 配置
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 日志
	if err := logger.Init(cfg.Logger, cfg.ServiceName); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting TariffService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	builder := app.NewBuilder(cfg.ServiceName).
		WithShutdownTimeout(time.Duration(cfg.HTTP.WriteTimeout) * time.Second)

	// 3. 追踪
	shutdownTracer, err := tracing.Init(ctx, cfg.Tracing, cfg.ServiceName, cfg.Version)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize tracer", "error", err)
	}
	builder.WithCleanup(func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error(ctx, "Failed to shutdown tracer", "error", err)
		}
	})

	// 4. 数据库
	database, err := db.Init(cfg.Database, db.Options{Tracing: cfg.Tracing.Enabled})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	builder.WithCleanup(func() { _ = database.Close() })
	if err := mysql.AutoMigrate(database); err != nil {
		logger.Fatal(ctx, "Failed to migrate database", "error", err)
	}

	// 5. 指标
	metricsInstance := metrics.New(cfg.ServiceName)

	// 6. Redis：费率缓存与分布式限流，未启用时退化为无缓存与本地限流
	var (
		rateCache   domain.RateCache
		rateLimiter ratelimit.RateLimiter = ratelimit.NewLocalRateLimiter()
		checks                            = map[string]grpchandler.Check{"database": database.Ping}
	)
	if cfg.Redis.Enabled {
		redisCache, err := cache.New(cfg.Redis)
		if err != nil {
			logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
		}
		builder.WithCleanup(func() { _ = redisCache.Close() })
		rateCache = tariffredis.NewRateCache(redisCache, time.Duration(cfg.Redis.RateCacheTTL)*time.Second)
		rateLimiter = ratelimit.NewRedisRateLimiter(redisCache.Client())
		checks["redis"] = redisCache.Ping
	}

	// 7. 审计事件发布
	var publisher domain.AuditPublisher = messaging.NewLogAuditPublisher(metricsInstance)
	if cfg.Kafka.Enabled() {
		producer := mq.NewProducer(cfg.Kafka)
		builder.WithCleanup(func() { _ = producer.Close() })
		publisher = messaging.NewKafkaAuditPublisher(producer, cfg.Kafka, metricsInstance)
	}

	// 8. 应用服务
	tariffService := application.NewTariffService(
		mysql.NewTariffRepository(database),
		mysql.NewAuditLogRepository(database),
		publisher,
		rateCache,
		metricsInstance,
	)

	// 9. HTTP
	builder.WithHTTP(createHTTPServer(cfg, tariffService, database, rateLimiter, metricsInstance))

	// 10. gRPC 健康检查
	if cfg.GRPC.Enabled {
		grpcServer, reporter := grpchandler.NewServer(
			checks,
			time.Duration(cfg.GRPC.HealthInterval)*time.Second,
			uint32(cfg.GRPC.MaxConcurrentStreams),
			grpc.StatsHandler(otelgrpc.NewServerHandler()),
			grpc.ChainUnaryInterceptor(
				middleware.GRPCLoggingInterceptor(),
				middleware.GRPCRecoveryInterceptor(),
			),
		)
		builder.WithGRPC(cfg.GRPC.Addr(), grpcServer).
			WithWorker("health-reporter", func(ctx context.Context) error {
				reporter.Run(ctx)
				return nil
			})
	}

	if err := builder.Build().Run(); err != nil {
		logger.Fatal(ctx, "TariffService exited with error", "error", err)
	}
	logger.Info(ctx, "TariffService stopped")
}

// createHTTPServer 创建 HTTP 服务器。
func createHTTPServer(
	cfg *config.Config,
	svc *application.TariffService,
	database *db.DB,
	limiter ratelimit.RateLimiter,
	m *metrics.Metrics,
) *http.Server {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.GinMetricsMiddleware(m))
	router.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimit))

	handler := httphandler.NewTariffHandler(
		svc,
		middleware.JWTAuth(cfg.Auth.JWTSecret),
		int64(cfg.HTTP.MaxUploadSize)<<20,
	)
	handler.RegisterRoutes(router)

	router.GET("/sys/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})
	router.GET("/sys/ready", func(c *gin.Context) {
		if err := database.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	return &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}
