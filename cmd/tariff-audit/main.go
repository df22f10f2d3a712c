// TariffAudit 主程序
// 功能：消费费率变更审计事件并落库，失败消息转入死信主题。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/cargotariff/internal/tariff/application"
	"github.com/wyfcoding/cargotariff/internal/tariff/infrastructure/persistence/mysql"
	"github.com/wyfcoding/cargotariff/internal/tariff/interfaces/consumer"
	"github.com/wyfcoding/cargotariff/pkg/app"
	"github.com/wyfcoding/cargotariff/pkg/config"
	"github.com/wyfcoding/cargotariff/pkg/db"
	"github.com/wyfcoding/cargotariff/pkg/logger"
	"github.com/wyfcoding/cargotariff/pkg/metrics"
	"github.com/wyfcoding/cargotariff/pkg/middleware"
	"github.com/wyfcoding/cargotariff/pkg/mq"
)

var configPath = flag.String("config", "configs/tariff/config.toml", "config file path")

func main() {
	flag.Parse()

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	service := cfg.ServiceName + "-audit"
	if err := logger.Init(cfg.Logger, service); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if !cfg.Kafka.Enabled() {
		logger.Fatal(ctx, "kafka.brokers is required for the audit consumer")
	}

	builder := app.NewBuilder(service)

	database, err := db.Init(cfg.Database, db.Options{})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	builder.WithCleanup(func() { _ = database.Close() })
	if err := mysql.AutoMigrate(database); err != nil {
		logger.Fatal(ctx, "Failed to migrate database", "error", err)
	}

	metricsInstance := metrics.New(service)

	producer := mq.NewProducer(cfg.Kafka)
	builder.WithCleanup(func() { _ = producer.Close() })
	dlq := mq.NewDeadLetterQueue(producer, cfg.Kafka.DeadLetterTopic)

	kafkaConsumer := mq.NewConsumer(cfg.Kafka, cfg.Kafka.AuditTopic, dlq)
	builder.WithCleanup(func() { _ = kafkaConsumer.Close() })

	projection := application.NewAuditProjectionService(mysql.NewAuditLogRepository(database), metricsInstance)
	handler := consumer.NewAuditHandler(projection, cfg.Kafka.MaxRetries)

	builder.WithWorker("audit-consumer", func(ctx context.Context) error {
		return kafkaConsumer.Run(ctx, handler.Handle)
	})

	// 仅暴露探活与指标
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.GinRecoveryMiddleware())
	router.GET("/sys/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": service})
	})
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(metricsInstance.Handler()))
	}
	builder.WithHTTP(&http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	})

	if err := builder.Build().Run(); err != nil {
		logger.Fatal(ctx, "TariffAudit exited with error", "error", err)
	}
	logger.Info(ctx, "TariffAudit stopped")
}
