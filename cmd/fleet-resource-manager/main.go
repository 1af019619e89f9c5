package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fleet-resource-manager/internal/config"
	"fleet-resource-manager/internal/logger"
	"fleet-resource-manager/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "fleet-resource-manager")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting fleet-resource-manager service",
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("http_addr", cfg.HTTP.Addr),
		zap.String("admission_policy", cfg.Scheduler.AdmissionPolicy),
	)

	// 创建服务
	fleetService, err := service.NewFleetService(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create fleet service", zap.Error(err))
	}

	// 启动服务
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := fleetService.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start fleet service", zap.Error(err))
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	if err := fleetService.Stop(context.Background()); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
