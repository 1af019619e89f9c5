package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fleet-resource-manager/internal/catalog"
	"fleet-resource-manager/internal/config"
	"fleet-resource-manager/internal/consumer"
	"fleet-resource-manager/internal/database"
	"fleet-resource-manager/internal/elevator"
	"fleet-resource-manager/internal/httpapi"
	"fleet-resource-manager/internal/metrics"
	mqttcommon "fleet-resource-manager/internal/mqtt"
	"fleet-resource-manager/internal/pathplanner"
	"fleet-resource-manager/internal/planner"
	rediscommon "fleet-resource-manager/internal/redis"
	"fleet-resource-manager/internal/repository"
	"fleet-resource-manager/internal/scheduler"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const subAreaLockPrefix = "fms:lock:subarea:"

// FleetService 车队资源管理服务
type FleetService struct {
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	mqttClient *mqttcommon.Client

	catalog     *catalog.Catalog
	scheduler   *scheduler.Scheduler
	coordinator *elevator.Coordinator
	consumer    *consumer.MQTTConsumer
	httpServer  *http.Server
	cron        *cron.Cron
}

// NewFleetService 创建车队资源管理服务
func NewFleetService(cfg *config.Config, logger *zap.Logger) (*FleetService, error) {
	policy, err := scheduler.ParsePolicy(cfg.Scheduler.AdmissionPolicy)
	if err != nil {
		return nil, err
	}

	// 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.ApplySchema(context.Background(), db); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	// 初始化Redis
	redisClient, err := rediscommon.Connect(context.Background(), &cfg.Redis)
	if err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 初始化MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		rediscommon.Close(redisClient)
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	m, err := metrics.New()
	if err != nil {
		logger.Warn("Metrics disabled", zap.Error(err))
		m = nil
	}

	// 创建Repository
	subAreaRepo := repository.NewSubAreaRepository(db, logger)
	elevatorRepo := repository.NewElevatorRepository(db, logger)
	reservationRepo := repository.NewReservationRepository(db, logger)
	requestRepo := repository.NewElevatorRequestRepository(db, logger)

	events := rediscommon.NewEventPublisher(redisClient, cfg.EventStream)
	outbound := consumer.NewEnvelopePublisher(mqttClient, cfg.Topics.Out, cfg.MQTT.QoS)

	cat := catalog.New(subAreaRepo, elevatorRepo, rediscommon.NewRedisKV(redisClient), cfg.StatusCacheTTL, logger)
	sched := scheduler.New(reservationRepo, cat, scheduler.Options{
		Policy:  policy,
		Locker:  rediscommon.NewLocker(redisClient, subAreaLockPrefix, cfg.Scheduler.LockTTL),
		Events:  events,
		Metrics: m,
	}, logger)
	coordinator := elevator.NewCoordinator(requestRepo, cat, outbound, events, m, logger)
	assembler := planner.NewAssembler(pathplanner.NewClient(cfg.PathPlanner, logger), m, logger)

	// 创建Consumer
	mqttConsumer := consumer.NewMQTTConsumer(
		consumer.Topics{In: cfg.Topics.In, Out: cfg.Topics.Out},
		cfg.MQTT.QoS,
		mqttClient,
		outbound,
		sched,
		coordinator,
		cat,
		m,
		logger,
	)

	handler := httpapi.NewHandler(sched, reservationRepo, cat, assembler, coordinator, logger)

	return &FleetService{
		config:      cfg,
		logger:      logger,
		db:          db,
		redis:       redisClient,
		mqttClient:  mqttClient,
		catalog:     cat,
		scheduler:   sched,
		coordinator: coordinator,
		consumer:    mqttConsumer,
		httpServer: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpapi.NewRouter(handler),
			ReadHeaderTimeout: 10 * time.Second,
		},
		cron: cron.New(),
	}, nil
}

// Start 启动服务
func (s *FleetService) Start(ctx context.Context) error {
	s.logger.Info("Starting fleet resource manager components")

	if err := s.catalog.Load(ctx); err != nil {
		return fmt.Errorf("failed to load resource catalog: %w", err)
	}
	if s.config.FleetConfig != "" {
		fleet, err := config.LoadFleet(s.config.FleetConfig)
		if err != nil {
			return err
		}
		if err := s.catalog.SeedFromConfig(ctx, fleet.SubAreas, fleet.Elevators); err != nil {
			return fmt.Errorf("failed to seed fleet %s: %w", fleet.Building, err)
		}
	}
	if err := s.coordinator.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore elevator requests: %w", err)
	}

	// 定时将过期预约置为 completed
	if _, err := s.cron.AddFunc(s.config.Scheduler.ExpireSchedule, ExpireJob(ctx, s.scheduler, s.logger)); err != nil {
		return fmt.Errorf("invalid expire schedule %q: %w", s.config.Scheduler.ExpireSchedule, err)
	}
	s.cron.Start()

	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// 启动MQTT消费者
	go func() {
		if err := s.consumer.Start(ctx); err != nil {
			s.logger.Error("MQTT consumer failed", zap.Error(err))
		}
	}()

	s.logger.Info("Fleet resource manager started successfully")
	return nil
}

// Stop 停止服务
func (s *FleetService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping fleet resource manager")

	if s.consumer != nil {
		if err := s.consumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping consumer", zap.Error(err))
		}
	}

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Error stopping HTTP server", zap.Error(err))
		}
	}

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redis != nil {
		rediscommon.Close(s.redis)
	}
	if s.db != nil {
		database.Close(s.db)
	}

	s.logger.Info("Fleet resource manager stopped")
	return nil
}

// Expirer 过期预约清理
type Expirer interface {
	ExpireLapsed(ctx context.Context) (int64, error)
}

// ExpireJob 返回定时任务：将已结束的预约置为 completed
func ExpireJob(ctx context.Context, e Expirer, logger *zap.Logger) func() {
	return func() {
		n, err := e.ExpireLapsed(ctx)
		if err != nil {
			logger.Error("Failed to expire lapsed reservations", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("Expired lapsed reservations", zap.Int64("count", n))
		}
	}
}
