package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"fleet-resource-manager/internal/database"
	"fleet-resource-manager/internal/models"
	mqttcommon "fleet-resource-manager/internal/mqtt"
	"fleet-resource-manager/internal/pathplanner"
	rediscommon "fleet-resource-manager/internal/redis"

	"gopkg.in/yaml.v3"
)

// Config 车队资源管理服务配置
type Config struct {
	Database    database.Config
	Redis       rediscommon.Config
	MQTT        mqttcommon.Config
	PathPlanner pathplanner.Config

	// MQTT 主题
	Topics struct {
		In  string // 入站，如 "fms/in"
		Out string // 出站，如 "fms/out"
	}

	HTTP struct {
		Addr string
	}

	Scheduler struct {
		AdmissionPolicy string        // capacity（默认）或 headroom
		LockTTL         time.Duration // 子区域锁过期时间
		ExpireSchedule  string        // cron 表达式，默认每分钟
	}

	// Redis 相关 key
	EventStream    string
	StatusCacheTTL time.Duration

	// 车队 YAML 文件路径，为空则不做种子导入
	FleetConfig string

	Log struct {
		Level  string
		Format string
	}
}

// Fleet 车队基础设施描述（YAML）
type Fleet struct {
	Building  string           `yaml:"building"`
	Elevators []models.Elevator `yaml:"elevators"`
	SubAreas  []models.SubArea  `yaml:"sub_areas"`
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "fms")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "fleet-resource-manager")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 1))
	cfg.Topics.In = getEnv("MQTT_TOPIC_IN", "fms/in")
	cfg.Topics.Out = getEnv("MQTT_TOPIC_OUT", "fms/out")

	cfg.PathPlanner.BaseURL = getEnv("PATH_PLANNER_URL", "http://localhost:8000")
	timeout, err := time.ParseDuration(getEnv("PATH_PLANNER_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PATH_PLANNER_TIMEOUT: %w", err)
	}
	cfg.PathPlanner.Timeout = timeout
	cfg.PathPlanner.RetryCount = getEnvInt("PATH_PLANNER_RETRIES", 3)

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")

	cfg.Scheduler.AdmissionPolicy = getEnv("ADMISSION_POLICY", "capacity")
	cfg.Scheduler.LockTTL = 5 * time.Second
	cfg.Scheduler.ExpireSchedule = getEnv("EXPIRE_SCHEDULE", "@every 1m")

	cfg.EventStream = getEnv("EVENT_STREAM", "fms:resource-events")
	cfg.StatusCacheTTL = 5 * time.Minute

	cfg.FleetConfig = getEnv("FLEET_CONFIG", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// LoadFleet 读取车队 YAML 文件
func LoadFleet(path string) (*Fleet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fleet config: %w", err)
	}
	return ParseFleet(data)
}

// ParseFleet 解析车队 YAML
func ParseFleet(data []byte) (*Fleet, error) {
	var fleet Fleet
	if err := yaml.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("failed to parse fleet config: %w", err)
	}
	seen := make(map[int64]bool, len(fleet.SubAreas))
	for _, sa := range fleet.SubAreas {
		if sa.ID == 0 {
			return nil, fmt.Errorf("sub area %q has no id", sa.Name)
		}
		if seen[sa.ID] {
			return nil, fmt.Errorf("duplicate sub area id %d", sa.ID)
		}
		seen[sa.ID] = true
	}
	return &fleet, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}
