package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fleet-resource-manager/internal/models"
	rediscommon "fleet-resource-manager/internal/redis"

	"go.uber.org/zap"
)

var (
	// ErrUnknownSubArea 目录中没有该子区域
	ErrUnknownSubArea = errors.New("unknown sub area")
	// ErrUnknownElevator 目录中没有该电梯
	ErrUnknownElevator = errors.New("unknown elevator")
)

// SubAreaStore 子区域持久化
type SubAreaStore interface {
	GetAll(ctx context.Context) ([]models.SubArea, error)
	Upsert(ctx context.Context, sa *models.SubArea) error
	UpdateCapacity(ctx context.Context, id int64, capacity int) error
}

// ElevatorStore 电梯持久化
type ElevatorStore interface {
	GetAll(ctx context.Context) ([]models.Elevator, error)
	Upsert(ctx context.Context, e *models.Elevator) error
	UpdateStatus(ctx context.Context, id int, status models.ElevatorStatus) error
}

// StatusKeyFormat 电梯状态缓存键
const StatusKeyFormat = "fms:elevator:%d:status"

// Catalog 资源目录：子区域与电梯的当前状态
// 读多写少，按实体原子更新（先持久化，再替换内存值）
type Catalog struct {
	mu        sync.RWMutex
	subAreas  map[int64]models.SubArea
	elevators map[int]models.Elevator

	subAreaStore  SubAreaStore
	elevatorStore ElevatorStore
	cache         rediscommon.KV // 可为 nil
	statusTTL     time.Duration
	logger        *zap.Logger
}

// New 创建资源目录；cache 为 nil 时不写状态缓存
func New(subAreaStore SubAreaStore, elevatorStore ElevatorStore, cache rediscommon.KV, statusTTL time.Duration, logger *zap.Logger) *Catalog {
	return &Catalog{
		subAreas:      make(map[int64]models.SubArea),
		elevators:     make(map[int]models.Elevator),
		subAreaStore:  subAreaStore,
		elevatorStore: elevatorStore,
		cache:         cache,
		statusTTL:     statusTTL,
		logger:        logger,
	}
}

// Load 从数据库加载全部子区域与电梯
func (c *Catalog) Load(ctx context.Context) error {
	subAreas, err := c.subAreaStore.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sub areas: %w", err)
	}
	elevators, err := c.elevatorStore.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load elevators: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.subAreas = make(map[int64]models.SubArea, len(subAreas))
	for _, sa := range subAreas {
		c.subAreas[sa.ID] = sa
	}
	c.elevators = make(map[int]models.Elevator, len(elevators))
	for _, e := range elevators {
		c.elevators[e.ID] = e
	}

	c.logger.Info("Resource catalog loaded",
		zap.Int("sub_areas", len(subAreas)),
		zap.Int("elevators", len(elevators)),
	)
	return nil
}

// SeedFromConfig 将车队配置写入数据库与目录（幂等）
func (c *Catalog) SeedFromConfig(ctx context.Context, subAreas []models.SubArea, elevators []models.Elevator) error {
	for i := range subAreas {
		sa := subAreas[i]
		if sa.Type == "" {
			sa.Type = "local_area"
		}
		if sa.Capacity == 0 {
			sa.Capacity = 1
		}
		if err := c.subAreaStore.Upsert(ctx, &sa); err != nil {
			return err
		}
		c.mu.Lock()
		c.subAreas[sa.ID] = sa
		c.mu.Unlock()
	}
	for i := range elevators {
		e := elevators[i]
		if err := c.elevatorStore.Upsert(ctx, &e); err != nil {
			return err
		}
		c.mu.Lock()
		if _, ok := c.elevators[e.ID]; !ok {
			c.elevators[e.ID] = e
		}
		c.mu.Unlock()
	}
	return nil
}

// SubArea 根据 id 获取子区域
func (c *Catalog) SubArea(id int64) (models.SubArea, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sa, ok := c.subAreas[id]
	return sa, ok
}

// SubAreas 按 id 排序返回全部子区域
func (c *Catalog) SubAreas() []models.SubArea {
	c.mu.RLock()
	list := make([]models.SubArea, 0, len(c.subAreas))
	for _, sa := range c.subAreas {
		list = append(list, sa)
	}
	c.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Elevator 根据 id 获取电梯
func (c *Catalog) Elevator(id int) (models.Elevator, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.elevators[id]
	return e, ok
}

// Elevators 按 id 排序返回全部电梯
func (c *Catalog) Elevators() []models.Elevator {
	c.mu.RLock()
	list := make([]models.Elevator, 0, len(c.elevators))
	for _, e := range c.elevators {
		list = append(list, e)
	}
	c.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// SetSubAreaCapacity 调整子区域容量
func (c *Catalog) SetSubAreaCapacity(ctx context.Context, id int64, capacity int) error {
	if capacity < 1 {
		return fmt.Errorf("capacity must be at least 1, got %d", capacity)
	}
	if _, ok := c.SubArea(id); !ok {
		return fmt.Errorf("%w: id=%d", ErrUnknownSubArea, id)
	}
	if err := c.subAreaStore.UpdateCapacity(ctx, id, capacity); err != nil {
		return err
	}

	c.mu.Lock()
	sa := c.subAreas[id]
	sa.Capacity = capacity
	c.subAreas[id] = sa
	c.mu.Unlock()
	return nil
}

// UpdateElevatorStatus 应用监控数据中的电梯状态
// 数据库写入失败时内存与缓存均不变；缓存写入失败只记录日志
func (c *Catalog) UpdateElevatorStatus(ctx context.Context, id int, status models.ElevatorStatus) error {
	if _, ok := c.Elevator(id); !ok {
		return fmt.Errorf("%w: id=%d", ErrUnknownElevator, id)
	}
	if err := c.elevatorStore.UpdateStatus(ctx, id, status); err != nil {
		return err
	}

	c.mu.Lock()
	e := c.elevators[id]
	e.Status = status
	c.elevators[id] = e
	c.mu.Unlock()

	if c.cache != nil {
		data, err := json.Marshal(status)
		if err != nil {
			return fmt.Errorf("failed to marshal elevator status: %w", err)
		}
		if err := c.cache.Set(ctx, fmt.Sprintf(StatusKeyFormat, id), string(data), c.statusTTL); err != nil {
			c.logger.Warn("Failed to cache elevator status",
				zap.Int("elevator_id", id),
				zap.Error(err),
			)
		}
	}
	return nil
}

// CachedElevatorStatus 从 Redis 读取电梯状态快照
func (c *Catalog) CachedElevatorStatus(ctx context.Context, id int) (*models.ElevatorStatus, error) {
	if c.cache == nil {
		return nil, rediscommon.ErrCacheMiss
	}
	val, err := c.cache.Get(ctx, fmt.Sprintf(StatusKeyFormat, id))
	if err != nil {
		return nil, err
	}
	var status models.ElevatorStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal elevator status: %w", err)
	}
	return &status, nil
}
