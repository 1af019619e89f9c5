package elevator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fleet-resource-manager/internal/messaging"
	"fleet-resource-manager/internal/metrics"
	"fleet-resource-manager/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrRequestNotFound 活动集合中没有该请求
	ErrRequestNotFound = errors.New("elevator request not found")
	// ErrRequestArchived 请求已完成并归档，不能再变更
	ErrRequestArchived = errors.New("elevator request already archived")
	// ErrRequestClosed 请求已取消，不能再分配电梯
	ErrRequestClosed = errors.New("elevator request closed")
	// ErrRequestExists query id 重复
	ErrRequestExists = errors.New("elevator request already exists")
	// ErrUnknownElevator 电梯不在资源目录中
	ErrUnknownElevator = errors.New("unknown elevator")
)

// RequestStore 请求持久化（活动表 + 归档表）
type RequestStore interface {
	Save(ctx context.Context, req *models.RobotRequest) error
	GetLive(ctx context.Context) ([]models.RobotRequest, error)
	GetArchived(ctx context.Context, queryID uuid.UUID) (*models.RobotRequest, error)
	IsArchived(ctx context.Context, queryID uuid.UUID) (bool, error)
	Archive(ctx context.Context, req *models.RobotRequest) error
}

// ElevatorLookup 资源目录的只读视图
type ElevatorLookup interface {
	Elevator(id int) (models.Elevator, bool)
}

// CommandPublisher 发送出站电梯指令
type CommandPublisher interface {
	Publish(ctx context.Context, env *messaging.Envelope) error
}

// EventPublisher 领域事件发布
type EventPublisher interface {
	Publish(ctx context.Context, event string, data interface{}) error
}

// Coordinator 电梯请求生命周期管理
// 所有状态变更在同一把锁内完成，同一请求的操作按到达顺序串行执行
// archived 只缓存本进程见过的归档 id，未命中时以归档表为准
type Coordinator struct {
	mu       sync.Mutex
	live     map[uuid.UUID]*models.RobotRequest
	archived map[uuid.UUID]struct{}

	store     RequestStore
	elevators ElevatorLookup
	commands  CommandPublisher
	events    EventPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    *zap.Logger
}

// NewCoordinator 创建协调器；commands、events、metrics 可为 nil
func NewCoordinator(
	store RequestStore,
	elevators ElevatorLookup,
	commands CommandPublisher,
	events EventPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		live:      make(map[uuid.UUID]*models.RobotRequest),
		archived:  make(map[uuid.UUID]struct{}),
		store:     store,
		elevators: elevators,
		commands:  commands,
		events:    events,
		metrics:   m,
		now:       time.Now,
		logger:    logger,
	}
}

// Restore 启动时从数据库恢复活动请求
func (c *Coordinator) Restore(ctx context.Context) error {
	requests, err := c.store.GetLive(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore elevator requests: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range requests {
		req := requests[i]
		c.live[req.QueryID] = &req
	}

	c.logger.Info("Restored live elevator requests", zap.Int("count", len(requests)))
	return nil
}

// Create 从 ELEVATOR-CMD payload 创建请求并持久化
// 持久化失败时请求仍保留在活动集合中，由调用方通过 Persist 重试
func (c *Coordinator) Create(ctx context.Context, payload []byte) (*models.RobotRequest, error) {
	req, err := FromMessage(payload)
	if err != nil {
		return nil, err
	}
	if req.ElevatorID != nil {
		if err := c.checkElevator(*req.ElevatorID); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.live[req.QueryID]; ok {
		return nil, fmt.Errorf("%w: query_id=%s", ErrRequestExists, req.QueryID)
	}
	archived, err := c.isArchived(ctx, req.QueryID)
	if err != nil {
		return nil, err
	}
	if archived {
		return nil, fmt.Errorf("%w: query_id=%s", ErrRequestArchived, req.QueryID)
	}

	req.CreatedAt = c.now().UTC()
	c.live[req.QueryID] = req

	c.logger.Info("Elevator request created",
		zap.String("query_id", req.QueryID.String()),
		zap.String("robot_id", req.RobotID),
		zap.String("command", req.Command),
		zap.Int("start_floor", req.StartFloor),
		zap.Int("goal_floor", req.GoalFloor),
	)

	snapshot := *req
	if err := c.store.Save(ctx, req); err != nil {
		return &snapshot, err
	}
	return &snapshot, nil
}

// Persist 重新持久化活动请求的当前内存值
func (c *Coordinator) Persist(ctx context.Context, queryID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, err := c.lookup(ctx, queryID)
	if err != nil {
		return err
	}
	return c.store.Save(ctx, req)
}

// Get 获取活动请求的副本
func (c *Coordinator) Get(ctx context.Context, queryID uuid.UUID) (*models.RobotRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, err := c.lookup(ctx, queryID)
	if err != nil {
		return nil, err
	}
	snapshot := *req
	return &snapshot, nil
}

// GetArchived 从归档表读取请求
func (c *Coordinator) GetArchived(ctx context.Context, queryID uuid.UUID) (*models.RobotRequest, error) {
	return c.store.GetArchived(ctx, queryID)
}

// Live 按创建时间返回全部活动请求
func (c *Coordinator) Live() []models.RobotRequest {
	c.mu.Lock()
	list := make([]models.RobotRequest, 0, len(c.live))
	for _, req := range c.live {
		list = append(list, *req)
	}
	c.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].QueryID.String() < list[j].QueryID.String()
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// AssignElevator 为请求分配电梯并下发 ELEVATOR-CMD；不改变状态
func (c *Coordinator) AssignElevator(ctx context.Context, queryID uuid.UUID, elevatorID int) error {
	if err := c.checkElevator(elevatorID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	req, err := c.lookup(ctx, queryID)
	if err != nil {
		return err
	}
	if req.Status == models.RequestCancelled {
		return fmt.Errorf("%w: query_id=%s status=%s", ErrRequestClosed, queryID, req.Status)
	}

	id := elevatorID
	req.ElevatorID = &id
	if err := c.store.Save(ctx, req); err != nil {
		return err
	}

	c.logger.Info("Elevator assigned",
		zap.String("query_id", queryID.String()),
		zap.Int("elevator_id", elevatorID),
	)

	if c.commands == nil {
		return nil
	}
	env, err := ToMessage(req)
	if err != nil {
		return err
	}
	if err := c.commands.Publish(ctx, env); err != nil {
		return fmt.Errorf("failed to publish elevator command: %w", err)
	}
	return nil
}

// UpdateStatus 更新请求状态
// completed：在同一事务内归档并删除活动记录，失败时记录保持原样；其它状态原地更新并持久化
func (c *Coordinator) UpdateStatus(ctx context.Context, queryID uuid.UUID, status models.RequestStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown request status %q", status)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	req, err := c.lookup(ctx, queryID)
	if err != nil {
		return err
	}

	if !status.IsTerminal() {
		req.Status = status
		return c.store.Save(ctx, req)
	}

	final := *req
	final.Status = status
	if err := c.store.Archive(ctx, &final); err != nil {
		c.logger.Error("Failed to archive elevator request",
			zap.String("query_id", queryID.String()),
			zap.Error(err),
		)
		return err
	}

	delete(c.live, queryID)
	c.archived[queryID] = struct{}{}
	c.metrics.RecordArchived(ctx)

	if c.events != nil {
		if err := c.events.Publish(ctx, "elevator_request.archived", &final); err != nil {
			c.logger.Warn("Failed to publish archive event",
				zap.String("query_id", queryID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// UpdateExternalStatus 将电梯控制反馈的状态码映射后更新
func (c *Coordinator) UpdateExternalStatus(ctx context.Context, queryID uuid.UUID, code ExternalStatus) error {
	status, err := FromExternal(code)
	if err != nil {
		return err
	}
	return c.UpdateStatus(ctx, queryID, status)
}

func (c *Coordinator) checkElevator(id int) error {
	if c.elevators == nil {
		return nil
	}
	if _, ok := c.elevators.Elevator(id); !ok {
		return fmt.Errorf("%w: id=%d", ErrUnknownElevator, id)
	}
	return nil
}

// lookup 调用方需持有锁；活动集合未命中时查询归档表
func (c *Coordinator) lookup(ctx context.Context, queryID uuid.UUID) (*models.RobotRequest, error) {
	if req, ok := c.live[queryID]; ok {
		return req, nil
	}
	archived, err := c.isArchived(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if archived {
		return nil, fmt.Errorf("%w: query_id=%s", ErrRequestArchived, queryID)
	}
	return nil, fmt.Errorf("%w: query_id=%s", ErrRequestNotFound, queryID)
}

// isArchived 调用方需持有锁
func (c *Coordinator) isArchived(ctx context.Context, queryID uuid.UUID) (bool, error) {
	if _, ok := c.archived[queryID]; ok {
		return true, nil
	}
	archived, err := c.store.IsArchived(ctx, queryID)
	if err != nil {
		return false, fmt.Errorf("failed to check elevator request archive: %w", err)
	}
	if archived {
		c.archived[queryID] = struct{}{}
	}
	return archived, nil
}
