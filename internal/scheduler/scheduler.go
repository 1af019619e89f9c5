package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"fleet-resource-manager/internal/metrics"
	"fleet-resource-manager/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// LookaheadBuffer 最早时段的起算缓冲，吸收计算与通信延迟
	LookaheadBuffer = time.Minute
	// BoundaryBuffer 跳过已有预约时在其结束时间后留出的间隔
	BoundaryBuffer = time.Second
)

// ErrUnknownSubArea 子区域不在资源目录中
var ErrUnknownSubArea = errors.New("unknown sub area")

// ReservationStore 预约持久化
type ReservationStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.SubareaReservation, error)
	Save(ctx context.Context, res *models.SubareaReservation) error
	GetFutureReservations(ctx context.Context, subAreaID int64, now time.Time) ([]models.SubareaReservation, error)
	ExpireLapsed(ctx context.Context, now time.Time) (int64, error)
}

// SubAreaLookup 资源目录的只读视图
type SubAreaLookup interface {
	SubArea(id int64) (models.SubArea, bool)
}

// Locker 按子区域串行化确认操作
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// EventPublisher 领域事件发布
type EventPublisher interface {
	Publish(ctx context.Context, event string, data interface{}) error
}

// Options 调度器可选依赖
type Options struct {
	Policy  Policy
	Locker  Locker           // nil 时不加锁
	Events  EventPublisher   // nil 时不发布事件
	Metrics *metrics.Metrics // nil 时不计数
	Clock   func() time.Time // nil 时为 time.Now
}

// Scheduler 子区域预约调度器
type Scheduler struct {
	store    ReservationStore
	subAreas SubAreaLookup
	policy   Policy
	locker   Locker
	events   EventPublisher
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   *zap.Logger
}

type noopLocker struct{}

func (noopLocker) Lock(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

// New 创建调度器
func New(store ReservationStore, subAreas SubAreaLookup, opts Options, logger *zap.Logger) *Scheduler {
	s := &Scheduler{
		store:    store,
		subAreas: subAreas,
		policy:   opts.Policy,
		locker:   opts.Locker,
		events:   opts.Events,
		metrics:  opts.Metrics,
		now:      opts.Clock,
		logger:   logger,
	}
	if s.policy == "" {
		s.policy = PolicyCapacity
	}
	if s.locker == nil {
		s.locker = noopLocker{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Policy 当前准入策略
func (s *Scheduler) Policy() Policy {
	return s.policy
}

// ConfirmReservation 确认预约
// 可行时置为 scheduled 并持久化，返回 (id, true, nil)；不可行返回 (uuid.Nil, false, nil)
// 持久化失败时恢复原状态并返回错误
func (s *Scheduler) ConfirmReservation(ctx context.Context, r *models.SubareaReservation) (uuid.UUID, bool, error) {
	if err := r.Validate(); err != nil {
		return uuid.Nil, false, fmt.Errorf("invalid reservation: %w", err)
	}

	unlock, err := s.locker.Lock(ctx, strconv.FormatInt(r.SubAreaID, 10))
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to lock sub area %d: %w", r.SubAreaID, err)
	}
	defer unlock()

	ok, err := s.IsReservationPossible(ctx, r)
	if err != nil {
		return uuid.Nil, false, err
	}
	s.metrics.RecordReservation(ctx, r.SubAreaID, ok)
	if !ok {
		s.logger.Info("Reservation rejected, no capacity",
			zap.String("reservation_id", r.ReservationID.String()),
			zap.Int64("subarea_id", r.SubAreaID),
			zap.Time("start_time", r.StartTime),
			zap.Time("end_time", r.EndTime),
		)
		return uuid.Nil, false, nil
	}

	previous := r.Status
	r.Status = models.ReservationScheduled
	if err := s.store.Save(ctx, r); err != nil {
		r.Status = previous
		return uuid.Nil, false, err
	}

	s.publish(ctx, "reservation.scheduled", r)
	s.logger.Info("Reservation scheduled",
		zap.String("reservation_id", r.ReservationID.String()),
		zap.Int64("subarea_id", r.SubAreaID),
		zap.Int("required_capacity", r.RequiredCapacity),
	)
	return r.ReservationID, true, nil
}

// CancelReservation 取消预约（无条件，幂等）
func (s *Scheduler) CancelReservation(ctx context.Context, r *models.SubareaReservation) error {
	previous := r.Status
	r.Status = models.ReservationCancelled
	if err := s.store.Save(ctx, r); err != nil {
		r.Status = previous
		return err
	}

	s.publish(ctx, "reservation.cancelled", r)
	return nil
}

// CancelReservationByID 按 id 取消已存储的预约
func (s *Scheduler) CancelReservationByID(ctx context.Context, id uuid.UUID) (*models.SubareaReservation, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.CancelReservation(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// IsReservationPossible 准入判断，无副作用
// 只考虑 scheduled 状态且与候选区间重叠的预约；存储错误作为错误返回
func (s *Scheduler) IsReservationPossible(ctx context.Context, candidate *models.SubareaReservation) (bool, error) {
	subArea, ok := s.subAreas.SubArea(candidate.SubAreaID)
	if !ok {
		return false, fmt.Errorf("%w: id=%d", ErrUnknownSubArea, candidate.SubAreaID)
	}

	future, err := s.store.GetFutureReservations(ctx, candidate.SubAreaID, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to get future reservations: %w", err)
	}

	overlapping := make([]models.SubareaReservation, 0)
	for _, other := range future {
		if other.Status != models.ReservationScheduled {
			continue
		}
		if other.ReservationID == candidate.ReservationID {
			continue
		}
		if other.Overlaps(candidate.StartTime, candidate.EndTime) {
			overlapping = append(overlapping, other)
		}
	}

	return s.policy.admit(subArea.Capacity, candidate.RequiredCapacity, overlapping, candidate.StartTime, candidate.EndTime), nil
}

// GetEarliestReservationSlot 返回不早于 now+1m、长度为 duration 且不与任何 scheduled 预约重叠的最早开始时间
func (s *Scheduler) GetEarliestReservationSlot(ctx context.Context, subAreaID int64, duration time.Duration) (time.Time, error) {
	if duration <= 0 {
		return time.Time{}, fmt.Errorf("duration must be positive, got %s", duration)
	}
	if _, ok := s.subAreas.SubArea(subAreaID); !ok {
		return time.Time{}, fmt.Errorf("%w: id=%d", ErrUnknownSubArea, subAreaID)
	}

	now := s.now()
	future, err := s.store.GetFutureReservations(ctx, subAreaID, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get future reservations: %w", err)
	}

	scheduled := make([]models.SubareaReservation, 0, len(future))
	for _, r := range future {
		if r.Status == models.ReservationScheduled {
			scheduled = append(scheduled, r)
		}
	}
	sort.SliceStable(scheduled, func(i, j int) bool {
		return scheduled[i].StartTime.Before(scheduled[j].StartTime)
	})

	candidate := now.Add(LookaheadBuffer)
	for _, r := range scheduled {
		if r.StartTime.Sub(candidate) > duration {
			return candidate, nil
		}
		if next := r.EndTime.Add(BoundaryBuffer); next.After(candidate) {
			candidate = next
		}
	}
	return candidate, nil
}

// ExpireLapsed 将已结束的 scheduled 预约标记为 completed
func (s *Scheduler) ExpireLapsed(ctx context.Context) (int64, error) {
	return s.store.ExpireLapsed(ctx, s.now())
}

func (s *Scheduler) publish(ctx context.Context, event string, r *models.SubareaReservation) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event, r); err != nil {
		s.logger.Warn("Failed to publish reservation event",
			zap.String("event", event),
			zap.String("reservation_id", r.ReservationID.String()),
			zap.Error(err),
		)
	}
}
