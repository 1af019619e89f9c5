package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleet-resource-manager/internal/elevator"
	"fleet-resource-manager/internal/messaging"
	"fleet-resource-manager/internal/metrics"
	"fleet-resource-manager/internal/models"
	mqttcommon "fleet-resource-manager/internal/mqtt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Subscriber MQTT 订阅接口
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// ReservationService 子区域预约操作
type ReservationService interface {
	ConfirmReservation(ctx context.Context, r *models.SubareaReservation) (uuid.UUID, bool, error)
	CancelReservationByID(ctx context.Context, id uuid.UUID) (*models.SubareaReservation, error)
	GetEarliestReservationSlot(ctx context.Context, subAreaID int64, duration time.Duration) (time.Time, error)
}

// RequestService 电梯请求操作
type RequestService interface {
	Create(ctx context.Context, payload []byte) (*models.RobotRequest, error)
	AssignElevator(ctx context.Context, queryID uuid.UUID, elevatorID int) error
	UpdateExternalStatus(ctx context.Context, queryID uuid.UUID, code elevator.ExternalStatus) error
}

// ElevatorStatusUpdater 电梯状态更新
type ElevatorStatusUpdater interface {
	UpdateElevatorStatus(ctx context.Context, id int, status models.ElevatorStatus) error
}

// Topics 入站 / 出站主题
type Topics struct {
	In  string
	Out string
}

// MQTTConsumer 处理车队管理入站消息
type MQTTConsumer struct {
	topics       Topics
	qos          byte
	subscriber   Subscriber
	replies      *EnvelopePublisher
	reservations ReservationService
	requests     RequestService
	elevators    ElevatorStatusUpdater
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(
	topics Topics,
	qos byte,
	subscriber Subscriber,
	replies *EnvelopePublisher,
	reservations ReservationService,
	requests RequestService,
	elevators ElevatorStatusUpdater,
	m *metrics.Metrics,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		topics:       topics,
		qos:          qos,
		subscriber:   subscriber,
		replies:      replies,
		reservations: reservations,
		requests:     requests,
		elevators:    elevators,
		metrics:      m,
		logger:       logger,
	}
}

// Start 订阅入站主题并阻塞到 ctx 取消
func (c *MQTTConsumer) Start(ctx context.Context) error {
	handler := func(topic string, payload []byte) error {
		return c.HandleMessage(ctx, payload)
	}
	if err := c.subscriber.Subscribe(c.topics.In, c.qos, handler); err != nil {
		return fmt.Errorf("failed to subscribe to inbound topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.topics.In),
	)

	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.subscriber.Unsubscribe(c.topics.In); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("MQTT consumer stopped")
	return nil
}

// HandleMessage 按消息类型分发
func (c *MQTTConsumer) HandleMessage(ctx context.Context, data []byte) error {
	env, err := messaging.Decode(data)
	if err != nil {
		c.metrics.RecordMessage(ctx, "invalid", true)
		return err
	}

	c.logger.Debug("Received message",
		zap.String("type", env.Header.Type),
		zap.String("msg_id", env.Header.MsgID),
	)

	switch env.Header.Type {
	case messaging.TypeElevatorCmd:
		err = c.handleElevatorCmd(ctx, env)
	case messaging.TypeElevatorStatus:
		err = c.handleElevatorStatus(ctx, env)
	case messaging.TypeElevatorRequestStatus:
		err = c.handleRequestStatus(ctx, env)
	case messaging.TypeSubAreaReservation:
		err = c.handleReservation(ctx, env)
	default:
		c.logger.Debug("Ignoring message type", zap.String("type", env.Header.Type))
		return nil
	}

	c.metrics.RecordMessage(ctx, env.Header.Type, err != nil)
	return err
}

func (c *MQTTConsumer) handleElevatorCmd(ctx context.Context, env *messaging.Envelope) error {
	_, err := c.requests.Create(ctx, env.Payload)
	return err
}

func (c *MQTTConsumer) handleElevatorStatus(ctx context.Context, env *messaging.Envelope) error {
	var p messaging.ElevatorStatusPayload
	if err := env.DecodePayload(&p); err != nil {
		return err
	}
	return c.elevators.UpdateElevatorStatus(ctx, p.ElevatorID, models.ElevatorStatus{
		Floor:                p.Floor,
		Calls:                p.Calls,
		IsAvailable:          p.IsAvailable,
		DoorOpenAtGoalFloor:  p.DoorOpenAtGoalFloor,
		DoorOpenAtStartFloor: p.DoorOpenAtStartFloor,
	})
}

func (c *MQTTConsumer) handleRequestStatus(ctx context.Context, env *messaging.Envelope) error {
	var p messaging.RequestStatusPayload
	if err := env.DecodePayload(&p); err != nil {
		return err
	}
	queryID, err := uuid.Parse(p.QueryID)
	if err != nil {
		return fmt.Errorf("invalid query id %q: %w", p.QueryID, err)
	}

	// 先迁移状态，出站 ELEVATOR-CMD 才会带上 ACCEPTED
	code := elevator.ExternalStatus(p.Status)
	if err := c.requests.UpdateExternalStatus(ctx, queryID, code); err != nil {
		return err
	}
	if code == elevator.ExternalAccepted && p.ElevatorID != nil {
		return c.requests.AssignElevator(ctx, queryID, *p.ElevatorID)
	}
	return nil
}

func (c *MQTTConsumer) handleReservation(ctx context.Context, env *messaging.Envelope) error {
	var p messaging.ReservationPayload
	if err := env.DecodePayload(&p); err != nil {
		return err
	}

	var (
		reply messaging.ReservationReply
		err   error
	)
	switch p.Command {
	case messaging.CommandConfirmReservation:
		reply, err = c.confirm(ctx, p.Reservation)
	case messaging.CommandCancelReservation:
		reply, err = c.cancel(ctx, p.ReservationID)
	case messaging.CommandEarliestReservation:
		reply, err = c.earliest(ctx, p.SubAreaID, p.Duration)
	}
	reply.Command = p.Command
	if err != nil {
		reply.Error = err.Error()
	}

	if pubErr := c.reply(ctx, reply); pubErr != nil {
		return errors.Join(err, pubErr)
	}
	return err
}

func (c *MQTTConsumer) confirm(ctx context.Context, spec *messaging.ReservationSpec) (messaging.ReservationReply, error) {
	if spec == nil {
		return messaging.ReservationReply{}, errors.New("reservation is required")
	}
	r, err := spec.ToReservation()
	if err != nil {
		return messaging.ReservationReply{}, err
	}
	reply := messaging.ReservationReply{SubAreaID: r.SubAreaID}

	id, ok, err := c.reservations.ConfirmReservation(ctx, r)
	if err != nil {
		return reply, err
	}
	reply.Success = ok
	if ok {
		reply.ReservationID = id.String()
	}
	return reply, nil
}

func (c *MQTTConsumer) cancel(ctx context.Context, reservationID string) (messaging.ReservationReply, error) {
	id, err := uuid.Parse(reservationID)
	if err != nil {
		return messaging.ReservationReply{}, fmt.Errorf("invalid reservation id %q: %w", reservationID, err)
	}
	r, err := c.reservations.CancelReservationByID(ctx, id)
	if err != nil {
		return messaging.ReservationReply{ReservationID: reservationID}, err
	}
	return messaging.ReservationReply{
		ReservationID: r.ReservationID.String(),
		SubAreaID:     r.SubAreaID,
		Success:       true,
	}, nil
}

func (c *MQTTConsumer) earliest(ctx context.Context, subAreaID int64, seconds float64) (messaging.ReservationReply, error) {
	reply := messaging.ReservationReply{SubAreaID: subAreaID}
	duration := time.Duration(seconds * float64(time.Second))
	slot, err := c.reservations.GetEarliestReservationSlot(ctx, subAreaID, duration)
	if err != nil {
		return reply, err
	}
	reply.Success = true
	reply.EarliestStart = &slot
	return reply, nil
}

func (c *MQTTConsumer) reply(ctx context.Context, reply messaging.ReservationReply) error {
	if c.replies == nil {
		return nil
	}
	env, err := messaging.NewEnvelope(messaging.TypeSubAreaReservation, reply)
	if err != nil {
		return err
	}
	return c.replies.Publish(ctx, env)
}
