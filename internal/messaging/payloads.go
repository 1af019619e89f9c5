package messaging

import (
	"fmt"
	"time"

	"fleet-resource-manager/internal/models"

	"github.com/google/uuid"
)

// ReservationSpec 预约请求体
type ReservationSpec struct {
	ReservationID    string    `json:"reservationId,omitempty" validate:"omitempty,uuid"`
	SubAreaID        int64     `json:"subAreaId" validate:"required"`
	TaskID           string    `json:"taskId,omitempty"`
	RobotID          string    `json:"robotId,omitempty"`
	StartTime        time.Time `json:"startTime" validate:"required"`
	EndTime          time.Time `json:"endTime" validate:"required,gtefield=StartTime"`
	RequiredCapacity int       `json:"requiredCapacity" validate:"min=1"`
}

// ToReservation 校验并转换为 requested 状态的预约
func (s *ReservationSpec) ToReservation() (*models.SubareaReservation, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}

	r := models.NewSubareaReservation(s.SubAreaID, s.StartTime, s.EndTime, s.RequiredCapacity)
	if s.ReservationID != "" {
		id, err := uuid.Parse(s.ReservationID)
		if err != nil {
			return nil, fmt.Errorf("invalid reservation id %q: %w", s.ReservationID, err)
		}
		r.ReservationID = id
	}
	if s.TaskID != "" {
		taskID := s.TaskID
		r.TaskID = &taskID
	}
	if s.RobotID != "" {
		robotID := s.RobotID
		r.RobotID = &robotID
	}
	return r, nil
}

// ReservationPayload SUB-AREA-RESERVATION 请求
type ReservationPayload struct {
	Command       string           `json:"command" validate:"required,oneof=CONFIRM-RESERVATION EARLIEST-RESERVATION CANCEL-RESERVATION"`
	Reservation   *ReservationSpec `json:"reservation,omitempty" validate:"required_if=Command CONFIRM-RESERVATION"`
	ReservationID string           `json:"reservationId,omitempty" validate:"omitempty,uuid"`
	SubAreaID     int64            `json:"subAreaId,omitempty"`
	Duration      float64          `json:"duration,omitempty" validate:"gte=0"` // 秒
}

// ReservationReply SUB-AREA-RESERVATION 应答
type ReservationReply struct {
	Command       string     `json:"command"`
	ReservationID string     `json:"reservationId,omitempty"`
	SubAreaID     int64      `json:"subAreaId,omitempty"`
	Success       bool       `json:"success"`
	EarliestStart *time.Time `json:"earliestStart,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// ElevatorStatusPayload ELEVATOR-STATUS 监控数据
type ElevatorStatusPayload struct {
	ElevatorID           int  `json:"elevatorId" validate:"gte=0"`
	Floor                int  `json:"floor"`
	Calls                int  `json:"calls" validate:"gte=0"`
	IsAvailable          bool `json:"isAvailable"`
	DoorOpenAtGoalFloor  bool `json:"doorOpenAtGoalFloor"`
	DoorOpenAtStartFloor bool `json:"doorOpenAtStartFloor"`
}

// RequestStatusPayload ELEVATOR-REQUEST-STATUS 电梯控制反馈
type RequestStatusPayload struct {
	QueryID    string `json:"queryId" validate:"required,uuid"`
	Status     int    `json:"status" validate:"gte=0,lte=8"`
	ElevatorID *int   `json:"elevatorId,omitempty"`
}
