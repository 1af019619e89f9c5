package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SubArea 楼层区域内可预约的最小空间单元（来自 OSM 地图的 local area）
type SubArea struct {
	ID        int64  `json:"id" yaml:"id" db:"id"`
	Name      string `json:"name" yaml:"name" db:"name"`
	Behaviour string `json:"behaviour" yaml:"behaviour" db:"behaviour"` // corridor, charging, docking, waiting ...
	Type      string `json:"type" yaml:"type" db:"type"`                // 默认 local_area
	Capacity  int    `json:"capacity" yaml:"capacity" db:"capacity"`    // 同时允许的最大占用数
}

// ReservationStatus 子区域预约状态
type ReservationStatus string

const (
	ReservationRequested ReservationStatus = "requested"
	ReservationScheduled ReservationStatus = "scheduled"
	ReservationCancelled ReservationStatus = "cancelled"
	// ReservationCompleted 也表示时间段已过期
	ReservationCompleted ReservationStatus = "completed"
)

// Valid 是否为已知状态
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationRequested, ReservationScheduled, ReservationCancelled, ReservationCompleted:
		return true
	}
	return false
}

// SubareaReservation 子区域时间段预约（对应 subarea_reservations 表）
type SubareaReservation struct {
	ReservationID    uuid.UUID         `json:"reservation_id" db:"reservation_id"`
	SubAreaID        int64             `json:"subarea_id" db:"subarea_id"`
	TaskID           *string           `json:"task_id,omitempty" db:"task_id"`
	RobotID          *string           `json:"robot_id,omitempty" db:"robot_id"`
	StartTime        time.Time         `json:"start_time" db:"start_time"`
	EndTime          time.Time         `json:"end_time" db:"end_time"`
	RequiredCapacity int               `json:"required_capacity" db:"required_capacity"`
	Status           ReservationStatus `json:"status" db:"status"`
}

// NewSubareaReservation 创建 requested 状态的预约
func NewSubareaReservation(subAreaID int64, start, end time.Time, requiredCapacity int) *SubareaReservation {
	return &SubareaReservation{
		ReservationID:    uuid.New(),
		SubAreaID:        subAreaID,
		StartTime:        start,
		EndTime:          end,
		RequiredCapacity: requiredCapacity,
		Status:           ReservationRequested,
	}
}

// Validate 校验预约基本字段
func (r *SubareaReservation) Validate() error {
	if r.ReservationID == uuid.Nil {
		return fmt.Errorf("reservation_id is required")
	}
	if r.SubAreaID == 0 {
		return fmt.Errorf("subarea_id is required")
	}
	if r.EndTime.Before(r.StartTime) {
		return fmt.Errorf("end_time %s is before start_time %s", r.EndTime, r.StartTime)
	}
	if r.RequiredCapacity < 1 {
		return fmt.Errorf("required_capacity must be at least 1, got %d", r.RequiredCapacity)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("unknown reservation status %q", r.Status)
	}
	return nil
}

// Overlaps 闭区间重叠判断（端点相等也算重叠）
func (r *SubareaReservation) Overlaps(start, end time.Time) bool {
	return !r.StartTime.After(end) && !start.After(r.EndTime)
}

// Duration 预约时长
func (r *SubareaReservation) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
