package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus 电梯请求状态（本地封闭枚举，外部状态码在边界处映射）
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestAssigned   RequestStatus = "assigned"
	RequestInProgress RequestStatus = "in_progress"
	RequestCompleted  RequestStatus = "completed"
	RequestCancelled  RequestStatus = "cancelled"
)

// Valid 是否为已知状态
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestAssigned, RequestInProgress, RequestCompleted, RequestCancelled:
		return true
	}
	return false
}

// IsTerminal completed 为终态，到达后归档
func (s RequestStatus) IsTerminal() bool {
	return s == RequestCompleted
}

// DefaultOperationalMode 默认运行模式
const DefaultOperationalMode = "ROBOT"

// RobotRequest 机器人发起的电梯请求（对应 elevator_requests 表）
// ElevatorID 在分配电梯前为 nil
type RobotRequest struct {
	QueryID         uuid.UUID     `json:"query_id" db:"query_id"`
	Status          RequestStatus `json:"status" db:"status"`
	ElevatorID      *int          `json:"elevator_id,omitempty" db:"elevator_id"`
	RobotID         string        `json:"robot_id" db:"robot_id"`
	Command         string        `json:"command" db:"command"` // CALL_ELEVATOR, ENTER, EXIT, RIDE ...
	StartFloor      int           `json:"start_floor" db:"start_floor"`
	GoalFloor       int           `json:"goal_floor" db:"goal_floor"`
	TaskID          *string       `json:"task_id,omitempty" db:"task_id"`
	Load            string        `json:"load" db:"load"`
	OperationalMode string        `json:"operational_mode" db:"operational_mode"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
}

// IsAssigned 是否已分配电梯
func (r *RobotRequest) IsAssigned() bool {
	return r.ElevatorID != nil
}
