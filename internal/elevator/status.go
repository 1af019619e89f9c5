package elevator

import (
	"fmt"

	"fleet-resource-manager/internal/models"
)

// ExternalStatus 电梯控制系统使用的请求状态码
type ExternalStatus int

const (
	ExternalPending ExternalStatus = iota
	ExternalAccepted
	ExternalGoingToStartFloor
	ExternalWaitingForRobotIn
	ExternalGoingToGoalFloor
	ExternalWaitingForRobotOut
	ExternalCompleted
	ExternalCanceled
	ExternalFailed
)

var externalNames = [...]string{
	"PENDING",
	"ACCEPTED",
	"GOING_TO_START_FLOOR",
	"WAITING_FOR_ROBOT_IN",
	"GOING_TO_GOAL_FLOOR",
	"WAITING_FOR_ROBOT_OUT",
	"COMPLETED",
	"CANCELED",
	"FAILED",
}

func (s ExternalStatus) String() string {
	if s < 0 || int(s) >= len(externalNames) {
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
	return externalNames[s]
}

// FromExternal 外部状态码 -> 本地状态
func FromExternal(code ExternalStatus) (models.RequestStatus, error) {
	switch code {
	case ExternalPending:
		return models.RequestPending, nil
	case ExternalAccepted:
		return models.RequestAssigned, nil
	case ExternalGoingToStartFloor, ExternalWaitingForRobotIn, ExternalGoingToGoalFloor, ExternalWaitingForRobotOut:
		return models.RequestInProgress, nil
	case ExternalCompleted:
		return models.RequestCompleted, nil
	case ExternalCanceled, ExternalFailed:
		return models.RequestCancelled, nil
	}
	return "", fmt.Errorf("unknown external request status %d", int(code))
}

// ToExternal 本地状态 -> 外部状态码（每个本地状态取其代表码）
func ToExternal(status models.RequestStatus) (ExternalStatus, error) {
	switch status {
	case models.RequestPending:
		return ExternalPending, nil
	case models.RequestAssigned:
		return ExternalAccepted, nil
	case models.RequestInProgress:
		return ExternalGoingToStartFloor, nil
	case models.RequestCompleted:
		return ExternalCompleted, nil
	case models.RequestCancelled:
		return ExternalCanceled, nil
	}
	return 0, fmt.Errorf("unknown request status %q", status)
}
