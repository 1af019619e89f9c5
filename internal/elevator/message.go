package elevator

import (
	"encoding/json"
	"fmt"

	"fleet-resource-manager/internal/messaging"
	"fleet-resource-manager/internal/models"

	"github.com/google/uuid"
)

// CommandPayload ELEVATOR-CMD 消息体
type CommandPayload struct {
	QueryID         string          `json:"queryId" validate:"required,uuid"`
	Command         string          `json:"command" validate:"required"`
	StartFloor      int             `json:"startFloor"`
	GoalFloor       int             `json:"goalFloor"`
	RobotID         string          `json:"robotId" validate:"required"`
	TaskID          string          `json:"taskId,omitempty"`
	Load            string          `json:"load"`
	OperationalMode string          `json:"operationalMode,omitempty"`
	ElevatorID      *int            `json:"elevatorId,omitempty"`
	Status          *ExternalStatus `json:"status,omitempty"`
}

// FromMessage 从 ELEVATOR-CMD payload 构建请求；未携带状态时为 pending
// pending 请求尚未分配电梯，忽略 payload 中的 elevatorId
func FromMessage(payload []byte) (*models.RobotRequest, error) {
	var p CommandPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal elevator command: %w", err)
	}
	if err := messaging.Validate(&p); err != nil {
		return nil, err
	}
	return p.toRequest()
}

func (p *CommandPayload) toRequest() (*models.RobotRequest, error) {
	queryID, err := uuid.Parse(p.QueryID)
	if err != nil {
		return nil, fmt.Errorf("invalid query id %q: %w", p.QueryID, err)
	}

	req := &models.RobotRequest{
		QueryID:         queryID,
		Status:          models.RequestPending,
		ElevatorID:      p.ElevatorID,
		RobotID:         p.RobotID,
		Command:         p.Command,
		StartFloor:      p.StartFloor,
		GoalFloor:       p.GoalFloor,
		Load:            p.Load,
		OperationalMode: p.OperationalMode,
	}
	if req.OperationalMode == "" {
		req.OperationalMode = models.DefaultOperationalMode
	}
	if p.TaskID != "" {
		taskID := p.TaskID
		req.TaskID = &taskID
	}
	if p.Status != nil {
		status, err := FromExternal(*p.Status)
		if err != nil {
			return nil, err
		}
		req.Status = status
	}
	if req.Status == models.RequestPending {
		req.ElevatorID = nil
	}
	return req, nil
}

// ToPayload 请求 -> ELEVATOR-CMD 消息体；分配电梯后才带 elevatorId
func ToPayload(req *models.RobotRequest) (*CommandPayload, error) {
	code, err := ToExternal(req.Status)
	if err != nil {
		return nil, err
	}
	p := &CommandPayload{
		QueryID:         req.QueryID.String(),
		Command:         req.Command,
		StartFloor:      req.StartFloor,
		GoalFloor:       req.GoalFloor,
		RobotID:         req.RobotID,
		Load:            req.Load,
		OperationalMode: req.OperationalMode,
		Status:          &code,
	}
	if req.ElevatorID != nil {
		id := *req.ElevatorID
		p.ElevatorID = &id
	}
	if req.TaskID != nil {
		p.TaskID = *req.TaskID
	}
	return p, nil
}

// ToMessage 构建出站 ELEVATOR-CMD 消息
func ToMessage(req *models.RobotRequest) (*messaging.Envelope, error) {
	p, err := ToPayload(req)
	if err != nil {
		return nil, err
	}
	return messaging.NewEnvelope(messaging.TypeElevatorCmd, p)
}
