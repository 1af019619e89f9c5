package models

// ElevatorStatus 电梯状态快照（由监控数据更新）
type ElevatorStatus struct {
	Floor                int  `json:"floor" yaml:"floor"`
	Calls                int  `json:"calls" yaml:"calls"`
	IsAvailable          bool `json:"is_available" yaml:"is_available"`
	DoorOpenAtGoalFloor  bool `json:"door_open_at_goal_floor" yaml:"door_open_at_goal_floor"`
	DoorOpenAtStartFloor bool `json:"door_open_at_start_floor" yaml:"door_open_at_start_floor"`
}

// Elevator 电梯（车队配置时创建，不删除）
type Elevator struct {
	ID         int            `json:"id" yaml:"id"`
	ElevatorID string         `json:"elevator_id" yaml:"elevator_id"` // 外部标签
	Status     ElevatorStatus `json:"status" yaml:"status"`
}
