package models

import "strings"

// 任务规划器输出的动作类型
const (
	ActionGoto            = "GOTO"
	ActionDock            = "DOCK"
	ActionUndock          = "UNDOCK"
	ActionCharge          = "CHARGE"
	ActionRequestElevator = "REQUEST_ELEVATOR"
	ActionWaitForElevator = "WAIT_FOR_ELEVATOR"
	ActionEnterElevator   = "ENTER_ELEVATOR"
	ActionRideElevator    = "RIDE_ELEVATOR"
	ActionExitElevator    = "EXIT_ELEVATOR"
)

// Area 楼层区域，包含若干子区域
type Area struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	FloorNumber int       `json:"floor_number"`
	Type        string    `json:"type"`
	SubAreas    []SubArea `json:"sub_areas"`
}

// Waypoint 路径点
type Waypoint struct {
	SemanticID  string `json:"semantic_id"`
	AreaID      string `json:"area_id"`
	FloorNumber int    `json:"floor_number"`
}

// Action 任务计划中的一步
type Action struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// GOTO 动作
	Areas     []Area     `json:"areas"`
	Waypoints []Waypoint `json:"waypoints"`

	// 电梯请求动作
	StartFloor int `json:"start_floor"`
	GoalFloor  int `json:"goal_floor"`

	// 进出电梯动作；Level 记录 RIDE_ELEVATOR 的目标楼层
	Level      int `json:"level"`
	ElevatorID int `json:"elevator_id"`

	ExecutionStatus string  `json:"execution_status"`
	ETA             float64 `json:"eta"`
}

// NewAction 创建带默认值的动作（未知数值字段为 -1）
func NewAction(id, actionType string, areas ...Area) Action {
	return Action{
		ID:         id,
		Type:       actionType,
		Areas:      areas,
		Waypoints:  []Waypoint{},
		StartFloor: -1,
		GoalFloor:  -1,
		Level:      -1,
		ElevatorID: -1,
		ETA:        -1,
	}
}

// IsExitElevator 是否为出电梯动作
func (a Action) IsExitElevator() bool {
	return strings.ToLower(a.Type) == "exit_elevator"
}

// IsElevatorAction 是否为电梯类动作（大小写不敏感的子串匹配）
func (a Action) IsElevatorAction() bool {
	return strings.Contains(strings.ToLower(a.Type), "elevator")
}

// IsGoto 是否为 GOTO 动作
func (a Action) IsGoto() bool {
	return strings.Contains(strings.ToLower(a.Type), "goto")
}

// LastArea 最后经过的区域
func (a Action) LastArea() (Area, bool) {
	if len(a.Areas) == 0 {
		return Area{}, false
	}
	return a.Areas[len(a.Areas)-1], true
}

// PathRequest 路径规划请求（楼层 + 区域 + 子区域）
type PathRequest struct {
	StartFloor           int    `json:"start_floor"`
	DestinationFloor     int    `json:"destination_floor"`
	StartArea            string `json:"start_area"`
	DestinationArea      string `json:"destination_area"`
	StartLocalArea       string `json:"start_local_area"`
	DestinationLocalArea string `json:"destination_local_area"`
}
