package planner

import (
	"context"
	"errors"
	"fmt"

	"fleet-resource-manager/internal/metrics"
	"fleet-resource-manager/internal/models"

	"go.uber.org/zap"
)

var (
	// ErrEmptyPlan 动作列表为空
	ErrEmptyPlan = errors.New("task plan is empty")
	// ErrPlanEndsWithGoto GOTO 动作没有后继，无法确定目标子区域
	ErrPlanEndsWithGoto = errors.New("task plan ends with a GOTO action")
	// ErrMissingArea 需要区域的动作没有携带区域
	ErrMissingArea = errors.New("action has no area")
	// ErrPlanningFailed 路径规划服务调用失败，整个计划作废
	ErrPlanningFailed = errors.New("path planning failed")
)

// Router 路径规划服务
type Router interface {
	GetSubArea(ctx context.Context, areaName, behaviour string) (models.SubArea, error)
	GetPathPlan(ctx context.Context, req models.PathRequest) ([]models.Area, error)
	TaskToBehaviour(actionType string) string
}

// Assembler 为任务计划补全 GOTO 路径并回填电梯楼层
type Assembler struct {
	router  Router
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAssembler 创建组装器
func NewAssembler(router Router, m *metrics.Metrics, logger *zap.Logger) *Assembler {
	return &Assembler{
		router:  router,
		metrics: m,
		logger:  logger,
	}
}

// cursor 组装过程中的"上一个区域 / 子区域"
type cursor struct {
	area    models.Area
	subArea models.SubArea
}

// Assemble 单遍扫描动作列表，窗口为 (当前动作, 下一个动作)
//
//   - EXIT_ELEVATOR：解析子区域，把楼层回填到前一个输出动作（RIDE_ELEVATOR）的 Level
//   - 其它电梯动作：原样追加
//   - 带区域的非 GOTO 动作（DOCK/UNDOCK 等）：以首个区域更新游标
//   - GOTO：用下一个动作的类型确定目标子区域，请求路径并替换 Areas
//
// 任一路由调用失败时返回 ErrPlanningFailed，不返回部分结果
func (a *Assembler) Assemble(ctx context.Context, actions []models.Action) ([]models.Action, error) {
	if len(actions) == 0 {
		return nil, ErrEmptyPlan
	}
	if last := actions[len(actions)-1]; last.IsGoto() {
		return nil, fmt.Errorf("%w: action %s", ErrPlanEndsWithGoto, last.ID)
	}

	var cur cursor
	if area, ok := actions[0].LastArea(); ok {
		cur.area = area
	}

	plan := make([]models.Action, 0, len(actions))
	for i := range actions {
		action := actions[i]

		switch {
		case action.IsExitElevator():
			if len(action.Areas) == 0 {
				return nil, fmt.Errorf("%w: %s %s", ErrMissingArea, action.Type, action.ID)
			}
			if err := a.advance(ctx, &cur, action); err != nil {
				return nil, a.fail(ctx, action, err)
			}
			if len(plan) > 0 {
				plan[len(plan)-1].Level = cur.area.FloorNumber
			}
			plan = append(plan, action)

		case action.IsElevatorAction():
			plan = append(plan, action)

		case !action.IsGoto():
			if len(action.Areas) > 0 {
				if err := a.advance(ctx, &cur, action); err != nil {
					return nil, a.fail(ctx, action, err)
				}
			}
			plan = append(plan, action)

		default:
			next := actions[i+1]
			routed, err := a.route(ctx, &cur, action, next)
			if err != nil {
				return nil, err
			}
			plan = append(plan, routed)
		}
	}

	a.logger.Debug("Task plan assembled",
		zap.Int("actions", len(plan)),
	)
	return plan, nil
}

// advance 将游标移到动作的首个区域及其子区域
func (a *Assembler) advance(ctx context.Context, cur *cursor, action models.Action) error {
	area := action.Areas[0]
	subArea, err := a.router.GetSubArea(ctx, area.Name, a.router.TaskToBehaviour(action.Type))
	if err != nil {
		return err
	}
	cur.area = area
	cur.subArea = subArea
	return nil
}

func (a *Assembler) route(ctx context.Context, cur *cursor, action, next models.Action) (models.Action, error) {
	if len(action.Areas) == 0 {
		return models.Action{}, fmt.Errorf("%w: %s %s", ErrMissingArea, action.Type, action.ID)
	}
	destination := action.Areas[0]

	destinationSubArea, err := a.router.GetSubArea(ctx, destination.Name, a.router.TaskToBehaviour(next.Type))
	if err != nil {
		return models.Action{}, a.fail(ctx, action, err)
	}

	a.logger.Debug("Planning path",
		zap.String("action_id", action.ID),
		zap.String("from", cur.subArea.Name),
		zap.String("to", destinationSubArea.Name),
	)

	path, err := a.router.GetPathPlan(ctx, models.PathRequest{
		StartFloor:           cur.area.FloorNumber,
		DestinationFloor:     destination.FloorNumber,
		StartArea:            cur.area.Name,
		DestinationArea:      destination.Name,
		StartLocalArea:       cur.subArea.Name,
		DestinationLocalArea: destinationSubArea.Name,
	})
	if err != nil {
		return models.Action{}, a.fail(ctx, action, err)
	}

	action.Areas = path
	cur.area = destination
	cur.subArea = destinationSubArea
	return action, nil
}

func (a *Assembler) fail(ctx context.Context, action models.Action, err error) error {
	a.metrics.RecordPlanFailure(ctx)
	a.logger.Error("Task planning failed",
		zap.String("action_id", action.ID),
		zap.String("action_type", action.Type),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %s %s: %w", ErrPlanningFailed, action.Type, action.ID, err)
}
