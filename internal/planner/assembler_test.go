package planner

import (
	"context"
	"errors"
	"testing"

	"fleet-resource-manager/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockRouter 是 Router 的 mock 实现
type MockRouter struct {
	mock.Mock
}

func (m *MockRouter) GetSubArea(ctx context.Context, areaName, behaviour string) (models.SubArea, error) {
	args := m.Called(ctx, areaName, behaviour)
	return args.Get(0).(models.SubArea), args.Error(1)
}

func (m *MockRouter) GetPathPlan(ctx context.Context, req models.PathRequest) ([]models.Area, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Area), args.Error(1)
}

func (m *MockRouter) TaskToBehaviour(actionType string) string {
	args := m.Called(actionType)
	return args.String(0)
}

func area(name string, floor int) models.Area {
	return models.Area{ID: name, Name: name, FloorNumber: floor, Type: "area"}
}

func setupRouter() *MockRouter {
	router := new(MockRouter)
	router.On("TaskToBehaviour", models.ActionRideElevator).Return("waiting").Maybe()
	router.On("TaskToBehaviour", models.ActionExitElevator).Return("waiting").Maybe()
	router.On("TaskToBehaviour", models.ActionDock).Return("docking").Maybe()
	router.On("TaskToBehaviour", models.ActionUndock).Return("docking").Maybe()
	router.On("TaskToBehaviour", models.ActionRequestElevator).Return("waiting").Maybe()
	return router
}

// 场景 D：[GOTO(B), RIDE_ELEVATOR, EXIT_ELEVATOR(2 楼)]
func TestAssemble_GotoRideExit(t *testing.T) {
	ctx := context.Background()
	router := setupRouter()
	route := []models.Area{area("A", 0), area("corridor", 0), area("B", 0)}

	router.On("GetSubArea", ctx, "B", "waiting").Return(models.SubArea{ID: 11, Name: "B_LA1"}, nil)
	router.On("GetPathPlan", ctx, mock.MatchedBy(func(req models.PathRequest) bool {
		return req.DestinationArea == "B" && req.DestinationLocalArea == "B_LA1" && req.DestinationFloor == 0
	})).Return(route, nil).Once()
	router.On("GetSubArea", ctx, "elevator_hall_L2", "waiting").Return(models.SubArea{ID: 21, Name: "hall_LA2"}, nil)

	actions := []models.Action{
		models.NewAction("a1", models.ActionGoto, area("B", 0)),
		models.NewAction("a2", models.ActionRideElevator),
		models.NewAction("a3", models.ActionExitElevator, area("elevator_hall_L2", 2)),
	}

	plan, err := NewAssembler(router, nil, zap.NewNop()).Assemble(ctx, actions)

	require.NoError(t, err)
	require.Len(t, plan, 3)
	assert.Equal(t, route, plan[0].Areas)
	assert.Equal(t, 2, plan[1].Level)
	assert.Equal(t, "a3", plan[2].ID)
	// 输入不被修改
	assert.Equal(t, -1, actions[1].Level)
	assert.Len(t, actions[0].Areas, 1)
	router.AssertExpectations(t)
}

// 场景 E：GOTO 路由失败时不返回任何动作
func TestAssemble_RoutingFailure(t *testing.T) {
	ctx := context.Background()
	router := setupRouter()
	router.On("GetSubArea", ctx, "B", "docking").Return(models.SubArea{Name: "B_LA1"}, nil)
	router.On("GetPathPlan", ctx, mock.Anything).Return(nil, errors.New("no route"))

	actions := []models.Action{
		models.NewAction("a1", models.ActionGoto, area("B", 0)),
		models.NewAction("a2", models.ActionDock, area("B", 0)),
	}

	plan, err := NewAssembler(router, nil, zap.NewNop()).Assemble(ctx, actions)

	assert.Nil(t, plan)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPlanningFailed))
	assert.Contains(t, err.Error(), "no route")
}

func TestAssemble_SubAreaLookupFailure(t *testing.T) {
	ctx := context.Background()
	router := setupRouter()
	router.On("GetSubArea", ctx, "A", "docking").Return(models.SubArea{}, errors.New("planner down"))

	actions := []models.Action{
		models.NewAction("a1", models.ActionUndock, area("A", 0)),
		models.NewAction("a2", models.ActionDock, area("A", 0)),
	}

	plan, err := NewAssembler(router, nil, zap.NewNop()).Assemble(ctx, actions)

	assert.Nil(t, plan)
	assert.True(t, errors.Is(err, ErrPlanningFailed))
}

func TestAssemble_UndockGotoDock(t *testing.T) {
	ctx := context.Background()
	router := setupRouter()
	route := []models.Area{area("A", 1), area("B", 1)}

	router.On("GetSubArea", ctx, "A", "docking").Return(models.SubArea{Name: "A_LA1"}, nil)
	router.On("GetSubArea", ctx, "B", "docking").Return(models.SubArea{Name: "B_LA2"}, nil)
	router.On("GetPathPlan", ctx, models.PathRequest{
		StartFloor:           1,
		DestinationFloor:     1,
		StartArea:            "A",
		DestinationArea:      "B",
		StartLocalArea:       "A_LA1",
		DestinationLocalArea: "B_LA2",
	}).Return(route, nil).Once()

	actions := []models.Action{
		models.NewAction("a1", models.ActionUndock, area("A", 1)),
		models.NewAction("a2", models.ActionGoto, area("B", 1)),
		models.NewAction("a3", models.ActionDock, area("B", 1)),
	}

	plan, err := NewAssembler(router, nil, zap.NewNop()).Assemble(ctx, actions)

	require.NoError(t, err)
	require.Len(t, plan, 3)
	assert.Equal(t, actions[0], plan[0])
	assert.Equal(t, route, plan[1].Areas)
	assert.Equal(t, actions[2], plan[2])
	router.AssertExpectations(t)
}

func TestAssemble_ElevatorActionsPassThrough(t *testing.T) {
	ctx := context.Background()
	router := setupRouter()

	actions := []models.Action{
		models.NewAction("a1", models.ActionRequestElevator),
		models.NewAction("a2", models.ActionWaitForElevator),
		models.NewAction("a3", models.ActionEnterElevator),
	}

	plan, err := NewAssembler(router, nil, zap.NewNop()).Assemble(ctx, actions)

	require.NoError(t, err)
	assert.Equal(t, actions, plan)
	router.AssertNotCalled(t, "GetSubArea", mock.Anything, mock.Anything, mock.Anything)
	router.AssertNotCalled(t, "GetPathPlan", mock.Anything, mock.Anything)
}

func TestAssemble_Preconditions(t *testing.T) {
	ctx := context.Background()
	a := NewAssembler(setupRouter(), nil, zap.NewNop())

	_, err := a.Assemble(ctx, nil)
	assert.True(t, errors.Is(err, ErrEmptyPlan))

	_, err = a.Assemble(ctx, []models.Action{
		models.NewAction("a1", models.ActionDock, area("A", 0)),
		models.NewAction("a2", models.ActionGoto, area("B", 0)),
	})
	assert.True(t, errors.Is(err, ErrPlanEndsWithGoto))

	_, err = a.Assemble(ctx, []models.Action{
		models.NewAction("a1", models.ActionRideElevator),
		models.NewAction("a2", models.ActionExitElevator),
	})
	assert.True(t, errors.Is(err, ErrMissingArea))

	_, err = a.Assemble(ctx, []models.Action{
		models.NewAction("a1", models.ActionGoto),
		models.NewAction("a2", models.ActionRideElevator),
	})
	assert.True(t, errors.Is(err, ErrMissingArea))
}
