package elevator

import (
	"encoding/json"
	"testing"

	"fleet-resource-manager/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip(t *testing.T) {
	queryID := uuid.New()
	in := []byte(`{
		"queryId": "` + queryID.String() + `",
		"command": "CALL_ELEVATOR",
		"startFloor": -1,
		"goalFloor": 4,
		"robotId": "ropod_002",
		"load": "SICKBED",
		"operationalMode": "ROBOT"
	}`)

	req, err := FromMessage(in)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)

	env, err := ToMessage(req)
	require.NoError(t, err)

	var out CommandPayload
	require.NoError(t, json.Unmarshal(env.Payload, &out))

	assert.Equal(t, queryID.String(), out.QueryID)
	assert.Equal(t, "CALL_ELEVATOR", out.Command)
	assert.Equal(t, -1, out.StartFloor)
	assert.Equal(t, 4, out.GoalFloor)
	assert.Equal(t, "SICKBED", out.Load)
	assert.Equal(t, "ROBOT", out.OperationalMode)
	assert.Nil(t, out.ElevatorID)
	require.NotNil(t, out.Status)
	assert.Equal(t, ExternalPending, *out.Status)

	// 再次解析得到相同请求
	again, err := FromMessage(env.Payload)
	require.NoError(t, err)
	assert.Equal(t, req.QueryID, again.QueryID)
	assert.Equal(t, req.Command, again.Command)
	assert.Equal(t, req.StartFloor, again.StartFloor)
	assert.Equal(t, req.GoalFloor, again.GoalFloor)
	assert.Equal(t, req.Load, again.Load)
}

func TestMessageRoundTrip_AssignedElevator(t *testing.T) {
	elevatorID := 3
	req := &models.RobotRequest{
		QueryID:         uuid.New(),
		Status:          models.RequestAssigned,
		ElevatorID:      &elevatorID,
		RobotID:         "ropod_003",
		Command:         "CALL_ELEVATOR",
		StartFloor:      1,
		GoalFloor:       5,
		OperationalMode: models.DefaultOperationalMode,
	}

	env, err := ToMessage(req)
	require.NoError(t, err)

	back, err := FromMessage(env.Payload)
	require.NoError(t, err)
	require.NotNil(t, back.ElevatorID)
	assert.Equal(t, 3, *back.ElevatorID)
	assert.Equal(t, models.RequestAssigned, back.Status)
}

func TestFromMessage_PendingIgnoresElevatorID(t *testing.T) {
	queryID := uuid.NewString()

	req, err := FromMessage([]byte(`{"queryId":"` + queryID + `","command":"CALL_ELEVATOR","robotId":"r","elevatorId":99}`))
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)
	assert.Nil(t, req.ElevatorID)

	req, err = FromMessage([]byte(`{"queryId":"` + queryID + `","command":"CALL_ELEVATOR","robotId":"r","elevatorId":99,"status":0}`))
	require.NoError(t, err)
	assert.Nil(t, req.ElevatorID)

	req, err = FromMessage([]byte(`{"queryId":"` + queryID + `","command":"CALL_ELEVATOR","robotId":"r","elevatorId":2,"status":1}`))
	require.NoError(t, err)
	assert.Equal(t, models.RequestAssigned, req.Status)
	require.NotNil(t, req.ElevatorID)
	assert.Equal(t, 2, *req.ElevatorID)
}

func TestFromMessage_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"malformed", `{"queryId":`},
		{"missing query id", `{"command":"CALL_ELEVATOR","robotId":"r"}`},
		{"bad query id", `{"queryId":"123","command":"CALL_ELEVATOR","robotId":"r"}`},
		{"missing robot", `{"queryId":"` + uuid.NewString() + `","command":"CALL_ELEVATOR"}`},
		{"unknown status", `{"queryId":"` + uuid.NewString() + `","command":"CALL_ELEVATOR","robotId":"r","status":12}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMessage([]byte(tt.payload))
			assert.Error(t, err)
		})
	}
}

func TestExternalStatusMapping(t *testing.T) {
	tests := []struct {
		code ExternalStatus
		want models.RequestStatus
	}{
		{ExternalPending, models.RequestPending},
		{ExternalAccepted, models.RequestAssigned},
		{ExternalGoingToStartFloor, models.RequestInProgress},
		{ExternalWaitingForRobotIn, models.RequestInProgress},
		{ExternalGoingToGoalFloor, models.RequestInProgress},
		{ExternalWaitingForRobotOut, models.RequestInProgress},
		{ExternalCompleted, models.RequestCompleted},
		{ExternalCanceled, models.RequestCancelled},
		{ExternalFailed, models.RequestCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			got, err := FromExternal(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			// 反向映射得到的代表码再映射回同一本地状态
			code, err := ToExternal(got)
			require.NoError(t, err)
			back, err := FromExternal(code)
			require.NoError(t, err)
			assert.Equal(t, got, back)
		})
	}

	_, err := FromExternal(ExternalStatus(-1))
	assert.Error(t, err)
	_, err = ToExternal(models.RequestStatus("lost"))
	assert.Error(t, err)
	assert.Equal(t, "UNKNOWN(9)", ExternalStatus(9).String())
}
