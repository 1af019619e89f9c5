package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(TypeElevatorCmd, map[string]interface{}{"queryId": "abc"})
	require.NoError(t, err)

	assert.Equal(t, TypeElevatorCmd, env.Header.Type)
	assert.Equal(t, Metamodel, env.Header.Metamodel)
	assert.NotEmpty(t, env.Header.MsgID)
	_, err = time.Parse(time.RFC3339Nano, env.Header.Timestamp)
	assert.NoError(t, err)

	data, err := env.Marshal()
	require.NoError(t, err)

	var raw map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "abc", raw["payload"]["queryId"])
	assert.Equal(t, TypeElevatorCmd, raw["header"]["type"])
}

func TestDecode(t *testing.T) {
	data := []byte(`{"header":{"type":"ELEVATOR-STATUS","msgId":"1"},"payload":{"elevatorId":1,"floor":3}}`)

	env, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeElevatorStatus, env.Header.Type)

	var status ElevatorStatusPayload
	require.NoError(t, env.DecodePayload(&status))
	assert.Equal(t, 1, status.ElevatorID)
	assert.Equal(t, 3, status.Floor)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"missing type", `{"header":{"msgId":"1"},"payload":{}}`},
		{"missing msg id", `{"header":{"type":"ELEVATOR-CMD"},"payload":{}}`},
		{"missing payload", `{"header":{"type":"ELEVATOR-CMD","msgId":"1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestReservationPayloadValidation(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	valid := ReservationPayload{
		Command: CommandConfirmReservation,
		Reservation: &ReservationSpec{
			SubAreaID:        3,
			StartTime:        start,
			EndTime:          start.Add(30 * time.Minute),
			RequiredCapacity: 1,
		},
	}
	assert.NoError(t, Validate(&valid))

	missing := ReservationPayload{Command: CommandConfirmReservation}
	assert.Error(t, Validate(&missing))

	reversed := valid
	spec := *valid.Reservation
	spec.EndTime = start.Add(-time.Minute)
	reversed.Reservation = &spec
	assert.Error(t, Validate(&reversed))

	unknown := ReservationPayload{Command: "RESERVATION-QUERY"}
	assert.Error(t, Validate(&unknown))

	badID := ReservationPayload{Command: CommandCancelReservation, ReservationID: "not-a-uuid"}
	assert.Error(t, Validate(&badID))
}

func TestRequestStatusPayloadValidation(t *testing.T) {
	assert.NoError(t, Validate(&RequestStatusPayload{QueryID: "7d0e3c5c-53a6-4a5e-a1b4-8c0f3b3a6f11", Status: 6}))
	assert.Error(t, Validate(&RequestStatusPayload{QueryID: "7d0e3c5c-53a6-4a5e-a1b4-8c0f3b3a6f11", Status: 9}))
	assert.Error(t, Validate(&RequestStatusPayload{Status: 1}))
}
