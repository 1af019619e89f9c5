package repository

import (
	"context"
	"errors"
	"testing"

	"fleet-resource-manager/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSubAreaGetAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSubAreaRepository(db, zap.NewNop())

	rows := sqlmock.NewRows([]string{"id", "name", "behaviour", "type", "capacity"}).
		AddRow(int64(1), "charging_station_1", "charging", "charging", 1).
		AddRow(int64(2), "elevator_1_waiting", "waiting", "waiting", 2)
	mock.ExpectQuery(`SELECT id, name, behaviour, type, capacity\s+FROM sub_areas`).
		WillReturnRows(rows)

	list, err := repo.GetAll(context.Background())

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "charging_station_1", list[0].Name)
	assert.Equal(t, 2, list[1].Capacity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubAreaUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSubAreaRepository(db, zap.NewNop())
	sa := &models.SubArea{ID: 5, Name: "dock_5", Behaviour: "docking", Type: "docking", Capacity: 1}

	mock.ExpectExec(`INSERT INTO sub_areas`).
		WithArgs(int64(5), "dock_5", "docking", "docking", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), sa))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubAreaUpdateCapacity_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSubAreaRepository(db, zap.NewNop())

	mock.ExpectExec(`UPDATE sub_areas SET capacity`).
		WithArgs(int64(99), 3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateCapacity(context.Background(), 99, 3)

	assert.True(t, errors.Is(err, ErrSubAreaNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestElevatorUpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewElevatorRepository(db, zap.NewNop())
	status := models.ElevatorStatus{Floor: 3, Calls: 1, IsAvailable: true, DoorOpenAtGoalFloor: true}

	mock.ExpectExec(`UPDATE elevators`).
		WithArgs(1, 3, 1, true, true, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE elevators`).
		WithArgs(42, 3, 1, true, true, false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateStatus(context.Background(), 1, status))

	err = repo.UpdateStatus(context.Background(), 42, status)
	assert.True(t, errors.Is(err, ErrElevatorNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestElevatorGetAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewElevatorRepository(db, zap.NewNop())
	rows := sqlmock.NewRows([]string{
		"id", "elevator_id", "floor", "calls", "is_available",
		"door_open_at_goal_floor", "door_open_at_start_floor",
	}).AddRow(1, "elevator_1", 0, 0, true, false, false)

	mock.ExpectQuery(`SELECT id, elevator_id`).WillReturnRows(rows)

	list, err := repo.GetAll(context.Background())

	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "elevator_1", list[0].ElevatorID)
	assert.True(t, list[0].Status.IsAvailable)
	require.NoError(t, mock.ExpectationsWereMet())
}
