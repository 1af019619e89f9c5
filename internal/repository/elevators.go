package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fleet-resource-manager/internal/models"

	"go.uber.org/zap"
)

// ErrElevatorNotFound 电梯不存在
var ErrElevatorNotFound = errors.New("elevator not found")

// ElevatorRepository 电梯仓库
type ElevatorRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewElevatorRepository 创建电梯仓库
func NewElevatorRepository(db *sql.DB, logger *zap.Logger) *ElevatorRepository {
	return &ElevatorRepository{
		db:     db,
		logger: logger,
	}
}

// GetAll 获取全部电梯及其状态
func (r *ElevatorRepository) GetAll(ctx context.Context) ([]models.Elevator, error) {
	query := `
		SELECT id, elevator_id, floor, calls, is_available,
		       door_open_at_goal_floor, door_open_at_start_floor
		FROM elevators
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query elevators: %w", err)
	}
	defer rows.Close()

	var elevators []models.Elevator
	for rows.Next() {
		var e models.Elevator
		if err := rows.Scan(
			&e.ID,
			&e.ElevatorID,
			&e.Status.Floor,
			&e.Status.Calls,
			&e.Status.IsAvailable,
			&e.Status.DoorOpenAtGoalFloor,
			&e.Status.DoorOpenAtStartFloor,
		); err != nil {
			return nil, fmt.Errorf("failed to scan elevator: %w", err)
		}
		elevators = append(elevators, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate elevators: %w", err)
	}

	return elevators, nil
}

// Upsert 插入或更新电梯（车队配置）
func (r *ElevatorRepository) Upsert(ctx context.Context, e *models.Elevator) error {
	query := `
		INSERT INTO elevators (id, elevator_id, floor, calls, is_available,
		                       door_open_at_goal_floor, door_open_at_start_floor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET elevator_id = EXCLUDED.elevator_id, updated_at = now()
	`

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.ElevatorID,
		e.Status.Floor,
		e.Status.Calls,
		e.Status.IsAvailable,
		e.Status.DoorOpenAtGoalFloor,
		e.Status.DoorOpenAtStartFloor,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert elevator %d: %w", e.ID, err)
	}
	return nil
}

// UpdateStatus 更新电梯状态快照
func (r *ElevatorRepository) UpdateStatus(ctx context.Context, id int, status models.ElevatorStatus) error {
	query := `
		UPDATE elevators
		SET floor = $2,
		    calls = $3,
		    is_available = $4,
		    door_open_at_goal_floor = $5,
		    door_open_at_start_floor = $6,
		    updated_at = now()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		id,
		status.Floor,
		status.Calls,
		status.IsAvailable,
		status.DoorOpenAtGoalFloor,
		status.DoorOpenAtStartFloor,
	)
	if err != nil {
		return fmt.Errorf("failed to update elevator status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id=%d", ErrElevatorNotFound, id)
	}
	return nil
}
