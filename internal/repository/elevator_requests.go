package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fleet-resource-manager/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrRequestNotFound 电梯请求不存在
var ErrRequestNotFound = errors.New("elevator request not found")

// ElevatorRequestRepository 电梯请求仓库（活动表 + 归档表）
type ElevatorRequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewElevatorRequestRepository 创建电梯请求仓库
func NewElevatorRequestRepository(db *sql.DB, logger *zap.Logger) *ElevatorRequestRepository {
	return &ElevatorRequestRepository{
		db:     db,
		logger: logger,
	}
}

const elevatorRequestColumns = `
	query_id,
	status,
	elevator_id,
	robot_id,
	command,
	start_floor,
	goal_floor,
	task_id,
	load,
	operational_mode,
	created_at
`

func scanElevatorRequest(row rowScanner) (*models.RobotRequest, error) {
	var req models.RobotRequest
	var status string
	var elevatorID sql.NullInt64
	var taskID sql.NullString

	if err := row.Scan(
		&req.QueryID,
		&status,
		&elevatorID,
		&req.RobotID,
		&req.Command,
		&req.StartFloor,
		&req.GoalFloor,
		&taskID,
		&req.Load,
		&req.OperationalMode,
		&req.CreatedAt,
	); err != nil {
		return nil, err
	}

	req.Status = models.RequestStatus(status)
	if elevatorID.Valid {
		id := int(elevatorID.Int64)
		req.ElevatorID = &id
	}
	if taskID.Valid {
		req.TaskID = &taskID.String
	}
	return &req, nil
}

// Save 插入或更新活动请求
func (r *ElevatorRequestRepository) Save(ctx context.Context, req *models.RobotRequest) error {
	query := `
		INSERT INTO elevator_requests (
			query_id, status, elevator_id, robot_id, command,
			start_floor, goal_floor, task_id, load, operational_mode
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (query_id)
		DO UPDATE SET status = EXCLUDED.status,
		              elevator_id = EXCLUDED.elevator_id,
		              updated_at = now()
	`

	_, err := r.db.ExecContext(ctx, query,
		req.QueryID,
		string(req.Status),
		nullInt(req.ElevatorID),
		req.RobotID,
		req.Command,
		req.StartFloor,
		req.GoalFloor,
		nullString(req.TaskID),
		req.Load,
		req.OperationalMode,
	)
	if err != nil {
		return fmt.Errorf("failed to save elevator request %s: %w", req.QueryID, err)
	}
	return nil
}

// GetLive 获取全部活动请求
func (r *ElevatorRequestRepository) GetLive(ctx context.Context) ([]models.RobotRequest, error) {
	query := `SELECT ` + elevatorRequestColumns + ` FROM elevator_requests ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query elevator requests: %w", err)
	}
	defer rows.Close()

	requests := make([]models.RobotRequest, 0)
	for rows.Next() {
		req, err := scanElevatorRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan elevator request: %w", err)
		}
		requests = append(requests, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate elevator requests: %w", err)
	}
	return requests, nil
}

// GetArchived 从归档表获取请求
func (r *ElevatorRequestRepository) GetArchived(ctx context.Context, queryID uuid.UUID) (*models.RobotRequest, error) {
	query := `SELECT ` + elevatorRequestColumns + ` FROM elevator_request_archive WHERE query_id = $1`

	req, err := scanElevatorRequest(r.db.QueryRowContext(ctx, query, queryID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: query_id=%s", ErrRequestNotFound, queryID)
		}
		return nil, fmt.Errorf("failed to get archived elevator request: %w", err)
	}
	return req, nil
}

// IsArchived 归档表中是否已有该请求
func (r *ElevatorRequestRepository) IsArchived(ctx context.Context, queryID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM elevator_request_archive WHERE query_id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, queryID.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check archived elevator request: %w", err)
	}
	return exists, nil
}

// Archive 在同一事务内写入归档表并删除活动记录
// 归档写入失败时事务回滚，活动记录保持不变
func (r *ElevatorRequestRepository) Archive(ctx context.Context, req *models.RobotRequest) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	insert := `
		INSERT INTO elevator_request_archive (
			query_id, status, elevator_id, robot_id, command,
			start_floor, goal_floor, task_id, load, operational_mode, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if _, err := tx.ExecContext(ctx, insert,
		req.QueryID,
		string(req.Status),
		nullInt(req.ElevatorID),
		req.RobotID,
		req.Command,
		req.StartFloor,
		req.GoalFloor,
		nullString(req.TaskID),
		req.Load,
		req.OperationalMode,
		req.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to write elevator request archive: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM elevator_requests WHERE query_id = $1`, req.QueryID); err != nil {
		return fmt.Errorf("failed to delete live elevator request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive transaction: %w", err)
	}

	r.logger.Info("Archived elevator request",
		zap.String("query_id", req.QueryID.String()),
		zap.String("robot_id", req.RobotID),
	)
	return nil
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}
