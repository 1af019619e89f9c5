package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fleet-resource-manager/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrReservationNotFound 预约不存在
var ErrReservationNotFound = errors.New("reservation not found")

// ReservationRepository 子区域预约仓库
type ReservationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReservationRepository 创建预约仓库
func NewReservationRepository(db *sql.DB, logger *zap.Logger) *ReservationRepository {
	return &ReservationRepository{
		db:     db,
		logger: logger,
	}
}

const reservationColumns = `
	reservation_id,
	subarea_id,
	task_id,
	robot_id,
	start_time,
	end_time,
	required_capacity,
	status
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*models.SubareaReservation, error) {
	var r models.SubareaReservation
	var taskID, robotID sql.NullString
	var status string

	if err := row.Scan(
		&r.ReservationID,
		&r.SubAreaID,
		&taskID,
		&robotID,
		&r.StartTime,
		&r.EndTime,
		&r.RequiredCapacity,
		&status,
	); err != nil {
		return nil, err
	}

	// 处理可空字段
	if taskID.Valid {
		r.TaskID = &taskID.String
	}
	if robotID.Valid {
		r.RobotID = &robotID.String
	}
	r.Status = models.ReservationStatus(status)
	return &r, nil
}

// Get 根据 reservation_id 获取预约
func (r *ReservationRepository) Get(ctx context.Context, id uuid.UUID) (*models.SubareaReservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM subarea_reservations WHERE reservation_id = $1`

	res, err := scanReservation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: reservation_id=%s", ErrReservationNotFound, id)
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return res, nil
}

// Save 插入或更新预约（单行写入，原子）
func (r *ReservationRepository) Save(ctx context.Context, res *models.SubareaReservation) error {
	query := `
		INSERT INTO subarea_reservations (
			reservation_id, subarea_id, task_id, robot_id,
			start_time, end_time, required_capacity, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (reservation_id)
		DO UPDATE SET start_time = EXCLUDED.start_time,
		              end_time = EXCLUDED.end_time,
		              required_capacity = EXCLUDED.required_capacity,
		              status = EXCLUDED.status,
		              updated_at = now()
	`

	_, err := r.db.ExecContext(ctx, query,
		res.ReservationID,
		res.SubAreaID,
		nullString(res.TaskID),
		nullString(res.RobotID),
		res.StartTime,
		res.EndTime,
		res.RequiredCapacity,
		string(res.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to save reservation %s: %w", res.ReservationID, err)
	}

	r.logger.Debug("Saved sub area reservation",
		zap.String("reservation_id", res.ReservationID.String()),
		zap.Int64("subarea_id", res.SubAreaID),
		zap.String("status", string(res.Status)),
	)
	return nil
}

// GetFutureReservations 获取子区域尚未结束的预约（end_time >= now），按开始时间升序
func (r *ReservationRepository) GetFutureReservations(ctx context.Context, subAreaID int64, now time.Time) ([]models.SubareaReservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM subarea_reservations
		WHERE subarea_id = $1
		  AND end_time >= $2
		ORDER BY start_time ASC
	`
	return r.list(ctx, query, subAreaID, now)
}

// ListBySubArea 获取时间窗口 [from, to] 内与之相交的全部预约（用于导出）
func (r *ReservationRepository) ListBySubArea(ctx context.Context, subAreaID int64, from, to time.Time) ([]models.SubareaReservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM subarea_reservations
		WHERE subarea_id = $1
		  AND end_time >= $2
		  AND start_time <= $3
		ORDER BY start_time ASC
	`
	return r.list(ctx, query, subAreaID, from, to)
}

func (r *ReservationRepository) list(ctx context.Context, query string, args ...any) ([]models.SubareaReservation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	reservations := make([]models.SubareaReservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}
	return reservations, nil
}

// ExpireLapsed 将已过期的 scheduled 预约标记为 completed，返回更新行数
func (r *ReservationRepository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE subarea_reservations
		SET status = 'completed', updated_at = now()
		WHERE status = 'scheduled'
		  AND end_time < $1
	`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire reservations: %w", err)
	}
	return result.RowsAffected()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
