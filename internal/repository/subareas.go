package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fleet-resource-manager/internal/models"

	"go.uber.org/zap"
)

// ErrSubAreaNotFound 子区域不存在
var ErrSubAreaNotFound = errors.New("sub area not found")

// SubAreaRepository 子区域仓库
type SubAreaRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubAreaRepository 创建子区域仓库
func NewSubAreaRepository(db *sql.DB, logger *zap.Logger) *SubAreaRepository {
	return &SubAreaRepository{
		db:     db,
		logger: logger,
	}
}

// GetAll 获取全部子区域
func (r *SubAreaRepository) GetAll(ctx context.Context) ([]models.SubArea, error) {
	query := `
		SELECT id, name, behaviour, type, capacity
		FROM sub_areas
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sub areas: %w", err)
	}
	defer rows.Close()

	var subAreas []models.SubArea
	for rows.Next() {
		var sa models.SubArea
		if err := rows.Scan(&sa.ID, &sa.Name, &sa.Behaviour, &sa.Type, &sa.Capacity); err != nil {
			return nil, fmt.Errorf("failed to scan sub area: %w", err)
		}
		subAreas = append(subAreas, sa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sub areas: %w", err)
	}

	return subAreas, nil
}

// GetByID 根据 id 获取子区域
func (r *SubAreaRepository) GetByID(ctx context.Context, id int64) (*models.SubArea, error) {
	query := `
		SELECT id, name, behaviour, type, capacity
		FROM sub_areas
		WHERE id = $1
	`

	var sa models.SubArea
	err := r.db.QueryRowContext(ctx, query, id).Scan(&sa.ID, &sa.Name, &sa.Behaviour, &sa.Type, &sa.Capacity)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: id=%d", ErrSubAreaNotFound, id)
		}
		return nil, fmt.Errorf("failed to get sub area: %w", err)
	}

	return &sa, nil
}

// Upsert 插入或更新子区域（从地图数据初始化）
func (r *SubAreaRepository) Upsert(ctx context.Context, sa *models.SubArea) error {
	query := `
		INSERT INTO sub_areas (id, name, behaviour, type, capacity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name,
		              behaviour = EXCLUDED.behaviour,
		              type = EXCLUDED.type,
		              capacity = EXCLUDED.capacity,
		              updated_at = now()
	`

	if _, err := r.db.ExecContext(ctx, query, sa.ID, sa.Name, sa.Behaviour, sa.Type, sa.Capacity); err != nil {
		return fmt.Errorf("failed to upsert sub area %d: %w", sa.ID, err)
	}
	return nil
}

// UpdateCapacity 调整子区域容量
func (r *SubAreaRepository) UpdateCapacity(ctx context.Context, id int64, capacity int) error {
	query := `UPDATE sub_areas SET capacity = $2, updated_at = now() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, capacity)
	if err != nil {
		return fmt.Errorf("failed to update sub area capacity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id=%d", ErrSubAreaNotFound, id)
	}

	r.logger.Debug("Updated sub area capacity",
		zap.Int64("subarea_id", id),
		zap.Int("capacity", capacity),
	)
	return nil
}
