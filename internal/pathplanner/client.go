package pathplanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fleet-resource-manager/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// 子区域行为标签
const (
	BehaviourDocking   = "docking"
	BehaviourWaiting   = "waiting"
	BehaviourCharging  = "charging"
	BehaviourUndefined = "undefined"
)

// Config 路径规划服务配置
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
}

// Client OSM 路径规划服务客户端
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建路径规划客户端
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// GetSubArea 查询区域内指定行为的子区域
func (c *Client) GetSubArea(ctx context.Context, areaName, behaviour string) (models.SubArea, error) {
	var subArea models.SubArea
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"area":      areaName,
			"behaviour": behaviour,
		}).
		SetResult(&subArea).
		Get("/sub_area")
	if err != nil {
		return models.SubArea{}, fmt.Errorf("failed to call path planner: %w", err)
	}
	if resp.IsError() {
		c.logger.Warn("Path planner returned error for sub area",
			zap.String("area", areaName),
			zap.String("behaviour", behaviour),
			zap.Int("status_code", resp.StatusCode()),
		)
		return models.SubArea{}, fmt.Errorf("path planner error: sub area %s/%s (status: %d)", areaName, behaviour, resp.StatusCode())
	}
	return subArea, nil
}

// GetPathPlan 规划两点间经过的区域序列
func (c *Client) GetPathPlan(ctx context.Context, req models.PathRequest) ([]models.Area, error) {
	var areas []models.Area
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&areas).
		Post("/path_plan")
	if err != nil {
		return nil, fmt.Errorf("failed to call path planner: %w", err)
	}
	if resp.IsError() {
		c.logger.Warn("Path planner returned error for path plan",
			zap.String("start_area", req.StartArea),
			zap.String("destination_area", req.DestinationArea),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return nil, fmt.Errorf("path planner error: %s -> %s (status: %d)", req.StartArea, req.DestinationArea, resp.StatusCode())
	}
	if len(areas) == 0 {
		return nil, fmt.Errorf("path planner returned an empty path: %s -> %s", req.StartArea, req.DestinationArea)
	}

	c.logger.Debug("Path planned",
		zap.String("start_local_area", req.StartLocalArea),
		zap.String("destination_local_area", req.DestinationLocalArea),
		zap.Int("areas", len(areas)),
	)
	return areas, nil
}

// TaskToBehaviour 动作类型 -> 子区域行为标签
func (c *Client) TaskToBehaviour(actionType string) string {
	return TaskToBehaviour(actionType)
}

// TaskToBehaviour 动作类型 -> 子区域行为标签
func TaskToBehaviour(actionType string) string {
	switch strings.ToUpper(actionType) {
	case models.ActionDock, models.ActionUndock:
		return BehaviourDocking
	case models.ActionRequestElevator, models.ActionWaitForElevator, models.ActionEnterElevator,
		models.ActionExitElevator, models.ActionRideElevator:
		return BehaviourWaiting
	case models.ActionCharge:
		return BehaviourCharging
	}
	return BehaviourUndefined
}
