package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// PublishToStream 发布消息到 Redis Streams（所有值转换为字符串）
func PublishToStream(ctx context.Context, client *redis.Client, stream string, values map[string]interface{}) (string, error) {
	streamValues := make(map[string]interface{}, len(values))
	for k, v := range values {
		var strValue string
		switch val := v.(type) {
		case string:
			strValue = val
		case []byte:
			strValue = string(val)
		case int:
			strValue = strconv.Itoa(val)
		case int64:
			strValue = strconv.FormatInt(val, 10)
		case float64:
			strValue = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			strValue = strconv.FormatBool(val)
		default:
			// 其它类型尝试 JSON 序列化
			jsonBytes, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			strValue = string(jsonBytes)
		}
		streamValues[k] = strValue
	}

	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: streamValues,
	}).Result()
}

// EventPublisher 领域事件发布器（写入单个 stream）
type EventPublisher struct {
	client *redis.Client
	stream string
}

// NewEventPublisher 创建事件发布器
func NewEventPublisher(client *redis.Client, stream string) *EventPublisher {
	return &EventPublisher{client: client, stream: stream}
}

// Publish 发布事件，event 为事件类型（如 "reservation.scheduled"）
func (p *EventPublisher) Publish(ctx context.Context, event string, data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event, err)
	}
	if _, err := PublishToStream(ctx, p.client, p.stream, map[string]interface{}{
		"event":     event,
		"data":      jsonBytes,
		"timestamp": time.Now().Unix(),
	}); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event, err)
	}
	return nil
}
