package consumer

import (
	"context"
	"fmt"

	"fleet-resource-manager/internal/messaging"
)

// Publisher MQTT 发布接口
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// EnvelopePublisher 将消息信封发布到固定主题
type EnvelopePublisher struct {
	client Publisher
	topic  string
	qos    byte
}

// NewEnvelopePublisher 创建信封发布器
func NewEnvelopePublisher(client Publisher, topic string, qos byte) *EnvelopePublisher {
	return &EnvelopePublisher{
		client: client,
		topic:  topic,
		qos:    qos,
	}
}

// Publish 序列化并发布
func (p *EnvelopePublisher) Publish(ctx context.Context, env *messaging.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", env.Header.Type, err)
	}
	return p.client.Publish(p.topic, p.qos, false, data)
}
