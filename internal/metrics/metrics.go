package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName 服务指标名称空间
const MeterName = "fleet-resource-manager"

// Metrics 业务计数器（未安装 SDK provider 时为 no-op）
type Metrics struct {
	reservations     metric.Int64Counter
	planFailures     metric.Int64Counter
	requestsArchived metric.Int64Counter
	messages         metric.Int64Counter
}

// New 从全局 MeterProvider 创建计数器
func New() (*Metrics, error) {
	return NewWithMeter(otel.Meter(MeterName))
}

// NewWithMeter 使用指定 Meter 创建计数器
func NewWithMeter(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	m.reservations, err = meter.Int64Counter("fms.reservations.total",
		metric.WithDescription("Reservation admission decisions"),
		metric.WithUnit("{reservation}"),
	)
	if err != nil {
		return nil, err
	}

	m.planFailures, err = meter.Int64Counter("fms.plan_assembly.failures",
		metric.WithDescription("Path plan assemblies aborted by a routing failure"),
		metric.WithUnit("{plan}"),
	)
	if err != nil {
		return nil, err
	}

	m.requestsArchived, err = meter.Int64Counter("fms.elevator_requests.archived",
		metric.WithDescription("Elevator requests moved to the archive"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.messages, err = meter.Int64Counter("fms.messages.total",
		metric.WithDescription("Inbound messages handled"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordReservation 记录一次准入决定
func (m *Metrics) RecordReservation(ctx context.Context, subAreaID int64, admitted bool) {
	if m == nil {
		return
	}
	m.reservations.Add(ctx, 1, metric.WithAttributes(
		attribute.Int64("subarea_id", subAreaID),
		attribute.Bool("admitted", admitted),
	))
}

// RecordPlanFailure 记录一次规划失败
func (m *Metrics) RecordPlanFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.planFailures.Add(ctx, 1)
}

// RecordArchived 记录一次请求归档
func (m *Metrics) RecordArchived(ctx context.Context) {
	if m == nil {
		return
	}
	m.requestsArchived.Add(ctx, 1)
}

// RecordMessage 记录一条入站消息及其处理结果
func (m *Metrics) RecordMessage(ctx context.Context, msgType string, failed bool) {
	if m == nil {
		return
	}
	m.messages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", msgType),
		attribute.Bool("failed", failed),
	))
}
