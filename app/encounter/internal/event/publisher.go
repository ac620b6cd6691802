// Package event 遭遇结果事件的投递
package event

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/metrics"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/lk2023060901/xdooria-encounter/pkg/mq/kafka"
)

// OutcomeType 结果事件类型，写入消息头
const OutcomeType = "encounter.outcome"

// Publisher 结果事件发布接口
type Publisher interface {
	Publish(ctx context.Context, ev *model.OutcomeEvent) error
	Close() error
}

// MessageProducer kafka.Producer 的可替换子集
type MessageProducer interface {
	Publish(ctx context.Context, msg *kafka.Message) error
	Close() error
}

var _ MessageProducer = (*kafka.Producer)(nil)

// KafkaPublisher 以训练师 ID 为 Key 投递到 Kafka，同一训练师的事件保持顺序
type KafkaPublisher struct {
	producer MessageProducer
	logger   logger.Logger
	metrics  *metrics.EncounterMetrics
}

// NewKafkaPublisher 创建 Kafka 发布器
func NewKafkaPublisher(p MessageProducer, l logger.Logger, m *metrics.EncounterMetrics) *KafkaPublisher {
	return &KafkaPublisher{
		producer: p,
		logger:   l.Named("event.publisher"),
		metrics:  m,
	}
}

// Publish 发布事件
func (p *KafkaPublisher) Publish(ctx context.Context, ev *model.OutcomeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "failed to encode outcome event")
	}

	err = p.producer.Publish(ctx, &kafka.Message{
		Key:   []byte(ev.TrainerID),
		Value: data,
		Headers: map[string]string{
			"type":         OutcomeType,
			"kind":         string(ev.Kind),
			"encounter_id": strconv.FormatInt(ev.EncounterID, 10),
		},
		Time: ev.OccurredAt,
	})
	p.metrics.RecordEventPublished(err == nil)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to publish outcome event",
			"trainer_id", ev.TrainerID,
			"encounter_id", ev.EncounterID,
			"kind", ev.Kind,
			"error", err,
		)
		return errors.Wrap(err, "failed to publish outcome event")
	}
	return nil
}

// Close 关闭生产者
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher 未配置 broker 时使用
type NoopPublisher struct{}

// Publish 丢弃事件
func (NoopPublisher) Publish(context.Context, *model.OutcomeEvent) error { return nil }

// Close 无操作
func (NoopPublisher) Close() error { return nil }
