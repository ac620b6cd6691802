package kafka

import (
	"context"
	"sync/atomic"

	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// messageWriter kafka.Writer 的可替换子集
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 单主题生产者
type Producer struct {
	topic       string
	writer      messageWriter
	middlewares []ProducerMiddleware
	logger      logger.Logger

	produced  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	closed    atomic.Bool
}

// NewProducer 创建写入 topic 的生产者
func NewProducer(cfg *Config, topic string, l logger.Logger, mws ...ProducerMiddleware) (*Producer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if l == nil {
		l = logger.Default()
	}

	pc := cfg.Producer
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              pc.BatchSize,
		BatchTimeout:           pc.BatchTimeout,
		MaxAttempts:            pc.MaxRetries + 1,
		WriteTimeout:           pc.WriteTimeout,
		ReadTimeout:            pc.ReadTimeout,
		RequiredAcks:           kafka.RequiredAcks(pc.RequiredAcks),
		Async:                  pc.Async,
		Compression:            parseCompression(pc.Compression),
		AllowAutoTopicCreation: true,
	}
	if cfg.TLS != nil || cfg.SASL != nil {
		transport, err := newTransport(cfg)
		if err != nil {
			return nil, err
		}
		w.Transport = transport
	}

	return newProducer(topic, w, l, mws...), nil
}

func newProducer(topic string, w messageWriter, l logger.Logger, mws ...ProducerMiddleware) *Producer {
	return &Producer{
		topic:       topic,
		writer:      w,
		middlewares: mws,
		logger:      l.Named("kafka.producer"),
	}
}

// Publish 经过中间件链发送单条消息
func (p *Producer) Publish(ctx context.Context, msg *Message) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	p.produced.Add(1)

	publish := PublishFunc(p.write)
	for i := len(p.middlewares) - 1; i >= 0; i-- {
		mw, next := p.middlewares[i], publish
		publish = func(ctx context.Context, msg *Message) error {
			return mw(ctx, msg, next)
		}
	}

	if err := publish(ctx, msg); err != nil {
		p.failed.Add(1)
		return err
	}
	p.succeeded.Add(1)
	return nil
}

func (p *Producer) write(ctx context.Context, msg *Message) error {
	km := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Time:  msg.Time,
	}
	// Writer 设置了 Topic 时消息不能再带 Topic
	if msg.Topic != "" && msg.Topic != p.topic {
		return ErrInvalidConfig
	}
	for k, v := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return p.writer.WriteMessages(ctx, km)
}

// Topic 默认主题
func (p *Producer) Topic() string {
	return p.topic
}

// Stats 统计快照
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		MessagesProduced:  p.produced.Load(),
		MessagesSucceeded: p.succeeded.Load(),
		MessagesFailed:    p.failed.Load(),
	}
}

// Close 刷新缓冲并关闭，可重复调用
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.logger.Debug("producer closing", "topic", p.topic)
	return p.writer.Close()
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}
