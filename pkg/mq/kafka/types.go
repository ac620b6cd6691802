package kafka

import (
	"context"
	"time"
)

// Message 待发送的消息
type Message struct {
	// Topic 为空时使用 Producer 的默认主题
	Topic string
	// Key 相同 Key 的消息进入同一分区
	Key     []byte
	Value   []byte
	Headers map[string]string
	Time    time.Time
}

// PublishFunc 发送函数
type PublishFunc func(ctx context.Context, msg *Message) error

// ProducerMiddleware 生产者中间件
type ProducerMiddleware func(ctx context.Context, msg *Message, next PublishFunc) error

// ProducerStats 生产者统计
type ProducerStats struct {
	MessagesProduced  int64
	MessagesSucceeded int64
	MessagesFailed    int64
}
