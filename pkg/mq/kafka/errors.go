package kafka

import "errors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("kafka: invalid config")

	// ErrNoBrokers 无 broker 地址
	ErrNoBrokers = errors.New("kafka: no brokers configured")

	// ErrEmptyTopic 空主题
	ErrEmptyTopic = errors.New("kafka: empty topic")

	// ErrProducerClosed 生产者已关闭
	ErrProducerClosed = errors.New("kafka: producer is closed")

	// ErrProducerPanic 发送过程 panic
	ErrProducerPanic = errors.New("kafka: producer panic")
)
