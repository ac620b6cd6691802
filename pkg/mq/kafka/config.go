package kafka

import "time"

// Config Kafka 生产者配置，Brokers 为空表示不投递事件
type Config struct {
	Brokers []string `mapstructure:"brokers" json:"brokers" yaml:"brokers"`

	Producer ProducerConfig `mapstructure:"producer" json:"producer" yaml:"producer"`

	SASL *SASLConfig `mapstructure:"sasl" json:"sasl,omitempty" yaml:"sasl,omitempty"`
	TLS  *TLSConfig  `mapstructure:"tls" json:"tls,omitempty" yaml:"tls,omitempty"`
}

// ProducerConfig 生产者配置
type ProducerConfig struct {
	// Async 为 true 时 WriteMessages 立即返回，错误只能从 Completion 回调获得
	Async        bool          `mapstructure:"async" json:"async" yaml:"async"`
	BatchSize    int           `mapstructure:"batch_size" json:"batch_size" yaml:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout" json:"batch_timeout" yaml:"batch_timeout"`
	MaxRetries   int           `mapstructure:"max_retries" json:"max_retries" yaml:"max_retries"`

	// RequiredAcks 0 不等待，1 等待 Leader，-1 等待所有副本
	RequiredAcks int `mapstructure:"required_acks" json:"required_acks" yaml:"required_acks"`

	// Compression none, gzip, snappy, lz4, zstd
	Compression  string        `mapstructure:"compression" json:"compression" yaml:"compression"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout"`
}

// SASLConfig SASL 认证配置
type SASLConfig struct {
	// Mechanism PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Mechanism string `mapstructure:"mechanism" json:"mechanism" yaml:"mechanism"`
	Username  string `mapstructure:"username" json:"username" yaml:"username"`
	Password  string `mapstructure:"password" json:"password" yaml:"password"`
}

// TLSConfig TLS 配置
type TLSConfig struct {
	Enable             bool   `mapstructure:"enable" json:"enable" yaml:"enable"`
	CertFile           string `mapstructure:"cert_file" json:"cert_file" yaml:"cert_file"`
	KeyFile            string `mapstructure:"key_file" json:"key_file" yaml:"key_file"`
	CAFile             string `mapstructure:"ca_file" json:"ca_file" yaml:"ca_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// DefaultConfig 默认配置，不含 broker
func DefaultConfig() *Config {
	return &Config{
		Producer: ProducerConfig{
			BatchSize:    100,
			BatchTimeout: 50 * time.Millisecond,
			MaxRetries:   3,
			RequiredAcks: 1,
			Compression:  "snappy",
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  10 * time.Second,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil || len(c.Brokers) == 0 {
		return ErrNoBrokers
	}
	switch c.Producer.RequiredAcks {
	case -1, 0, 1:
	default:
		return ErrInvalidConfig
	}
	return nil
}
