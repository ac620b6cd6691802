package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Manager 配置管理器接口
type Manager interface {
	// LoadFile 加载配置文件，格式由扩展名决定
	LoadFile(path string) error
	// BindEnv 绑定环境变量，prefix 为 "XDOORIA" 时 XDOORIA_REDIS_STANDALONE_HOST 映射 redis.standalone.host
	BindEnv(prefix string)
	// Unmarshal 解析整个配置到结构体
	Unmarshal(v any) error
	// UnmarshalKey 解析指定路径的配置，可以是结构体也可以是基本类型
	UnmarshalKey(key string, v any) error
	Get(key string) any
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	IsSet(key string) bool
	// Watch 监听配置文件变化
	Watch(callback func()) error
}

type manager struct {
	v         *viper.Viper
	mu        sync.RWMutex
	callbacks []func()
	watching  bool
}

// NewManager 创建配置管理器
func NewManager(opts ...Option) Manager {
	m := &manager{v: viper.New()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// decodeHook 在默认的 duration / 逗号切片之外支持 encoding.TextUnmarshaler
func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))
}

func (m *manager) LoadFile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.v.SetConfigFile(path)
	if err := m.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

func (m *manager) BindEnv(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prefix != "" {
		m.v.SetEnvPrefix(prefix)
	}
	m.v.AutomaticEnv()
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func (m *manager) Unmarshal(v any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.v.Unmarshal(v, decodeHook()); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

func (m *manager) UnmarshalKey(key string, v any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.v.UnmarshalKey(key, v, decodeHook()); err != nil {
		return fmt.Errorf("failed to unmarshal key %s: %w", key, err)
	}
	return nil
}

func (m *manager) Get(key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v.Get(key)
}

func (m *manager) GetString(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v.GetString(key)
}

func (m *manager) GetInt(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v.GetInt(key)
}

func (m *manager) GetBool(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v.GetBool(key)
}

func (m *manager) IsSet(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v.IsSet(key)
}

func (m *manager) Watch(callback func()) error {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, callback)
	start := !m.watching
	m.watching = true
	m.mu.Unlock()

	if !start {
		return nil
	}

	m.v.OnConfigChange(func(fsnotify.Event) {
		m.mu.RLock()
		callbacks := append([]func(){}, m.callbacks...)
		m.mu.RUnlock()
		for _, cb := range callbacks {
			cb()
		}
	})
	m.v.WatchConfig()
	return nil
}
