package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Loader 单文件配置加载器，每次加载使用独立的 Viper 实例
type Loader struct {
	viper *viper.Viper
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{viper: viper.New()}
}

// LoadFile 加载配置文件
// configType 为 "yaml" 或 "json"；yaml 文件同时接受 XDOORIA_ 前缀的环境变量覆盖
func (l *Loader) LoadFile(configPath string, configType string) error {
	l.viper.SetConfigFile(configPath)
	l.viper.SetConfigType(configType)

	if configType == "yaml" {
		l.viper.SetEnvPrefix("XDOORIA")
		l.viper.AutomaticEnv()
		l.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	}

	if err := l.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Empty 文件中没有任何键
func (l *Loader) Empty() bool {
	return len(l.viper.AllKeys()) == 0
}

// Unmarshal 解析整个配置到结构体
func (l *Loader) Unmarshal(target any) error {
	if err := l.viper.Unmarshal(target, decodeHook()); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// UnmarshalKey 解析配置中的某个 key
func (l *Loader) UnmarshalKey(key string, target any) error {
	if err := l.viper.UnmarshalKey(key, target, decodeHook()); err != nil {
		return fmt.Errorf("failed to unmarshal key %s: %w", key, err)
	}
	return nil
}
