package rules

import (
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/pkg/config"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

// Provider 提供当前生效的数值快照，调用方每次操作读取一次，不得修改
type Provider interface {
	Current() *Config
}

// SourceConfig 数值来源
type SourceConfig struct {
	// Path 为空时使用内置默认值
	Path  string `mapstructure:"path" json:"path" yaml:"path"`
	Watch bool   `mapstructure:"watch" json:"watch" yaml:"watch"`
}

// Static 固定数值
type Static struct {
	cfg *Config
}

// NewStatic 校验并固定一份数值
func NewStatic(cfg *Config) (*Static, error) {
	if cfg == nil {
		cfg = Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Static{cfg: cfg}, nil
}

func (s *Static) Current() *Config { return s.cfg }

// Watched 监听数值文件，校验通过后原子替换快照
type Watched struct {
	watcher *config.Watcher[Config]
	current atomic.Pointer[Config]
	logger  logger.Logger
}

// NewWatched 加载数值文件并监听变化，文件缺省的字段取默认值
func NewWatched(path string, l logger.Logger) (*Watched, error) {
	w, err := config.NewWatcher[Config](path, fileType(path), config.WithWatcherDefaults(Default))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load rules from %s", path)
	}
	initial := w.GetConfig()
	if err := initial.Validate(); err != nil {
		w.Stop()
		return nil, err
	}

	p := &Watched{watcher: w, logger: l.Named("rules")}
	p.current.Store(initial)

	w.SetCheck(func(cfg *Config) error { return cfg.Validate() })
	w.OnChange(func(cfg *Config) {
		p.current.Store(cfg)
		p.logger.Info("rules reloaded",
			"path", path,
			"flee_chance", cfg.Capture.FleeChance,
			"timeout", cfg.Capture.Timeout,
		)
	})
	w.OnError(func(err error) {
		p.logger.Warn("rules reload rejected, keeping previous snapshot",
			"path", path,
			"error", err,
		)
	})
	return p, nil
}

func (p *Watched) Current() *Config { return p.current.Load() }

// Reload 立即重新读取文件
func (p *Watched) Reload() error { return p.watcher.Reload() }

// Close 停止监听
func (p *Watched) Close() error {
	p.watcher.Stop()
	return nil
}

// NewProvider 按来源配置创建 Provider
func NewProvider(src *SourceConfig, l logger.Logger) (Provider, error) {
	if src == nil || src.Path == "" {
		return NewStatic(Default())
	}
	if src.Watch {
		return NewWatched(src.Path, l)
	}

	loader := config.NewLoader()
	if err := loader.LoadFile(src.Path, fileType(src.Path)); err != nil {
		return nil, errors.Wrapf(err, "failed to load rules from %s", src.Path)
	}
	if loader.Empty() {
		return nil, errors.Wrapf(config.ErrEmptyConfig, "rules file %s", src.Path)
	}
	cfg := Default()
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode rules from %s", src.Path)
	}
	return NewStatic(cfg)
}

func fileType(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "yml" {
		return "yaml"
	}
	return ext
}
