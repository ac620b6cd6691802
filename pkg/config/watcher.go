package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce 文件事件合并窗口，编辑器保存通常产生多次写事件
const DefaultWatchDebounce = 100 * time.Millisecond

// Watcher 配置热更新监听器
// 文件变化时重新解析为新的 *T，解析或校验失败时保留旧配置
// 每次重新加载的读取、校验、生效串行执行，后读到的文件总是最后生效
type Watcher[T any] struct {
	configPath string
	configType string
	debounce   time.Duration

	reloadMu sync.Mutex
	timerMu  sync.Mutex
	timer    *time.Timer

	mu        sync.RWMutex
	config    *T
	callbacks []func(*T)
	onError   func(error)
	check     func(*T) error
	defaults  func() *T
	stopped   bool
}

// WatcherOption Watcher 选项
type WatcherOption[T any] func(*Watcher[T])

// WithWatcherDefaults 每次加载先取默认值，文件中出现的字段再覆盖
// 与 MergeConfig 不同，文件里显式写出的零值同样生效
func WithWatcherDefaults[T any](fn func() *T) WatcherOption[T] {
	return func(w *Watcher[T]) { w.defaults = fn }
}

// WithWatchDebounce 设置文件事件合并窗口，窗口内的多次事件只触发一次重新加载
func WithWatchDebounce[T any](d time.Duration) WatcherOption[T] {
	return func(w *Watcher[T]) { w.debounce = d }
}

// NewWatcher 加载配置并开始监听文件变化
func NewWatcher[T any](configPath string, configType string, opts ...WatcherOption[T]) (*Watcher[T], error) {
	w := &Watcher[T]{
		configPath: configPath,
		configType: configType,
		debounce:   DefaultWatchDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	loader, cfg, err := w.load()
	if err != nil {
		return nil, err
	}
	w.config = cfg

	loader.viper.OnConfigChange(func(fsnotify.Event) {
		w.scheduleReload()
	})
	loader.viper.WatchConfig()
	return w, nil
}

// scheduleReload 合并窗口内的文件事件
func (w *Watcher[T]) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.debounce <= 0 {
		go func() { _ = w.Reload() }()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { _ = w.Reload() })
}

// GetConfig 获取当前配置
func (w *Watcher[T]) GetConfig() *T {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// OnChange 注册配置变化回调
func (w *Watcher[T]) OnChange(callback func(*T)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// OnError 注册重新加载失败回调
func (w *Watcher[T]) OnError(callback func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = callback
}

// SetCheck 设置新配置生效前的校验函数，校验失败的配置被丢弃
func (w *Watcher[T]) SetCheck(check func(*T) error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.check = check
}

// Reload 立即重新读取配置文件
func (w *Watcher[T]) Reload() error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	_, cfg, err := w.load()

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	if err == nil && w.check != nil {
		err = w.check(cfg)
	}
	if err != nil {
		onError := w.onError
		w.mu.Unlock()
		if onError != nil {
			onError(err)
		}
		return err
	}
	w.config = cfg
	callbacks := append([]func(*T){}, w.callbacks...)
	w.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
	return nil
}

// Stop 停止分发变化，Viper 的底层 fsnotify 监听无法单独关闭
func (w *Watcher[T]) Stop() {
	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
}

func (w *Watcher[T]) load() (*Loader, *T, error) {
	loader := NewLoader()
	if err := loader.LoadFile(w.configPath, w.configType); err != nil {
		return nil, nil, err
	}
	// 空文件会解析成默认值，直接生效等于悄悄重置全部配置
	if loader.Empty() {
		return nil, nil, fmt.Errorf("%w: %s", ErrEmptyConfig, w.configPath)
	}
	cfg := new(T)
	if w.defaults != nil {
		cfg = w.defaults()
	}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, nil, err
	}
	return loader, cfg, nil
}
