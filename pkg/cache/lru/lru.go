package lru

import (
	"container/list"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/conc"
)

// Cache 进程内缓存接口
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	GetMany(keys []K) (map[K]V, []K)
	Set(key K, value V)
	SetWithTTL(key K, value V, ttl time.Duration)
	Delete(key K)
	Len() int
	Clear()
	Close() error
}

// Config LRU 配置
type Config struct {
	MaxSize int `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	// DefaultTTL 为 0 表示不过期
	DefaultTTL time.Duration `mapstructure:"default_ttl" json:"default_ttl" yaml:"default_ttl"`
	// CleanupInterval 为 0 时不启动后台清理，过期条目在读取时惰性删除
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" json:"cleanup_interval" yaml:"cleanup_interval"`
}

// LRU 带 TTL 的 LRU 缓存
type LRU[K comparable, V any] struct {
	config Config
	clock  clockwork.Clock
	order  *list.List
	items  map[K]*list.Element
	mu     sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       conc.WaitGroup

	onEvict func(key K, value V)
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

func (e *entry[K, V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Option LRU 选项
type Option[K comparable, V any] func(*LRU[K, V])

// WithOnEvict 条目被淘汰、过期或删除时回调，回调在持锁状态下执行
func WithOnEvict[K comparable, V any](fn func(key K, value V)) Option[K, V] {
	return func(c *LRU[K, V]) { c.onEvict = fn }
}

// WithClock 替换时钟
func WithClock[K comparable, V any](clock clockwork.Clock) Option[K, V] {
	return func(c *LRU[K, V]) { c.clock = clock }
}

// New 创建 LRU 缓存
func New[K comparable, V any](cfg *Config, opts ...Option[K, V]) *LRU[K, V] {
	c := &LRU[K, V]{
		clock:  clockwork.NewRealClock(),
		order:  list.New(),
		items:  make(map[K]*list.Element),
		stopCh: make(chan struct{}),
	}
	if cfg != nil {
		c.config = *cfg
	}
	if c.config.MaxSize <= 0 {
		c.config.MaxSize = 1024
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.config.CleanupInterval > 0 {
		c.wg.Go(c.cleanupLoop)
	}
	return c
}

func (c *LRU[K, V]) cleanupLoop() {
	ticker := c.clock.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			c.removeExpired()
		case <-c.stopCh:
			return
		}
	}
}

func (c *LRU[K, V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for e := c.order.Back(); e != nil; {
		prev := e.Prev()
		if e.Value.(*entry[K, V]).expired(now) {
			c.removeElement(e)
		}
		e = prev
	}
}

// Get 获取值
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key, c.clock.Now())
}

// GetMany 批量获取，返回命中的条目与未命中的键（保持输入顺序）
func (c *LRU[K, V]) GetMany(keys []K) (map[K]V, []K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	hits := make(map[K]V, len(keys))
	var misses []K
	for _, key := range keys {
		if v, ok := c.getLocked(key, now); ok {
			hits[key] = v
			continue
		}
		misses = append(misses, key)
	}
	return hits, misses
}

func (c *LRU[K, V]) getLocked(key K, now time.Time) (V, bool) {
	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	ent := elem.Value.(*entry[K, V])
	if ent.expired(now) {
		c.removeElement(elem)
		return zero, false
	}
	c.order.MoveToFront(elem)
	return ent.value, true
}

// Set 使用默认 TTL 写入
func (c *LRU[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.config.DefaultTTL)
}

// SetWithTTL 使用指定 TTL 写入，ttl <= 0 表示不过期
func (c *LRU[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, ttl)
}

func (c *LRU[K, V]) setLocked(key K, value V, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.clock.Now().Add(ttl)
	}

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry[K, V])
		ent.value = value
		ent.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
	for c.order.Len() > c.config.MaxSize {
		c.removeElement(c.order.Back())
	}
}

// GetOrCreate 不存在或已过期时调用 create 并写入
func (c *LRU[K, V]) GetOrCreate(key K, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.getLocked(key, c.clock.Now()); ok {
		return v
	}
	v := create()
	c.setLocked(key, v, c.config.DefaultTTL)
	return v
}

// Delete 删除条目
func (c *LRU[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Len 当前条目数（含尚未清理的过期条目）
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear 清空缓存，不触发淘汰回调
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[K]*list.Element)
}

// Close 停止后台清理，可重复调用
func (c *LRU[K, V]) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	return nil
}

func (c *LRU[K, V]) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	ent := elem.Value.(*entry[K, V])
	delete(c.items, ent.key)
	if c.onEvict != nil {
		c.onEvict(ent.key, ent.value)
	}
}
