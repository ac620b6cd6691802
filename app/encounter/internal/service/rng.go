package service

import (
	"math/rand"
	"sync"
	"time"
)

// Roller 随机源，测试时注入固定序列
type Roller interface {
	// Intn 返回 [0, n) 内的整数
	Intn(n int) int
	// Float64 返回 [0, 1) 内的浮点数
	Float64() float64
}

// lockedRand 并发安全的 *rand.Rand
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRoller 创建随机源，seed 为 0 时使用当前时间
func NewRoller(seed int64) Roller {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// rollRange 返回 [lo, hi] 内的整数
func rollRange(r Roller, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}
