package idgen

import "sync/atomic"

// Generator ID 生成器
type Generator interface {
	// NextID 生成下一个唯一 ID
	NextID() (int64, error)
}

// Sequence 进程内自增 ID，用于单实例部署与测试
type Sequence struct {
	n atomic.Int64
}

// NewSequence 从 start+1 开始发号
func NewSequence(start int64) *Sequence {
	s := &Sequence{}
	s.n.Store(start)
	return s
}

func (s *Sequence) NextID() (int64, error) {
	return s.n.Add(1), nil
}
