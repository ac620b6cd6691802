// Package memstore 进程内存储实现，用于 storage.driver: memory 与测试
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/dao"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
)

// Store 以互斥锁模拟事务语义，每次调用都完整生效或完全不生效
type Store struct {
	mu        sync.Mutex
	trainers  map[string]*model.Trainer
	creatures map[string]*model.Creature
	sequences map[string]int64
	calls     map[string]int
	now       func() time.Time

	// failNext 非空时下一次对应操作返回该错误，用于故障注入
	failNext map[string]error
}

var (
	_ dao.TrainerStore  = (*Store)(nil)
	_ dao.CreatureStore = (*Store)(nil)
	_ dao.SequenceStore = (*Store)(nil)
)

// New 创建空存储
func New() *Store {
	return &Store{
		trainers:  make(map[string]*model.Trainer),
		creatures: make(map[string]*model.Creature),
		sequences: make(map[string]int64),
		calls:     make(map[string]int),
		failNext:  make(map[string]error),
		now:       time.Now,
	}
}

// Calls 返回指定操作被调用的次数，每次调用计为一次往返
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// ResetCalls 清零调用计数
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.calls)
}

// FailNext 让下一次 op 调用返回 err
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = err
}

// enter 记录调用并取出注入的错误，调用方需持有锁
func (s *Store) enter(op string) error {
	s.calls[op]++
	if err, ok := s.failNext[op]; ok {
		delete(s.failNext, op)
		return err
	}
	return nil
}

// GetTrainer 获取训练师
func (s *Store) GetTrainer(_ context.Context, id string) (*model.Trainer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetTrainer"); err != nil {
		return nil, err
	}
	t, ok := s.trainers[id]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return t.Clone(), nil
}

// GetTrainers 批量获取训练师
func (s *Store) GetTrainers(_ context.Context, ids []string) ([]*model.Trainer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetTrainers"); err != nil {
		return nil, err
	}
	out := make([]*model.Trainer, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.trainers[id]; ok {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

// CreateTrainer 创建训练师
func (s *Store) CreateTrainer(_ context.Context, t *model.Trainer, starter *model.Creature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateTrainer"); err != nil {
		return err
	}
	if _, ok := s.trainers[t.ID]; ok {
		return dao.ErrAlreadyExists
	}
	if starter != nil {
		if _, ok := s.creatures[starter.ID]; ok {
			return dao.ErrAlreadyExists
		}
		s.creatures[starter.ID] = starter.Clone()
	}
	cp := t.Clone()
	for d, n := range cp.Devices {
		if n == 0 {
			delete(cp.Devices, d)
		}
	}
	s.trainers[t.ID] = cp
	return nil
}

// ApplyDelta 应用账本增量
func (s *Store) ApplyDelta(_ context.Context, id string, delta model.LedgerDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ApplyDelta"); err != nil {
		return err
	}
	t, ok := s.trainers[id]
	if !ok {
		return dao.ErrNotFound
	}
	if t.Currency+delta.Currency < 0 {
		return dao.ErrInsufficientFunds
	}
	for d, n := range delta.Devices {
		if t.Devices[d]+n < 0 {
			return dao.ErrInsufficientDevices
		}
	}

	t.Currency += delta.Currency
	for d, n := range delta.Devices {
		if n == 0 {
			continue
		}
		t.Devices[d] += n
		if t.Devices[d] == 0 {
			delete(t.Devices, d)
		}
	}
	t.UpdatedAt = s.now()
	return nil
}

// SettleCatch 写入捕获结果
func (s *Store) SettleCatch(_ context.Context, id string, c *model.Creature, reward int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SettleCatch"); err != nil {
		return err
	}
	t, ok := s.trainers[id]
	if !ok {
		return dao.ErrNotFound
	}
	if _, ok := s.creatures[c.ID]; ok {
		return dao.ErrAlreadyExists
	}
	s.creatures[c.ID] = c.Clone()
	t.Owned = append(t.Owned, c.ID)
	t.Currency += reward
	t.UpdatedAt = s.now()
	return nil
}

// SetPartner 设置伙伴
func (s *Store) SetPartner(_ context.Context, id string, creatureID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SetPartner"); err != nil {
		return err
	}
	t, ok := s.trainers[id]
	if !ok {
		return dao.ErrNotFound
	}
	if creatureID == nil {
		t.PartnerID = nil
		return nil
	}
	if !slices.Contains(t.Owned, *creatureID) {
		return dao.ErrNotOwned
	}
	p := *creatureID
	t.PartnerID = &p
	t.UpdatedAt = s.now()
	return nil
}

// SetSetting 写入偏好
func (s *Store) SetSetting(_ context.Context, id, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SetSetting"); err != nil {
		return err
	}
	t, ok := s.trainers[id]
	if !ok {
		return dao.ErrNotFound
	}
	if t.Settings == nil {
		t.Settings = map[string]string{}
	}
	t.Settings[key] = value
	t.UpdatedAt = s.now()
	return nil
}

// ClaimDaily 比较上次领取时间后发放奖励
func (s *Store) ClaimDaily(_ context.Context, id string, prev *time.Time, claim model.DailyClaim) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ClaimDaily"); err != nil {
		return false, err
	}
	t, ok := s.trainers[id]
	if !ok {
		return false, nil
	}
	switch {
	case prev == nil && t.LastDailyClaim != nil,
		prev != nil && (t.LastDailyClaim == nil || !t.LastDailyClaim.Equal(*prev)):
		return false, nil
	}
	at := claim.ClaimedAt
	t.LastDailyClaim = &at
	t.DailyStreak = claim.Streak
	t.Currency += claim.Reward
	t.UpdatedAt = s.now()
	return true, nil
}

// GetCreature 获取个体
func (s *Store) GetCreature(_ context.Context, id string) (*model.Creature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetCreature"); err != nil {
		return nil, err
	}
	c, ok := s.creatures[id]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return c.Clone(), nil
}

// GetCreatures 批量获取个体
func (s *Store) GetCreatures(_ context.Context, ids []string) ([]*model.Creature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetCreatures"); err != nil {
		return nil, err
	}
	out := make([]*model.Creature, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.creatures[id]; ok {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

// UpdateNickname 修改昵称
func (s *Store) UpdateNickname(_ context.Context, ownerID, id string, nickname *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateNickname"); err != nil {
		return err
	}
	c, ok := s.creatures[id]
	if !ok || c.OwnerID != ownerID {
		return dao.ErrNotFound
	}
	if nickname == nil {
		c.Nickname = nil
	} else {
		n := *nickname
		c.Nickname = &n
	}
	c.UpdatedAt = s.now()
	return nil
}

// UpdateProgress 比较交换写入成长结果
func (s *Store) UpdateProgress(_ context.Context, c *model.Creature, prevLevel int, prevXP int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateProgress"); err != nil {
		return false, err
	}
	cur, ok := s.creatures[c.ID]
	if !ok || cur.Level != prevLevel || cur.XP != prevXP {
		return false, nil
	}
	cur.Level = c.Level
	cur.XP = c.XP
	cur.FinalStats = c.FinalStats
	cur.UpdatedAt = s.now()
	return true, nil
}

// NextValue 自增序列
func (s *Store) NextValue(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("NextValue"); err != nil {
		return 0, err
	}
	s.sequences[name]++
	return s.sequences[name], nil
}

// Mutate 绕过接口直接修改训练师，模拟其他进程的写入
func (s *Store) Mutate(id string, fn func(t *model.Trainer)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trainers[id]
	if ok {
		fn(t)
	}
	return ok
}

// MutateCreature 绕过接口直接修改个体
func (s *Store) MutateCreature(id string, fn func(c *model.Creature)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creatures[id]
	if ok {
		fn(c)
	}
	return ok
}
