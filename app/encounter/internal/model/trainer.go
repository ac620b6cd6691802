package model

import (
	"slices"
	"time"
)

// Trainer 训练师账户，对应 trainers 与 trainer_devices 表
type Trainer struct {
	ID        string               `json:"id" db:"id"`
	Currency  int64                `json:"currency" db:"currency"`
	Devices   map[DeviceType]int64 `json:"devices" db:"-"`
	Owned     []string             `json:"owned" db:"owned"`
	PartnerID *string              `json:"partner_id" db:"partner_id"`
	Settings  map[string]string    `json:"settings" db:"settings"`

	// 每日奖励
	DailyStreak    int        `json:"daily_streak" db:"daily_streak"`
	LastDailyClaim *time.Time `json:"last_daily_claim" db:"last_daily_claim"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewTrainer 创建新账户
func NewTrainer(id string, currency int64, devices map[DeviceType]int64, now time.Time) *Trainer {
	t := &Trainer{
		ID:        id,
		Currency:  currency,
		Devices:   make(map[DeviceType]int64, len(devices)),
		Owned:     []string{},
		Settings:  map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for d, n := range devices {
		t.Devices[d] = n
	}
	return t
}

// DeviceCount 指定道具数量
func (t *Trainer) DeviceCount(d DeviceType) int64 {
	return t.Devices[d]
}

// TotalDevices 道具总数
func (t *Trainer) TotalDevices() int64 {
	var total int64
	for _, n := range t.Devices {
		total += n
	}
	return total
}

// Owns 是否拥有该个体
func (t *Trainer) Owns(creatureID string) bool {
	return slices.Contains(t.Owned, creatureID)
}

// Clone 深拷贝，缓存层返回副本避免共享可变状态
func (t *Trainer) Clone() *Trainer {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Devices = make(map[DeviceType]int64, len(t.Devices))
	for d, n := range t.Devices {
		cp.Devices[d] = n
	}
	cp.Owned = slices.Clone(t.Owned)
	cp.Settings = make(map[string]string, len(t.Settings))
	for k, v := range t.Settings {
		cp.Settings[k] = v
	}
	if t.PartnerID != nil {
		p := *t.PartnerID
		cp.PartnerID = &p
	}
	if t.LastDailyClaim != nil {
		c := *t.LastDailyClaim
		cp.LastDailyClaim = &c
	}
	return &cp
}

// LedgerDelta 一次账本变更，所有字段在同一事务内生效
type LedgerDelta struct {
	Currency int64
	Devices  map[DeviceType]int64
}

// IsZero 是否为空变更
func (d LedgerDelta) IsZero() bool {
	if d.Currency != 0 {
		return false
	}
	for _, n := range d.Devices {
		if n != 0 {
			return false
		}
	}
	return true
}

// DailyClaim 一次每日奖励领取
type DailyClaim struct {
	ClaimedAt time.Time
	Streak    int
	Reward    int64
}
