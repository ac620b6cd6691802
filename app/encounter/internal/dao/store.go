package dao

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists 记录已存在
	ErrAlreadyExists = errors.New("record already exists")

	// ErrInsufficientFunds 货币不足，变更未生效
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientDevices 道具不足，变更未生效
	ErrInsufficientDevices = errors.New("insufficient devices")

	// ErrNotOwned 个体不属于该训练师
	ErrNotOwned = errors.New("creature not owned by trainer")
)

// TrainerStore 训练师持久化接口
// 所有数量变更都以增量形式在存储端执行，余额不足时整体不生效
type TrainerStore interface {
	GetTrainer(ctx context.Context, id string) (*model.Trainer, error)
	// GetTrainers 一次往返批量读取，不存在的 ID 不出现在结果中
	GetTrainers(ctx context.Context, ids []string) ([]*model.Trainer, error)
	// CreateTrainer 创建账户，starter 非 nil 时同一事务写入初始个体
	CreateTrainer(ctx context.Context, t *model.Trainer, starter *model.Creature) error
	ApplyDelta(ctx context.Context, id string, delta model.LedgerDelta) error
	// SettleCatch 同一事务内写入个体、追加到 owned 并发放奖励
	SettleCatch(ctx context.Context, id string, c *model.Creature, reward int64) error
	// SetPartner creatureID 为 nil 时清除伙伴
	SetPartner(ctx context.Context, id string, creatureID *string) error
	// SetSetting 写入单个偏好项，其余偏好保持不变
	SetSetting(ctx context.Context, id, key, value string) error
	// ClaimDaily 以上次领取时间做比较交换，返回是否写入成功
	ClaimDaily(ctx context.Context, id string, prev *time.Time, claim model.DailyClaim) (bool, error)
}

// CreatureStore 个体持久化接口
type CreatureStore interface {
	GetCreature(ctx context.Context, id string) (*model.Creature, error)
	// GetCreatures 一次往返批量读取，不存在的 ID 不出现在结果中
	GetCreatures(ctx context.Context, ids []string) ([]*model.Creature, error)
	UpdateNickname(ctx context.Context, ownerID, id string, nickname *string) error
	// UpdateProgress 以 (prevLevel, prevXP) 做比较交换写入等级、经验与能力值
	UpdateProgress(ctx context.Context, c *model.Creature, prevLevel int, prevXP int64) (bool, error)
}

// SequenceStore 持久化发号器
type SequenceStore interface {
	// NextValue 原子自增并返回新值，同一个值不会发出两次
	NextValue(ctx context.Context, name string) (int64, error)
}
