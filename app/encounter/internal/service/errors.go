package service

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/dao"
)

var (
	// ErrNoAccount 训练师尚未开始冒险
	ErrNoAccount = errors.New("trainer has no account")

	// ErrAccountExists 训练师已开始冒险
	ErrAccountExists = errors.New("trainer account already exists")

	// ErrSessionAlreadyActive 已有进行中的遭遇
	ErrSessionAlreadyActive = errors.New("encounter session already active")

	// ErrInvalidDevice 未知或数量为零的道具
	ErrInvalidDevice = errors.New("invalid device selection")

	// ErrSpeciesLookup 刷新结果无法对应到物种，属于数据完整性故障
	ErrSpeciesLookup = errors.New("species lookup failed")

	// ErrEmptyPool 被抽中的稀有度分池为空，属于配置错误
	ErrEmptyPool = errors.New("spawn pool is empty")

	// ErrInvalidStarter 世代或初始物种不在配置中
	ErrInvalidStarter = errors.New("invalid starter selection")

	// ErrInvalidNickname 昵称过长
	ErrInvalidNickname = errors.New("invalid nickname")

	// ErrInvalidSetting 未知偏好项或取值不在允许范围内
	ErrInvalidSetting = errors.New("invalid setting")

	// ErrInvalidQuantity 购买数量越界
	ErrInvalidQuantity = errors.New("invalid purchase quantity")

	// ErrNoPartner 没有设置伙伴
	ErrNoPartner = errors.New("trainer has no partner")

	// ErrDailyCooldown 每日奖励冷却中，具体剩余时间见 CooldownError
	ErrDailyCooldown = errors.New("daily reward on cooldown")

	// ErrConflict 乐观写重试耗尽
	ErrConflict = errors.New("concurrent update conflict")

	// 存储层错误直接透出，errors.Is 可在任意层匹配
	ErrInsufficientFunds   = dao.ErrInsufficientFunds
	ErrInsufficientDevices = dao.ErrInsufficientDevices
	ErrNotOwned            = dao.ErrNotOwned
	ErrNotFound            = dao.ErrNotFound
)

// CooldownError 每日奖励冷却中
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("daily reward on cooldown, %s remaining", e.Remaining.Round(time.Second))
}

// Is 让 errors.Is(err, ErrDailyCooldown) 成立
func (e *CooldownError) Is(target error) bool {
	return target == ErrDailyCooldown
}
