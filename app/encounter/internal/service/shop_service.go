package service

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/repository"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/rules"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

// Receipt 一次购买
type Receipt struct {
	Device   model.DeviceType `json:"device"`
	Quantity int              `json:"quantity"`
	Cost     int64            `json:"cost"`
}

// ShopService 商店与每日奖励
type ShopService struct {
	logger   logger.Logger
	trainers repository.TrainerRepository
	ledger   *LedgerService
	rules    rules.Provider
	clock    clockwork.Clock
}

// NewShopService 创建商店服务
func NewShopService(
	l logger.Logger,
	trainers repository.TrainerRepository,
	ledger *LedgerService,
	rp rules.Provider,
	clock clockwork.Clock,
) *ShopService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ShopService{
		logger:   l.Named("service.shop"),
		trainers: trainers,
		ledger:   ledger,
		rules:    rp,
		clock:    clock,
	}
}

// Purchase 购买道具，扣款与加道具在同一事务内
func (s *ShopService) Purchase(ctx context.Context, trainerID string, device model.DeviceType, quantity int) (*Receipt, error) {
	ctx = logger.WithTrainerID(ctx, trainerID)
	cfg := s.rules.Current().Shop

	price, ok := cfg.Prices[device]
	if !device.Valid() || !ok {
		return nil, errors.Wrapf(ErrInvalidDevice, "device %q is not for sale", device)
	}
	if quantity < 1 || quantity > cfg.MaxQuantity {
		return nil, errors.Wrapf(ErrInvalidQuantity, "quantity must be within [1, %d], got %d", cfg.MaxQuantity, quantity)
	}

	cost := price * int64(quantity)
	err := s.ledger.Apply(ctx, trainerID, model.LedgerDelta{
		Currency: -cost,
		Devices:  map[model.DeviceType]int64{device: int64(quantity)},
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "devices purchased",
		"device", device,
		"quantity", quantity,
		"cost", cost,
	)
	return &Receipt{Device: device, Quantity: quantity, Cost: cost}, nil
}

// ClaimDaily 领取每日奖励
// 冷却期内返回 *CooldownError；两次领取间隔不超过连续窗口时连续天数加一，否则重置为 1
func (s *ShopService) ClaimDaily(ctx context.Context, trainerID string) (*model.DailyClaim, error) {
	ctx = logger.WithTrainerID(ctx, trainerID)
	cfg := s.rules.Current().Daily

	// 1. 读取上次领取时间
	t, err := s.ledger.Read(ctx, trainerID)
	if err != nil {
		return nil, err
	}

	// 2. 冷却
	now := s.clock.Now()
	streak := 1
	if last := t.LastDailyClaim; last != nil {
		elapsed := now.Sub(*last)
		if elapsed < cfg.Cooldown {
			return nil, &CooldownError{Remaining: cfg.Cooldown - elapsed}
		}
		if elapsed <= cfg.StreakWindow {
			streak = t.DailyStreak + 1
		}
	}

	// 3. 以上次领取时间做比较交换
	claim := model.DailyClaim{
		ClaimedAt: now,
		Streak:    streak,
		Reward:    cfg.Reward(streak),
	}
	ok, err := s.trainers.ClaimDaily(ctx, trainerID, t.LastDailyClaim, claim)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoAccount
		}
		return nil, err
	}
	if !ok {
		// 并发领取，另一次已经成功
		return nil, &CooldownError{Remaining: cfg.Cooldown}
	}

	s.logger.InfoContext(ctx, "daily reward claimed",
		"streak", claim.Streak,
		"reward", claim.Reward,
	)
	return &claim, nil
}
