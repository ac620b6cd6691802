package service

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurchase 测试购买扣款与道具增加在同一事务内
func TestPurchase(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t, "u1", 2000, nil)

	receipt, err := env.shop.Purchase(ctx, "u1", model.DeviceGreatball, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), receipt.Cost)

	tr := env.read(t, "u1")
	assert.Equal(t, int64(200), tr.Currency)
	assert.Equal(t, int64(3), tr.DeviceCount(model.DeviceGreatball))

	tests := []struct {
		name     string
		device   model.DeviceType
		quantity int
		want     error
	}{
		{"insufficient funds", model.DevicePokeball, 2, ErrInsufficientFunds},
		{"zero quantity", model.DevicePokeball, 0, ErrInvalidQuantity},
		{"too many", model.DevicePokeball, 100, ErrInvalidQuantity},
		{"unknown device", "premierball", 1, ErrInvalidDevice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.shop.Purchase(ctx, "u1", tt.device, tt.quantity)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	tr = env.read(t, "u1")
	assert.Equal(t, int64(200), tr.Currency)
	assert.Equal(t, int64(0), tr.DeviceCount(model.DevicePokeball))

	_, err = env.shop.Purchase(ctx, "ghost", model.DevicePokeball, 1)
	assert.ErrorIs(t, err, ErrNoAccount)
}

// TestClaimDaily 测试冷却、连续天数与奖励
func TestClaimDaily(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t, "u1", 0, nil)

	claim, err := env.shop.ClaimDaily(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, claim.Streak)
	assert.Equal(t, int64(1100), claim.Reward)
	assert.Equal(t, int64(1100), env.read(t, "u1").Currency)

	// 冷却中
	env.clock.Advance(23 * time.Hour)
	_, err = env.shop.ClaimDaily(ctx, "u1")
	require.ErrorIs(t, err, ErrDailyCooldown)
	var cd *CooldownError
	require.True(t, errors.As(err, &cd))
	assert.Equal(t, time.Hour, cd.Remaining)

	// 48 小时内领取，连续天数加一
	env.clock.Advance(2 * time.Hour)
	claim, err = env.shop.ClaimDaily(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, claim.Streak)
	assert.Equal(t, int64(1200), claim.Reward)

	// 超过 48 小时，重新计数
	env.clock.Advance(49 * time.Hour)
	claim, err = env.shop.ClaimDaily(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, claim.Streak)

	assert.Equal(t, int64(1100+1200+1100), env.read(t, "u1").Currency)
}

// TestClaimDailyStreakCap 连续奖励有上限
func TestClaimDailyStreakCap(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t, "u1", 0, nil)

	var last *model.DailyClaim
	for day := 0; day < 15; day++ {
		claim, err := env.shop.ClaimDaily(ctx, "u1")
		require.NoError(t, err)
		last = claim
		env.clock.Advance(25 * time.Hour)
	}
	assert.Equal(t, 15, last.Streak)
	assert.Equal(t, int64(2000), last.Reward)
}

// TestClaimDailyCompareAndSet 缓存快照过期时比较交换失败，不重复发放
func TestClaimDailyCompareAndSet(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t, "u1", 0, nil)

	// 缓存中尚无领取记录，随后另一次领取直接写入存储
	require.Nil(t, env.read(t, "u1").LastDailyClaim)
	env.store.Mutate("u1", func(tr *model.Trainer) {
		at := testNow.Add(-time.Minute)
		tr.LastDailyClaim = &at
	})

	_, err := env.shop.ClaimDaily(ctx, "u1")
	assert.ErrorIs(t, err, ErrDailyCooldown)
	assert.Equal(t, 1, env.store.Calls("ClaimDaily"))

	tr := env.read(t, "u1")
	assert.Equal(t, int64(0), tr.Currency)
	assert.NotNil(t, tr.LastDailyClaim)
}
