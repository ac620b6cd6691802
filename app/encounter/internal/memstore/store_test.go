package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/dao"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1700000000, 0).UTC()

func seed(t *testing.T, s *Store) {
	t.Helper()
	tr := model.NewTrainer("u1", 1000, map[model.DeviceType]int64{model.DevicePokeball: 2}, testNow)
	require.NoError(t, s.CreateTrainer(context.Background(), tr, nil))
}

// TestApplyDeltaAtomic 测试余额不足时整体不生效
func TestApplyDeltaAtomic(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		delta   model.LedgerDelta
		wantErr error
	}{
		{
			name:  "both applied",
			delta: model.LedgerDelta{Currency: -200, Devices: map[model.DeviceType]int64{model.DevicePokeball: -1}},
		},
		{
			name:    "currency short",
			delta:   model.LedgerDelta{Currency: -1001, Devices: map[model.DeviceType]int64{model.DevicePokeball: 1}},
			wantErr: dao.ErrInsufficientFunds,
		},
		{
			name:    "device short",
			delta:   model.LedgerDelta{Currency: 50, Devices: map[model.DeviceType]int64{model.DeviceUltraball: -1}},
			wantErr: dao.ErrInsufficientDevices,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			seed(t, s)

			err := s.ApplyDelta(ctx, "u1", tt.delta)
			tr, getErr := s.GetTrainer(ctx, "u1")
			require.NoError(t, getErr)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, int64(1000), tr.Currency)
				assert.Equal(t, int64(2), tr.DeviceCount(model.DevicePokeball))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(800), tr.Currency)
			assert.Equal(t, int64(1), tr.DeviceCount(model.DevicePokeball))
		})
	}

	s := New()
	assert.ErrorIs(t, s.ApplyDelta(ctx, "ghost", model.LedgerDelta{Currency: 1}), dao.ErrNotFound)
}

// TestSetPartnerOwnership 测试伙伴必须属于训练师
func TestSetPartnerOwnership(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s)
	require.NoError(t, s.SettleCatch(ctx, "u1", &model.Creature{ID: "000001", OwnerID: "u1"}, 75))

	other := "000002"
	assert.ErrorIs(t, s.SetPartner(ctx, "u1", &other), dao.ErrNotOwned)

	own := "000001"
	require.NoError(t, s.SetPartner(ctx, "u1", &own))
	tr, err := s.GetTrainer(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "000001", *tr.PartnerID)
	assert.Equal(t, int64(1075), tr.Currency)
	assert.Equal(t, []string{"000001"}, tr.Owned)

	require.NoError(t, s.SetPartner(ctx, "u1", nil))
	tr, err = s.GetTrainer(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, tr.PartnerID)
}

// TestClaimDailyCompareAndSet 测试每日奖励按上次领取时间比较交换
func TestClaimDailyCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s)

	claim := model.DailyClaim{ClaimedAt: testNow, Streak: 1, Reward: 1100}
	ok, err := s.ClaimDaily(ctx, "u1", nil, claim)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ClaimDaily(ctx, "u1", nil, claim)
	require.NoError(t, err)
	assert.False(t, ok, "stale previous claim must lose")

	prev := testNow
	next := model.DailyClaim{ClaimedAt: testNow.Add(25 * time.Hour), Streak: 2, Reward: 1200}
	ok, err = s.ClaimDaily(ctx, "u1", &prev, next)
	require.NoError(t, err)
	assert.True(t, ok)

	tr, err := s.GetTrainer(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000+1100+1200), tr.Currency)
	assert.Equal(t, 2, tr.DailyStreak)
}

// TestUpdateProgressCompareAndSet 测试成长写入的比较交换
func TestUpdateProgressCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s)
	require.NoError(t, s.SettleCatch(ctx, "u1", &model.Creature{ID: "000001", OwnerID: "u1", Level: 5, XP: 10}, 0))

	ok, err := s.UpdateProgress(ctx, &model.Creature{ID: "000001", Level: 5, XP: 20}, 5, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UpdateProgress(ctx, &model.Creature{ID: "000001", Level: 5, XP: 30}, 5, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	c, err := s.GetCreature(ctx, "000001")
	require.NoError(t, err)
	assert.Equal(t, int64(20), c.XP)
	assert.Equal(t, 2, s.Calls("UpdateProgress"))
}

// TestCache 测试缓存替身
func TestCache(t *testing.T) {
	ctx := context.Background()
	c := NewCache()
	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))

	vals, err := c.MGet(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), vals[0])
	assert.Nil(t, vals[1])

	require.NoError(t, c.Delete(ctx, "a"))
	assert.False(t, c.Has("a"))
}
