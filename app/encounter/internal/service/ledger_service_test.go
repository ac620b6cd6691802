package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLedgerAdjust 测试单字段调整与余额不足
func TestLedgerAdjust(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t, "u1", 100, map[model.DeviceType]int64{model.DevicePokeball: 2})

	require.NoError(t, env.ledger.AdjustCurrency(ctx, "u1", 50))
	assert.Equal(t, int64(150), env.read(t, "u1").Currency)

	err := env.ledger.AdjustCurrency(ctx, "u1", -151)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(150), env.read(t, "u1").Currency)

	require.NoError(t, env.ledger.AdjustDeviceCount(ctx, "u1", model.DeviceGreatball, 3))
	err = env.ledger.AdjustDeviceCount(ctx, "u1", model.DevicePokeball, -3)
	assert.ErrorIs(t, err, ErrInsufficientDevices)

	err = env.ledger.AdjustDeviceCount(ctx, "u1", "premierball", 1)
	assert.ErrorIs(t, err, ErrInvalidDevice)

	tr := env.read(t, "u1")
	assert.Equal(t, int64(2), tr.DeviceCount(model.DevicePokeball))
	assert.Equal(t, int64(3), tr.DeviceCount(model.DeviceGreatball))
}

// TestLedgerApplyAtomic 多字段变更任一不足时整体不生效
func TestLedgerApplyAtomic(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t, "u1", 100, map[model.DeviceType]int64{model.DevicePokeball: 1})

	err := env.ledger.Apply(ctx, "u1", model.LedgerDelta{
		Currency: 500,
		Devices:  map[model.DeviceType]int64{model.DevicePokeball: -2},
	})
	assert.ErrorIs(t, err, ErrInsufficientDevices)

	tr := env.read(t, "u1")
	assert.Equal(t, int64(100), tr.Currency)
	assert.Equal(t, int64(1), tr.DeviceCount(model.DevicePokeball))

	// 空变更不访问存储
	env.store.ResetCalls()
	require.NoError(t, env.ledger.Apply(ctx, "u1", model.LedgerDelta{}))
	assert.Equal(t, 0, env.store.Calls("ApplyDelta"))
}

// TestLedgerNoAccount 账户不存在
func TestLedgerNoAccount(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.ledger.Read(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNoAccount)
	assert.ErrorIs(t, env.ledger.AdjustCurrency(context.Background(), "ghost", 1), ErrNoAccount)
}

// TestLedgerStoreError 存储故障包装后返回
func TestLedgerStoreError(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "u1", 100, nil)

	boom := errors.New("connection reset")
	env.store.FailNext("ApplyDelta", boom)
	err := env.ledger.AdjustCurrency(context.Background(), "u1", 1)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNoAccount)
}

// TestLedgerConcurrentDecrement 并发扣减不会透支
func TestLedgerConcurrentDecrement(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t, "u1", 0, map[model.DeviceType]int64{model.DevicePokeball: 10})

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := env.ledger.AdjustDeviceCount(ctx, "u1", model.DevicePokeball, -1); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, int64(0), env.read(t, "u1").DeviceCount(model.DevicePokeball))
}
