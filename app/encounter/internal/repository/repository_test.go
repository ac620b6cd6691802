package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/dao"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/memstore"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1700000000, 0).UTC()

func seedTrainer(t *testing.T, store *memstore.Store, id string) {
	t.Helper()
	tr := model.NewTrainer(id, 5000, map[model.DeviceType]int64{model.DevicePokeball: 25}, testNow)
	require.NoError(t, store.CreateTrainer(context.Background(), tr, nil))
}

func seedCreatures(t *testing.T, store *memstore.Store, owner string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		c := &model.Creature{
			ID:        fmt.Sprintf("%06d", i),
			OwnerID:   owner,
			SpeciesID: 25,
			Name:      "pikachu",
			Level:     5,
			CaughtAt:  testNow,
		}
		require.NoError(t, store.SettleCatch(context.Background(), owner, c, 0))
		ids = append(ids, c.ID)
	}
	return ids
}

func newTrainerRepo(t *testing.T, store *memstore.Store, remote *memstore.Cache) TrainerRepository {
	t.Helper()
	var r TrainerRepository
	var err error
	if remote != nil {
		r, err = NewTrainerRepository(store, remote, nil, logger.NewNoop(), nil)
	} else {
		r, err = NewTrainerRepository(store, nil, nil, logger.NewNoop(), nil)
	}
	require.NoError(t, err)
	return r
}

func newCreatureRepo(t *testing.T, store *memstore.Store, remote *memstore.Cache) CreatureRepository {
	t.Helper()
	var r CreatureRepository
	var err error
	if remote != nil {
		r, err = NewCreatureRepository(store, store, remote, nil, logger.NewNoop(), nil)
	} else {
		r, err = NewCreatureRepository(store, store, nil, nil, logger.NewNoop(), nil)
	}
	require.NoError(t, err)
	return r
}

// TestTrainerGetCached 测试重复读取只回源一次
func TestTrainerGetCached(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedTrainer(t, store, "u1")
	store.ResetCalls()

	repo := newTrainerRepo(t, store, nil)
	for i := 0; i < 3; i++ {
		tr, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(5000), tr.Currency)
	}
	assert.Equal(t, 1, store.Calls("GetTrainers"))

	_, err := repo.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// TestTrainerNoStaleRead 测试写入后立即读取到新值
func TestTrainerNoStaleRead(t *testing.T) {
	tests := []struct {
		name   string
		remote bool
	}{
		{name: "local only"},
		{name: "with remote", remote: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memstore.New()
			seedTrainer(t, store, "u1")

			var remote *memstore.Cache
			if tt.remote {
				remote = memstore.NewCache()
			}
			repo := newTrainerRepo(t, store, remote)

			_, err := repo.Get(ctx, "u1")
			require.NoError(t, err)

			require.NoError(t, repo.ApplyDelta(ctx, "u1", model.LedgerDelta{
				Currency: -600,
				Devices:  map[model.DeviceType]int64{model.DeviceGreatball: 1},
			}))

			tr, err := repo.Get(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, int64(4400), tr.Currency)
			assert.Equal(t, int64(1), tr.DeviceCount(model.DeviceGreatball))

			partner := "000001"
			require.NoError(t, store.SettleCatch(ctx, "u1", &model.Creature{ID: partner, OwnerID: "u1"}, 100))
			require.NoError(t, repo.SetPartner(ctx, "u1", &partner))

			tr, err = repo.Get(ctx, "u1")
			require.NoError(t, err)
			require.NotNil(t, tr.PartnerID)
			assert.Equal(t, partner, *tr.PartnerID)
			assert.Equal(t, int64(4500), tr.Currency)
		})
	}
}

// TestTrainerReturnsCopies 测试修改返回值不会污染缓存
func TestTrainerReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedTrainer(t, store, "u1")
	repo := newTrainerRepo(t, store, nil)

	tr, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	tr.Currency = 0
	tr.Devices[model.DevicePokeball] = 0

	again, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), again.Currency)
	assert.Equal(t, int64(25), again.DeviceCount(model.DevicePokeball))
}

// TestCreatureGetManyRoundTrips 测试批量读取每一层最多一次往返
func TestCreatureGetManyRoundTrips(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedTrainer(t, store, "u1")
	ids := seedCreatures(t, store, "u1", 8)
	store.ResetCalls()

	remote := memstore.NewCache()
	repo := newCreatureRepo(t, store, remote)

	got, err := repo.GetMany(ctx, ids)
	require.NoError(t, err)
	require.Len(t, got, 8)
	for i, c := range got {
		assert.Equal(t, ids[i], c.ID, "order follows input")
	}
	assert.Equal(t, 1, remote.Calls("MGet"))
	assert.Equal(t, 1, store.Calls("GetCreatures"))
	assert.Equal(t, 0, store.Calls("GetCreature"))

	// 远端命中，不再回源
	_, err = repo.GetMany(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, 2, remote.Calls("MGet"))
	assert.Equal(t, 1, store.Calls("GetCreatures"))

	// 另一个进程同样只命中远端
	other := newCreatureRepo(t, store, remote)
	got, err = other.GetMany(ctx, append(ids, "999999"))
	require.NoError(t, err)
	assert.Len(t, got, 8)
	assert.Equal(t, 3, remote.Calls("MGet"))
	assert.Equal(t, 2, store.Calls("GetCreatures"), "only the unknown id reaches the store")
}

// TestCrossProcessNoStaleRead 测试一个进程写入后另一个进程立即读到新值
func TestCrossProcessNoStaleRead(t *testing.T) {
	tests := []struct {
		name   string
		remote bool
		cfg    *CacheConfig
	}{
		{name: "shared remote", remote: true},
		{name: "local disabled", cfg: &CacheConfig{DisableLocal: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memstore.New()
			seedTrainer(t, store, "u1")

			var remote dao.CacheStore
			if tt.remote {
				remote = memstore.NewCache()
			}
			a, err := NewTrainerRepository(store, remote, tt.cfg, logger.NewNoop(), nil)
			require.NoError(t, err)
			b, err := NewTrainerRepository(store, remote, tt.cfg, logger.NewNoop(), nil)
			require.NoError(t, err)

			tr, err := b.Get(ctx, "u1")
			require.NoError(t, err)
			require.Equal(t, int64(25), tr.DeviceCount(model.DevicePokeball))

			require.NoError(t, a.ApplyDelta(ctx, "u1", model.LedgerDelta{
				Devices: map[model.DeviceType]int64{model.DevicePokeball: -25},
			}))

			tr, err = b.Get(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, int64(0), tr.DeviceCount(model.DevicePokeball))
			assert.Equal(t, int64(0), tr.TotalDevices())
		})
	}
}

// TestInvalidateDuringBackfill 测试回填 LRU 的同时发生失效，旧值不会留在缓存中
func TestInvalidateDuringBackfill(t *testing.T) {
	ctx := context.Background()
	var (
		cache  *RecordCache[*int]
		loads  int
		clones int
	)
	load := func(_ context.Context, keys []string) (map[string]*int, error) {
		loads++
		v := loads
		out := make(map[string]*int, len(keys))
		for _, k := range keys {
			out[k] = &v
		}
		return out, nil
	}
	// 第一次复制发生在写入 LRU 之前，此时触发失效
	clone := func(v *int) *int {
		clones++
		if clones == 1 {
			cache.Invalidate(ctx, "a")
		}
		cp := *v
		return &cp
	}

	var err error
	cache, err = NewRecordCache[*int]("n", nil, nil, load, clone, logger.NewNoop(), nil)
	require.NoError(t, err)

	v, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, *v)

	v, err = cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, *v)

	v, err = cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, *v)
	assert.Equal(t, 2, loads)
}

// TestRemoteFailureDegrades 测试远端缓存故障时回退到存储
func TestRemoteFailureDegrades(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedTrainer(t, store, "u1")

	remote := memstore.NewCache()
	remote.SetError(errors.New("connection refused"))
	repo := newTrainerRepo(t, store, remote)

	tr, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", tr.ID)

	require.NoError(t, repo.ApplyDelta(ctx, "u1", model.LedgerDelta{Currency: 10}))
	tr, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5010), tr.Currency)
}

// TestStoreErrorPropagates 测试存储故障作为错误返回
func TestStoreErrorPropagates(t *testing.T) {
	store := memstore.New()
	seedTrainer(t, store, "u1")
	repo := newTrainerRepo(t, store, nil)

	boom := errors.New("store down")
	store.FailNext("GetTrainers", boom)
	_, err := repo.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
}

// TestSkipBackfillAfterInvalidate 测试回源期间发生失效时不回填旧值
func TestSkipBackfillAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	var (
		cache *RecordCache[*int]
		loads int
	)
	load := func(ctx context.Context, keys []string) (map[string]*int, error) {
		loads++
		v := loads
		if loads == 1 {
			cache.Invalidate(ctx, keys...)
		}
		out := make(map[string]*int, len(keys))
		for _, k := range keys {
			out[k] = &v
		}
		return out, nil
	}
	clone := func(v *int) *int {
		cp := *v
		return &cp
	}

	var err error
	cache, err = NewRecordCache[*int]("n", nil, nil, load, clone, logger.NewNoop(), nil)
	require.NoError(t, err)

	v, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, *v)

	v, err = cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, *v)

	v, err = cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, *v)
	assert.Equal(t, 2, loads)
}

// TestNextIDUnique 测试并发发号不重复
func TestNextIDUnique(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	repo := newCreatureRepo(t, store, nil)

	id, err := repo.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "000001", id)

	const workers = 50
	var (
		mu   sync.Mutex
		seen = map[string]bool{id: true}
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := repo.NextID(ctx)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers+1)
}

// TestCreatureNicknameInvalidates 测试修改昵称后读到新值
func TestCreatureNicknameInvalidates(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedTrainer(t, store, "u1")
	ids := seedCreatures(t, store, "u1", 1)
	repo := newCreatureRepo(t, store, memstore.NewCache())

	c, err := repo.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Nil(t, c.Nickname)

	nick := "Sparky"
	require.NoError(t, repo.UpdateNickname(ctx, "u1", ids[0], &nick))
	c, err = repo.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Sparky", c.DisplayName())

	err = repo.UpdateNickname(ctx, "u2", ids[0], &nick)
	assert.ErrorIs(t, err, ErrNotFound)
}
