package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/catalog"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/manager"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/memstore"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/repository"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/rules"
	"github.com/lk2023060901/xdooria-encounter/pkg/idgen"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// scriptedRoller 先按顺序返回预设值，用完后交给 fallback
type scriptedRoller struct {
	mu       sync.Mutex
	ints     []int
	floats   []float64
	fallback Roller
}

func newScriptedRoller(seed int64) *scriptedRoller {
	return &scriptedRoller{fallback: NewRoller(seed)}
}

func (r *scriptedRoller) PushInts(v ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ints = append(r.ints, v...)
}

func (r *scriptedRoller) PushFloats(v ...float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.floats = append(r.floats, v...)
}

func (r *scriptedRoller) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 {
		return r.fallback.Intn(n)
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return min(v, n-1)
}

func (r *scriptedRoller) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.floats) == 0 {
		return r.fallback.Float64()
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

// countingGuard 统计对守卫的访问
type countingGuard struct {
	manager.CaptureGuard
	calls atomic.Int32
}

func (g *countingGuard) Acquire(ctx context.Context, id string) (bool, error) {
	g.calls.Add(1)
	return g.CaptureGuard.Acquire(ctx, id)
}

func (g *countingGuard) Release(ctx context.Context, id string) error {
	g.calls.Add(1)
	return g.CaptureGuard.Release(ctx, id)
}

func (g *countingGuard) Held(ctx context.Context, id string) (bool, error) {
	g.calls.Add(1)
	return g.CaptureGuard.Held(ctx, id)
}

func (g *countingGuard) Touch(ctx context.Context, id string) error {
	g.calls.Add(1)
	return g.CaptureGuard.Touch(ctx, id)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.OutcomeEvent
	err    error
}

// Fail 之后的发布都返回 err，事件仍然被记录
func (p *recordingPublisher) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *recordingPublisher) Publish(_ context.Context, ev *model.OutcomeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []*model.OutcomeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.OutcomeEvent(nil), p.events...)
}

func testSpecies() []*model.Species {
	stats := model.StatBlock{HP: 45, Attack: 49, Defense: 49, SpAttack: 65, SpDefense: 65, Speed: 45}
	return []*model.Species{
		{ID: 1, Name: "bulbasaur", Tier: model.TierCommon, CaptureRate: 45, BaseStats: stats,
			Abilities: []model.Ability{{Name: "overgrow"}, {Name: "chlorophyll", Hidden: true}}},
		{ID: 4, Name: "charmander", Tier: model.TierCommon, CaptureRate: 45, BaseStats: stats,
			Abilities: []model.Ability{{Name: "blaze"}, {Name: "solar-power", Hidden: true}}},
		{ID: 7, Name: "squirtle", Tier: model.TierCommon, CaptureRate: 45, BaseStats: stats,
			Abilities: []model.Ability{{Name: "torrent"}, {Name: "rain-dish", Hidden: true}}},
		{ID: 25, Name: "pikachu", Tier: model.TierCommon, CaptureRate: 190, BaseStats: stats,
			Abilities: []model.Ability{{Name: "static"}, {Name: "lightning-rod", Hidden: true}}},
		{ID: 147, Name: "dratini", Tier: model.TierRare, CaptureRate: 45, BaseStats: stats,
			Abilities: []model.Ability{{Name: "shed-skin"}, {Name: "marvel-scale", Hidden: true}}},
		{ID: 150, Name: "mewtwo", Tier: model.TierUltraRare, CaptureRate: 3, BaseStats: stats,
			Abilities: []model.Ability{{Name: "pressure"}, {Name: "unnerve", Hidden: true}}},
	}
}

type testEnv struct {
	store     *memstore.Store
	clock     *clockwork.FakeClock
	rng       *scriptedRoller
	rules     *rules.Config
	guard     *countingGuard
	sessions  *manager.SessionManager
	publisher *recordingPublisher

	trainers  repository.TrainerRepository
	creatures repository.CreatureRepository

	ledger     *LedgerService
	spawn      *SpawnService
	stats      *StatService
	capture    *CaptureService
	trainer    *TrainerService
	shop       *ShopService
	experience *ExperienceService
}

func newTestEnv(t *testing.T, tune ...func(*rules.Config)) *testEnv {
	t.Helper()

	cfg := rules.Default()
	for _, fn := range tune {
		fn(cfg)
	}
	rp, err := rules.NewStatic(cfg)
	require.NoError(t, err)

	cat, err := catalog.New(testSpecies())
	require.NoError(t, err)

	l := logger.NewNoop()
	env := &testEnv{
		store:     memstore.New(),
		clock:     clockwork.NewFakeClockAt(testNow),
		rng:       newScriptedRoller(7),
		rules:     cfg,
		guard:     &countingGuard{CaptureGuard: manager.NewMemoryCaptureGuard(nil)},
		sessions:  manager.NewSessionManager(l),
		publisher: &recordingPublisher{},
	}

	env.trainers, err = repository.NewTrainerRepository(env.store, nil, nil, l, nil)
	require.NoError(t, err)
	env.creatures, err = repository.NewCreatureRepository(env.store, env.store, nil, nil, l, nil)
	require.NoError(t, err)

	env.ledger = NewLedgerService(env.trainers, l)
	env.stats = NewStatService(rp, env.rng, l)
	env.spawn, err = NewSpawnService(cat, rp, env.rng, l)
	require.NoError(t, err)

	env.capture = NewCaptureService(l, env.trainers, env.creatures, env.ledger, env.spawn, env.stats,
		env.guard, env.sessions, idgen.NewSequence(1), env.publisher, rp, env.clock, env.rng, nil)
	env.trainer = NewTrainerService(l, env.trainers, env.creatures, env.stats, cat, rp, env.clock, env.rng)
	env.shop = NewShopService(l, env.trainers, env.ledger, rp, env.clock)
	env.experience, err = NewExperienceService(l, env.trainers, env.creatures, env.stats, rp, env.clock, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.experience.Close() })

	return env
}

// seed 创建账户
func (e *testEnv) seed(t *testing.T, id string, currency int64, devices map[model.DeviceType]int64) {
	t.Helper()
	tr := model.NewTrainer(id, currency, devices, testNow)
	require.NoError(t, e.store.CreateTrainer(context.Background(), tr, nil))
}

func (e *testEnv) read(t *testing.T, id string) *model.Trainer {
	t.Helper()
	tr, err := e.ledger.Read(context.Background(), id)
	require.NoError(t, err)
	return tr
}

func (e *testEnv) held(t *testing.T, id string) bool {
	t.Helper()
	held, err := e.guard.Held(context.Background(), id)
	require.NoError(t, err)
	return held
}
