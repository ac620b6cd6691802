package repository

import (
	"context"
	"time"

	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/dao"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/metrics"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/lk2023060901/xdooria-encounter/pkg/otel"
)

// ErrNotFound 记录不存在
var ErrNotFound = dao.ErrNotFound

// TrainerRepository 训练师仓储接口
type TrainerRepository interface {
	Get(ctx context.Context, id string) (*model.Trainer, error)
	GetMany(ctx context.Context, ids []string) ([]*model.Trainer, error)
	Create(ctx context.Context, t *model.Trainer, starter *model.Creature) error
	ApplyDelta(ctx context.Context, id string, delta model.LedgerDelta) error
	SettleCatch(ctx context.Context, id string, c *model.Creature, reward int64) error
	SetPartner(ctx context.Context, id string, creatureID *string) error
	SetSetting(ctx context.Context, id, key, value string) error
	ClaimDaily(ctx context.Context, id string, prev *time.Time, claim model.DailyClaim) (bool, error)
}

// trainerRepositoryImpl 训练师仓储实现
type trainerRepositoryImpl struct {
	store  dao.TrainerStore
	cache  *RecordCache[*model.Trainer]
	logger logger.Logger
}

// NewTrainerRepository 创建训练师仓储，缓存层级见 NewRecordCache
func NewTrainerRepository(
	store dao.TrainerStore,
	remote dao.CacheStore,
	cfg *CacheConfig,
	l logger.Logger,
	m *metrics.EncounterMetrics,
	opts ...CacheOption,
) (TrainerRepository, error) {
	r := &trainerRepositoryImpl{
		store:  store,
		logger: l.Named("repository.trainer"),
	}
	cache, err := NewRecordCache[*model.Trainer]("trainer", cfg, remote, r.load, (*model.Trainer).Clone, l, m, opts...)
	if err != nil {
		return nil, err
	}
	r.cache = cache
	return r, nil
}

func (r *trainerRepositoryImpl) load(ctx context.Context, ids []string) (map[string]*model.Trainer, error) {
	trainers, err := r.store.GetTrainers(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*model.Trainer, len(trainers))
	for _, t := range trainers {
		out[t.ID] = t
	}
	return out, nil
}

// Get 获取训练师（优先从缓存）
func (r *trainerRepositoryImpl) Get(ctx context.Context, id string) (*model.Trainer, error) {
	return r.cache.Get(ctx, id)
}

// GetMany 批量获取，结果按 ids 顺序排列并跳过不存在的
func (r *trainerRepositoryImpl) GetMany(ctx context.Context, ids []string) ([]*model.Trainer, error) {
	found, err := r.cache.GetBulk(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Trainer, 0, len(found))
	for _, id := range ids {
		if t, ok := found[id]; ok {
			out = append(out, t)
			delete(found, id)
		}
	}
	return out, nil
}

// Create 创建训练师（写数据库 + 删除缓存）
func (r *trainerRepositoryImpl) Create(ctx context.Context, t *model.Trainer, starter *model.Creature) error {
	if err := r.store.CreateTrainer(ctx, t, starter); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, t.ID)
	return nil
}

// ApplyDelta 应用账本增量（写数据库 + 删除缓存）
func (r *trainerRepositoryImpl) ApplyDelta(ctx context.Context, id string, delta model.LedgerDelta) error {
	if err := r.store.ApplyDelta(ctx, id, delta); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, id)
	return nil
}

// SettleCatch 写入捕获结果（写数据库 + 删除缓存）
func (r *trainerRepositoryImpl) SettleCatch(ctx context.Context, id string, c *model.Creature, reward int64) (err error) {
	ctx, span := otel.Start(ctx, "encounter/repository", "trainer.settle_catch",
		otel.String("creature_id", c.ID),
		otel.Int64("reward", reward),
	)
	defer func() { otel.End(span, err) }()

	if err := r.store.SettleCatch(ctx, id, c, reward); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, id)

	r.logger.Debug("catch settled",
		"trainer_id", id,
		"creature_id", c.ID,
		"reward", reward,
	)
	return nil
}

// SetPartner 设置或清除伙伴（写数据库 + 删除缓存）
func (r *trainerRepositoryImpl) SetPartner(ctx context.Context, id string, creatureID *string) error {
	if err := r.store.SetPartner(ctx, id, creatureID); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, id)
	return nil
}

// SetSetting 写入偏好（写数据库 + 删除缓存）
func (r *trainerRepositoryImpl) SetSetting(ctx context.Context, id, key, value string) error {
	if err := r.store.SetSetting(ctx, id, key, value); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, id)
	return nil
}

// ClaimDaily 领取每日奖励（写数据库 + 删除缓存）
// 比较交换失败同样删除缓存，调用方重读时拿到最新的领取时间
func (r *trainerRepositoryImpl) ClaimDaily(ctx context.Context, id string, prev *time.Time, claim model.DailyClaim) (bool, error) {
	ok, err := r.store.ClaimDaily(ctx, id, prev, claim)
	if err != nil {
		return false, err
	}
	r.cache.Invalidate(ctx, id)
	return ok, nil
}
