package repository

import (
	"context"
	"fmt"

	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/dao"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/metrics"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

// CreatureRepository 个体仓储接口
type CreatureRepository interface {
	Get(ctx context.Context, id string) (*model.Creature, error)
	// GetMany 结果按 ids 顺序排列，一次缓存往返加一次存储往返
	GetMany(ctx context.Context, ids []string) ([]*model.Creature, error)
	// NextID 发放新的个体 ID，格式为 6 位补零的序列值
	NextID(ctx context.Context) (string, error)
	UpdateNickname(ctx context.Context, ownerID, id string, nickname *string) error
	UpdateProgress(ctx context.Context, c *model.Creature, prevLevel int, prevXP int64) (bool, error)
	// Forget 删除个体缓存，个体由其他仓储写入后调用
	Forget(ctx context.Context, ids ...string)
}

// creatureRepositoryImpl 个体仓储实现
type creatureRepositoryImpl struct {
	store     dao.CreatureStore
	sequences dao.SequenceStore
	cache     *RecordCache[*model.Creature]
	logger    logger.Logger
}

// NewCreatureRepository 创建个体仓储
func NewCreatureRepository(
	store dao.CreatureStore,
	sequences dao.SequenceStore,
	remote dao.CacheStore,
	cfg *CacheConfig,
	l logger.Logger,
	m *metrics.EncounterMetrics,
	opts ...CacheOption,
) (CreatureRepository, error) {
	r := &creatureRepositoryImpl{
		store:     store,
		sequences: sequences,
		logger:    l.Named("repository.creature"),
	}
	cache, err := NewRecordCache[*model.Creature]("creature", cfg, remote, r.load, (*model.Creature).Clone, l, m, opts...)
	if err != nil {
		return nil, err
	}
	r.cache = cache
	return r, nil
}

func (r *creatureRepositoryImpl) load(ctx context.Context, ids []string) (map[string]*model.Creature, error) {
	creatures, err := r.store.GetCreatures(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*model.Creature, len(creatures))
	for _, c := range creatures {
		out[c.ID] = c
	}
	return out, nil
}

// Get 获取个体（优先从缓存）
func (r *creatureRepositoryImpl) Get(ctx context.Context, id string) (*model.Creature, error) {
	return r.cache.Get(ctx, id)
}

// GetMany 批量获取个体
func (r *creatureRepositoryImpl) GetMany(ctx context.Context, ids []string) ([]*model.Creature, error) {
	found, err := r.cache.GetBulk(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Creature, 0, len(found))
	for _, id := range ids {
		if c, ok := found[id]; ok {
			out = append(out, c)
			delete(found, id)
		}
	}
	if len(out) < len(ids) {
		r.logger.Debug("some creatures not found",
			"requested", len(ids),
			"found", len(out),
		)
	}
	return out, nil
}

// NextID 发放个体 ID
func (r *creatureRepositoryImpl) NextID(ctx context.Context) (string, error) {
	n, err := r.sequences.NextValue(ctx, dao.CreatureSequence)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n), nil
}

// UpdateNickname 修改昵称（写数据库 + 删除缓存）
func (r *creatureRepositoryImpl) UpdateNickname(ctx context.Context, ownerID, id string, nickname *string) error {
	if err := r.store.UpdateNickname(ctx, ownerID, id, nickname); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, id)
	return nil
}

// UpdateProgress 写入成长结果（写数据库 + 删除缓存）
// 冲突时同样删除缓存，重试时读到最新值
func (r *creatureRepositoryImpl) UpdateProgress(ctx context.Context, c *model.Creature, prevLevel int, prevXP int64) (bool, error) {
	ok, err := r.store.UpdateProgress(ctx, c, prevLevel, prevXP)
	if err != nil {
		return false, err
	}
	r.cache.Invalidate(ctx, c.ID)
	return ok, nil
}

// Forget 删除个体缓存
func (r *creatureRepositoryImpl) Forget(ctx context.Context, ids ...string) {
	r.cache.Invalidate(ctx, ids...)
}
