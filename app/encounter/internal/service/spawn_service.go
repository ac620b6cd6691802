package service

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/catalog"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/rules"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

// SpawnResult 一次野生刷新
type SpawnResult struct {
	Species *model.Species
	Shiny   bool
	Level   int
}

// SpawnService 野生刷新服务：按权重抽稀有度分池，池内均匀抽物种，独立判定闪光
type SpawnService struct {
	catalog catalog.Catalog
	rules   rules.Provider
	rng     Roller
	logger  logger.Logger
}

// NewSpawnService 创建刷新服务，权重大于零的分池必须非空
func NewSpawnService(cat catalog.Catalog, rp rules.Provider, rng Roller, l logger.Logger) (*SpawnService, error) {
	s := &SpawnService{
		catalog: cat,
		rules:   rp,
		rng:     rng,
		logger:  l.Named("service.spawn"),
	}
	if err := s.CheckPools(rp.Current()); err != nil {
		return nil, err
	}
	return s, nil
}

// CheckPools 校验权重与分池是否一致
func (s *SpawnService) CheckPools(cfg *rules.Config) error {
	for _, tier := range model.Tiers {
		if cfg.Spawn.Weights.Of(tier) > 0 && len(s.catalog.Pool(tier)) == 0 {
			return errors.Wrapf(ErrEmptyPool, "tier %s has weight %.4f but no species", tier, cfg.Spawn.Weights.Of(tier))
		}
	}
	return nil
}

// Choose 抽取物种与闪光
func (s *SpawnService) Choose(ctx context.Context) (*model.Species, bool, error) {
	cfg := s.rules.Current()

	// 1. 抽稀有度
	tier := s.pickTier(cfg.Spawn.Weights)

	// 2. 池内均匀抽取
	pool := s.catalog.Pool(tier)
	if len(pool) == 0 {
		s.logger.ErrorContext(ctx, "spawn pool is empty",
			"tier", tier,
		)
		return nil, false, errors.Wrapf(ErrEmptyPool, "tier %s", tier)
	}
	id := pool[s.rng.Intn(len(pool))]

	species, ok := s.catalog.ByID(id)
	if !ok {
		s.logger.ErrorContext(ctx, "spawn pool references unknown species",
			"tier", tier,
			"species_id", id,
		)
		return nil, false, errors.Wrapf(ErrSpeciesLookup, "species %d", id)
	}

	// 3. 闪光与稀有度独立
	shiny := s.rng.Float64() < cfg.Spawn.ShinyProbability
	return species, shiny, nil
}

// RollLevel 在配置的等级区间内均匀抽取
func (s *SpawnService) RollLevel() int {
	cfg := s.rules.Current()
	return rollRange(s.rng, cfg.Spawn.MinLevel, cfg.Spawn.MaxLevel)
}

// Spawn 完成一次刷新
func (s *SpawnService) Spawn(ctx context.Context) (*SpawnResult, error) {
	species, shiny, err := s.Choose(ctx)
	if err != nil {
		return nil, err
	}
	return &SpawnResult{
		Species: species,
		Shiny:   shiny,
		Level:   s.RollLevel(),
	}, nil
}

func (s *SpawnService) pickTier(w rules.TierWeights) model.Tier {
	r := s.rng.Float64() * w.Total()
	var (
		acc  float64
		last model.Tier
	)
	for _, tier := range model.Tiers {
		weight := w.Of(tier)
		if weight <= 0 {
			continue
		}
		acc += weight
		last = tier
		if r < acc {
			return tier
		}
	}
	// 浮点累加误差
	return last
}
