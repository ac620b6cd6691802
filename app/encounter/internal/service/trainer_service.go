package service

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/catalog"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/dao"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/repository"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/rules"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

// 收藏分页
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// CreaturePage 收藏的一页
type CreaturePage struct {
	Creatures []*model.Creature `json:"creatures"`
	Page      int               `json:"page"`
	Size      int               `json:"size"`
	Total     int               `json:"total"`
}

// TrainerService 训练师账户、伙伴与收藏
type TrainerService struct {
	logger    logger.Logger
	trainers  repository.TrainerRepository
	creatures repository.CreatureRepository
	stats     *StatService
	catalog   catalog.Catalog
	rules     rules.Provider
	clock     clockwork.Clock
	rng       Roller
}

// NewTrainerService 创建训练师服务
func NewTrainerService(
	l logger.Logger,
	trainers repository.TrainerRepository,
	creatures repository.CreatureRepository,
	stats *StatService,
	cat catalog.Catalog,
	rp rules.Provider,
	clock clockwork.Clock,
	rng Roller,
) *TrainerService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TrainerService{
		logger:    l.Named("service.trainer"),
		trainers:  trainers,
		creatures: creatures,
		stats:     stats,
		catalog:   cat,
		rules:     rp,
		clock:     clock,
		rng:       rng,
	}
}

// StartAdventure 创建账户并发放初始伙伴
func (s *TrainerService) StartAdventure(ctx context.Context, trainerID string, generation, speciesID int) (*model.Trainer, *model.Creature, error) {
	ctx = logger.WithTrainerID(ctx, trainerID)
	cfg := s.rules.Current()

	// 1. 已有账户
	if _, err := s.trainers.Get(ctx, trainerID); err == nil {
		return nil, nil, ErrAccountExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, err
	}

	// 2. 校验初始物种
	starters, ok := cfg.StartKit.Starters[generation]
	if !ok || !slices.Contains(starters, speciesID) {
		return nil, nil, errors.Wrapf(ErrInvalidStarter, "generation %d species %d", generation, speciesID)
	}
	species, ok := s.catalog.ByID(speciesID)
	if !ok {
		s.logger.ErrorContext(ctx, "starter species missing from catalog",
			"species_id", speciesID,
		)
		return nil, nil, errors.Wrapf(ErrSpeciesLookup, "species %d", speciesID)
	}

	// 3. 生成初始个体
	now := s.clock.Now()
	starter := s.stats.Synthesize(species, cfg.StartKit.StarterLevel, nil)
	id, err := s.creatures.NextID(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to allocate creature id")
	}
	starter.ID = id
	starter.OwnerID = trainerID
	starter.Shiny = s.rng.Float64() < cfg.Spawn.ShinyProbability
	starter.CaughtAt = now
	starter.UpdatedAt = now

	// 4. 同一事务写入账户、道具与初始个体
	t := model.NewTrainer(trainerID, cfg.StartKit.Currency, cfg.StartKit.Devices, now)
	t.Owned = append(t.Owned, starter.ID)
	t.PartnerID = &starter.ID
	if err := s.trainers.Create(ctx, t, starter); err != nil {
		if errors.Is(err, dao.ErrAlreadyExists) {
			return nil, nil, ErrAccountExists
		}
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "adventure started",
		"generation", generation,
		"species_id", speciesID,
		"creature_id", starter.ID,
		"shiny", starter.Shiny,
	)
	return t, starter, nil
}

// Get 读取账户
func (s *TrainerService) Get(ctx context.Context, trainerID string) (*model.Trainer, error) {
	t, err := s.trainers.Get(ctx, trainerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoAccount
	}
	return t, err
}

// SetPartner 设置伙伴，个体必须属于该训练师
func (s *TrainerService) SetPartner(ctx context.Context, trainerID, creatureID string) error {
	err := s.trainers.SetPartner(ctx, trainerID, &creatureID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		return ErrNoAccount
	default:
		return err
	}

	s.logger.InfoContext(logger.WithTrainerID(ctx, trainerID), "partner set",
		"creature_id", creatureID,
	)
	return nil
}

// ClearPartner 清除伙伴
func (s *TrainerService) ClearPartner(ctx context.Context, trainerID string) error {
	err := s.trainers.SetPartner(ctx, trainerID, nil)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNoAccount
	}
	return err
}

// SetNickname 修改昵称，空串清除昵称
func (s *TrainerService) SetNickname(ctx context.Context, trainerID, creatureID, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if utf8.RuneCountInString(nickname) > model.NicknameMaxRunes {
		return errors.Wrapf(ErrInvalidNickname, "nickname longer than %d characters", model.NicknameMaxRunes)
	}

	var nick *string
	if nickname != "" {
		nick = &nickname
	}

	err := s.creatures.UpdateNickname(ctx, trainerID, creatureID, nick)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotOwned
	}
	return err
}

// UpdateSetting 修改偏好，key 接受别名，返回更新后的账户
func (s *TrainerService) UpdateSetting(ctx context.Context, trainerID, key, value string) (*model.Trainer, error) {
	k, v, ok := model.NormalizeSetting(key, value)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidSetting, "%q=%q, available settings: %s",
			key, value, strings.Join(model.SettingKeys(), ", "))
	}

	err := s.trainers.SetSetting(ctx, trainerID, k, v)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoAccount
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(logger.WithTrainerID(ctx, trainerID), "setting updated",
		"key", k,
		"value", v,
	)
	return s.Get(ctx, trainerID)
}

// ListCreatures 按捕获顺序分页读取收藏，page 从 1 开始
func (s *TrainerService) ListCreatures(ctx context.Context, trainerID string, page, size int) (*CreaturePage, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	size = min(size, MaxPageSize)

	t, err := s.Get(ctx, trainerID)
	if err != nil {
		return nil, err
	}

	out := &CreaturePage{
		Creatures: []*model.Creature{},
		Page:      page,
		Size:      size,
		Total:     len(t.Owned),
	}
	// 先比较页号再相乘，页号很大时乘积会溢出
	pages := (len(t.Owned) + size - 1) / size
	if page > pages {
		return out, nil
	}
	from := (page - 1) * size
	to := min(from+size, len(t.Owned))

	creatures, err := s.creatures.GetMany(ctx, t.Owned[from:to])
	if err != nil {
		return nil, err
	}
	out.Creatures = creatures
	return out, nil
}
