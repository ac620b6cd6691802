package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/metrics"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/repository"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/rules"
	"github.com/lk2023060901/xdooria-encounter/pkg/cache/lru"
	"github.com/lk2023060901/xdooria-encounter/pkg/config"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/lk2023060901/xdooria-encounter/pkg/sentry"
	"github.com/panjf2000/ants/v2"
)

// WorkerConfig 被动经验的异步执行池
type WorkerConfig struct {
	PoolSize int `mapstructure:"pool_size" json:"pool_size" yaml:"pool_size" validate:"gte=1"`
	// Blocking 为 true 时池满阻塞提交方，默认池满直接拒绝任务
	Blocking bool `mapstructure:"blocking" json:"blocking" yaml:"blocking"`
	// TaskTimeout 单个任务的超时
	TaskTimeout time.Duration `mapstructure:"task_timeout" json:"task_timeout" yaml:"task_timeout"`
	// DrainTimeout 关闭时等待任务完成的最长时间
	DrainTimeout time.Duration `mapstructure:"drain_timeout" json:"drain_timeout" yaml:"drain_timeout"`
	// CooldownEntries 记录消息冷却的训练师上限，被淘汰的训练师下一条消息直接发放
	CooldownEntries int `mapstructure:"cooldown_entries" json:"cooldown_entries" yaml:"cooldown_entries" validate:"gte=0"`
}

// DefaultWorkerConfig 默认配置
func DefaultWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		PoolSize:        64,
		TaskTimeout:     5 * time.Second,
		DrainTimeout:    10 * time.Second,
		CooldownEntries: 100000,
	}
}

// GrantResult 一次经验发放的结果
type GrantResult struct {
	Creature  *model.Creature `json:"creature"`
	Gained    int64           `json:"gained"`
	LeveledUp bool            `json:"leveled_up"`
}

// ExperienceService 伙伴被动经验
type ExperienceService struct {
	logger    logger.Logger
	trainers  repository.TrainerRepository
	creatures repository.CreatureRepository
	stats     *StatService
	rules     rules.Provider
	clock     clockwork.Clock
	cfg       *WorkerConfig
	pool      *ants.Pool
	metrics   *metrics.EncounterMetrics

	// lastGrant 最近一次通过冷却检查的时间
	cooldownMu sync.Mutex
	lastGrant  *lru.LRU[string, time.Time]
}

// antsLogger 适配 ants.Logger
type antsLogger struct {
	l logger.Logger
}

func (a antsLogger) Printf(format string, args ...any) {
	a.l.Warn(fmt.Sprintf(format, args...))
}

// NewExperienceService 创建经验服务
func NewExperienceService(
	l logger.Logger,
	trainers repository.TrainerRepository,
	creatures repository.CreatureRepository,
	stats *StatService,
	rp rules.Provider,
	clock clockwork.Clock,
	cfg *WorkerConfig,
	m *metrics.EncounterMetrics,
) (*ExperienceService, error) {
	newCfg, err := config.MergeConfig(DefaultWorkerConfig(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to merge worker config")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &ExperienceService{
		logger:    l.Named("service.experience"),
		trainers:  trainers,
		creatures: creatures,
		stats:     stats,
		rules:     rp,
		clock:     clock,
		cfg:       newCfg,
		metrics:   m,
		lastGrant: lru.New[string, time.Time](&lru.Config{MaxSize: newCfg.CooldownEntries},
			lru.WithClock[string, time.Time](clock)),
	}

	pool, err := ants.NewPool(newCfg.PoolSize,
		ants.WithNonblocking(!newCfg.Blocking),
		ants.WithLogger(antsLogger{l: s.logger}),
		ants.WithPanicHandler(func(p any) {
			s.logger.Error("experience task panicked",
				"panic", p,
			)
			sentry.RecoverWithContext(context.Background(), p)
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create worker pool")
	}
	s.pool = pool
	return s, nil
}

// Grant 给伙伴增加经验，以 (level, xp) 做乐观写，冲突时重读重试
func (s *ExperienceService) Grant(ctx context.Context, trainerID string, amount int64) (*GrantResult, error) {
	ctx = logger.WithTrainerID(ctx, trainerID)
	if amount <= 0 {
		return nil, errors.Newf("experience amount must be positive, got %d", amount)
	}

	t, err := s.trainers.Get(ctx, trainerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoAccount
		}
		return nil, err
	}
	if t.PartnerID == nil {
		return nil, ErrNoPartner
	}
	partnerID := *t.PartnerID

	retries := s.rules.Current().Experience.MaxRetries
	for attempt := 0; attempt <= retries; attempt++ {
		c, err := s.creatures.Get(ctx, partnerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNoPartner
			}
			s.metrics.RecordXPGrant(false)
			return nil, err
		}

		prevLevel, prevXP := c.Level, c.XP
		leveled := s.stats.GainXP(c, amount)
		c.UpdatedAt = s.clock.Now()

		ok, err := s.creatures.UpdateProgress(ctx, c, prevLevel, prevXP)
		if err != nil {
			s.metrics.RecordXPGrant(false)
			return nil, err
		}
		if ok {
			s.metrics.RecordXPGrant(true)
			if leveled {
				s.logger.InfoContext(ctx, "partner leveled up",
					"creature_id", c.ID,
					"level", c.Level,
				)
			}
			return &GrantResult{Creature: c, Gained: amount, LeveledUp: leveled}, nil
		}

		s.logger.DebugContext(ctx, "experience write conflicted, retrying",
			"creature_id", partnerID,
			"attempt", attempt+1,
		)
	}

	s.metrics.RecordXPGrant(false)
	return nil, errors.Wrapf(ErrConflict, "creature %s", partnerID)
}

// admit 冷却检查，通过时记下本次时间
func (s *ExperienceService) admit(trainerID string) bool {
	cooldown := s.rules.Current().Experience.MessageCooldown
	if cooldown <= 0 {
		return true
	}

	s.cooldownMu.Lock()
	defer s.cooldownMu.Unlock()
	now := s.clock.Now()
	if last, ok := s.lastGrant.Get(trainerID); ok && now.Sub(last) < cooldown {
		return false
	}
	s.lastGrant.SetWithTTL(trainerID, now, cooldown)
	return true
}

// OnMessage 聊天消息触发的被动经验，冷却中返回 nil 结果
func (s *ExperienceService) OnMessage(ctx context.Context, trainerID string) (*GrantResult, error) {
	perMessage := s.rules.Current().Experience.PerMessage
	if perMessage <= 0 || !s.admit(trainerID) {
		return nil, nil
	}
	return s.Grant(ctx, trainerID, perMessage)
}

// Enqueue 异步发放被动经验，冷却中的消息直接忽略
// 池满且为非阻塞模式时返回 ants.ErrPoolOverload
func (s *ExperienceService) Enqueue(trainerID string) error {
	perMessage := s.rules.Current().Experience.PerMessage
	if perMessage <= 0 || !s.admit(trainerID) {
		return nil
	}
	return s.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.TaskTimeout)
		defer cancel()

		if _, err := s.Grant(ctx, trainerID, perMessage); err != nil &&
			!errors.IsAny(err, ErrNoAccount, ErrNoPartner) {
			s.logger.WarnContext(ctx, "failed to grant passive experience",
				"trainer_id", trainerID,
				"error", err,
			)
		}
	})
}

// Pending 正在执行与等待执行的任务数
func (s *ExperienceService) Pending() int {
	return s.pool.Running() + s.pool.Waiting()
}

// Close 等待已提交的任务完成
func (s *ExperienceService) Close() error {
	defer s.lastGrant.Close()
	if err := s.pool.ReleaseTimeout(s.cfg.DrainTimeout); err != nil {
		return errors.Wrap(err, "failed to drain experience pool")
	}
	return nil
}
