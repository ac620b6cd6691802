package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/event"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/manager"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/metrics"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/repository"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/rules"
	"github.com/lk2023060901/xdooria-encounter/pkg/idgen"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/lk2023060901/xdooria-encounter/pkg/otel"
)

const tracerName = "encounter/service"

// CaptureService 野生遭遇与捕获
type CaptureService struct {
	logger    logger.Logger
	trainers  repository.TrainerRepository
	creatures repository.CreatureRepository
	ledger    *LedgerService
	spawn     *SpawnService
	stats     *StatService
	guard     manager.CaptureGuard
	sessions  *manager.SessionManager
	ids       idgen.Generator
	publisher event.Publisher
	rules     rules.Provider
	clock     clockwork.Clock
	rng       Roller
	fsm       *CaptureFSM
	metrics   *metrics.EncounterMetrics
}

// NewCaptureService 创建捕获服务
func NewCaptureService(
	l logger.Logger,
	trainers repository.TrainerRepository,
	creatures repository.CreatureRepository,
	ledger *LedgerService,
	spawn *SpawnService,
	stats *StatService,
	guard manager.CaptureGuard,
	sessions *manager.SessionManager,
	ids idgen.Generator,
	publisher event.Publisher,
	rp rules.Provider,
	clock clockwork.Clock,
	rng Roller,
	m *metrics.EncounterMetrics,
) *CaptureService {
	if publisher == nil {
		publisher = event.NoopPublisher{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CaptureService{
		logger:    l.Named("service.capture"),
		trainers:  trainers,
		creatures: creatures,
		ledger:    ledger,
		spawn:     spawn,
		stats:     stats,
		guard:     guard,
		sessions:  sessions,
		ids:       ids,
		publisher: publisher,
		rules:     rp,
		clock:     clock,
		rng:       rng,
		fsm:       NewCaptureFSM(rng, rp.Current().Capture.CatchRange),
		metrics:   m,
	}
}

// BeginEncounter 开启一次野生遭遇
// 只有存储或数据完整性故障返回 error，业务拒绝通过 SessionOutcome 表达
func (s *CaptureService) BeginEncounter(ctx context.Context, trainerID string) (out *model.SessionOutcome, err error) {
	ctx = logger.WithTrainerID(ctx, trainerID)
	ctx, span := otel.Start(ctx, tracerName, "encounter.begin", otel.String("trainer_id", trainerID))
	defer func() { endOutcomeSpan(span, out, err) }()
	start := s.clock.Now()
	defer func() { s.metrics.RecordAction("begin", err == nil, s.clock.Since(start)) }()

	// 1. 读取账户
	trainer, err := s.ledger.Read(ctx, trainerID)
	if err != nil {
		if errors.Is(err, ErrNoAccount) {
			return s.reject(model.ReasonNoAccount, "You haven't started your adventure yet."), nil
		}
		return nil, err
	}

	// 2. 本进程已有会话直接拒绝，不排队
	if _, ok := s.sessions.Get(trainerID); ok {
		return s.reject(model.ReasonAlreadyActive, "You are already in an encounter."), nil
	}

	// 3. 没有道具时不开启会话，也不访问守卫
	if trainer.TotalDevices() <= 0 {
		s.metrics.RecordRejection(string(model.ReasonNoDevices))
		return &model.SessionOutcome{
			Kind:    model.OutcomeFled,
			Reason:  model.ReasonNoDevices,
			Message: "You have no balls left. The wild creature ran away.",
		}, nil
	}

	held, err := s.guard.Held(ctx, trainerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check capture guard")
	}
	if held {
		return s.reject(model.ReasonAlreadyActive, "You are already in an encounter."), nil
	}

	// 4. 占用守卫
	ok, err := s.guard.Acquire(ctx, trainerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire capture guard")
	}
	if !ok {
		return s.reject(model.ReasonAlreadyActive, "You are already in an encounter."), nil
	}

	// 5. 刷新。之后任何失败都要释放守卫
	enc, err := s.open(ctx, trainerID)
	if err != nil {
		s.release(ctx, trainerID)
		return nil, err
	}
	if _, err := s.sessions.Register(enc); err != nil {
		s.release(ctx, trainerID)
		return s.reject(model.ReasonAlreadyActive, "You are already in an encounter."), nil
	}

	s.metrics.RecordEncounterStarted()
	ctx = logger.WithEncounterID(ctx, enc.ID)
	s.logger.InfoContext(ctx, "encounter opened",
		"species_id", enc.Species.ID,
		"level", enc.Level,
		"shiny", enc.Shiny,
	)

	return &model.SessionOutcome{
		Kind:        model.OutcomeOpened,
		EncounterID: enc.ID,
		SpeciesID:   enc.Species.ID,
		SpeciesName: enc.Species.Name,
		Level:       enc.Level,
		Shiny:       enc.Shiny,
		Message:     fmt.Sprintf("A wild %s appeared!", displaySpecies(enc.Species.Name, enc.Shiny)),
	}, nil
}

// open 刷新并构造遭遇
func (s *CaptureService) open(ctx context.Context, trainerID string) (*model.WildEncounter, error) {
	spawned, err := s.spawn.Spawn(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to spawn wild creature",
			"error", err,
		)
		return nil, err
	}

	id, err := s.ids.NextID()
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate encounter id")
	}

	now := s.clock.Now()
	return &model.WildEncounter{
		ID:           id,
		OwnerID:      trainerID,
		Species:      spawned.Species,
		Shiny:        spawned.Shiny,
		Level:        spawned.Level,
		CaptureRate:  spawned.Species.CaptureRate,
		FleeChance:   s.rules.Current().Capture.FleeChance,
		State:        model.StateOpen,
		OpenedAt:     now,
		LastActivity: now,
	}, nil
}

// SubmitDevice 向当前遭遇投掷道具
func (s *CaptureService) SubmitDevice(ctx context.Context, trainerID string, device model.DeviceType) (out *model.SessionOutcome, err error) {
	ctx = logger.WithTrainerID(ctx, trainerID)
	ctx, span := otel.Start(ctx, tracerName, "encounter.throw", otel.String("trainer_id", trainerID))
	defer func() { endOutcomeSpan(span, out, err) }()
	start := s.clock.Now()
	defer func() { s.metrics.RecordAction("throw", err == nil, s.clock.Since(start)) }()

	sess, ok := s.sessions.Get(trainerID)
	if !ok {
		return s.reject(model.ReasonNoSession, "You are not in an encounter."), nil
	}
	sess.Lock()
	defer sess.Unlock()
	if sess.Closed() {
		return s.reject(model.ReasonNoSession, "You are not in an encounter."), nil
	}
	defer s.settle(ctx, sess, &out)

	enc := sess.Encounter()
	ctx = logger.WithEncounterID(ctx, enc.ID)
	cfg := s.rules.Current()
	now := s.clock.Now()

	// 1. 超时在下一次操作时惰性生效
	if Expired(enc, now, cfg.Capture.Timeout) {
		return s.expire(enc)
	}

	// 2. 道具校验不产生任何副作用
	multiplier, known := cfg.Capture.Multiplier(device)
	if !device.Valid() || !known {
		return s.reject(model.ReasonInvalidDevice, "That isn't a ball you can throw."), nil
	}

	// 3. 存储端扣除道具
	if err := s.ledger.AdjustDeviceCount(ctx, trainerID, device, -1); err != nil {
		if errors.Is(err, ErrInsufficientDevices) {
			return s.reject(model.ReasonInvalidDevice, fmt.Sprintf("You don't have any %s.", device)), nil
		}
		s.abort(ctx, enc, err)
		return nil, err
	}

	// 4. 判定
	tr, err := s.fsm.Step(enc, ThrowEvent{
		Device:     device,
		Multiplier: multiplier,
		CatchRange: cfg.Capture.CatchRange,
	})
	if err != nil {
		return nil, err
	}
	enc.LastActivity = now

	s.logger.DebugContext(ctx, "device thrown",
		"device", device,
		"catch_roll", tr.CatchRoll,
		"effective_rate", tr.EffRate,
		"flee_roll", tr.FleeRoll,
		"state", tr.To,
	)

	switch tr.To {
	case model.StateCaught:
		s.metrics.RecordThrow(string(device), "caught")
		return s.capture(ctx, enc, device, now)

	case model.StateFled:
		s.metrics.RecordThrow(string(device), "fled")
		return &model.SessionOutcome{
			Kind:        model.OutcomeFled,
			Reason:      model.ReasonEscaped,
			EncounterID: enc.ID,
			SpeciesID:   enc.Species.ID,
			SpeciesName: enc.Species.Name,
			Level:       enc.Level,
			Shiny:       enc.Shiny,
			Device:      device,
			Attempts:    enc.Attempts,
			Message:     fmt.Sprintf("Oh no! The wild %s fled!", enc.Species.Name),
		}, nil

	default:
		s.metrics.RecordThrow(string(device), "retry")
		if err := s.guard.Touch(ctx, trainerID); err != nil {
			s.logger.WarnContext(ctx, "failed to refresh capture guard",
				"error", err,
			)
		}
		return &model.SessionOutcome{
			Kind:        model.OutcomeRetry,
			EncounterID: enc.ID,
			SpeciesID:   enc.Species.ID,
			SpeciesName: enc.Species.Name,
			Level:       enc.Level,
			Shiny:       enc.Shiny,
			Device:      device,
			Attempts:    enc.Attempts,
			Message:     fmt.Sprintf("Argh! The %s broke free!", enc.Species.Name),
		}, nil
	}
}

// capture 结算捕获：发放奖励、生成个体并写入收藏，三者在同一事务内完成
func (s *CaptureService) capture(ctx context.Context, enc *model.WildEncounter, device model.DeviceType, now time.Time) (*model.SessionOutcome, error) {
	cfg := s.rules.Current()
	reward := int64(rollRange(s.rng, int(cfg.Capture.RewardMin), int(cfg.Capture.RewardMax)))

	c := s.stats.Synthesize(enc.Species, enc.Level, s.partner(ctx, enc.OwnerID))
	id, err := s.creatures.NextID(ctx)
	if err != nil {
		s.abort(ctx, enc, err)
		return nil, errors.Wrap(err, "failed to allocate creature id")
	}
	c.ID = id
	c.OwnerID = enc.OwnerID
	c.Shiny = enc.Shiny
	c.CaughtAt = now
	c.UpdatedAt = now

	if err := s.trainers.SettleCatch(ctx, enc.OwnerID, c, reward); err != nil {
		s.abort(ctx, enc, err)
		return nil, errors.Wrap(err, "failed to settle catch")
	}

	s.logger.InfoContext(ctx, "creature caught",
		"creature_id", c.ID,
		"species_id", c.SpeciesID,
		"level", c.Level,
		"nature", c.Nature,
		"ability", c.Ability,
		"reward", reward,
	)

	return &model.SessionOutcome{
		Kind:        model.OutcomeCaught,
		EncounterID: enc.ID,
		SpeciesID:   enc.Species.ID,
		SpeciesName: enc.Species.Name,
		Level:       enc.Level,
		Shiny:       enc.Shiny,
		Device:      device,
		Attempts:    enc.Attempts,
		Reward:      reward,
		CreatureID:  c.ID,
		Message: fmt.Sprintf("Gotcha! %s was caught! You earned %d coins.",
			displaySpecies(enc.Species.Name, enc.Shiny), reward),
	}, nil
}

// partner 读取伙伴用于同步特性判定，读取失败时按无伙伴处理
func (s *CaptureService) partner(ctx context.Context, trainerID string) *model.Creature {
	t, err := s.trainers.Get(ctx, trainerID)
	if err != nil || t.PartnerID == nil {
		return nil
	}
	p, err := s.creatures.Get(ctx, *t.PartnerID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load partner, synchronize skipped",
			"partner_id", *t.PartnerID,
			"error", err,
		)
		return nil
	}
	return p
}

// SubmitAbort 放弃当前遭遇
func (s *CaptureService) SubmitAbort(ctx context.Context, trainerID string) (out *model.SessionOutcome, err error) {
	ctx = logger.WithTrainerID(ctx, trainerID)
	ctx, span := otel.Start(ctx, tracerName, "encounter.run", otel.String("trainer_id", trainerID))
	defer func() { endOutcomeSpan(span, out, err) }()
	start := s.clock.Now()
	defer func() { s.metrics.RecordAction("run", err == nil, s.clock.Since(start)) }()

	sess, ok := s.sessions.Get(trainerID)
	if !ok {
		return s.reject(model.ReasonNoSession, "You are not in an encounter."), nil
	}
	sess.Lock()
	defer sess.Unlock()
	if sess.Closed() {
		return s.reject(model.ReasonNoSession, "You are not in an encounter."), nil
	}
	defer s.settle(ctx, sess, &out)

	enc := sess.Encounter()
	// 已超时的会话报告超时而不是逃跑
	if Expired(enc, s.clock.Now(), s.rules.Current().Capture.Timeout) {
		return s.expire(enc)
	}

	if _, err := s.fsm.Step(enc, RunEvent{}); err != nil {
		return nil, err
	}
	return &model.SessionOutcome{
		Kind:        model.OutcomeFled,
		Reason:      model.ReasonRun,
		EncounterID: enc.ID,
		SpeciesID:   enc.Species.ID,
		SpeciesName: enc.Species.Name,
		Level:       enc.Level,
		Shiny:       enc.Shiny,
		Attempts:    enc.Attempts,
		Message:     "Got away safely!",
	}, nil
}

// SweepExpired 主动清理超时会话，返回清理数量
func (s *CaptureService) SweepExpired(ctx context.Context) int {
	timeout := s.rules.Current().Capture.Timeout
	swept := 0
	for _, sess := range s.sessions.GetAllSessions() {
		if s.sweepOne(ctx, sess, timeout) {
			swept++
		}
	}
	if swept > 0 {
		s.logger.InfoContext(ctx, "expired sessions swept",
			"count", swept,
			"remaining", s.sessions.GetSessionCount(),
		)
	}
	return swept
}

func (s *CaptureService) sweepOne(ctx context.Context, sess *manager.Session, timeout time.Duration) (swept bool) {
	sess.Lock()
	defer sess.Unlock()
	if sess.Closed() {
		return false
	}
	enc := sess.Encounter()
	if !Expired(enc, s.clock.Now(), timeout) {
		return false
	}

	var out *model.SessionOutcome
	defer s.settle(logger.WithTrainerID(ctx, enc.OwnerID), sess, &out)
	out, _ = s.expire(enc)
	return true
}

// OpenSessions 当前开启的会话数
func (s *CaptureService) OpenSessions() int {
	return s.sessions.GetSessionCount()
}

func (s *CaptureService) expire(enc *model.WildEncounter) (*model.SessionOutcome, error) {
	if _, err := s.fsm.Step(enc, ExpireEvent{}); err != nil {
		return nil, err
	}
	return &model.SessionOutcome{
		Kind:        model.OutcomeExpired,
		Reason:      model.ReasonTimeout,
		EncounterID: enc.ID,
		SpeciesID:   enc.Species.ID,
		SpeciesName: enc.Species.Name,
		Level:       enc.Level,
		Shiny:       enc.Shiny,
		Attempts:    enc.Attempts,
		Message:     fmt.Sprintf("The wild %s got bored and wandered off.", enc.Species.Name),
	}, nil
}

// abort 内部故障时终止会话
func (s *CaptureService) abort(ctx context.Context, enc *model.WildEncounter, cause error) {
	s.logger.ErrorContext(ctx, "encounter aborted",
		"state", enc.State,
		"error", cause,
	)
	// 已进入终止状态（例如捕获结算失败）时强制改为 aborted
	enc.State = model.StateAborted
}

// settle 在会话锁内延迟执行：会话进入终止状态后关闭、注销并释放守卫
// panic 时先把会话标记为 aborted 再继续向上抛出
func (s *CaptureService) settle(ctx context.Context, sess *manager.Session, out **model.SessionOutcome) {
	r := recover()
	enc := sess.Encounter()
	if r != nil {
		s.logger.ErrorContext(ctx, "panic in capture session",
			"state", enc.State,
			"panic", r,
		)
		enc.State = model.StateAborted
	}

	if enc.State.Terminal() && !sess.Closed() {
		s.close(ctx, sess, *out)
	}
	if r != nil {
		panic(r)
	}
}

// close 终止会话的唯一出口
func (s *CaptureService) close(ctx context.Context, sess *manager.Session, out *model.SessionOutcome) {
	enc := sess.Encounter()
	sess.Close()
	s.sessions.Remove(enc.OwnerID, sess)
	s.release(ctx, enc.OwnerID)

	ev := &model.OutcomeEvent{
		EncounterID: enc.ID,
		TrainerID:   enc.OwnerID,
		Kind:        outcomeKind(enc.State),
		SpeciesID:   enc.Species.ID,
		Level:       enc.Level,
		Shiny:       enc.Shiny,
		Attempts:    enc.Attempts,
		OccurredAt:  s.clock.Now(),
	}
	if out != nil && out.Kind == ev.Kind {
		ev.Reason = out.Reason
		ev.Reward = out.Reward
		ev.CreatureID = out.CreatureID
	}

	s.metrics.RecordOutcome(string(ev.Kind), string(ev.Reason))
	s.logger.InfoContext(logger.WithEncounterID(ctx, enc.ID), "encounter closed",
		"kind", ev.Kind,
		"reason", ev.Reason,
		"attempts", enc.Attempts,
	)

	// 发布失败只记录日志，不影响结算
	if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.WarnContext(ctx, "failed to publish outcome event",
			"kind", ev.Kind,
			"error", err,
		)
	}
}

// release 释放守卫，调用方的 ctx 被取消时仍然执行
func (s *CaptureService) release(ctx context.Context, trainerID string) {
	if err := s.guard.Release(context.WithoutCancel(ctx), trainerID); err != nil {
		s.logger.ErrorContext(ctx, "failed to release capture guard",
			"error", err,
		)
	}
}

// endOutcomeSpan 记录结果类型与原因后结束 span
func endOutcomeSpan(span otel.Span, out *model.SessionOutcome, err error) {
	if out != nil {
		span.SetAttributes(
			otel.String("outcome.kind", string(out.Kind)),
			otel.String("outcome.reason", string(out.Reason)),
		)
		if out.EncounterID != 0 {
			span.SetAttributes(otel.Int64("encounter_id", out.EncounterID))
		}
	}
	otel.End(span, err)
}

func (s *CaptureService) reject(reason model.Reason, msg string) *model.SessionOutcome {
	s.metrics.RecordRejection(string(reason))
	return &model.SessionOutcome{
		Kind:    model.OutcomeRejected,
		Reason:  reason,
		Message: msg,
	}
}

func outcomeKind(state model.SessionState) model.OutcomeKind {
	switch state {
	case model.StateCaught:
		return model.OutcomeCaught
	case model.StateFled:
		return model.OutcomeFled
	case model.StateExpired:
		return model.OutcomeExpired
	default:
		return model.OutcomeAborted
	}
}

func displaySpecies(name string, shiny bool) string {
	if shiny {
		return "shiny " + name
	}
	return name
}
