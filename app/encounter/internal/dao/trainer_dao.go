package dao

import (
	"context"
	"slices"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/metrics"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

const (
	trainersTable = "trainers"
	devicesTable  = "trainer_devices"
)

// devicesColumn 把 trainer_devices 聚合成一个 JSON 对象，整条账户一次查询取回
const devicesColumn = "COALESCE((SELECT jsonb_object_agg(d.device, d.count) FROM trainer_devices d WHERE d.trainer_id = t.id), '{}'::jsonb) AS devices"

var trainerColumns = []string{
	"t.id",
	"t.currency",
	"t.owned",
	"t.partner_id",
	"t.settings",
	"t.daily_streak",
	"t.last_daily_claim",
	"t.created_at",
	"t.updated_at",
	devicesColumn,
}

// TrainerDAO 训练师数据访问对象
type TrainerDAO struct {
	db      *postgres.Client
	logger  logger.Logger
	metrics *metrics.EncounterMetrics
}

var _ TrainerStore = (*TrainerDAO)(nil)

// NewTrainerDAO 创建训练师 DAO
func NewTrainerDAO(db *postgres.Client, l logger.Logger, m *metrics.EncounterMetrics) *TrainerDAO {
	return &TrainerDAO{
		db:      db,
		logger:  l.Named("dao.trainer"),
		metrics: m,
	}
}

func (d *TrainerDAO) observe(op string, start time.Time, err *error) {
	ok := *err == nil || errors.IsAny(*err, ErrNotFound, ErrInsufficientFunds, ErrInsufficientDevices, ErrAlreadyExists, ErrNotOwned)
	d.metrics.RecordDBQuery(op, ok, time.Since(start).Seconds())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrainer(row scanner) (*model.Trainer, error) {
	var (
		t       model.Trainer
		devices map[string]int64
	)
	if err := row.Scan(
		&t.ID,
		&t.Currency,
		&t.Owned,
		&t.PartnerID,
		&t.Settings,
		&t.DailyStreak,
		&t.LastDailyClaim,
		&t.CreatedAt,
		&t.UpdatedAt,
		&devices,
	); err != nil {
		return nil, err
	}

	t.Devices = make(map[model.DeviceType]int64, len(devices))
	for name, n := range devices {
		t.Devices[model.DeviceType(name)] = n
	}
	if t.Owned == nil {
		t.Owned = []string{}
	}
	if t.Settings == nil {
		t.Settings = map[string]string{}
	}
	return &t, nil
}

func selectTrainers() squirrel.SelectBuilder {
	return postgres.QueryBuilder.Select(trainerColumns...).From(trainersTable + " t")
}

// GetTrainer 根据 ID 获取训练师
func (d *TrainerDAO) GetTrainer(ctx context.Context, id string) (_ *model.Trainer, err error) {
	defer d.observe("select", time.Now(), &err)

	query, args, err := selectTrainers().Where(squirrel.Eq{"t.id": id}).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	t, err := scanTrainer(d.db.QueryRowMaster(ctx, query, args...))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, ErrNotFound
		}
		d.logger.Error("failed to get trainer",
			"trainer_id", id,
			"error", err,
		)
		return nil, errors.Wrap(err, "failed to get trainer")
	}
	return t, nil
}

// GetTrainers 批量获取训练师
func (d *TrainerDAO) GetTrainers(ctx context.Context, ids []string) (_ []*model.Trainer, err error) {
	if len(ids) == 0 {
		return nil, nil
	}
	defer d.observe("select", time.Now(), &err)

	query, args, err := selectTrainers().Where(squirrel.Eq{"t.id": ids}).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	rows, err := d.db.Query(ctx, query, args...)
	if err != nil {
		d.logger.Error("failed to list trainers",
			"count", len(ids),
			"error", err,
		)
		return nil, errors.Wrap(err, "failed to list trainers")
	}
	defer rows.Close()

	trainers := make([]*model.Trainer, 0, len(ids))
	for rows.Next() {
		t, err := scanTrainer(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan trainer")
		}
		trainers = append(trainers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows iteration error")
	}
	return trainers, nil
}

// CreateTrainer 创建训练师及其初始道具、初始个体
func (d *TrainerDAO) CreateTrainer(ctx context.Context, t *model.Trainer, starter *model.Creature) (err error) {
	defer d.observe("insert", time.Now(), &err)

	err = d.db.WithTx(ctx, func(q postgres.Querier) error {
		query, args, err := buildInsertTrainer(t)
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, query, args...); err != nil {
			return err
		}

		if query, args, ok, err := buildInsertDevices(t.ID, t.Devices); err != nil {
			return err
		} else if ok {
			if _, err := q.Exec(ctx, query, args...); err != nil {
				return err
			}
		}

		if starter != nil {
			return insertCreature(ctx, q, starter)
		}
		return nil
	})
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		d.logger.Error("failed to create trainer",
			"trainer_id", t.ID,
			"error", err,
		)
		return errors.Wrap(err, "failed to create trainer")
	}

	d.logger.Info("trainer created",
		"trainer_id", t.ID,
		"currency", t.Currency,
	)
	return nil
}

func buildInsertTrainer(t *model.Trainer) (string, []any, error) {
	owned := t.Owned
	if owned == nil {
		owned = []string{}
	}
	settings := t.Settings
	if settings == nil {
		settings = map[string]string{}
	}
	return postgres.QueryBuilder.
		Insert(trainersTable).
		Columns("id", "currency", "owned", "partner_id", "settings", "daily_streak", "last_daily_claim", "created_at", "updated_at").
		Values(t.ID, t.Currency, owned, t.PartnerID, settings, t.DailyStreak, t.LastDailyClaim, t.CreatedAt, t.UpdatedAt).
		ToSql()
}

// buildInsertDevices 一条多值 INSERT 写入全部道具，ok 为 false 表示没有需要写入的道具
func buildInsertDevices(trainerID string, devices map[model.DeviceType]int64) (string, []any, bool, error) {
	keys := sortedDevices(devices)
	if len(keys) == 0 {
		return "", nil, false, nil
	}

	b := postgres.QueryBuilder.Insert(devicesTable).Columns("trainer_id", "device", "count")
	for _, dev := range keys {
		b = b.Values(trainerID, string(dev), devices[dev])
	}
	query, args, err := b.ToSql()
	return query, args, true, err
}

// ApplyDelta 在一个事务内应用多字段增量
func (d *TrainerDAO) ApplyDelta(ctx context.Context, id string, delta model.LedgerDelta) (err error) {
	defer d.observe("update", time.Now(), &err)

	err = d.db.WithTx(ctx, func(q postgres.Querier) error {
		return applyDelta(ctx, q, id, delta)
	})
	if err != nil {
		if errors.IsAny(err, ErrNotFound, ErrInsufficientFunds, ErrInsufficientDevices) {
			return err
		}
		d.logger.Error("failed to apply ledger delta",
			"trainer_id", id,
			"currency", delta.Currency,
			"error", err,
		)
		return errors.Wrap(err, "failed to apply ledger delta")
	}
	return nil
}

// applyDelta 先更新 trainers 行（同时作为行锁与存在性检查），再逐个道具按固定顺序更新
func applyDelta(ctx context.Context, q postgres.Querier, id string, delta model.LedgerDelta) error {
	query, args, err := buildCurrencyDelta(id, delta.Currency)
	if err != nil {
		return err
	}
	n, err := q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		exists, err := trainerExists(ctx, q, id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInsufficientFunds
	}

	for _, dev := range sortedDevices(delta.Devices) {
		query, args, err := buildDeviceDelta(id, dev, delta.Devices[dev])
		if err != nil {
			return err
		}
		n, err := q.Exec(ctx, query, args...)
		if err != nil {
			if postgres.IsCheckViolation(err) {
				return ErrInsufficientDevices
			}
			return err
		}
		if n == 0 {
			return ErrInsufficientDevices
		}
	}
	return nil
}

func buildCurrencyDelta(id string, amount int64) (string, []any, error) {
	return postgres.QueryBuilder.
		Update(trainersTable).
		Set("currency", squirrel.Expr("currency + ?", amount)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Expr("currency + ? >= 0", amount)).
		ToSql()
}

// buildDeviceDelta 增加时 upsert，减少时只在数量足够时更新
func buildDeviceDelta(id string, dev model.DeviceType, amount int64) (string, []any, error) {
	if amount >= 0 {
		return postgres.QueryBuilder.
			Insert(devicesTable).
			Columns("trainer_id", "device", "count").
			Values(id, string(dev), amount).
			Suffix("ON CONFLICT (trainer_id, device) DO UPDATE SET count = trainer_devices.count + EXCLUDED.count").
			ToSql()
	}
	return postgres.QueryBuilder.
		Update(devicesTable).
		Set("count", squirrel.Expr("count + ?", amount)).
		Where(squirrel.Eq{"trainer_id": id, "device": string(dev)}).
		Where(squirrel.Expr("count + ? >= 0", amount)).
		ToSql()
}

func trainerExists(ctx context.Context, q postgres.Querier, id string) (bool, error) {
	query, args, err := postgres.QueryBuilder.
		Select("1").
		Prefix("SELECT EXISTS (").
		From(trainersTable).
		Where(squirrel.Eq{"id": id}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, err
	}
	var exists bool
	if err := q.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// SettleCatch 写入捕获结果
func (d *TrainerDAO) SettleCatch(ctx context.Context, id string, c *model.Creature, reward int64) (err error) {
	defer d.observe("update", time.Now(), &err)

	err = d.db.WithTx(ctx, func(q postgres.Querier) error {
		if err := insertCreature(ctx, q, c); err != nil {
			return err
		}
		query, args, err := postgres.QueryBuilder.
			Update(trainersTable).
			Set("owned", squirrel.Expr("array_append(owned, ?)", c.ID)).
			Set("currency", squirrel.Expr("currency + ?", reward)).
			Set("updated_at", squirrel.Expr("now()")).
			Where(squirrel.Eq{"id": id}).
			ToSql()
		if err != nil {
			return err
		}
		n, err := q.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		if postgres.IsUniqueViolation(err) {
			return errors.Wrapf(ErrAlreadyExists, "creature %s", c.ID)
		}
		d.logger.Error("failed to settle catch",
			"trainer_id", id,
			"creature_id", c.ID,
			"error", err,
		)
		return errors.Wrap(err, "failed to settle catch")
	}
	return nil
}

// SetPartner 设置或清除伙伴，设置时要求个体在 owned 中
func (d *TrainerDAO) SetPartner(ctx context.Context, id string, creatureID *string) (err error) {
	defer d.observe("update", time.Now(), &err)

	b := postgres.QueryBuilder.
		Update(trainersTable).
		Set("partner_id", creatureID).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id})
	if creatureID != nil {
		b = b.Where(squirrel.Expr("? = ANY(owned)", *creatureID))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build query")
	}

	n, err := d.db.Exec(ctx, query, args...)
	if err != nil {
		d.logger.Error("failed to set partner",
			"trainer_id", id,
			"error", err,
		)
		return errors.Wrap(err, "failed to set partner")
	}
	if n > 0 {
		return nil
	}

	exists, err := trainerExists(ctx, d.db, id)
	if err != nil {
		return errors.Wrap(err, "failed to check trainer")
	}
	if !exists {
		return ErrNotFound
	}
	return ErrNotOwned
}

// SetSetting 合并写入单个偏好项
func (d *TrainerDAO) SetSetting(ctx context.Context, id, key, value string) (err error) {
	defer d.observe("update", time.Now(), &err)

	query, args, err := buildSetSetting(id, key, value)
	if err != nil {
		return errors.Wrap(err, "failed to build query")
	}
	n, err := d.db.Exec(ctx, query, args...)
	if err != nil {
		d.logger.Error("failed to update setting",
			"trainer_id", id,
			"key", key,
			"error", err,
		)
		return errors.Wrap(err, "failed to update setting")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func buildSetSetting(id, key, value string) (string, []any, error) {
	return postgres.QueryBuilder.
		Update(trainersTable).
		Set("settings", squirrel.Expr("settings || jsonb_build_object(?::text, ?::text)", key, value)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
}

// ClaimDaily 发放每日奖励
func (d *TrainerDAO) ClaimDaily(ctx context.Context, id string, prev *time.Time, claim model.DailyClaim) (_ bool, err error) {
	defer d.observe("update", time.Now(), &err)

	query, args, err := buildClaimDaily(id, prev, claim)
	if err != nil {
		return false, errors.Wrap(err, "failed to build query")
	}
	n, err := d.db.Exec(ctx, query, args...)
	if err != nil {
		d.logger.Error("failed to claim daily reward",
			"trainer_id", id,
			"error", err,
		)
		return false, errors.Wrap(err, "failed to claim daily reward")
	}
	return n == 1, nil
}

func buildClaimDaily(id string, prev *time.Time, claim model.DailyClaim) (string, []any, error) {
	return postgres.QueryBuilder.
		Update(trainersTable).
		Set("currency", squirrel.Expr("currency + ?", claim.Reward)).
		Set("daily_streak", claim.Streak).
		Set("last_daily_claim", claim.ClaimedAt).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Expr("last_daily_claim IS NOT DISTINCT FROM ?::timestamptz", prev)).
		ToSql()
}

func sortedDevices(devices map[model.DeviceType]int64) []model.DeviceType {
	keys := make([]model.DeviceType, 0, len(devices))
	for dev, n := range devices {
		if n != 0 {
			keys = append(keys, dev)
		}
	}
	slices.Sort(keys)
	return keys
}
