package dao

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/metrics"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

const creaturesTable = "creatures"

var creatureColumns = []string{
	"id",
	"owner_id",
	"species_id",
	"name",
	"nickname",
	"shiny",
	"level",
	"xp",
	"ivs",
	"nature",
	"ability",
	"base_stats",
	"final_stats",
	"caught_at",
	"updated_at",
}

// CreatureDAO 个体数据访问对象
type CreatureDAO struct {
	db      *postgres.Client
	logger  logger.Logger
	metrics *metrics.EncounterMetrics
}

var _ CreatureStore = (*CreatureDAO)(nil)

// NewCreatureDAO 创建个体 DAO
func NewCreatureDAO(db *postgres.Client, l logger.Logger, m *metrics.EncounterMetrics) *CreatureDAO {
	return &CreatureDAO{
		db:      db,
		logger:  l.Named("dao.creature"),
		metrics: m,
	}
}

func (d *CreatureDAO) observe(op string, start time.Time, err *error) {
	ok := *err == nil || errors.Is(*err, ErrNotFound)
	d.metrics.RecordDBQuery(op, ok, time.Since(start).Seconds())
}

func scanCreature(row scanner) (*model.Creature, error) {
	var (
		c      model.Creature
		nature string
	)
	if err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.SpeciesID,
		&c.Name,
		&c.Nickname,
		&c.Shiny,
		&c.Level,
		&c.XP,
		&c.IVs,
		&nature,
		&c.Ability,
		&c.BaseStats,
		&c.FinalStats,
		&c.CaughtAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Nature = model.Nature(nature)
	return &c, nil
}

// GetCreature 根据 ID 获取个体
func (d *CreatureDAO) GetCreature(ctx context.Context, id string) (_ *model.Creature, err error) {
	defer d.observe("select", time.Now(), &err)

	query, args, err := postgres.QueryBuilder.
		Select(creatureColumns...).
		From(creaturesTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	c, err := scanCreature(d.db.QueryRowMaster(ctx, query, args...))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, ErrNotFound
		}
		d.logger.Error("failed to get creature",
			"creature_id", id,
			"error", err,
		)
		return nil, errors.Wrap(err, "failed to get creature")
	}
	return c, nil
}

// GetCreatures 批量获取个体
func (d *CreatureDAO) GetCreatures(ctx context.Context, ids []string) (_ []*model.Creature, err error) {
	if len(ids) == 0 {
		return nil, nil
	}
	defer d.observe("select", time.Now(), &err)

	query, args, err := postgres.QueryBuilder.
		Select(creatureColumns...).
		From(creaturesTable).
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	rows, err := d.db.Query(ctx, query, args...)
	if err != nil {
		d.logger.Error("failed to list creatures",
			"count", len(ids),
			"error", err,
		)
		return nil, errors.Wrap(err, "failed to list creatures")
	}
	defer rows.Close()

	creatures := make([]*model.Creature, 0, len(ids))
	for rows.Next() {
		c, err := scanCreature(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan creature")
		}
		creatures = append(creatures, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows iteration error")
	}
	return creatures, nil
}

// insertCreature 在调用方的事务中写入个体
func insertCreature(ctx context.Context, q postgres.Querier, c *model.Creature) error {
	query, args, err := buildInsertCreature(c)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, query, args...)
	return err
}

func buildInsertCreature(c *model.Creature) (string, []any, error) {
	return postgres.QueryBuilder.
		Insert(creaturesTable).
		Columns(creatureColumns...).
		Values(
			c.ID,
			c.OwnerID,
			c.SpeciesID,
			c.Name,
			c.Nickname,
			c.Shiny,
			c.Level,
			c.XP,
			c.IVs,
			string(c.Nature),
			c.Ability,
			c.BaseStats,
			c.FinalStats,
			c.CaughtAt,
			c.UpdatedAt,
		).
		ToSql()
}

// UpdateNickname 修改昵称，nickname 为 nil 时清除
func (d *CreatureDAO) UpdateNickname(ctx context.Context, ownerID, id string, nickname *string) (err error) {
	defer d.observe("update", time.Now(), &err)

	query, args, err := postgres.QueryBuilder.
		Update(creaturesTable).
		Set("nickname", nickname).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "owner_id": ownerID}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build query")
	}

	n, err := d.db.Exec(ctx, query, args...)
	if err != nil {
		d.logger.Error("failed to update nickname",
			"creature_id", id,
			"error", err,
		)
		return errors.Wrap(err, "failed to update nickname")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProgress 写入成长结果，(level, xp) 已被其他写入修改时返回 false
func (d *CreatureDAO) UpdateProgress(ctx context.Context, c *model.Creature, prevLevel int, prevXP int64) (_ bool, err error) {
	defer d.observe("update", time.Now(), &err)

	query, args, err := buildUpdateProgress(c, prevLevel, prevXP)
	if err != nil {
		return false, errors.Wrap(err, "failed to build query")
	}

	n, err := d.db.Exec(ctx, query, args...)
	if err != nil {
		d.logger.Error("failed to update creature progress",
			"creature_id", c.ID,
			"error", err,
		)
		return false, errors.Wrap(err, "failed to update creature progress")
	}
	return n == 1, nil
}

func buildUpdateProgress(c *model.Creature, prevLevel int, prevXP int64) (string, []any, error) {
	return postgres.QueryBuilder.
		Update(creaturesTable).
		Set("level", c.Level).
		Set("xp", c.XP).
		Set("final_stats", c.FinalStats).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": c.ID, "level": prevLevel, "xp": prevXP}).
		ToSql()
}
