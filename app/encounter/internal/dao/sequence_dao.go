package dao

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/metrics"
	"github.com/lk2023060901/xdooria-encounter/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

// CreatureSequence 个体 ID 使用的序列名
const CreatureSequence = "creature"

// SequenceDAO id_sequences 表的发号器
type SequenceDAO struct {
	db      *postgres.Client
	logger  logger.Logger
	metrics *metrics.EncounterMetrics
}

var _ SequenceStore = (*SequenceDAO)(nil)

// NewSequenceDAO 创建发号器 DAO
func NewSequenceDAO(db *postgres.Client, l logger.Logger, m *metrics.EncounterMetrics) *SequenceDAO {
	return &SequenceDAO{
		db:      db,
		logger:  l.Named("dao.sequence"),
		metrics: m,
	}
}

// NextValue 单条 upsert 完成自增，序列不存在时从 1 开始
func (d *SequenceDAO) NextValue(ctx context.Context, name string) (int64, error) {
	start := time.Now()

	query, args, err := buildNextValue(name)
	if err != nil {
		return 0, errors.Wrap(err, "failed to build query")
	}

	var value int64
	err = d.db.QueryRowMaster(ctx, query, args...).Scan(&value)
	d.metrics.RecordDBQuery("upsert", err == nil, time.Since(start).Seconds())
	if err != nil {
		d.logger.Error("failed to advance sequence",
			"sequence", name,
			"error", err,
		)
		return 0, errors.Wrapf(err, "failed to advance sequence %s", name)
	}
	return value, nil
}

func buildNextValue(name string) (string, []any, error) {
	return postgres.QueryBuilder.
		Insert("id_sequences").
		Columns("name", "counter_value").
		Values(name, 1).
		Suffix("ON CONFLICT (name) DO UPDATE SET counter_value = id_sequences.counter_value + 1 RETURNING counter_value").
		ToSql()
}
