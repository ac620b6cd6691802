package service

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/repository"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

// LedgerService 账本服务，所有变更以增量形式在存储端执行
type LedgerService struct {
	trainers repository.TrainerRepository
	logger   logger.Logger
}

// NewLedgerService 创建账本服务
func NewLedgerService(trainers repository.TrainerRepository, l logger.Logger) *LedgerService {
	return &LedgerService{
		trainers: trainers,
		logger:   l.Named("service.ledger"),
	}
}

// Read 读取账户快照
func (s *LedgerService) Read(ctx context.Context, trainerID string) (*model.Trainer, error) {
	t, err := s.trainers.Get(ctx, trainerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoAccount
		}
		return nil, err
	}
	return t, nil
}

// AdjustCurrency 调整货币
func (s *LedgerService) AdjustCurrency(ctx context.Context, trainerID string, delta int64) error {
	return s.Apply(ctx, trainerID, model.LedgerDelta{Currency: delta})
}

// AdjustDeviceCount 调整单个道具数量
func (s *LedgerService) AdjustDeviceCount(ctx context.Context, trainerID string, device model.DeviceType, delta int64) error {
	if !device.Valid() {
		return errors.Wrapf(ErrInvalidDevice, "device %q", device)
	}
	return s.Apply(ctx, trainerID, model.LedgerDelta{
		Devices: map[model.DeviceType]int64{device: delta},
	})
}

// Apply 在一个事务内应用多字段增量，任一字段不足时整体不生效
func (s *LedgerService) Apply(ctx context.Context, trainerID string, delta model.LedgerDelta) error {
	if delta.IsZero() {
		return nil
	}

	err := s.trainers.ApplyDelta(ctx, trainerID, delta)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		return ErrNoAccount
	case errors.IsAny(err, ErrInsufficientFunds, ErrInsufficientDevices):
		return err
	default:
		s.logger.ErrorContext(ctx, "failed to apply ledger delta",
			"trainer_id", trainerID,
			"currency", delta.Currency,
			"error", err,
		)
		return errors.Wrap(err, "failed to apply ledger delta")
	}

	s.logger.DebugContext(ctx, "ledger delta applied",
		"trainer_id", trainerID,
		"currency", delta.Currency,
		"devices", delta.Devices,
	)
	return nil
}
