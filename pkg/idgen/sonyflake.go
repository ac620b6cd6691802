package idgen

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sony/sonyflake"
)

// Epoch Sonyflake 起始时间
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type sonyflakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// NewSonyflake 创建 Sonyflake 生成器，machineID 取值 0-65535，多实例部署时必须互不相同
func NewSonyflake(machineID uint16) (Generator, error) {
	sf := sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: Epoch,
		MachineID: func() (uint16, error) { return machineID, nil },
	})
	if sf == nil {
		return nil, errors.New("failed to create sonyflake generator")
	}
	return &sonyflakeGenerator{sf: sf}, nil
}

func (g *sonyflakeGenerator) NextID() (int64, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return 0, errors.Wrap(err, "failed to generate id")
	}
	return int64(id), nil
}
