package logger

import (
	"fmt"
	"io"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewRotationWriter 按配置创建文件 writer，size 使用 lumberjack，time 使用 file-rotatelogs
func NewRotationWriter(cfg *RotationConfig, outputPath string) (io.Writer, error) {
	if cfg.Type == RotationByTime {
		return newTimeRotationWriter(cfg, outputPath)
	}
	return &lumberjack.Logger{
		Filename:   outputPath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, nil
}

func newTimeRotationWriter(cfg *RotationConfig, outputPath string) (io.Writer, error) {
	rotationTime, err := parseDurationOr(cfg.RotationTime, 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid rotation_time: %w", err)
	}
	maxAge, err := parseDurationOr(cfg.MaxAgeTime, 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid max_age_time: %w", err)
	}

	pattern := cfg.RotationPattern
	if pattern == "" {
		pattern = ".%Y%m%d%H"
	}

	return rotatelogs.New(
		outputPath+pattern,
		rotatelogs.WithLinkName(outputPath),
		rotatelogs.WithRotationTime(rotationTime),
		rotatelogs.WithMaxAge(maxAge),
	)
}

func parseDurationOr(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}
