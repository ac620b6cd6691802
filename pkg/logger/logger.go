package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lk2023060901/xdooria-encounter/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Logger = (*BaseLogger)(nil)

// BaseLogger 基于 zap 的日志记录器实现
type BaseLogger struct {
	*zap.Logger
	config           *Config
	name             string
	globalFields     map[string]interface{}
	hooks            []Hook
	writers          []io.Writer
	contextExtractor ContextFieldExtractor
}

// New 创建新的 BaseLogger，cfg 可以只给出部分字段
func New(cfg *Config, opts ...Option) (*BaseLogger, error) {
	mergedConfig, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	l := &BaseLogger{
		config:           mergedConfig,
		globalFields:     make(map[string]interface{}),
		contextExtractor: mergedConfig.ContextExtractor,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.contextExtractor == nil {
		l.contextExtractor = DefaultContextExtractor
	}

	if err := mergedConfig.Validate(); err != nil {
		// 通过 WithOutput 注入了输出时，允许关闭控制台与文件
		if !errors.Is(err, ErrNoOutputEnabled) || len(l.writers) == 0 {
			return nil, err
		}
	}

	for k, v := range mergedConfig.GlobalFields {
		l.globalFields[k] = v
	}

	zapLogger, err := l.build()
	if err != nil {
		return nil, err
	}
	l.Logger = zapLogger
	return l, nil
}

func (l *BaseLogger) build() (*zap.Logger, error) {
	encoderConfig := l.buildEncoderConfig()

	var encoder zapcore.Encoder
	if l.config.Format == ConsoleFormat {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	writers := make([]zapcore.WriteSyncer, 0, 2+len(l.writers))
	if l.config.EnableConsole {
		writers = append(writers, zapcore.AddSync(os.Stdout))
	}
	if l.config.EnableFile {
		fileWriter, err := NewRotationWriter(&l.config.Rotation, l.config.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create rotation writer: %w", err)
		}
		writers = append(writers, zapcore.AddSync(fileWriter))
	}
	for _, w := range l.writers {
		writers = append(writers, zapcore.AddSync(w))
	}

	var core zapcore.Core = zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(writers...), parseLevel(l.config.Level))
	if len(l.hooks) > 0 {
		core = NewHookedCore(core, l.hooks...)
	}
	if l.config.EnableSampling {
		core = zapcore.NewSamplerWithOptions(core, 1, l.config.SamplingInitial, l.config.SamplingThereafter)
	}

	options := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if l.config.EnableStacktrace {
		options = append(options, zap.AddStacktrace(parseLevel(l.config.StacktraceLevel)))
	}
	if l.config.Development {
		options = append(options, zap.Development())
	}

	zapLogger := zap.New(core, options...)
	if len(l.globalFields) > 0 {
		fields := make([]zap.Field, 0, len(l.globalFields))
		for k, v := range l.globalFields {
			fields = append(fields, zap.Any(k, v))
		}
		zapLogger = zapLogger.With(fields...)
	}
	if l.name != "" {
		zapLogger = zapLogger.Named(l.name)
	}
	return zapLogger, nil
}

func (l *BaseLogger) buildEncoderConfig() zapcore.EncoderConfig {
	ec := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
	}
	if l.config.TimeFormat != "" {
		ec.EncodeTime = zapcore.TimeEncoderOfLayout(l.config.TimeFormat)
	}
	if l.config.Development && l.config.Format == ConsoleFormat {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return ec
}

func parseLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Debug 记录 debug 级别日志
func (l *BaseLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.Logger.Debug(msg, toZapFields(keysAndValues...)...)
}

// Info 记录 info 级别日志
func (l *BaseLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.Info(msg, toZapFields(keysAndValues...)...)
}

// Warn 记录 warn 级别日志
func (l *BaseLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.Logger.Warn(msg, toZapFields(keysAndValues...)...)
}

// Error 记录 error 级别日志
func (l *BaseLogger) Error(msg string, keysAndValues ...interface{}) {
	l.Logger.Error(msg, toZapFields(keysAndValues...)...)
}

// DebugContext 记录 debug 级别日志，并从 context 中提取字段
func (l *BaseLogger) DebugContext(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.Logger.Debug(msg, l.withContext(ctx, keysAndValues)...)
}

// InfoContext 记录 info 级别日志，并从 context 中提取字段
func (l *BaseLogger) InfoContext(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.Logger.Info(msg, l.withContext(ctx, keysAndValues)...)
}

// WarnContext 记录 warn 级别日志，并从 context 中提取字段
func (l *BaseLogger) WarnContext(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.Logger.Warn(msg, l.withContext(ctx, keysAndValues)...)
}

// ErrorContext 记录 error 级别日志，并从 context 中提取字段
func (l *BaseLogger) ErrorContext(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.Logger.Error(msg, l.withContext(ctx, keysAndValues)...)
}

func (l *BaseLogger) withContext(ctx context.Context, keysAndValues []interface{}) []zap.Field {
	return append(l.contextExtractor(ctx), toZapFields(keysAndValues...)...)
}

// Named 创建具名 logger
func (l *BaseLogger) Named(name string) Logger {
	return l.derive(l.Logger.Named(name), name)
}

// WithFields 添加字段
func (l *BaseLogger) WithFields(keysAndValues ...interface{}) Logger {
	fields := toZapFields(keysAndValues...)
	if len(fields) == 0 {
		return l
	}
	return l.derive(l.Logger.With(fields...), l.name)
}

func (l *BaseLogger) derive(z *zap.Logger, name string) *BaseLogger {
	return &BaseLogger{
		Logger:           z,
		config:           l.config,
		name:             name,
		globalFields:     l.globalFields,
		hooks:            l.hooks,
		writers:          l.writers,
		contextExtractor: l.contextExtractor,
	}
}

// Sync 同步日志
func (l *BaseLogger) Sync() error {
	return l.Logger.Sync()
}

// toZapFields 将 key-value 对转换为 zap.Field，也接受直接传入的 zap.Field
func toZapFields(keysAndValues ...interface{}) []zap.Field {
	if len(keysAndValues) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); {
		if f, ok := keysAndValues[i].(zap.Field); ok {
			fields = append(fields, f)
			i++
			continue
		}
		key, ok := keysAndValues[i].(string)
		if !ok || i+1 >= len(keysAndValues) {
			fields = append(fields, zap.Any("!BADKEY", keysAndValues[i]))
			i++
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		i += 2
	}
	return fields
}
