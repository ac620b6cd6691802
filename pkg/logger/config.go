package logger

// Level 日志等级
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Format 日志格式
type Format string

const (
	JSONFormat    Format = "json"
	ConsoleFormat Format = "console"
)

// RotationType 轮换类型
type RotationType string

const (
	RotationBySize RotationType = "size"
	RotationByTime RotationType = "time"
)

// Config 日志配置
type Config struct {
	Level  Level  `mapstructure:"level"`
	Format Format `mapstructure:"format"`

	EnableConsole bool   `mapstructure:"enable_console"`
	EnableFile    bool   `mapstructure:"enable_file"`
	OutputPath    string `mapstructure:"output_path"`

	// 时间格式，为空时使用 ISO8601
	TimeFormat string `mapstructure:"time_format"`

	Rotation RotationConfig `mapstructure:"rotation"`

	EnableStacktrace bool  `mapstructure:"enable_stacktrace"`
	StacktraceLevel  Level `mapstructure:"stacktrace_level"`

	// 采样：每秒前 SamplingInitial 条全部记录，之后每 SamplingThereafter 条记录 1 条
	EnableSampling     bool `mapstructure:"enable_sampling"`
	SamplingInitial    int  `mapstructure:"sampling_initial"`
	SamplingThereafter int  `mapstructure:"sampling_thereafter"`

	Development bool `mapstructure:"development"`

	GlobalFields map[string]interface{} `mapstructure:"global_fields"`

	// ContextExtractor 从 context 中提取 trainer_id / encounter_id 等字段，不参与配置文件解析
	ContextExtractor ContextFieldExtractor `mapstructure:"-"`
}

// RotationConfig 轮换配置
type RotationConfig struct {
	Type RotationType `mapstructure:"type"`

	// 按大小轮换 (lumberjack)
	MaxSize    int  `mapstructure:"max_size"`    // MB
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`     // 天
	Compress   bool `mapstructure:"compress"`

	// 按时间轮换 (file-rotatelogs)
	RotationTime    string `mapstructure:"rotation_time"`    // 1h, 24h
	MaxAgeTime      string `mapstructure:"max_age_time"`     // 168h
	RotationPattern string `mapstructure:"rotation_pattern"` // .%Y%m%d
}

// DefaultConfig 默认配置，仅输出到控制台
func DefaultConfig() *Config {
	return &Config{
		Level:         InfoLevel,
		Format:        ConsoleFormat,
		EnableConsole: true,
		TimeFormat:    "2006-01-02 15:04:05",
		Rotation: RotationConfig{
			Type:            RotationBySize,
			MaxSize:         100,
			MaxBackups:      5,
			MaxAge:          7,
			Compress:        true,
			RotationTime:    "24h",
			MaxAgeTime:      "168h",
			RotationPattern: ".%Y%m%d",
		},
		EnableStacktrace:   true,
		StacktraceLevel:    ErrorLevel,
		SamplingInitial:    100,
		SamplingThereafter: 100,
		GlobalFields:       make(map[string]interface{}),
		ContextExtractor:   DefaultContextExtractor,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.EnableFile && c.OutputPath == "" {
		return ErrInvalidOutputPath
	}
	if !c.EnableConsole && !c.EnableFile {
		return ErrNoOutputEnabled
	}
	switch c.Level {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
	default:
		return ErrInvalidLevel
	}
	return nil
}
