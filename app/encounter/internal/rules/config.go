// Package rules 可热更新的玩法数值
package rules

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/pkg/config"
)

// ErrInvalidRules 玩法数值不合法
var ErrInvalidRules = errors.New("rules: invalid config")

// Config 玩法数值全集
type Config struct {
	Spawn      SpawnConfig      `mapstructure:"spawn" json:"spawn" yaml:"spawn"`
	Capture    CaptureConfig    `mapstructure:"capture" json:"capture" yaml:"capture"`
	Synthesis  SynthesisConfig  `mapstructure:"synthesis" json:"synthesis" yaml:"synthesis"`
	Curve      CurveConfig      `mapstructure:"curve" json:"curve" yaml:"curve"`
	StartKit   StartKitConfig   `mapstructure:"start_kit" json:"start_kit" yaml:"start_kit"`
	Shop       ShopConfig       `mapstructure:"shop" json:"shop" yaml:"shop"`
	Daily      DailyConfig      `mapstructure:"daily" json:"daily" yaml:"daily"`
	Experience ExperienceConfig `mapstructure:"experience" json:"experience" yaml:"experience"`
}

// TierWeights 三个稀有度分池的权重，只要求相对比例
type TierWeights struct {
	Common    float64 `mapstructure:"common" json:"common" yaml:"common" validate:"gte=0"`
	Rare      float64 `mapstructure:"rare" json:"rare" yaml:"rare" validate:"gte=0"`
	UltraRare float64 `mapstructure:"ultra_rare" json:"ultra_rare" yaml:"ultra_rare" validate:"gte=0"`
}

// Of 指定分池的权重
func (w TierWeights) Of(tier model.Tier) float64 {
	switch tier {
	case model.TierCommon:
		return w.Common
	case model.TierRare:
		return w.Rare
	case model.TierUltraRare:
		return w.UltraRare
	default:
		return 0
	}
}

// Total 权重之和
func (w TierWeights) Total() float64 {
	return w.Common + w.Rare + w.UltraRare
}

// SpawnConfig 野生刷新
type SpawnConfig struct {
	Weights          TierWeights `mapstructure:"weights" json:"weights" yaml:"weights"`
	ShinyProbability float64     `mapstructure:"shiny_probability" json:"shiny_probability" yaml:"shiny_probability" validate:"gte=0,lte=1"`
	MinLevel         int         `mapstructure:"min_level" json:"min_level" yaml:"min_level" validate:"gte=1"`
	MaxLevel         int         `mapstructure:"max_level" json:"max_level" yaml:"max_level" validate:"gtefield=MinLevel"`
}

// CaptureConfig 捕获会话
type CaptureConfig struct {
	// Timeout 会话无操作超时
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	// FleeChance 未捕获时逃跑的百分比概率，取值 [0, 100]
	FleeChance int `mapstructure:"flee_chance" json:"flee_chance" yaml:"flee_chance" validate:"gte=0,lte=100"`
	// CatchRange 捕获判定的随机区间上界，判定值在 [0, CatchRange] 内均匀分布
	CatchRange  int                          `mapstructure:"catch_range" json:"catch_range" yaml:"catch_range" validate:"gt=0"`
	Multipliers map[model.DeviceType]float64 `mapstructure:"multipliers" json:"multipliers" yaml:"multipliers" validate:"required,dive,gte=1"`
	RewardMin   int64                        `mapstructure:"reward_min" json:"reward_min" yaml:"reward_min" validate:"gte=0"`
	RewardMax   int64                        `mapstructure:"reward_max" json:"reward_max" yaml:"reward_max" validate:"gtefield=RewardMin"`
}

// SynthesisConfig 个体生成
type SynthesisConfig struct {
	SynchronizeAbility string  `mapstructure:"synchronize_ability" json:"synchronize_ability" yaml:"synchronize_ability" validate:"required"`
	SynchronizeChance  float64 `mapstructure:"synchronize_chance" json:"synchronize_chance" yaml:"synchronize_chance" validate:"gte=0,lte=1"`
	// HiddenAbilityOdds 隐藏特性的出现概率为 1/HiddenAbilityOdds
	HiddenAbilityOdds int `mapstructure:"hidden_ability_odds" json:"hidden_ability_odds" yaml:"hidden_ability_odds" validate:"gte=1"`
}

// CurveConfig 经验曲线 Cubic·L³ − Quadratic·L² + Linear·L − Constant
type CurveConfig struct {
	Cubic     float64 `mapstructure:"cubic" json:"cubic" yaml:"cubic"`
	Quadratic float64 `mapstructure:"quadratic" json:"quadratic" yaml:"quadratic"`
	Linear    float64 `mapstructure:"linear" json:"linear" yaml:"linear"`
	Constant  float64 `mapstructure:"constant" json:"constant" yaml:"constant"`
	MaxLevel  int     `mapstructure:"max_level" json:"max_level" yaml:"max_level" validate:"gte=2"`
}

// StartKitConfig 开局物资
type StartKitConfig struct {
	Currency     int64                      `mapstructure:"currency" json:"currency" yaml:"currency" validate:"gte=0"`
	Devices      map[model.DeviceType]int64 `mapstructure:"devices" json:"devices" yaml:"devices" validate:"dive,gte=0"`
	StarterLevel int                        `mapstructure:"starter_level" json:"starter_level" yaml:"starter_level" validate:"gte=1"`
	// Starters 世代 -> 可选初始物种
	Starters map[int][]int `mapstructure:"starters" json:"starters" yaml:"starters" validate:"required,dive,min=1"`
}

// ShopConfig 商店
type ShopConfig struct {
	Prices      map[model.DeviceType]int64 `mapstructure:"prices" json:"prices" yaml:"prices" validate:"required,dive,gt=0"`
	MaxQuantity int                        `mapstructure:"max_quantity" json:"max_quantity" yaml:"max_quantity" validate:"gte=1"`
}

// DailyConfig 每日奖励
type DailyConfig struct {
	Cooldown       time.Duration `mapstructure:"cooldown" json:"cooldown" yaml:"cooldown" validate:"gt=0"`
	StreakWindow   time.Duration `mapstructure:"streak_window" json:"streak_window" yaml:"streak_window" validate:"gtefield=Cooldown"`
	BaseReward     int64         `mapstructure:"base_reward" json:"base_reward" yaml:"base_reward" validate:"gte=0"`
	StreakBonus    int64         `mapstructure:"streak_bonus" json:"streak_bonus" yaml:"streak_bonus" validate:"gte=0"`
	MaxStreakBonus int64         `mapstructure:"max_streak_bonus" json:"max_streak_bonus" yaml:"max_streak_bonus" validate:"gte=0"`
}

// Reward 连续第 streak 天的奖励
func (d DailyConfig) Reward(streak int) int64 {
	return d.BaseReward + min(int64(streak)*d.StreakBonus, d.MaxStreakBonus)
}

// ExperienceConfig 被动经验
type ExperienceConfig struct {
	PerMessage int64 `mapstructure:"per_message" json:"per_message" yaml:"per_message" validate:"gte=0"`
	// MaxRetries 乐观写冲突时的重试次数
	MaxRetries int `mapstructure:"max_retries" json:"max_retries" yaml:"max_retries" validate:"gte=0"`
	// MessageCooldown 同一训练师两次消息经验的最小间隔
	MessageCooldown time.Duration `mapstructure:"message_cooldown" json:"message_cooldown" yaml:"message_cooldown" validate:"gte=0"`
}

// Default 默认数值
func Default() *Config {
	return &Config{
		Spawn: SpawnConfig{
			Weights:          TierWeights{Common: 98.95, Rare: 1.0, UltraRare: 0.05},
			ShinyProbability: 1.0 / 4096,
			MinLevel:         3,
			MaxLevel:         20,
		},
		Capture: CaptureConfig{
			Timeout:    60 * time.Second,
			FleeChance: 20,
			CatchRange: 255,
			Multipliers: map[model.DeviceType]float64{
				model.DevicePokeball:   1,
				model.DeviceGreatball:  1.5,
				model.DeviceUltraball:  2,
				model.DeviceMasterball: 255,
			},
			RewardMin: 50,
			RewardMax: 150,
		},
		Synthesis: SynthesisConfig{
			SynchronizeAbility: "synchronize",
			SynchronizeChance:  0.5,
			HiddenAbilityOdds:  150,
		},
		Curve: CurveConfig{
			Cubic:     6.0 / 5.0,
			Quadratic: 15,
			Linear:    100,
			Constant:  140,
			MaxLevel:  100,
		},
		StartKit: StartKitConfig{
			Currency:     5000,
			Devices:      map[model.DeviceType]int64{model.DevicePokeball: 25},
			StarterLevel: 5,
			Starters: map[int][]int{
				1: {1, 4, 7},
				2: {152, 155, 158},
				3: {252, 255, 258},
				4: {387, 390, 393},
				5: {495, 498, 501},
				6: {650, 653, 656},
				7: {722, 725, 728},
				8: {810, 813, 816},
				9: {906, 909, 912},
			},
		},
		Shop: ShopConfig{
			Prices: map[model.DeviceType]int64{
				model.DevicePokeball:   200,
				model.DeviceGreatball:  600,
				model.DeviceUltraball:  1200,
				model.DeviceMasterball: 50000,
			},
			MaxQuantity: 99,
		},
		Daily: DailyConfig{
			Cooldown:       24 * time.Hour,
			StreakWindow:   48 * time.Hour,
			BaseReward:     1000,
			StreakBonus:    100,
			MaxStreakBonus: 1000,
		},
		Experience: ExperienceConfig{
			PerMessage:      10,
			MaxRetries:      3,
			MessageCooldown: 2 * time.Second,
		},
	}
}

// Multiplier 道具倍率，未配置的道具返回 false
func (c *CaptureConfig) Multiplier(d model.DeviceType) (float64, bool) {
	m, ok := c.Multipliers[d]
	return m, ok
}

var validator = config.NewValidator()

// Validate 校验标签规则与跨字段约束
func (c *Config) Validate() error {
	if err := validator.Validate(c); err != nil {
		return errors.Mark(err, ErrInvalidRules)
	}
	if c.Spawn.Weights.Total() <= 0 {
		return errors.Wrap(ErrInvalidRules, "spawn weights must not all be zero")
	}
	for d := range c.Capture.Multipliers {
		if !d.Valid() {
			return errors.Wrapf(ErrInvalidRules, "unknown device %q in capture multipliers", d)
		}
	}
	for d := range c.Shop.Prices {
		if !d.Valid() {
			return errors.Wrapf(ErrInvalidRules, "unknown device %q in shop prices", d)
		}
	}
	if c.Curve.MaxLevel < c.Spawn.MaxLevel {
		return errors.Wrapf(ErrInvalidRules, "curve max level %d below spawn max level %d", c.Curve.MaxLevel, c.Spawn.MaxLevel)
	}
	return nil
}
