package service

import (
	"math"
	"strings"

	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/rules"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

const maxIV = 31

// curveEpsilon 吸收浮点系数带来的误差，保证整数结果不会被 floor 到下一个整数以下
const curveEpsilon = 1e-9

// StatService 个体生成与成长
type StatService struct {
	rules  rules.Provider
	rng    Roller
	logger logger.Logger
}

// NewStatService 创建个体生成服务
func NewStatService(rp rules.Provider, rng Roller, l logger.Logger) *StatService {
	return &StatService{
		rules:  rp,
		rng:    rng,
		logger: l.Named("service.stat"),
	}
}

// Synthesize 生成指定物种与等级的个体，partner 为当前伙伴，可为 nil
// 返回的个体未设置 ID、OwnerID、Shiny 与时间戳
func (s *StatService) Synthesize(species *model.Species, level int, partner *model.Creature) *model.Creature {
	cfg := s.rules.Current()

	var ivs model.StatBlock
	for _, stat := range model.AllStats {
		ivs.Set(stat, s.rng.Intn(maxIV+1))
	}

	nature := s.rollNature(&cfg.Synthesis, partner)
	c := &model.Creature{
		SpeciesID: species.ID,
		Name:      species.Name,
		Level:     level,
		XP:        MinXPForLevel(&cfg.Curve, level),
		IVs:       ivs,
		Nature:    nature,
		Ability:   s.rollAbility(&cfg.Synthesis, species),
		BaseStats: species.BaseStats,
	}
	c.FinalStats = DeriveStats(c.BaseStats, c.IVs, level, nature)
	return c
}

// rollNature 伙伴带同步特性时按概率继承伙伴性格，否则均匀抽取
func (s *StatService) rollNature(cfg *rules.SynthesisConfig, partner *model.Creature) model.Nature {
	if partner != nil &&
		strings.EqualFold(partner.Ability, cfg.SynchronizeAbility) &&
		partner.Nature.Valid() &&
		s.rng.Float64() < cfg.SynchronizeChance {
		return partner.Nature
	}
	return model.Natures[s.rng.Intn(len(model.Natures))]
}

// rollAbility 隐藏特性 1/HiddenAbilityOdds，否则在普通特性中均匀抽取
func (s *StatService) rollAbility(cfg *rules.SynthesisConfig, species *model.Species) string {
	hidden, hasHidden := species.HiddenAbility()
	if hasHidden && s.rng.Intn(cfg.HiddenAbilityOdds) == 0 {
		return hidden
	}
	regular := species.RegularAbilities()
	if len(regular) > 0 {
		return regular[s.rng.Intn(len(regular))]
	}
	if hasHidden {
		return hidden
	}
	return ""
}

// MinXPForLevel 到达 level 所需的经验
func (s *StatService) MinXPForLevel(level int) int64 {
	return MinXPForLevel(&s.rules.Current().Curve, level)
}

// GainXP 增加经验，一次最多升一级，溢出经验保留到新等级
// 返回是否升级
func (s *StatService) GainXP(c *model.Creature, amount int64) bool {
	curve := &s.rules.Current().Curve
	if amount <= 0 {
		return false
	}
	if c.Level >= curve.MaxLevel {
		c.XP += amount
		return false
	}

	threshold := MinXPForLevel(curve, c.Level+1)
	total := c.XP + amount
	if total < threshold {
		c.XP = total
		return false
	}

	c.Level++
	c.XP = total - threshold
	c.FinalStats = DeriveStats(c.BaseStats, c.IVs, c.Level, c.Nature)

	s.logger.Debug("creature leveled up",
		"creature_id", c.ID,
		"level", c.Level,
		"carry_xp", c.XP,
	)
	return true
}

// MinXPForLevel floor(a·L³ − b·L² + c·L − d)，不小于 0，L ≤ 1 时为 0
func MinXPForLevel(curve *rules.CurveConfig, level int) int64 {
	if level <= 1 {
		return 0
	}
	l := float64(level)
	v := curve.Cubic*l*l*l - curve.Quadratic*l*l + curve.Linear*l - curve.Constant
	if v <= 0 {
		return 0
	}
	return int64(math.Floor(v + curveEpsilon))
}

// DeriveStats 由种族值、个体值、等级与性格计算能力值
func DeriveStats(base, ivs model.StatBlock, level int, nature model.Nature) model.StatBlock {
	var out model.StatBlock
	for _, stat := range model.AllStats {
		scaled := (2*base.Get(stat) + ivs.Get(stat)) * level / 100
		if stat == model.StatHP {
			out.Set(stat, scaled+level+10)
			continue
		}
		out.Set(stat, int(math.Floor(float64(scaled+5)*natureMultiplier(nature, stat))))
	}
	return out
}

// natureMultiplier 性格修正，目前所有性格都是 1
func natureMultiplier(model.Nature, model.Stat) float64 {
	return 1
}
