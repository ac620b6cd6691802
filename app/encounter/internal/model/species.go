package model

// Tier 刷新稀有度分池
type Tier string

const (
	TierCommon    Tier = "common"
	TierRare      Tier = "rare"
	TierUltraRare Tier = "ultra_rare"
)

// Tiers 按权重表顺序排列的全部分池
var Tiers = []Tier{TierCommon, TierRare, TierUltraRare}

// Ability 物种特性
type Ability struct {
	Name   string `json:"name"`
	Hidden bool   `json:"is_hidden"`
}

// Species 物种模板（只读参考数据）
type Species struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Types       []string  `json:"types"`
	Tier        Tier      `json:"tier"`
	CaptureRate int       `json:"capture_rate"`
	BaseStats   StatBlock `json:"stats"`
	Abilities   []Ability `json:"abilities"`
}

// RegularAbilities 普通特性列表
func (s *Species) RegularAbilities() []string {
	names := make([]string, 0, len(s.Abilities))
	for _, a := range s.Abilities {
		if !a.Hidden {
			names = append(names, a.Name)
		}
	}
	return names
}

// HiddenAbility 隐藏特性，物种最多定义一个
func (s *Species) HiddenAbility() (string, bool) {
	for _, a := range s.Abilities {
		if a.Hidden {
			return a.Name, true
		}
	}
	return "", false
}
