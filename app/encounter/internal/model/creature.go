package model

import "time"

// NicknameMaxRunes 昵称最大字符数
const NicknameMaxRunes = 20

// Creature 捕获的个体，对应 creatures 表
type Creature struct {
	ID        string  `json:"id" db:"id"`
	OwnerID   string  `json:"owner_id" db:"owner_id"`
	SpeciesID int     `json:"species_id" db:"species_id"`
	Name      string  `json:"name" db:"name"`
	Nickname  *string `json:"nickname" db:"nickname"`
	Shiny     bool    `json:"shiny" db:"shiny"`

	// 成长
	Level int   `json:"level" db:"level"`
	XP    int64 `json:"xp" db:"xp"`

	// 创建后不可变
	IVs       StatBlock `json:"ivs" db:"ivs"`
	Nature    Nature    `json:"nature" db:"nature"`
	Ability   string    `json:"ability" db:"ability"`
	BaseStats StatBlock `json:"base_stats" db:"base_stats"`

	// 只随等级重算
	FinalStats StatBlock `json:"final_stats" db:"final_stats"`

	CaughtAt  time.Time `json:"caught_at" db:"caught_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName 有昵称时返回昵称
func (c *Creature) DisplayName() string {
	if c.Nickname != nil && *c.Nickname != "" {
		return *c.Nickname
	}
	return c.Name
}

// Clone 深拷贝
func (c *Creature) Clone() *Creature {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Nickname != nil {
		nick := *c.Nickname
		cp.Nickname = &nick
	}
	return &cp
}
