package model

// Stat 属性轴
type Stat int

const (
	StatHP Stat = iota
	StatAttack
	StatDefense
	StatSpAttack
	StatSpDefense
	StatSpeed
)

// AllStats 六个属性轴
var AllStats = []Stat{StatHP, StatAttack, StatDefense, StatSpAttack, StatSpDefense, StatSpeed}

// String 属性轴名称，与存储中的 JSON 键一致
func (s Stat) String() string {
	switch s {
	case StatHP:
		return "hp"
	case StatAttack:
		return "attack"
	case StatDefense:
		return "defense"
	case StatSpAttack:
		return "special-attack"
	case StatSpDefense:
		return "special-defense"
	case StatSpeed:
		return "speed"
	default:
		return "unknown"
	}
}

// StatBlock 六轴数值，用于种族值、个体值与最终能力值
type StatBlock struct {
	HP        int `json:"hp"`
	Attack    int `json:"attack"`
	Defense   int `json:"defense"`
	SpAttack  int `json:"special-attack"`
	SpDefense int `json:"special-defense"`
	Speed     int `json:"speed"`
}

// Get 读取指定轴
func (b StatBlock) Get(s Stat) int {
	switch s {
	case StatHP:
		return b.HP
	case StatAttack:
		return b.Attack
	case StatDefense:
		return b.Defense
	case StatSpAttack:
		return b.SpAttack
	case StatSpDefense:
		return b.SpDefense
	case StatSpeed:
		return b.Speed
	default:
		return 0
	}
}

// Set 写入指定轴
func (b *StatBlock) Set(s Stat, v int) {
	switch s {
	case StatHP:
		b.HP = v
	case StatAttack:
		b.Attack = v
	case StatDefense:
		b.Defense = v
	case StatSpAttack:
		b.SpAttack = v
	case StatSpDefense:
		b.SpDefense = v
	case StatSpeed:
		b.Speed = v
	}
}

// Nature 性格，共 25 种
type Nature string

// Natures 全部性格
var Natures = []Nature{
	"hardy", "lonely", "brave", "adamant", "naughty",
	"bold", "docile", "relaxed", "impish", "lax",
	"timid", "hasty", "serious", "jolly", "naive",
	"modest", "mild", "quiet", "bashful", "rash",
	"calm", "gentle", "sassy", "careful", "quirky",
}

// Valid 是否为合法性格
func (n Nature) Valid() bool {
	for _, v := range Natures {
		if v == n {
			return true
		}
	}
	return false
}
