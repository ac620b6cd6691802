// Package catalog 物种参考数据的只读查询
package catalog

import (
	"encoding/json"
	"os"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
)

var (
	// ErrDuplicateSpecies 物种 ID 或名称重复
	ErrDuplicateSpecies = errors.New("catalog: duplicate species")

	// ErrInvalidSpecies 物种数据不合法
	ErrInvalidSpecies = errors.New("catalog: invalid species")
)

// Catalog 物种查询接口，返回的物种为只读
type Catalog interface {
	ByID(id int) (*model.Species, bool)
	ByName(name string) (*model.Species, bool)
	// Pool 返回某个稀有度分池的物种 ID，按 ID 升序
	Pool(tier model.Tier) []int
	Len() int
}

// Config 物种数据配置
type Config struct {
	Path string `mapstructure:"path" json:"path" yaml:"path"`
}

// Static 内存中的物种表
type Static struct {
	byID   map[int]*model.Species
	byName map[string]*model.Species
	pools  map[model.Tier][]int
}

var _ Catalog = (*Static)(nil)

// New 由物种列表构建目录
func New(species []*model.Species) (*Static, error) {
	c := &Static{
		byID:   make(map[int]*model.Species, len(species)),
		byName: make(map[string]*model.Species, len(species)),
		pools:  make(map[model.Tier][]int, len(model.Tiers)),
	}

	for _, s := range species {
		if err := validateSpecies(s); err != nil {
			return nil, err
		}
		name := strings.ToLower(s.Name)
		if _, ok := c.byID[s.ID]; ok {
			return nil, errors.Wrapf(ErrDuplicateSpecies, "id %d", s.ID)
		}
		if _, ok := c.byName[name]; ok {
			return nil, errors.Wrapf(ErrDuplicateSpecies, "name %q", s.Name)
		}
		c.byID[s.ID] = s
		c.byName[name] = s
		c.pools[s.Tier] = append(c.pools[s.Tier], s.ID)
	}

	for tier := range c.pools {
		slices.Sort(c.pools[tier])
	}
	return c, nil
}

// LoadFile 从 JSON 文件加载物种表
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read species file %s", path)
	}

	var species []*model.Species
	if err := json.Unmarshal(data, &species); err != nil {
		return nil, errors.Wrapf(err, "failed to decode species file %s", path)
	}
	return New(species)
}

func validateSpecies(s *model.Species) error {
	switch {
	case s == nil:
		return errors.Wrap(ErrInvalidSpecies, "nil entry")
	case s.ID <= 0:
		return errors.Wrapf(ErrInvalidSpecies, "id %d must be positive", s.ID)
	case strings.TrimSpace(s.Name) == "":
		return errors.Wrapf(ErrInvalidSpecies, "id %d has no name", s.ID)
	case s.CaptureRate < 1 || s.CaptureRate > 255:
		return errors.Wrapf(ErrInvalidSpecies, "id %d capture rate %d out of [1, 255]", s.ID, s.CaptureRate)
	}
	if !slices.Contains(model.Tiers, s.Tier) {
		return errors.Wrapf(ErrInvalidSpecies, "id %d has unknown tier %q", s.ID, s.Tier)
	}
	return nil
}

func (c *Static) ByID(id int) (*model.Species, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// ByName 名称查询，忽略大小写
func (c *Static) ByName(name string) (*model.Species, bool) {
	s, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

func (c *Static) Pool(tier model.Tier) []int {
	return slices.Clone(c.pools[tier])
}

func (c *Static) Len() int {
	return len(c.byID)
}
