package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStartAdventure 测试开局账户、道具与初始伙伴
func TestStartAdventure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	tr, starter, err := env.trainer.StartAdventure(ctx, "u1", 1, 4)
	require.NoError(t, err)
	assert.Equal(t, "000001", starter.ID)
	assert.Equal(t, 4, starter.SpeciesID)
	assert.Equal(t, "charmander", starter.Name)
	assert.Equal(t, 5, starter.Level)
	assert.Equal(t, MinXPForLevel(&env.rules.Curve, 5), starter.XP)
	assert.Equal(t, "u1", starter.OwnerID)
	assert.Equal(t, []string{starter.ID}, tr.Owned)

	got := env.read(t, "u1")
	assert.Equal(t, int64(5000), got.Currency)
	assert.Equal(t, int64(25), got.DeviceCount(model.DevicePokeball))
	require.NotNil(t, got.PartnerID)
	assert.Equal(t, starter.ID, *got.PartnerID)

	stored, err := env.creatures.Get(ctx, starter.ID)
	require.NoError(t, err)
	assert.Equal(t, starter.IVs, stored.IVs)

	_, _, err = env.trainer.StartAdventure(ctx, "u1", 1, 1)
	assert.ErrorIs(t, err, ErrAccountExists)
}

// TestStartAdventureInvalidStarter 世代或物种不在配置中
func TestStartAdventureInvalidStarter(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	tests := []struct {
		name       string
		generation int
		species    int
		want       error
	}{
		{"unknown generation", 42, 1, ErrInvalidStarter},
		{"not a starter", 1, 25, ErrInvalidStarter},
		{"missing from catalog", 2, 152, ErrSpeciesLookup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.trainer.StartAdventure(ctx, "u-"+tt.name, tt.generation, tt.species)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := env.trainer.Get(ctx, "u-not a starter")
	assert.ErrorIs(t, err, ErrNoAccount)
}

// TestPartner 测试设置与清除伙伴
func TestPartner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, starter, err := env.trainer.StartAdventure(ctx, "u1", 1, 7)
	require.NoError(t, err)
	_, _, err = env.trainer.StartAdventure(ctx, "u2", 1, 1)
	require.NoError(t, err)

	require.NoError(t, env.trainer.ClearPartner(ctx, "u1"))
	assert.Nil(t, env.read(t, "u1").PartnerID)

	require.NoError(t, env.trainer.SetPartner(ctx, "u1", starter.ID))
	assert.Equal(t, starter.ID, *env.read(t, "u1").PartnerID)

	// 别人的个体
	err = env.trainer.SetPartner(ctx, "u1", "000002")
	assert.ErrorIs(t, err, ErrNotOwned)

	assert.ErrorIs(t, env.trainer.SetPartner(ctx, "ghost", starter.ID), ErrNoAccount)
}

// TestSetNickname 测试昵称校验
func TestSetNickname(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, starter, err := env.trainer.StartAdventure(ctx, "u1", 1, 1)
	require.NoError(t, err)

	require.NoError(t, env.trainer.SetNickname(ctx, "u1", starter.ID, "  Bulby  "))
	c, err := env.creatures.Get(ctx, starter.ID)
	require.NoError(t, err)
	require.NotNil(t, c.Nickname)
	assert.Equal(t, "Bulby", *c.Nickname)
	assert.Equal(t, "Bulby", c.DisplayName())

	// 20 个字符以内，按字符而非字节计数
	require.NoError(t, env.trainer.SetNickname(ctx, "u1", starter.ID, strings.Repeat("种", 20)))
	err = env.trainer.SetNickname(ctx, "u1", starter.ID, strings.Repeat("a", 21))
	assert.ErrorIs(t, err, ErrInvalidNickname)

	require.NoError(t, env.trainer.SetNickname(ctx, "u1", starter.ID, "   "))
	c, err = env.creatures.Get(ctx, starter.ID)
	require.NoError(t, err)
	assert.Nil(t, c.Nickname)
	assert.Equal(t, "bulbasaur", c.DisplayName())

	err = env.trainer.SetNickname(ctx, "u2", starter.ID, "thief")
	assert.ErrorIs(t, err, ErrNotOwned)
}

// TestListCreatures 测试收藏分页
func TestListCreatures(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t, "u1", 0, nil)
	for i := 1; i <= 7; i++ {
		c := &model.Creature{ID: fmt.Sprintf("c%02d", i), OwnerID: "u1", SpeciesID: 25, Name: "pikachu", Level: i}
		require.NoError(t, env.store.SettleCatch(ctx, "u1", c, 0))
	}

	tests := []struct {
		page, size int
		want       []string
	}{
		{1, 3, []string{"c01", "c02", "c03"}},
		{3, 3, []string{"c07"}},
		{4, 3, []string{}},
		{0, 0, []string{"c01", "c02", "c03", "c04", "c05", "c06", "c07"}},
		{math.MaxInt / 10, 20, []string{}},
		{math.MaxInt, 100, []string{}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page%d_size%d", tt.page, tt.size), func(t *testing.T) {
			env.store.ResetCalls()
			page, err := env.trainer.ListCreatures(ctx, "u1", tt.page, tt.size)
			require.NoError(t, err)
			assert.Equal(t, 7, page.Total)

			ids := make([]string, 0, len(page.Creatures))
			for _, c := range page.Creatures {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.want, ids)
			assert.LessOrEqual(t, env.store.Calls("GetCreatures"), 1)
		})
	}

	_, err := env.trainer.ListCreatures(ctx, "ghost", 1, 10)
	assert.ErrorIs(t, err, ErrNoAccount)
}

// TestUpdateSetting 测试偏好修改与校验
func TestUpdateSetting(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t, "u1", 0, nil)

	tests := []struct {
		name  string
		key   string
		value string
		err   error
		want  string
	}{
		{"default before update", "", "", ErrInvalidSetting, "off"},
		{"canonical key", "environment_rendering", "static", nil, "static"},
		{"alias and case", "Background", "ANIMATED", nil, "animated"},
		{"invalid value keeps previous", "environment", "gif", ErrInvalidSetting, "animated"},
		{"unknown key", "theme", "dark", ErrInvalidSetting, "animated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := env.trainer.UpdateSetting(ctx, "u1", tt.key, tt.value)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, tr.Settings[model.SettingEnvironmentRendering])
			}
			assert.Equal(t, tt.want, env.read(t, "u1").Setting(model.SettingEnvironmentRendering))
		})
	}

	_, err := env.trainer.UpdateSetting(ctx, "ghost", "env", "off")
	assert.ErrorIs(t, err, ErrNoAccount)
}
