package model

import "strings"

// 训练师偏好项
const (
	SettingEnvironmentRendering = "environment_rendering"
)

// settingDef 偏好项的取值范围，第一个值为默认值
type settingDef struct {
	values  []string
	aliases []string
}

var settingDefs = map[string]settingDef{
	SettingEnvironmentRendering: {
		values:  []string{"off", "static", "animated"},
		aliases: []string{"environment", "env", "background"},
	},
}

// SettingKeys 全部偏好项
func SettingKeys() []string {
	return []string{SettingEnvironmentRendering}
}

// SettingValues 偏好项允许的取值，未知偏好项返回 nil
func SettingValues(key string) []string {
	return settingDefs[key].values
}

// NormalizeSetting 解析别名并规范大小写，未知偏好项或非法取值返回 false
func NormalizeSetting(key, value string) (string, string, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.ToLower(strings.TrimSpace(value))

	def, ok := settingDefs[key]
	if !ok {
		for k, s := range settingDefs {
			for _, a := range s.aliases {
				if a == key {
					key, def, ok = k, s, true
				}
			}
		}
	}
	if !ok {
		return "", "", false
	}
	for _, v := range def.values {
		if v == value {
			return key, value, true
		}
	}
	return "", "", false
}

// Setting 读取偏好，未设置时返回默认值
func (t *Trainer) Setting(key string) string {
	if v, ok := t.Settings[key]; ok {
		return v
	}
	if def, ok := settingDefs[key]; ok {
		return def.values[0]
	}
	return ""
}
