package model

import "strings"

// DeviceType 捕获道具类型
type DeviceType string

const (
	DevicePokeball   DeviceType = "pokeball"
	DeviceGreatball  DeviceType = "greatball"
	DeviceUltraball  DeviceType = "ultraball"
	DeviceMasterball DeviceType = "masterball"
)

// AllDevices 所有道具类型，按展示顺序排列
var AllDevices = []DeviceType{
	DevicePokeball,
	DeviceGreatball,
	DeviceUltraball,
	DeviceMasterball,
}

var deviceAliases = map[string]DeviceType{
	"pokeball":   DevicePokeball,
	"pb":         DevicePokeball,
	"greatball":  DeviceGreatball,
	"gb":         DeviceGreatball,
	"ultraball":  DeviceUltraball,
	"ub":         DeviceUltraball,
	"masterball": DeviceMasterball,
	"mb":         DeviceMasterball,
}

// ParseDevice 解析道具名称，支持缩写（pb、gb、ub、mb），忽略大小写与空格
func ParseDevice(s string) (DeviceType, bool) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	d, ok := deviceAliases[key]
	return d, ok
}

// Valid 是否为已知道具
func (d DeviceType) Valid() bool {
	switch d {
	case DevicePokeball, DeviceGreatball, DeviceUltraball, DeviceMasterball:
		return true
	}
	return false
}
