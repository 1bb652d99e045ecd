package capture

import (
	"strings"

	"github.com/sanscope/sanscope/internal/model"
	"github.com/sanscope/sanscope/pkg/rest"
)

// maskChassisIPs 遮蔽采集结果中的管理地址，保留最后一段便于区分设备
func maskChassisIPs(chassis *model.Chassis) {
	for k, v := range chassis.Data {
		chassis.Data[k] = maskValue(k, v)
	}
	for _, sw := range chassis.Switches {
		for k, v := range sw.Data {
			sw.Data[k] = maskValue(k, v)
		}
	}
}

// ipKey 是否为承载地址的叶子键
func ipKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "ip-address") ||
		strings.Contains(k, "ip-static-gateway") ||
		strings.Contains(k, "subnet-mask") ||
		k == "dns-servers"
}

// maskValue 递归遮蔽，列表与嵌套对象逐项处理
func maskValue(key string, v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		if ipKey(key) {
			return rest.MaskIPAddr(val, true)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = maskValue(key, item)
		}
		return val
	case map[string]interface{}:
		for k, item := range val {
			val[k] = maskValue(k, item)
		}
		return val
	default:
		return v
	}
}
