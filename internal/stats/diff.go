package stats

import "strings"

// 原样透传的计数器键：区间元数据与速率类瞬时值不做差分
func passthroughKey(key string) bool {
	if key == "sampling-interval" || key == "time-generated" {
		return true
	}
	return strings.Contains(key, "rate")
}

// DiffPorts 端口统计差分
// 按 name 配对新旧样本，数值计数器取 new-old；上一轮没出现过的端口整体透传
func DiffPorts(old, cur []interface{}) []interface{} {
	prev := make(map[string]map[string]interface{}, len(old))
	for _, item := range old {
		if entry, ok := item.(map[string]interface{}); ok {
			if name, ok := entry["name"].(string); ok {
				prev[name] = entry
			}
		}
	}

	out := make([]interface{}, 0, len(cur))
	for _, item := range cur {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		base, seen := prev[name]
		if !seen {
			out = append(out, entry)
			continue
		}
		out = append(out, diffEntry(base, entry))
	}
	return out
}

// diffEntry 单端口差分，嵌套对象逐键处理
func diffEntry(old, cur map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(cur))
	for key, v := range cur {
		if passthroughKey(key) {
			out[key] = v
			continue
		}
		switch val := v.(type) {
		case float64:
			if ov, ok := old[key].(float64); ok {
				out[key] = val - ov
			} else {
				out[key] = val
			}
		case map[string]interface{}:
			if ov, ok := old[key].(map[string]interface{}); ok {
				out[key] = diffEntry(ov, val)
			} else {
				out[key] = val
			}
		default:
			out[key] = v
		}
	}
	return out
}
