package rest

import "strings"

// Area URI 挂载层级，决定请求是否携带 vf-id 以及采集结果挂到对象树的哪一层
type Area int

const (
	AreaNull Area = iota
	AreaChassis
	AreaSwitch
	AreaPort
	AreaFabric
)

// URIInfo 单个 API 对象的描述，登录后由 brocade-module-version 填充
type URIInfo struct {
	URI     string
	Version string
	Methods []string
	Area    Area
}

// PerFID 交换机级及以下的对象按逻辑交换机请求
func (u *URIInfo) PerFID() bool {
	return u.Area != AreaChassis && u.Area != AreaNull
}

// moduleAreas 模块默认层级，未列出的模块按交换机级处理
var moduleAreas = map[string]Area{
	"brocade-chassis":                     AreaChassis,
	"brocade-fru":                         AreaChassis,
	"brocade-license":                     AreaChassis,
	"brocade-firmware":                    AreaChassis,
	"brocade-time":                        AreaChassis,
	"brocade-module-version":              AreaChassis,
	"brocade-fibrechannel-logical-switch": AreaChassis,
	"brocade-operation-show-status":       AreaNull,
	"brocade-operation-supportsave":       AreaChassis,
}

// objectAreas 对象级覆盖，端口与光模块数据挂到端口层，fabric-switch 挂到 fabric 层
var objectAreas = map[string]Area{
	"brocade-interface/fibrechannel":            AreaPort,
	"brocade-interface/fibrechannel-statistics": AreaPort,
	"brocade-media/media-rdp":                   AreaPort,
	"brocade-interface/extension-ip-interface":  AreaPort,
	"brocade-fabric/fabric-switch":              AreaFabric,
	"brocade-fabric/access-gateway":             AreaFabric,
}

// areaFor 计算 module/object 键的层级
func areaFor(module, object string) Area {
	if a, ok := objectAreas[module+"/"+object]; ok {
		return a
	}
	if a, ok := moduleAreas[module]; ok {
		return a
	}
	return AreaSwitch
}

// splitKPI 取出 ruri 中的 module 与 object 段
// 接受 "running/brocade-interface/fibrechannel" 或去掉分支前缀的形式
func splitKPI(ruri string) (module, object string) {
	parts := strings.Split(strings.Trim(ruri, "/"), "/")
	if len(parts) > 0 && (parts[0] == "running" || parts[0] == "operations") {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return "", ""
	}
	module = parts[0]
	if len(parts) > 1 {
		object = parts[1]
	}
	return module, object
}

// buildURIMap 解析 brocade-module-version 响应生成 URI 表
func buildURIMap(body map[string]interface{}) map[string]*URIInfo {
	out := make(map[string]*URIInfo)
	mv, ok := body["brocade-module-version"].(map[string]interface{})
	if !ok {
		return out
	}
	modules, ok := mv["module"].([]interface{})
	if !ok {
		return out
	}
	for _, m := range modules {
		mod, ok := m.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := mod["name"].(string)
		version, _ := mod["version"].(string)
		uri, _ := mod["uri"].(string)
		if name == "" {
			continue
		}
		var objects []string
		if objs, ok := mod["objects"].(map[string]interface{}); ok {
			switch v := objs["object"].(type) {
			case []interface{}:
				for _, o := range v {
					if s, ok := o.(string); ok {
						objects = append(objects, s)
					}
				}
			case string:
				objects = append(objects, v)
			}
		}
		if len(objects) == 0 {
			// 无子对象的模块按模块名直接访问
			out[name] = &URIInfo{URI: uri, Version: version, Methods: []string{"GET"}, Area: areaFor(name, "")}
			continue
		}
		for _, obj := range objects {
			key := name + "/" + obj
			out[key] = &URIInfo{
				URI:     uri + "/" + obj,
				Version: version,
				Methods: []string{"GET", "PATCH", "POST", "DELETE"},
				Area:    areaFor(name, obj),
			}
		}
	}
	return out
}

// defaultURIMap 回放模式下无法请求 brocade-module-version 时的内置 URI 表
func defaultURIMap() map[string]*URIInfo {
	kpis := []string{
		"brocade-fibrechannel-logical-switch/fibrechannel-logical-switch",
		"brocade-fibrechannel-switch/fibrechannel-switch",
		"brocade-interface/fibrechannel",
		"brocade-interface/fibrechannel-statistics",
		"brocade-media/media-rdp",
		"brocade-fabric/fabric-switch",
		"brocade-zone/defined-configuration",
		"brocade-zone/effective-configuration",
		"brocade-name-server/fibrechannel-name-server",
		"brocade-fdmi/hba",
		"brocade-fdmi/port",
		"brocade-fibrechannel-configuration/fabric",
		"brocade-fibrechannel-configuration/port-configuration",
		"brocade-fibrechannel-configuration/zone-configuration",
		"brocade-fibrechannel-configuration/switch-configuration",
		"brocade-fibrechannel-configuration/f-port-login-settings",
		"brocade-chassis/chassis",
		"brocade-chassis/ha-status",
		"brocade-fru/blade",
		"brocade-fru/fan",
		"brocade-fru/power-supply",
		"brocade-fru/sensor",
		"brocade-maps/maps-policy",
		"brocade-maps/maps-config",
		"brocade-maps/rule",
		"brocade-maps/dashboard-rule",
		"brocade-time/clock-server",
		"brocade-time/time-zone",
		"brocade-license/license",
		"brocade-security/user-config",
	}
	out := make(map[string]*URIInfo, len(kpis))
	for _, k := range kpis {
		module, object := splitKPI(k)
		out[k] = &URIInfo{
			URI:     "/rest/running/" + k,
			Methods: []string{"GET", "PATCH", "POST", "DELETE"},
			Area:    areaFor(module, object),
		}
	}
	return out
}
