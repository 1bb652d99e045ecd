package model

import "sort"

// FOS zone-type 取值
const (
	ZoneTypeStandard   = 0
	ZoneTypePeer       = 1
	ZoneTypeTargetPeer = 2
)

// defzone 访问策略
const (
	DefZoneAllAccess = "allaccess"
	DefZoneNoAccess  = "noaccess"
)

// Fabric 一个 fabric 的 zoning 视图，键为主交换机 WWN
type Fabric struct {
	PrincipalWWN string            `json:"principal_wwn"`
	Aliases      map[string]*Alias `json:"aliases"`
	Zones        map[string]*Zone  `json:"zones"`
	Cfgs         map[string]*Cfg   `json:"cfgs"`
	EffectiveCfg string            `json:"effective_cfg,omitempty"`
	DefZone      string            `json:"defzone,omitempty"`
	Checksum     string            `json:"checksum,omitempty"`
}

// Alias 别名
type Alias struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Zone 分区
// 对等区的 principal 成员与普通成员分开保存
type Zone struct {
	Name             string   `json:"name"`
	Type             int      `json:"type"`
	Members          []string `json:"members"`
	PrincipalMembers []string `json:"principal_members,omitempty"`
}

// Cfg zone 配置，成员为 zone 名
type Cfg struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// NewFabric 创建空 fabric
func NewFabric(principalWWN string) *Fabric {
	return &Fabric{
		PrincipalWWN: principalWWN,
		Aliases:      make(map[string]*Alias),
		Zones:        make(map[string]*Zone),
		Cfgs:         make(map[string]*Cfg),
	}
}

// GetOrAddAlias 取别名，不存在则创建
func (f *Fabric) GetOrAddAlias(name string) *Alias {
	if a, ok := f.Aliases[name]; ok {
		return a
	}
	a := &Alias{Name: name}
	f.Aliases[name] = a
	return a
}

// GetOrAddZone 取分区，不存在则创建
func (f *Fabric) GetOrAddZone(name string, zoneType int) *Zone {
	if z, ok := f.Zones[name]; ok {
		return z
	}
	z := &Zone{Name: name, Type: zoneType}
	f.Zones[name] = z
	return z
}

// GetOrAddCfg 取配置，不存在则创建
func (f *Fabric) GetOrAddCfg(name string) *Cfg {
	if c, ok := f.Cfgs[name]; ok {
		return c
	}
	c := &Cfg{Name: name}
	f.Cfgs[name] = c
	return c
}

// ZoneKeys zone 名排序列表
func (f *Fabric) ZoneKeys() []string {
	keys := make([]string, 0, len(f.Zones))
	for k := range f.Zones {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
