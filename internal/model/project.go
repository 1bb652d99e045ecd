package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Project 一次采集的完整对象树
// 顶层按机箱 WWN 组织，fabric 视图按主交换机 WWN 组织
type Project struct {
	Name        string              `json:"name"`
	Date        string              `json:"date"`
	Description string              `json:"description"`
	Version     string              `json:"version"`
	Chassis     map[string]*Chassis `json:"chassis"`
	Fabrics     map[string]*Fabric  `json:"fabrics,omitempty"`
}

// Chassis 机箱
// Data 按 "module/object" 键保存机箱级 GET 结果
type Chassis struct {
	WWN      string                 `json:"wwn"`
	Data     map[string]interface{} `json:"data"`
	Switches map[string]*Switch     `json:"switches"`
}

// Switch 逻辑交换机
type Switch struct {
	WWN   string                 `json:"wwn"`
	FID   int                    `json:"fid"`
	Data  map[string]interface{} `json:"data"`
	Ports map[string]*Port       `json:"ports"`
}

// Port 端口，名字为 slot/port 形式
// Data 按 URI 末段键保存，如 fibrechannel、fibrechannel-statistics、media-rdp
type Port struct {
	Name string                 `json:"name"`
	Data map[string]interface{} `json:"data"`
}

// NewProject 创建空工程
func NewProject(name, description string) *Project {
	return &Project{
		Name:        name,
		Date:        time.Now().Format("2006-01-02 15:04:05"),
		Description: description,
		Version:     Version,
		Chassis:     make(map[string]*Chassis),
		Fabrics:     make(map[string]*Fabric),
	}
}

// Version 对象树结构版本，随字段布局变更递增
const Version = "1.0.0"

// GetOrAddChassis 按 WWN 取机箱，不存在则创建
func (p *Project) GetOrAddChassis(wwn string) *Chassis {
	if c, ok := p.Chassis[wwn]; ok {
		return c
	}
	c := &Chassis{
		WWN:      wwn,
		Data:     make(map[string]interface{}),
		Switches: make(map[string]*Switch),
	}
	p.Chassis[wwn] = c
	return c
}

// GetOrAddFabric 按主交换机 WWN 取 fabric，不存在则创建
func (p *Project) GetOrAddFabric(principalWWN string) *Fabric {
	if f, ok := p.Fabrics[principalWWN]; ok {
		return f
	}
	f := NewFabric(principalWWN)
	p.Fabrics[principalWWN] = f
	return f
}

// SwitchByWWN 全工程范围按 WWN 查交换机
func (p *Project) SwitchByWWN(wwn string) *Switch {
	for _, c := range p.Chassis {
		if s, ok := c.Switches[wwn]; ok {
			return s
		}
	}
	return nil
}

// ChassisKeys 机箱 WWN 排序列表
func (p *Project) ChassisKeys() []string {
	keys := make([]string, 0, len(p.Chassis))
	for k := range p.Chassis {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetOrAddSwitch 按 WWN 取逻辑交换机，不存在则创建
func (c *Chassis) GetOrAddSwitch(wwn string, fid int) *Switch {
	if s, ok := c.Switches[wwn]; ok {
		if fid > 0 {
			s.FID = fid
		}
		return s
	}
	s := &Switch{
		WWN:   wwn,
		FID:   fid,
		Data:  make(map[string]interface{}),
		Ports: make(map[string]*Port),
	}
	c.Switches[wwn] = s
	return s
}

// SwitchByFID 按 FID 查逻辑交换机
func (c *Chassis) SwitchByFID(fid int) *Switch {
	for _, s := range c.Switches {
		if s.FID == fid {
			return s
		}
	}
	return nil
}

// SetData 保存机箱级采集结果
func (c *Chassis) SetData(key string, value interface{}) {
	c.Data[key] = value
}

// SetData 保存交换机级采集结果
func (s *Switch) SetData(key string, value interface{}) {
	s.Data[key] = value
}

// GetOrAddPort 按名字取端口，不存在则创建
func (s *Switch) GetOrAddPort(name string) *Port {
	if p, ok := s.Ports[name]; ok {
		return p
	}
	p := &Port{Name: name, Data: make(map[string]interface{})}
	s.Ports[name] = p
	return p
}

// PortKeys 端口名排序列表，按 slot/port 数值序
func (s *Switch) PortKeys() []string {
	keys := make([]string, 0, len(s.Ports))
	for k := range s.Ports {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		si, pi := splitPortName(keys[i])
		sj, pj := splitPortName(keys[j])
		if si != sj {
			return si < sj
		}
		return pi < pj
	})
	return keys
}

// splitPortName slot/port 拆成数值对，非法名排在最后
func splitPortName(name string) (int, int) {
	parts := strings.SplitN(name, "/", 2)
	if len(parts) != 2 {
		return 1 << 30, 1 << 30
	}
	var s, p int
	fmt.Sscanf(parts[0], "%d", &s)
	fmt.Sscanf(parts[1], "%d", &p)
	return s, p
}

// Save 写 JSON 转储文件，无扩展名时自动补 .json
func (p *Project) Save(path string) error {
	if filepath.Ext(path) == "" {
		path += ".json"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write project %s: %w", path, err)
	}
	return nil
}

// Load 读回 JSON 转储文件
func Load(path string) (*Project, error) {
	if filepath.Ext(path) == "" {
		path += ".json"
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project %s: %w", path, err)
	}
	var p Project
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", path, err)
	}
	if p.Chassis == nil {
		p.Chassis = make(map[string]*Chassis)
	}
	if p.Fabrics == nil {
		p.Fabrics = make(map[string]*Fabric)
	}
	return &p, nil
}
