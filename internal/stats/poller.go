package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sanscope/sanscope/internal/model"
	"github.com/sanscope/sanscope/pkg/logger"
	"github.com/sanscope/sanscope/pkg/rest"
)

// MinInterval 采样间隔下限
// 更快的轮询会让交换机侧统计缓存来不及刷新，差分失真
const MinInterval = 2100 * time.Millisecond

// Collection 一次统计采样会话的全部数据
// 样本挂在合成交换机 <base>-<n> 上，SwitchList 保持采样顺序
type Collection struct {
	BaseSwitchWWN string                   `json:"base_switch_wwn"`
	SwitchList    []string                 `json:"switch_list"`
	Switches      map[string]*model.Switch `json:"switches"`
	NameServer    interface{}              `json:"name-server,omitempty"`
}

// NewCollection 创建空采样集
func NewCollection(baseWWN string) *Collection {
	return &Collection{
		BaseSwitchWWN: baseWWN,
		Switches:      make(map[string]*model.Switch),
	}
}

// AddSample 追加一轮差分样本
func (c *Collection) AddSample(ports []interface{}, states []interface{}) {
	n := len(c.SwitchList)
	wwn := fmt.Sprintf("%s-%d", c.BaseSwitchWWN, n)
	sw := &model.Switch{
		WWN:   wwn,
		Data:  make(map[string]interface{}),
		Ports: make(map[string]*model.Port),
	}
	for _, item := range ports {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		if name == "" {
			continue
		}
		port := &model.Port{Name: name, Data: map[string]interface{}{"fibrechannel-statistics": entry}}
		sw.Ports[name] = port
	}
	for _, item := range states {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		if port, ok := sw.Ports[name]; ok {
			port.Data["fibrechannel"] = entry
		}
	}
	c.Switches[wwn] = sw
	c.SwitchList = append(c.SwitchList, wwn)
}

// Save 写统计转储
func (c *Collection) Save(path string) error {
	if filepath.Ext(path) == "" {
		path += ".json"
	}
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stats collection: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write stats collection %s: %w", path, err)
	}
	return nil
}

// LoadCollection 读回统计转储
func LoadCollection(path string) (*Collection, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stats collection %s: %w", path, err)
	}
	var c Collection
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode stats collection %s: %w", path, err)
	}
	if c.Switches == nil {
		c.Switches = make(map[string]*model.Switch)
	}
	return &c, nil
}

// Poller 统计轮询器
type Poller struct {
	session    *rest.Session
	fid        int
	interval   time.Duration
	maxSamples int
}

// NewPoller 创建轮询器，间隔低于下限抬高到下限
func NewPoller(session *rest.Session, fid int, interval time.Duration, maxSamples int) *Poller {
	if interval < MinInterval {
		logger.Warnf("poll interval %s below minimum, raised to %s", interval, MinInterval)
		interval = MinInterval
	}
	if maxSamples <= 0 {
		maxSamples = 1
	}
	return &Poller{session: session, fid: fid, interval: interval, maxSamples: maxSamples}
}

// Run 采样循环
// Control-C（上下文取消）停止采样但保留已取得的样本
func (p *Poller) Run(ctx context.Context) (*Collection, error) {
	baseWWN, err := p.baseSwitchWWN(ctx)
	if err != nil {
		return nil, err
	}
	c := NewCollection(baseWWN)

	if ns, err := p.session.Get(ctx, "running/brocade-name-server/fibrechannel-name-server", p.fid); err == nil {
		c.NameServer = ns
	} else {
		logger.Warnf("name server capture failed: %v", err)
	}

	prev, _, err := p.sample(ctx)
	if err != nil {
		return c, fmt.Errorf("initial statistics capture: %w", err)
	}

	var lastElapsed time.Duration
	for i := 0; i < p.maxSamples; i++ {
		// interval 扣除上一轮请求耗时，保证名义采样周期
		wait := p.interval - lastElapsed
		if wait < MinInterval {
			wait = MinInterval
		}
		select {
		case <-ctx.Done():
			logger.Infof("statistics polling interrupted, %d samples kept", len(c.SwitchList))
			return c, nil
		case <-time.After(wait):
		}

		start := time.Now()
		cur, states, err := p.sample(ctx)
		lastElapsed = time.Since(start)
		if err != nil {
			if ctx.Err() != nil {
				return c, nil
			}
			logger.Errorf("sample %d failed: %v", i, err)
			continue
		}
		c.AddSample(DiffPorts(prev, cur), states)
		prev = cur
		logger.Debugf("sample %d collected, %d ports", i, len(cur))
	}
	return c, nil
}

// baseSwitchWWN 基准交换机 WWN
func (p *Poller) baseSwitchWWN(ctx context.Context) (string, error) {
	body, err := p.session.Get(ctx, "running/brocade-fibrechannel-switch/fibrechannel-switch", p.fid)
	if err != nil {
		return "", fmt.Errorf("read base switch: %w", err)
	}
	if list, ok := body["fibrechannel-switch"].([]interface{}); ok && len(list) > 0 {
		if sw, ok := list[0].(map[string]interface{}); ok {
			if wwn, ok := sw["name"].(string); ok && wwn != "" {
				return wwn, nil
			}
		}
	}
	return "", fmt.Errorf("base switch WWN not found")
}

// sample 取一轮端口统计与端口状态
func (p *Poller) sample(ctx context.Context) (stats []interface{}, states []interface{}, err error) {
	body, err := p.session.Get(ctx, "running/brocade-interface/fibrechannel-statistics", p.fid)
	if err != nil {
		return nil, nil, err
	}
	stats, _ = body["fibrechannel-statistics"].([]interface{})

	if sb, err := p.session.Get(ctx, "running/brocade-interface/fibrechannel", p.fid); err == nil {
		states, _ = sb["fibrechannel"].([]interface{})
	}
	return stats, states, nil
}
