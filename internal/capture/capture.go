package capture

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sanscope/sanscope/internal/model"
	"github.com/sanscope/sanscope/pkg/logger"
	"github.com/sanscope/sanscope/pkg/rest"
	"github.com/sanscope/sanscope/pkg/ssh"
)

// Options 采集参数
type Options struct {
	// KPIs 要采集的对象清单，空用默认清单
	KPIs []string
	// FIDs 限定的逻辑交换机，空表示机箱上发现的全部
	FIDs []int
	// MaskIP 遮蔽采集结果中的管理地址
	MaskIP bool
	// ClearStats 采集完成后清零端口统计
	ClearStats bool
	// CLIWait 每条 CLI 命令的执行窗口
	CLIWait time.Duration
}

// Capturer 单机箱采集器
// cli 为空时跳过 fos_cli KPI
type Capturer struct {
	session *rest.Session
	cli     *ssh.Client
	opts    Options
}

// New 创建采集器，session 必须已登录
func New(session *rest.Session, cli *ssh.Client, opts Options) *Capturer {
	if len(opts.KPIs) == 0 {
		opts.KPIs = DefaultKPIs()
	}
	if opts.CLIWait <= 0 {
		opts.CLIWait = 30 * time.Second
	}
	return &Capturer{session: session, cli: cli, opts: opts}
}

// logicalSwitch FID 发现结果
type logicalSwitch struct {
	FID int
	WWN string
}

// Run 执行采集并挂到工程对象树
// 单个 KPI 失败记日志继续，只有上下文取消会中断采集
func (c *Capturer) Run(ctx context.Context, proj *model.Project) error {
	chassis, err := c.discoverChassis(ctx, proj)
	if err != nil {
		return err
	}

	switches, err := c.discoverSwitches(ctx, chassis)
	if err != nil {
		return err
	}

	chassisKPIs, switchKPIs, cliKPIs := c.splitKPIs()

	for _, kpi := range chassisKPIs {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := c.session.Get(ctx, kpi, 0)
		if err != nil {
			logger.Warnf("GET %s failed: %v", kpi, err)
			continue
		}
		chassis.SetData(kpiKey(kpi), body)
	}

	for _, ls := range switches {
		sw := chassis.GetOrAddSwitch(ls.WWN, ls.FID)
		for _, kpi := range switchKPIs {
			if err := ctx.Err(); err != nil {
				return err
			}
			body, err := c.session.Get(ctx, kpi, ls.FID)
			if err != nil {
				logger.Warnf("GET %s fid %d failed: %v", kpi, ls.FID, err)
				continue
			}
			c.attachSwitchData(sw, kpi, body)
		}
		for _, kpi := range cliKPIs {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.captureCLI(ctx, sw, kpi)
		}
	}

	if c.opts.ClearStats {
		for _, ls := range switches {
			if err := c.clearPortStats(ctx, chassis, ls); err != nil {
				logger.Warnf("clear port statistics fid %d: %v", ls.FID, err)
			}
		}
	}

	if c.opts.MaskIP {
		maskChassisIPs(chassis)
	}
	return nil
}

// discoverChassis 取机箱 WWN 并创建机箱对象
func (c *Capturer) discoverChassis(ctx context.Context, proj *model.Project) (*model.Chassis, error) {
	body, err := c.session.Get(ctx, "running/brocade-chassis/chassis", 0)
	if err != nil {
		return nil, fmt.Errorf("read chassis: %w", err)
	}
	wwn := "unknown"
	if ch, ok := body["chassis"].(map[string]interface{}); ok {
		if w, ok := ch["chassis-wwn"].(string); ok && w != "" {
			wwn = w
		}
	}
	chassis := proj.GetOrAddChassis(wwn)
	chassis.SetData("brocade-chassis/chassis", body)
	return chassis, nil
}

// discoverSwitches FID 发现
// VF 模式枚举 fibrechannel-logical-switch，非 VF 回落到单交换机
func (c *Capturer) discoverSwitches(ctx context.Context, chassis *model.Chassis) ([]logicalSwitch, error) {
	body, err := c.session.Get(ctx, "running/brocade-fibrechannel-logical-switch/fibrechannel-logical-switch", 0)
	if err != nil {
		return nil, fmt.Errorf("discover logical switches: %w", err)
	}

	var discovered []logicalSwitch
	if list, ok := body["fibrechannel-logical-switch"].([]interface{}); ok {
		for _, item := range list {
			ls, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			fid := 0
			if f, ok := ls["fabric-id"].(float64); ok {
				fid = int(f)
			}
			wwn, _ := ls["switch-wwn"].(string)
			if wwn == "" {
				wwn = fmt.Sprintf("unknown-fid-%d", fid)
			}
			discovered = append(discovered, logicalSwitch{FID: fid, WWN: wwn})
		}
	}

	if len(discovered) == 0 {
		// 非 VF 机箱：单逻辑交换机，不带 vf-id 访问
		body, err := c.session.Get(ctx, "running/brocade-fibrechannel-switch/fibrechannel-switch", 0)
		if err != nil {
			return nil, fmt.Errorf("read switch on non-VF chassis: %w", err)
		}
		wwn := "unknown"
		if list, ok := body["fibrechannel-switch"].([]interface{}); ok && len(list) > 0 {
			if sw, ok := list[0].(map[string]interface{}); ok {
				if w, ok := sw["name"].(string); ok && w != "" {
					wwn = w
				}
			}
		}
		discovered = append(discovered, logicalSwitch{FID: 0, WWN: wwn})
	}

	if len(c.opts.FIDs) > 0 {
		want := make(map[int]bool, len(c.opts.FIDs))
		for _, fid := range c.opts.FIDs {
			want[fid] = true
		}
		filtered := discovered[:0]
		for _, ls := range discovered {
			if want[ls.FID] {
				filtered = append(filtered, ls)
			}
		}
		discovered = filtered
	}

	logger.Infof("discovered %d logical switches on %s", len(discovered), chassis.WWN)
	return discovered, nil
}

// splitKPIs 按层级拆分清单，未知 KPI 记日志跳过
func (c *Capturer) splitKPIs() (chassisKPIs, switchKPIs, cliKPIs []string) {
	for _, kpi := range c.opts.KPIs {
		if strings.HasPrefix(kpi, CLIPrefix) {
			cliKPIs = append(cliKPIs, kpi)
			continue
		}
		info, ok := c.session.LookupKPI(kpi)
		if !ok {
			logger.Warnf("KPI %s not supported on this chassis, skipped", kpi)
			continue
		}
		// 机箱对象与 FID 发现单独处理，不重复采集
		key := kpiKey(kpi)
		if key == "brocade-chassis/chassis" || key == "brocade-fibrechannel-logical-switch/fibrechannel-logical-switch" {
			continue
		}
		if info.PerFID() {
			switchKPIs = append(switchKPIs, kpi)
		} else {
			chassisKPIs = append(chassisKPIs, kpi)
		}
	}
	return chassisKPIs, switchKPIs, cliKPIs
}

// attachSwitchData 把 GET 结果挂到交换机或端口
// 端口级对象按条目的 name 挂到对应端口，其余整体挂到交换机
func (c *Capturer) attachSwitchData(sw *model.Switch, kpi string, body map[string]interface{}) {
	info, ok := c.session.LookupKPI(kpi)
	if ok && info.Area == rest.AreaPort {
		leaf := kpiLeaf(kpi)
		if list, ok := body[leaf].([]interface{}); ok {
			for _, item := range list {
				entry, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				name, _ := entry["name"].(string)
				if name == "" {
					continue
				}
				sw.GetOrAddPort(name).Data[leaf] = entry
			}
			return
		}
	}
	sw.SetData(kpiKey(kpi), body)
}

// captureCLI 执行 fos_cli KPI 并把原始行挂到交换机
func (c *Capturer) captureCLI(ctx context.Context, sw *model.Switch, kpi string) {
	if c.cli == nil {
		logger.Warnf("no SSH session, CLI KPI %s skipped", kpi)
		return
	}
	cmd := strings.TrimPrefix(kpi, CLIPrefix)
	cmdCtx, cancel := context.WithTimeout(ctx, c.opts.CLIWait)
	defer cancel()
	lines, err := c.cli.Fosexec(cmdCtx, sw.FID, cmd)
	if err != nil {
		logger.Warnf("CLI KPI %s fid %d failed: %v", kpi, sw.FID, err)
		return
	}
	sw.SetData(kpi, lines)
}

// clearPortStats 采集后清零端口统计
func (c *Capturer) clearPortStats(ctx context.Context, chassis *model.Chassis, ls logicalSwitch) error {
	sw, ok := chassis.Switches[ls.WWN]
	if !ok {
		return nil
	}
	var resets []interface{}
	for name := range sw.Ports {
		resets = append(resets, map[string]interface{}{
			"name":             name,
			"reset-statistics": 1,
		})
	}
	if len(resets) == 0 {
		return nil
	}
	content := map[string]interface{}{"fibrechannel-statistics": resets}
	return c.session.Patch(ctx, "running/brocade-interface/fibrechannel-statistics", ls.FID, content)
}

// kpiKey KPI 的存储键，去掉分支前缀
func kpiKey(kpi string) string {
	key := strings.Trim(kpi, "/")
	key = strings.TrimPrefix(key, "running/")
	key = strings.TrimPrefix(key, "operations/")
	return key
}

// kpiLeaf URI 末段
func kpiLeaf(kpi string) string {
	parts := strings.Split(strings.Trim(kpi, "/"), "/")
	return parts[len(parts)-1]
}
