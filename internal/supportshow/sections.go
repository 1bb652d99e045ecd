package supportshow

import (
	"strconv"
	"strings"

	"github.com/sanscope/sanscope/internal/model"
	"github.com/sanscope/sanscope/pkg/logger"
)

// sectionEnd 当前命令段的边界：下一个段标记或 CURRENT CONTEXT 行
func sectionEnd(lines []string, start int) int {
	return skipToNextSection(lines, start)
}

// kvSplit "key: value" 行拆分
func kvSplit(line string) (string, string, bool) {
	i := strings.Index(line, ":")
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
}

// normPort 端口名归一化为 slot/port，固定端口交换机补 0/ 前缀
func normPort(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if strings.Contains(s, "/") {
		return s
	}
	return "0/" + s
}

// parseSwitchshow 交换机基本信息与端口表
func parseSwitchshow(p *parser, lines []string, start int, arg string) int {
	end := sectionEnd(lines, start)
	sw := p.curSwitch()
	info := make(map[string]interface{})
	hasSlot := false
	inPorts := false

	for i := start; i < end; i++ {
		line := lines[i]
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "=") {
			continue
		}
		if strings.HasPrefix(t, "Index") && strings.Contains(t, "Address") {
			inPorts = true
			hasSlot = strings.Contains(t, "Slot")
			continue
		}
		if !inPorts {
			if key, val, ok := kvSplit(t); ok {
				info[key] = val
				if key == "switchWwn" {
					sw = p.renameSwitch(sw, val)
				}
			}
			continue
		}

		// 端口表行：Index [Slot] Port Address Media Speed State Proto ...
		fields := strings.Fields(t)
		min := 7
		if hasSlot {
			min = 8
		}
		if len(fields) < min {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		var name string
		var rest []string
		if hasSlot {
			name = fields[1] + "/" + fields[2]
			rest = fields[3:]
		} else {
			name = "0/" + fields[1]
			rest = fields[2:]
		}
		entry := map[string]interface{}{
			"index":   mustInt(fields[0]),
			"address": rest[0],
			"media":   rest[1],
			"speed":   rest[2],
			"state":   rest[3],
		}
		if len(rest) > 4 {
			entry["comment"] = strings.Join(rest[4:], " ")
		}
		sw.GetOrAddPort(name).Data["switchshow"] = entry
	}

	sw.SetData("switchshow", info)
	if p.firmware != "" {
		sw.SetData("firmware-version", p.firmware)
	}
	return end
}

// parseFabricshow fabric 成员表，> 标记主交换机
func parseFabricshow(p *parser, lines []string, start int, arg string) int {
	end := sectionEnd(lines, start)
	sw := p.curSwitch()
	var members []interface{}
	principal := ""

	for i := start; i < end; i++ {
		t := strings.TrimSpace(lines[i])
		if t == "" || strings.HasPrefix(t, "Switch") || strings.HasPrefix(t, "-") {
			continue
		}
		fields := strings.Fields(t)
		if len(fields) < 5 || !strings.HasSuffix(fields[0], ":") {
			continue
		}
		entry := map[string]interface{}{
			"domain-id": strings.TrimSuffix(fields[0], ":"),
			"fcid":      fields[1],
			"wwn":       fields[2],
			"enet-ip":   fields[3],
			"fc-ip":     fields[4],
		}
		if len(fields) > 5 {
			name := strings.Join(fields[5:], " ")
			if strings.HasPrefix(name, ">") {
				entry["principal"] = true
				principal = fields[2]
				name = strings.TrimPrefix(name, ">")
			}
			entry["name"] = strings.Trim(name, "\"")
		}
		members = append(members, entry)
	}

	sw.SetData("fabricshow", members)
	if principal != "" {
		f := p.proj.GetOrAddFabric(principal)
		if f.PrincipalWWN == "" {
			f.PrincipalWWN = principal
		}
	}
	return end
}

// parseChassisshow FRU 单元与机箱出厂信息
func parseChassisshow(p *parser, lines []string, start int, arg string) int {
	end := sectionEnd(lines, start)
	var units []interface{}
	info := make(map[string]interface{})
	var cur map[string]interface{}

	for i := start; i < end; i++ {
		t := strings.TrimSpace(lines[i])
		if t == "" {
			cur = nil
			continue
		}
		if strings.Contains(t, "Unit:") {
			fields := strings.SplitN(t, "Unit:", 2)
			cur = map[string]interface{}{
				"unit-type":   strings.TrimSpace(fields[0]),
				"unit-number": strings.TrimSpace(fields[1]),
			}
			units = append(units, cur)
			continue
		}
		if key, val, ok := kvSplit(t); ok {
			if cur != nil {
				cur[key] = val
			} else {
				info[key] = val
			}
		}
	}

	p.chassis.SetData("chassisshow", map[string]interface{}{
		"units": units,
		"info":  info,
	})
	return end
}

// parseCfgshow defined/effective 两段 zoning 配置
func parseCfgshow(p *parser, lines []string, start int, arg string) int {
	end := sectionEnd(lines, start)
	sw := p.curSwitch()
	fabric := p.proj.GetOrAddFabric(sw.WWN)

	effective := false
	var lastMembers *[]string
	for i := start; i < end; i++ {
		line := lines[i]
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		switch {
		case strings.HasPrefix(t, "Defined configuration"):
			effective = false
			lastMembers = nil
			continue
		case strings.HasPrefix(t, "Effective configuration"):
			effective = true
			lastMembers = nil
			continue
		}

		label, rest, ok := cfgEntry(t)
		if !ok {
			// 续行：追加到上一个条目的成员
			if lastMembers != nil {
				*lastMembers = append(*lastMembers, splitMembers(t)...)
			}
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		name := fields[0]
		members := splitMembers(strings.TrimSpace(strings.TrimPrefix(rest, name)))

		switch label {
		case "cfg":
			if effective {
				fabric.EffectiveCfg = name
				lastMembers = nil
				continue
			}
			c := fabric.GetOrAddCfg(name)
			c.Members = append(c.Members, members...)
			lastMembers = &c.Members
		case "zone":
			if effective {
				lastMembers = nil
				continue
			}
			z := fabric.GetOrAddZone(name, model.ZoneTypeStandard)
			z.Members = append(z.Members, members...)
			lastMembers = &z.Members
		case "alias":
			a := fabric.GetOrAddAlias(name)
			a.Members = append(a.Members, members...)
			lastMembers = &a.Members
		default:
			lastMembers = nil
		}
	}
	return end
}

// cfgEntry cfgshow 条目行 "label: name members"
func cfgEntry(t string) (label, rest string, ok bool) {
	for _, l := range []string{"cfg:", "zone:", "alias:"} {
		if strings.HasPrefix(t, l) {
			return strings.TrimSuffix(l, ":"), strings.TrimSpace(strings.TrimPrefix(t, l)), true
		}
	}
	return "", "", false
}

// splitMembers 成员按 ; 切分
func splitMembers(s string) []string {
	var out []string
	for _, m := range strings.Split(s, ";") {
		m = strings.TrimSpace(m)
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

// parseDefzone 默认分区访问策略
func parseDefzone(p *parser, lines []string, start int, arg string) int {
	end := sectionEnd(lines, start)
	sw := p.curSwitch()
	fabric := p.proj.GetOrAddFabric(sw.WWN)

	for i := start; i < end; i++ {
		t := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(t, "committed") {
			continue
		}
		if strings.Contains(t, "No Access") {
			fabric.DefZone = model.DefZoneNoAccess
		} else if strings.Contains(t, "All Access") {
			fabric.DefZone = model.DefZoneAllAccess
		}
	}
	return end
}

// parseNsshow 名字服务条目
func parseNsshow(p *parser, lines []string, start int, arg string) int {
	end := sectionEnd(lines, start)
	sw := p.curSwitch()
	var entries []interface{}
	var cur map[string]interface{}

	for i := start; i < end; i++ {
		line := lines[i]
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		// 设备行: " N    010200;    3;10:00:...;20:00:...; na"
		fields := strings.Split(t, ";")
		if len(fields) >= 4 && (strings.HasPrefix(t, "N ") || strings.HasPrefix(t, "NL ") || strings.HasPrefix(t, "U ")) {
			head := strings.Fields(fields[0])
			cur = map[string]interface{}{
				"type":      head[0],
				"port-id":   head[len(head)-1],
				"port-name": strings.TrimSpace(fields[2]),
				"node-name": strings.TrimSpace(fields[3]),
			}
			entries = append(entries, cur)
			continue
		}
		if cur == nil {
			continue
		}
		if key, val, ok := kvSplit(t); ok {
			cur[key] = val
		}
	}

	sw.SetData("nsshow", entries)
	return end
}

// parsePortstats64show 64 位端口计数器，命令参数是端口号
func parsePortstats64show(p *parser, lines []string, start int, arg string) int {
	end := sectionEnd(lines, start)
	if arg == "" {
		logger.Warnf("portstats64show without port argument, section skipped")
		return end
	}
	sw := p.curSwitch()
	port := sw.GetOrAddPort(normPort(strings.Fields(arg)[0]))
	stats := make(map[string]interface{})

	for i := start; i < end; i++ {
		fields := strings.Fields(strings.TrimSpace(lines[i]))
		if len(fields) < 2 || !statCounter(fields[0]) {
			continue
		}
		if v, err := strconv.ParseInt(fields[1], 0, 64); err == nil {
			stats[fields[0]] = v
		}
	}

	port.Data["portstats64show"] = stats
	return end
}

// statCounter portstats64show 计数器名前缀
func statCounter(s string) bool {
	for _, prefix := range []string{"stat", "er_", "tim_", "fec_", "lli_", "loop_"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// parseSfpshow 光模块诊断，按端口块组织
func parseSfpshow(p *parser, lines []string, start int, arg string) int {
	end := sectionEnd(lines, start)
	sw := p.curSwitch()
	var cur map[string]interface{}

	for i := start; i < end; i++ {
		t := strings.TrimSpace(lines[i])
		if t == "" || strings.HasPrefix(t, "=") {
			continue
		}
		// 块头: "Port  4:" 或 "Slot  1/Port  4:"
		if name, ok := sfpBlockPort(t); ok {
			cur = make(map[string]interface{})
			sw.GetOrAddPort(name).Data["sfpshow"] = cur
			continue
		}
		if cur == nil {
			continue
		}
		if key, val, ok := kvSplit(t); ok {
			cur[key] = val
		}
	}
	return end
}

// sfpBlockPort sfpshow 端口块头识别
func sfpBlockPort(t string) (string, bool) {
	if !strings.HasSuffix(t, ":") {
		return "", false
	}
	head := strings.TrimSuffix(t, ":")
	if strings.HasPrefix(head, "Slot") && strings.Contains(head, "/Port") {
		parts := strings.SplitN(head, "/Port", 2)
		slot := strings.TrimSpace(strings.TrimPrefix(parts[0], "Slot"))
		port := strings.TrimSpace(parts[1])
		return slot + "/" + port, true
	}
	if strings.HasPrefix(head, "Port") {
		port := strings.TrimSpace(strings.TrimPrefix(head, "Port"))
		if _, err := strconv.Atoi(port); err == nil {
			return "0/" + port, true
		}
	}
	return "", false
}

// parsePortcfgshow 端口配置表保持原始行，与 CLI 采集同构
func parsePortcfgshow(p *parser, lines []string, start int, arg string) int {
	end := sectionEnd(lines, start)
	sw := p.curSwitch()
	var raw []string
	for i := start; i < end; i++ {
		raw = append(raw, lines[i])
	}
	sw.SetData("portcfgshow", raw)
	return end
}

// parsePortname 端口名
func parsePortname(p *parser, lines []string, start int, arg string) int {
	end := sectionEnd(lines, start)
	sw := p.curSwitch()
	for i := start; i < end; i++ {
		t := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(t, "port") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(t, "port"))
		if key, val, ok := kvSplit(rest); ok && key != "" {
			sw.GetOrAddPort(normPort(key)).Data["portname"] = val
		}
	}
	return end
}

// parseSlotshow 刀片槽位表
func parseSlotshow(p *parser, lines []string, start int, arg string) int {
	end := sectionEnd(lines, start)
	var slots []interface{}
	for i := start; i < end; i++ {
		t := strings.TrimSpace(lines[i])
		fields := strings.Fields(t)
		if len(fields) < 3 {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		entry := map[string]interface{}{
			"slot":   mustInt(fields[0]),
			"type":   fields[1],
			"status": fields[len(fields)-1],
		}
		if len(fields) > 3 {
			entry["model"] = strings.Join(fields[2:len(fields)-1], " ")
		}
		slots = append(slots, entry)
	}
	p.chassis.SetData("slotshow", slots)
	return end
}

func mustInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
