package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sanscope/sanscope/internal/model"
	"github.com/sanscope/sanscope/pkg/logger"
)

// WriteSummary 汇总工作簿
// chassis 表列出机箱清单，每台交换机一张端口表，zoning 表列出分区库
func WriteSummary(proj *model.Project, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "chassis"); err != nil {
		return err
	}
	if err := writeChassisSheet(f, proj); err != nil {
		return err
	}
	if err := writeSwitchSheets(f, proj); err != nil {
		return err
	}
	if err := writeZoningSheet(f, proj); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save summary workbook %s: %w", path, err)
	}
	logger.Infof("fabric summary written to %s", path)
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

// writeChassisSheet 机箱清单：每台交换机一行
func writeChassisSheet(f *excelize.File, proj *model.Project) error {
	if err := setRow(f, "chassis", 1, []interface{}{
		"chassis", "chassis_wwn", "fid", "switch_wwn", "switch_name", "firmware", "ports",
	}); err != nil {
		return err
	}

	row := 2
	for _, key := range proj.ChassisKeys() {
		ch := proj.Chassis[key]
		if len(ch.Switches) == 0 {
			if err := setRow(f, "chassis", row, []interface{}{key, ch.WWN}); err != nil {
				return err
			}
			row++
			continue
		}
		for _, sw := range sortedSwitches(ch) {
			if err := setRow(f, "chassis", row, []interface{}{
				key, ch.WWN, sw.FID, sw.WWN, switchName(sw), switchString(sw, "firmware-version"), len(sw.Ports),
			}); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

// writeSwitchSheets 每台交换机一张端口表
func writeSwitchSheets(f *excelize.File, proj *model.Project) error {
	for _, key := range proj.ChassisKeys() {
		for _, sw := range sortedSwitches(proj.Chassis[key]) {
			sheet := switchSheetName(sw)
			if _, err := f.NewSheet(sheet); err != nil {
				return err
			}
			if err := setRow(f, sheet, 1, []interface{}{
				"port", "index", "address", "media", "speed", "state", "name",
			}); err != nil {
				return err
			}
			row := 2
			for _, name := range sw.PortKeys() {
				if err := setRow(f, sheet, row, portRow(name, sw.Ports[name])); err != nil {
					return err
				}
				row++
			}
		}
	}
	return nil
}

// portRow 端口一行，switchshow 与 REST 字段互为补充
func portRow(name string, port *model.Port) []interface{} {
	var entry map[string]interface{}
	if e, ok := port.Data["switchshow"].(map[string]interface{}); ok {
		entry = e
	}
	var fc map[string]interface{}
	if e, ok := port.Data["fibrechannel"].(map[string]interface{}); ok {
		fc = e
	}
	pick := func(keys ...string) interface{} {
		for _, k := range keys {
			if v, ok := entry[k]; ok && v != "" {
				return v
			}
			if v, ok := fc[k]; ok && v != "" {
				return v
			}
		}
		return ""
	}
	portName, _ := port.Data["portname"].(string)
	if portName == "" {
		if v, ok := fc["user-friendly-name"].(string); ok {
			portName = v
		}
	}
	return []interface{}{
		name,
		pick("index"),
		pick("address", "fcid-hex"),
		pick("media"),
		pick("speed"),
		pick("state", "physical-state"),
		portName,
	}
}

// writeZoningSheet 分区库：别名、分区、配置与生效状态
func writeZoningSheet(f *excelize.File, proj *model.Project) error {
	if _, err := f.NewSheet("zoning"); err != nil {
		return err
	}
	if err := setRow(f, "zoning", 1, []interface{}{
		"fabric", "type", "name", "members",
	}); err != nil {
		return err
	}

	fabrics := make([]string, 0, len(proj.Fabrics))
	for k := range proj.Fabrics {
		fabrics = append(fabrics, k)
	}
	sort.Strings(fabrics)

	row := 2
	add := func(fabric, kind, name, members string) error {
		err := setRow(f, "zoning", row, []interface{}{fabric, kind, name, members})
		row++
		return err
	}
	for _, fk := range fabrics {
		fab := proj.Fabrics[fk]
		for _, name := range sortedKeys(fab.Aliases) {
			if err := add(fk, "alias", name, strings.Join(fab.Aliases[name].Members, "; ")); err != nil {
				return err
			}
		}
		for _, name := range fab.ZoneKeys() {
			z := fab.Zones[name]
			members := strings.Join(z.Members, "; ")
			if z.Type == model.ZoneTypePeer && len(z.PrincipalMembers) > 0 {
				members = "principal: " + strings.Join(z.PrincipalMembers, "; ") + " | " + members
			}
			if err := add(fk, "zone", name, members); err != nil {
				return err
			}
		}
		for _, name := range sortedKeys(fab.Cfgs) {
			if err := add(fk, "cfg", name, strings.Join(fab.Cfgs[name].Members, "; ")); err != nil {
				return err
			}
		}
		if fab.EffectiveCfg != "" {
			if err := add(fk, "effective", fab.EffectiveCfg, ""); err != nil {
				return err
			}
		}
		if fab.DefZone != "" {
			if err := add(fk, "defzone", fab.DefZone, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedSwitches(ch *model.Chassis) []*model.Switch {
	keys := make([]string, 0, len(ch.Switches))
	for k := range ch.Switches {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*model.Switch, 0, len(keys))
	for _, k := range keys {
		out = append(out, ch.Switches[k])
	}
	return out
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// restSwitchEntry 采集挂载的是整个响应体，交换机记录在 fibrechannel-switch 叶子里
func restSwitchEntry(sw *model.Switch) map[string]interface{} {
	body, ok := sw.Data["brocade-fibrechannel-switch/fibrechannel-switch"].(map[string]interface{})
	if !ok {
		return nil
	}
	list, ok := body["fibrechannel-switch"].([]interface{})
	if !ok || len(list) == 0 {
		return nil
	}
	entry, _ := list[0].(map[string]interface{})
	return entry
}

// switchName switchshow 的 switchName 字段优先，REST 次之
func switchName(sw *model.Switch) string {
	if info, ok := sw.Data["switchshow"].(map[string]interface{}); ok {
		if v, ok := info["switchName"].(string); ok && v != "" {
			return v
		}
	}
	if entry := restSwitchEntry(sw); entry != nil {
		if v, ok := entry["user-friendly-name"].(string); ok {
			return v
		}
	}
	return ""
}

func switchString(sw *model.Switch, key string) string {
	if v, ok := sw.Data[key].(string); ok && v != "" {
		return v
	}
	if entry := restSwitchEntry(sw); entry != nil {
		v, _ := entry[key].(string)
		return v
	}
	return ""
}

// switchSheetName 表名按 FID 区分，避开 Excel 表名长度与字符限制
func switchSheetName(sw *model.Switch) string {
	name := switchName(sw)
	if name == "" {
		name = strings.ReplaceAll(sw.WWN, ":", "")
	}
	sheet := fmt.Sprintf("fid%d_%s", sw.FID, name)
	sheet = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '?', '*', '[', ']', ':':
			return '_'
		}
		return r
	}, sheet)
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	return sheet
}
