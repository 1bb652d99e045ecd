package stats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sanscope/sanscope/pkg/logger"
)

// WriteReport 统计采样 Excel 报表
// summary 表给出每端口每计数器的累计与峰值，每个端口一张明细表
func WriteReport(c *Collection, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	ports, counters := collectKeys(c)
	if len(ports) == 0 {
		return fmt.Errorf("no port samples to report")
	}

	if err := f.SetSheetName("Sheet1", "summary"); err != nil {
		return err
	}
	if err := writeSummary(f, c, ports, counters); err != nil {
		return err
	}
	for _, port := range ports {
		if err := writePortSheet(f, c, port, counters[port]); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	logger.Infof("statistics report written to %s", path)
	return nil
}

// collectKeys 端口与计数器名的并集
func collectKeys(c *Collection) ([]string, map[string][]string) {
	portSet := make(map[string]map[string]bool)
	for _, wwn := range c.SwitchList {
		sw, ok := c.Switches[wwn]
		if !ok {
			continue
		}
		for name, port := range sw.Ports {
			entry, ok := port.Data["fibrechannel-statistics"].(map[string]interface{})
			if !ok {
				continue
			}
			if portSet[name] == nil {
				portSet[name] = make(map[string]bool)
			}
			for counter, v := range entry {
				if _, isNum := v.(float64); isNum && counter != "sampling-interval" {
					portSet[name][counter] = true
				}
			}
		}
	}

	ports := make([]string, 0, len(portSet))
	counters := make(map[string][]string, len(portSet))
	for name, set := range portSet {
		ports = append(ports, name)
		cs := make([]string, 0, len(set))
		for counter := range set {
			cs = append(cs, counter)
		}
		sort.Strings(cs)
		counters[name] = cs
	}
	sort.Strings(ports)
	return ports, counters
}

// writeSummary 汇总表：端口、计数器、累计、峰值
func writeSummary(f *excelize.File, c *Collection, ports []string, counters map[string][]string) error {
	headers := []string{"port", "counter", "total", "peak"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue("summary", cell, h); err != nil {
			return err
		}
	}

	row := 2
	for _, port := range ports {
		for _, counter := range counters[port] {
			if counter == "time-generated" {
				continue
			}
			var total, peak float64
			for _, wwn := range c.SwitchList {
				sw, ok := c.Switches[wwn]
				if !ok {
					continue
				}
				p, ok := sw.Ports[port]
				if !ok {
					continue
				}
				entry, _ := p.Data["fibrechannel-statistics"].(map[string]interface{})
				if v, ok := entry[counter].(float64); ok {
					total += v
					if v > peak {
						peak = v
					}
				}
			}
			for col, v := range []interface{}{port, counter, total, peak} {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				if err := f.SetCellValue("summary", cell, v); err != nil {
					return err
				}
			}
			row++
		}
	}
	return nil
}

// writePortSheet 单端口明细：每行一轮样本
func writePortSheet(f *excelize.File, c *Collection, port string, counters []string) error {
	sheet := sheetName(port)
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := append([]string{"sample"}, counters...)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for idx, wwn := range c.SwitchList {
		sw, ok := c.Switches[wwn]
		if !ok {
			continue
		}
		p, ok := sw.Ports[port]
		if !ok {
			continue
		}
		entry, _ := p.Data["fibrechannel-statistics"].(map[string]interface{})
		row := idx + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellValue(sheet, cell, idx); err != nil {
			return err
		}
		for i, counter := range counters {
			v, ok := entry[counter].(float64)
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(i+2, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// sheetName 端口名转合法表名
func sheetName(port string) string {
	return "port_" + strings.ReplaceAll(port, "/", "_")
}
