package capture

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sanscope/sanscope/pkg/rest"
)

// CLIPrefix 走 SSH 而非 API 的 KPI 前缀
const CLIPrefix = "fos_cli/"

// DefaultKPIs 默认采集清单
// 覆盖健康检查报告所需的 zoning、名字服务、端口、FRU、MAPS 与安全配置
func DefaultKPIs() []string {
	return []string{
		"running/brocade-fibrechannel-logical-switch/fibrechannel-logical-switch",
		"running/brocade-fibrechannel-switch/fibrechannel-switch",
		"running/brocade-interface/fibrechannel",
		"running/brocade-interface/fibrechannel-statistics",
		"running/brocade-media/media-rdp",
		"running/brocade-fabric/fabric-switch",
		"running/brocade-fibrechannel-configuration/fabric",
		"running/brocade-fibrechannel-configuration/port-configuration",
		"running/brocade-fibrechannel-configuration/zone-configuration",
		"running/brocade-fibrechannel-configuration/switch-configuration",
		"running/brocade-fibrechannel-configuration/f-port-login-settings",
		"running/brocade-zone/defined-configuration",
		"running/brocade-zone/effective-configuration",
		"running/brocade-name-server/fibrechannel-name-server",
		"running/brocade-fdmi/hba",
		"running/brocade-fdmi/port",
		"running/brocade-fru/blade",
		"running/brocade-fru/fan",
		"running/brocade-fru/power-supply",
		"running/brocade-fru/sensor",
		"running/brocade-chassis/chassis",
		"running/brocade-chassis/ha-status",
		"running/brocade-maps/maps-policy",
		"running/brocade-maps/maps-config",
		"running/brocade-maps/group",
		"running/brocade-maps/rule",
		"running/brocade-maps/dashboard-rule",
		"running/brocade-maps/dashboard-misc",
		"running/brocade-maps/system-resources",
		"running/brocade-time/clock-server",
		"running/brocade-time/time-zone",
		"running/brocade-license/license",
		"running/brocade-security/user-config",
		CLIPrefix + "portcfgshow",
		CLIPrefix + "portbuffershow",
	}
}

// ParseKPIList 逐行读 KPI 清单，# 注释与空行忽略
func ParseKPIList(r io.Reader) ([]string, error) {
	var kpis []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		kpis = append(kpis, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read KPI list: %w", err)
	}
	return kpis, nil
}

// SelectKPIs 按采集参数确定清单
// spec 为空用默认清单，"*" 取交换机支持的全部可 GET 对象，否则按文件读取
func SelectKPIs(session *rest.Session, spec string) ([]string, error) {
	switch spec {
	case "":
		return DefaultKPIs(), nil
	case "*":
		var kpis []string
		for key, info := range session.URIMap() {
			gettable := false
			for _, m := range info.Methods {
				if m == "GET" {
					gettable = true
					break
				}
			}
			if gettable {
				kpis = append(kpis, "running/"+key)
			}
		}
		return kpis, nil
	default:
		f, err := os.Open(spec)
		if err != nil {
			return nil, fmt.Errorf("open KPI file: %w", err)
		}
		defer f.Close()
		return ParseKPIList(f)
	}
}
