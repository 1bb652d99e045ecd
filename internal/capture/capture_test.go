package capture

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanscope/sanscope/internal/model"
	"github.com/sanscope/sanscope/pkg/rest"
)

// writeReplay 写一个回放响应文件，URI 中的斜杠替换为下划线
func writeReplay(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestCaptureFromReplay(t *testing.T) {
	dir := t.TempDir()
	writeReplay(t, dir, "running_brocade-chassis_chassis.json",
		`{"chassis":{"chassis-wwn":"10:00:00:00:00:00:00:aa","vendor-serial-number":"X99"}}`)
	writeReplay(t, dir, "running_brocade-fibrechannel-logical-switch_fibrechannel-logical-switch.json",
		`{"fibrechannel-logical-switch":[{"fabric-id":128,"switch-wwn":"10:00:00:00:00:00:00:01"}]}`)
	writeReplay(t, dir, "running_brocade-fibrechannel-switch_fibrechannel-switch_vf128.json",
		`{"fibrechannel-switch":[{"name":"10:00:00:00:00:00:00:01","user-friendly-name":"sw01","ip-address":{"ip-address":["10.44.7.21"]}}]}`)
	writeReplay(t, dir, "running_brocade-interface_fibrechannel_vf128.json",
		`{"fibrechannel":[{"name":"0/0","operational-status":2},{"name":"0/1","operational-status":3}]}`)

	cfg := rest.DefaultConfig()
	cfg.ReplayDir = dir
	session := rest.NewSession(cfg)
	require.NoError(t, session.Login(context.Background(), "10.44.7.21", "admin", "pw"))

	proj := model.NewProject("replay_test", "")
	capturer := New(session, nil, Options{
		KPIs: []string{
			"running/brocade-fibrechannel-switch/fibrechannel-switch",
			"running/brocade-interface/fibrechannel",
			"running/brocade-fdmi/hba",
		},
		MaskIP: true,
	})
	require.NoError(t, capturer.Run(context.Background(), proj))

	chassis, ok := proj.Chassis["10:00:00:00:00:00:00:aa"]
	require.True(t, ok)
	sw, ok := chassis.Switches["10:00:00:00:00:00:00:01"]
	require.True(t, ok)
	assert.Equal(t, 128, sw.FID)

	// 端口级对象按 name 挂到端口
	require.Contains(t, sw.Ports, "0/0")
	require.Contains(t, sw.Ports, "0/1")
	entry := sw.Ports["0/1"].Data["fibrechannel"].(map[string]interface{})
	assert.Equal(t, float64(3), entry["operational-status"])

	// 交换机级对象整体挂到交换机，地址已遮蔽
	swData := sw.Data["brocade-fibrechannel-switch/fibrechannel-switch"].(map[string]interface{})
	list := swData["fibrechannel-switch"].([]interface{})
	ipBlock := list[0].(map[string]interface{})["ip-address"].(map[string]interface{})
	addrs := ipBlock["ip-address"].([]interface{})
	assert.Equal(t, "xxx.xxx.xxx.21", addrs[0])

	// 无回放文件的 KPI 归一化为空列表，不中断采集
	fdmi := sw.Data["brocade-fdmi/hba"].(map[string]interface{})
	assert.Empty(t, fdmi["hba"])
}

func TestParseKPIList(t *testing.T) {
	input := strings.NewReader(`
# 健康检查清单
running/brocade-zone/defined-configuration
running/brocade-interface/fibrechannel   # 端口状态

fos_cli/portcfgshow
`)
	kpis, err := ParseKPIList(input)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"running/brocade-zone/defined-configuration",
		"running/brocade-interface/fibrechannel",
		"fos_cli/portcfgshow",
	}, kpis)
}

func TestDefaultKPIsContainCLICaptures(t *testing.T) {
	kpis := DefaultKPIs()
	assert.Contains(t, kpis, "fos_cli/portcfgshow")
	assert.Contains(t, kpis, "fos_cli/portbuffershow")
	assert.Contains(t, kpis, "running/brocade-zone/effective-configuration")
}

func TestMaskValueNestedKeys(t *testing.T) {
	v := map[string]interface{}{
		"ip-address": []interface{}{"192.168.1.5", "192.168.1.6"},
		"name":       "sw01",
		"nested": map[string]interface{}{
			"ip-static-gateway-list": "192.168.1.1",
		},
	}
	got := maskValue("root", v).(map[string]interface{})
	assert.Equal(t, []interface{}{"xxx.xxx.xxx.5", "xxx.xxx.xxx.6"}, got["ip-address"])
	assert.Equal(t, "sw01", got["name"])
	nested := got["nested"].(map[string]interface{})
	assert.Equal(t, "xxx.xxx.xxx.1", nested["ip-static-gateway-list"])
}
