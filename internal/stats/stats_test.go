package stats

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func portEntry(name string, kv map[string]interface{}) map[string]interface{} {
	entry := map[string]interface{}{"name": name}
	for k, v := range kv {
		entry[k] = v
	}
	return entry
}

func TestDiffPorts(t *testing.T) {
	old := []interface{}{
		portEntry("0/0", map[string]interface{}{
			"in-frames":         float64(1000),
			"out-frames":        float64(500),
			"time-generated":    float64(1700000000),
			"sampling-interval": float64(2),
			"in-rate":           float64(800),
		}),
	}
	cur := []interface{}{
		portEntry("0/0", map[string]interface{}{
			"in-frames":         float64(1500),
			"out-frames":        float64(700),
			"time-generated":    float64(1700000010),
			"sampling-interval": float64(2),
			"in-rate":           float64(900),
		}),
		portEntry("0/1", map[string]interface{}{
			"in-frames": float64(42),
		}),
	}

	out := DiffPorts(old, cur)
	require.Len(t, out, 2)

	first := out[0].(map[string]interface{})
	// 计数器差分
	assert.Equal(t, float64(500), first["in-frames"])
	assert.Equal(t, float64(200), first["out-frames"])
	// 元数据与速率键透传
	assert.Equal(t, float64(1700000010), first["time-generated"])
	assert.Equal(t, float64(2), first["sampling-interval"])
	assert.Equal(t, float64(900), first["in-rate"])

	// 上一轮没出现过的端口整体透传
	second := out[1].(map[string]interface{})
	assert.Equal(t, float64(42), second["in-frames"])
}

func TestDiffNestedMaps(t *testing.T) {
	old := []interface{}{portEntry("0/0", map[string]interface{}{
		"class-3-frames": map[string]interface{}{"rx": float64(10), "tx": float64(20)},
	})}
	cur := []interface{}{portEntry("0/0", map[string]interface{}{
		"class-3-frames": map[string]interface{}{"rx": float64(15), "tx": float64(30)},
	})}

	out := DiffPorts(old, cur)
	nested := out[0].(map[string]interface{})["class-3-frames"].(map[string]interface{})
	assert.Equal(t, float64(5), nested["rx"])
	assert.Equal(t, float64(10), nested["tx"])
}

func TestCollectionSamplesAndDump(t *testing.T) {
	c := NewCollection("10:00:00:00:00:00:00:01")
	c.AddSample(
		[]interface{}{portEntry("0/0", map[string]interface{}{"in-frames": float64(5)})},
		[]interface{}{portEntry("0/0", map[string]interface{}{"operational-status": float64(2)})},
	)
	c.AddSample(
		[]interface{}{portEntry("0/0", map[string]interface{}{"in-frames": float64(9)})},
		nil,
	)

	// 合成交换机按采样序号命名
	assert.Equal(t, []string{
		"10:00:00:00:00:00:00:01-0",
		"10:00:00:00:00:00:00:01-1",
	}, c.SwitchList)

	sw := c.Switches["10:00:00:00:00:00:00:01-0"]
	require.NotNil(t, sw)
	stats := sw.Ports["0/0"].Data["fibrechannel-statistics"].(map[string]interface{})
	assert.Equal(t, float64(5), stats["in-frames"])
	state := sw.Ports["0/0"].Data["fibrechannel"].(map[string]interface{})
	assert.Equal(t, float64(2), state["operational-status"])

	path := filepath.Join(t.TempDir(), "stats")
	require.NoError(t, c.Save(path))
	got, err := LoadCollection(path + ".json")
	require.NoError(t, err)
	assert.Equal(t, c.BaseSwitchWWN, got.BaseSwitchWWN)
	assert.Equal(t, c.SwitchList, got.SwitchList)
}

func TestPollerMinInterval(t *testing.T) {
	p := NewPoller(nil, 128, 500*time.Millisecond, 0)
	assert.Equal(t, MinInterval, p.interval)
	assert.Equal(t, 1, p.maxSamples)
}

func TestWriteReport(t *testing.T) {
	c := NewCollection("wwn1")
	c.AddSample([]interface{}{
		portEntry("0/0", map[string]interface{}{"in-frames": float64(100), "time-generated": float64(1)}),
	}, nil)
	c.AddSample([]interface{}{
		portEntry("0/0", map[string]interface{}{"in-frames": float64(300), "time-generated": float64(2)}),
	}, nil)

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteReport(c, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	// 端口明细表：两轮样本
	v, err := f.GetCellValue("port_0_0", "B2")
	require.NoError(t, err)
	assert.Equal(t, "100", v)
	v, err = f.GetCellValue("port_0_0", "B3")
	require.NoError(t, err)
	assert.Equal(t, "300", v)

	// 汇总表：累计与峰值
	rows, err := f.GetRows("summary")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)
	assert.Equal(t, []string{"port", "counter", "total", "peak"}, rows[0])
	assert.Equal(t, []string{"0/0", "in-frames", "400", "300"}, rows[1])
}
