package combine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanscope/sanscope/internal/model"
)

func writeCapture(t *testing.T, dir, name string, build func(*model.Project)) {
	t.Helper()
	p := model.NewProject(name, "")
	build(p)
	require.NoError(t, p.Save(filepath.Join(dir, name)))
}

func TestDirectory(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, "sw01.json", func(p *model.Project) {
		c := p.GetOrAddChassis("aa")
		s := c.GetOrAddSwitch("w1", 128)
		s.SetData("brocade-fibrechannel-switch/fibrechannel-switch", "first")
		s.GetOrAddPort("0/1").Data["fibrechannel"] = map[string]interface{}{"speed": float64(32)}
	})
	writeCapture(t, dir, "sw02.json", func(p *model.Project) {
		c := p.GetOrAddChassis("aa")
		s := c.GetOrAddSwitch("w1", 128)
		// 同键冲突，后写覆盖
		s.SetData("brocade-fibrechannel-switch/fibrechannel-switch", "second")
		c.GetOrAddSwitch("w2", 1)
		p.GetOrAddFabric("w1").GetOrAddZone("z1", model.ZoneTypeStandard).Members = []string{"a", "b"}
	})

	merged, err := Directory(dir, "")
	require.NoError(t, err)

	c := merged.Chassis["aa"]
	require.NotNil(t, c)
	assert.Len(t, c.Switches, 2)
	assert.Equal(t, "second", c.Switches["w1"].Data["brocade-fibrechannel-switch/fibrechannel-switch"])
	assert.Contains(t, c.Switches["w1"].Ports, "0/1")
	assert.Equal(t, []string{"a", "b"}, merged.Fabrics["w1"].Zones["z1"].Members)

	// 输出文件已写入
	loaded, err := model.Load(filepath.Join(dir, DefaultOutput))
	require.NoError(t, err)
	assert.Len(t, loaded.Chassis, 1)

	// 再跑一遍拒绝覆盖
	_, err = Directory(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to overwrite")
}

func TestDirectoryEmpty(t *testing.T) {
	_, err := Directory(t.TempDir(), "")
	assert.Error(t, err)
}
