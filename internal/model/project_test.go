package model

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectSaveLoad(t *testing.T) {
	p := NewProject("lab_capture", "unit test")
	c := p.GetOrAddChassis("10:00:00:00:00:00:00:aa")
	c.SetData("brocade-chassis/chassis", map[string]interface{}{"vendor-serial-number": "X123"})

	s := c.GetOrAddSwitch("10:00:00:00:00:00:00:01", 128)
	s.SetData("brocade-fibrechannel-switch/fibrechannel-switch", map[string]interface{}{"name": "sw01"})
	port := s.GetOrAddPort("0/4")
	port.Data["fibrechannel"] = map[string]interface{}{"operational-status": float64(2)}

	f := p.GetOrAddFabric("10:00:00:00:00:00:00:01")
	f.GetOrAddAlias("srv01").Members = []string{"10:00:00:00:c9:00:00:01"}
	z := f.GetOrAddZone("z_srv01", ZoneTypeStandard)
	z.Members = []string{"srv01", "stor01"}

	// 无扩展名自动补 .json
	path := filepath.Join(t.TempDir(), "dump")
	require.NoError(t, p.Save(path))

	got, err := Load(path + ".json")
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)

	gc, ok := got.Chassis["10:00:00:00:00:00:00:aa"]
	require.True(t, ok)
	gs, ok := gc.Switches["10:00:00:00:00:00:00:01"]
	require.True(t, ok)
	assert.Equal(t, 128, gs.FID)
	require.Contains(t, gs.Ports, "0/4")

	gf, ok := got.Fabrics["10:00:00:00:00:00:00:01"]
	require.True(t, ok)
	assert.Equal(t, []string{"srv01", "stor01"}, gf.Zones["z_srv01"].Members)
}

func TestPortKeysOrder(t *testing.T) {
	s := &Switch{Ports: map[string]*Port{}}
	for _, name := range []string{"1/10", "0/2", "0/10", "1/2", "0/1"} {
		s.GetOrAddPort(name)
	}
	// slot/port 按数值排序，不是字典序
	assert.Equal(t, []string{"0/1", "0/2", "0/10", "1/2", "1/10"}, s.PortKeys())
}

func TestSwitchLookup(t *testing.T) {
	p := NewProject("x", "")
	c := p.GetOrAddChassis("aa")
	c.GetOrAddSwitch("w1", 1)
	c.GetOrAddSwitch("w2", 128)

	assert.NotNil(t, p.SwitchByWWN("w2"))
	assert.Nil(t, p.SwitchByWWN("missing"))
	assert.Equal(t, "w1", c.SwitchByFID(1).WWN)
	assert.Nil(t, c.SwitchByFID(99))
}

func TestTaskDone(t *testing.T) {
	task := &CaptureTask{Status: TaskStatusRunning}
	assert.False(t, task.Done())
	task.Status = TaskStatusFailed
	assert.True(t, task.Done())
}
