package supportshow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanscope/sanscope/internal/model"
)

const sampleDump = `
Fabric OS:
v9.1.1b

CURRENT CONTEXT -- 128 , 0

switchshow:
switchName:     sw01
switchType:     162.0
switchState:    Online
switchRole:     Principal
switchDomain:   1
switchWwn:      10:00:00:05:1e:34:01:bd
zoning:         ON (PROD_CFG)
Index Port Address Media Speed State     Proto
==============================================
   0   0   010000   id    N32   Online    FC  F-Port  10:00:00:90:fa:c7:e9:3a
   1   1   010100   id    N32   No_Light  FC

fabricshow:
Switch ID   Worldwide Name           Enet IP Addr    FC IP Addr      Name
-------------------------------------------------------------------------
  1: fffc01 10:00:00:05:1e:34:01:bd 10.10.10.1     0.0.0.0        >"sw01"
  2: fffc02 10:00:00:05:1e:34:02:ce 10.10.10.2     0.0.0.0        "sw02"

chassisshow:
FAN  Unit: 1
Power Consume Factor: -40
Time Awake:   45 days

POWER SUPPLY  Unit: 1
Fru Status: OK

Chassis Factory Serial Num: AFX2533G00S

cfgshow:
Defined configuration:
 cfg:   PROD_CFG        z_srv01; z_srv02
 zone:  z_srv01 ali_srv01; ali_stor01
 zone:  z_srv02 ali_srv02;
                ali_stor01
 alias: ali_srv01       10:00:00:90:fa:c7:e9:3a
 alias: ali_stor01      20:00:00:11:0d:51:00:01

Effective configuration:
 cfg:   PROD_CFG
 zone:  z_srv01 10:00:00:90:fa:c7:e9:3a

defzone --show
Default Zone Access Mode
committed - No Access
transaction - No Transaction

nsshow:
{
 Type Pid    COS     PortName                NodeName                 TTL(sec)
 N    010000;      3;10:00:00:90:fa:c7:e9:3a;20:00:00:90:fa:c7:e9:3a; na
    FC4s: FCP
    PortSymb: [27] "srv01 hba0"
The Local Name Server has 1 entry

portstats64show 0:
stat64_wtx             1234567  4-byte words transmitted
stat64_wrx             7654321  4-byte words received
er_bad_os              12  Invalid ordered set
tim_txcrd_z            42  Time TX Credit Zero

sfpshow -all:
=====================
Port  0:
=====================
Identifier:  3    SFP
Temperature: 45   Centigrade
RX Power:    -3.1 dBm

clihistory:
admin, Mon Mar  3 10:00:00 2025, switchshow
admin, Mon Mar  3 10:00:05 2025, reboot

portname:
port 0: srv01_hba0
port 1: spare
`

func parseSample(t *testing.T) *model.Project {
	t.Helper()
	proj := model.NewProject("ss_test", "")
	require.NoError(t, Parse(strings.NewReader(sampleDump), "dump01", proj))
	return proj
}

func TestParseSwitchAndPorts(t *testing.T) {
	proj := parseSample(t)
	chassis := proj.Chassis["dump01"]
	require.NotNil(t, chassis)

	// switchWwn 行把占位键替换为真实 WWN
	sw, ok := chassis.Switches["10:00:00:05:1e:34:01:bd"]
	require.True(t, ok)
	assert.Equal(t, 128, sw.FID)

	info := sw.Data["switchshow"].(map[string]interface{})
	assert.Equal(t, "sw01", info["switchName"])
	assert.Equal(t, "Online", info["switchState"])

	// 固定端口交换机补 0/ 前缀
	require.Contains(t, sw.Ports, "0/0")
	entry := sw.Ports["0/0"].Data["switchshow"].(map[string]interface{})
	assert.Equal(t, "Online", entry["state"])
	assert.Equal(t, "No_Light", sw.Ports["0/1"].Data["switchshow"].(map[string]interface{})["state"])

	// Fabric OS: 紧随行是固件版本
	assert.Equal(t, "v9.1.1b", sw.Data["firmware-version"])
}

func TestParseZoning(t *testing.T) {
	proj := parseSample(t)
	fabric := proj.Fabrics["10:00:00:05:1e:34:01:bd"]
	require.NotNil(t, fabric)

	assert.Equal(t, []string{"z_srv01", "z_srv02"}, fabric.Cfgs["PROD_CFG"].Members)
	assert.Equal(t, []string{"ali_srv01", "ali_stor01"}, fabric.Zones["z_srv01"].Members)
	// 续行成员并入上一个条目
	assert.Equal(t, []string{"ali_srv02", "ali_stor01"}, fabric.Zones["z_srv02"].Members)
	assert.Equal(t, []string{"10:00:00:90:fa:c7:e9:3a"}, fabric.Aliases["ali_srv01"].Members)
	assert.Equal(t, "PROD_CFG", fabric.EffectiveCfg)
	assert.Equal(t, model.DefZoneNoAccess, fabric.DefZone)
}

func TestParseFabricshow(t *testing.T) {
	proj := parseSample(t)
	sw := proj.Chassis["dump01"].Switches["10:00:00:05:1e:34:01:bd"]
	members := sw.Data["fabricshow"].([]interface{})
	require.Len(t, members, 2)

	first := members[0].(map[string]interface{})
	assert.Equal(t, true, first["principal"])
	assert.Equal(t, "sw01", first["name"])
	second := members[1].(map[string]interface{})
	assert.Equal(t, "sw02", second["name"])
	assert.Nil(t, second["principal"])
}

func TestParseNameServerAndStats(t *testing.T) {
	proj := parseSample(t)
	sw := proj.Chassis["dump01"].Switches["10:00:00:05:1e:34:01:bd"]

	entries := sw.Data["nsshow"].([]interface{})
	require.Len(t, entries, 1)
	dev := entries[0].(map[string]interface{})
	assert.Equal(t, "N", dev["type"])
	assert.Equal(t, "10:00:00:90:fa:c7:e9:3a", dev["port-name"])
	assert.Equal(t, "FCP", dev["FC4s"])

	stats := sw.Ports["0/0"].Data["portstats64show"].(map[string]interface{})
	assert.Equal(t, int64(1234567), stats["stat64_wtx"])
	assert.Equal(t, int64(42), stats["tim_txcrd_z"])

	sfp := sw.Ports["0/0"].Data["sfpshow"].(map[string]interface{})
	assert.Equal(t, "45   Centigrade", sfp["Temperature"])

	// clihistory 在跳过表里，不会污染端口名解析
	assert.Equal(t, "srv01_hba0", sw.Ports["0/0"].Data["portname"])
	assert.Equal(t, "spare", sw.Ports["0/1"].Data["portname"])
}

func TestParseChassisshow(t *testing.T) {
	proj := parseSample(t)
	data := proj.Chassis["dump01"].Data["chassisshow"].(map[string]interface{})
	units := data["units"].([]interface{})
	require.Len(t, units, 2)
	fan := units[0].(map[string]interface{})
	assert.Equal(t, "FAN", fan["unit-type"])
	assert.Equal(t, "-40", fan["Power Consume Factor"])
	info := data["info"].(map[string]interface{})
	assert.Equal(t, "AFX2533G00S", info["Chassis Factory Serial Num"])
}

func TestUTF16Decode(t *testing.T) {
	// UTF-16 LE 带 BOM 的终端日志
	src := "switchshow:\nswitchWwn: 10:00:00:00:00:00:00:02\n"
	buf := []byte{0xFF, 0xFE}
	for _, r := range src {
		buf = append(buf, byte(r), 0)
	}
	lines, err := readLines(buf)
	require.NoError(t, err)
	assert.Contains(t, lines, "switchshow:")
}

func TestPickDumpFile(t *testing.T) {
	dir := t.TempDir()
	// 两个 CP 的 SUPPORTSHOW_ALL，取较大的（主 CP）
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CP0_SUPPORTSHOW_ALL.txt"), []byte("short"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CP1_SUPPORTSHOW_ALL.txt"), []byte(strings.Repeat("x", 100)), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(strings.Repeat("y", 500)), 0644))

	file, ok := pickDumpFile(dir)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "CP1_SUPPORTSHOW_ALL.txt"), file)
}
