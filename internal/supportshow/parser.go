package supportshow

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/sanscope/sanscope/internal/model"
	"github.com/sanscope/sanscope/pkg/logger"
)

// sectionHandler 消费一个命令段
// 从 lines[start] 开始解析，返回第一个未消费的行号
type sectionHandler func(p *parser, lines []string, start int, arg string) int

// handlers 命令段分发表
var handlers map[string]sectionHandler

// skipSections 只跳过不解析的命令段
var skipSections = map[string]bool{
	"clihistory": true,
	"errdump":    true,
}

func init() {
	// init 中赋值避免初始化循环（段解析器内部会再查表找段边界）
	handlers = map[string]sectionHandler{
		"switchshow":      parseSwitchshow,
		"fabricshow":      parseFabricshow,
		"chassisshow":     parseChassisshow,
		"cfgshow":         parseCfgshow,
		"defzone":         parseDefzone,
		"nsshow":          parseNsshow,
		"portstats64show": parsePortstats64show,
		"sfpshow":         parseSfpshow,
		"portcfgshow":     parsePortcfgshow,
		"portname":        parsePortname,
		"slotshow":        parseSlotshow,
	}
}

// parser 解析状态
type parser struct {
	proj     *model.Project
	chassis  *model.Chassis
	fid      int
	vf       bool
	firmware string
}

// Parse 解析一份 supportshow 转储并挂到工程对象树
// name 用作机箱键（转储中不含机箱 WWN）
func Parse(r io.Reader, name string, proj *model.Project) error {
	lines, err := readerLines(r)
	if err != nil {
		return err
	}
	return parseLines(lines, name, proj)
}

// ParseFile 解析单个转储文件
func ParseFile(path string, proj *model.Project) error {
	lines, err := readFileLines(path)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return parseLines(lines, name, proj)
}

func parseLines(lines []string, name string, proj *model.Project) error {
	p := &parser{
		proj:    proj,
		chassis: proj.GetOrAddChassis(name),
	}

	i := 0
	for i < len(lines) {
		line := lines[i]

		// CURRENT CONTEXT -- 128 , 0 切换工作 FID
		if fid, ok := parseContext(line); ok {
			p.fid = fid
			i++
			continue
		}
		// VF 模式探测
		if t := strings.TrimSpace(line); t == "VF" || strings.HasPrefix(t, "VF:") {
			p.vf = true
			p.chassis.SetData("vf-enabled", true)
			i++
			continue
		} else if t == "Non-VF" {
			p.vf = false
			p.chassis.SetData("vf-enabled", false)
			i++
			continue
		}
		// Fabric OS: 的紧随行是固件版本
		if strings.TrimSpace(line) == "Fabric OS:" {
			i++
			for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
				i++
			}
			if i < len(lines) {
				p.setFirmware(strings.TrimSpace(lines[i]))
				i++
			}
			continue
		}

		kw, arg := sectionMarker(line)
		if kw == "" {
			i++
			continue
		}
		if skipSections[kw] {
			i = skipToNextSection(lines, i+1)
			continue
		}
		if handler, ok := handlers[kw]; ok {
			next := handler(p, lines, i+1, arg)
			if next <= i {
				// 解析器没有前进，强制跳段避免死循环
				logger.Warnf("section %s did not advance at line %d, skipping", kw, i)
				next = skipToNextSection(lines, i+1)
			}
			i = next
			continue
		}
		i++
	}

	if len(p.chassis.Switches) == 0 {
		return fmt.Errorf("no switch sections recognized in %s", name)
	}
	return nil
}

// setFirmware 记录固件版本并同步到已发现的交换机
func (p *parser) setFirmware(version string) {
	p.firmware = version
	p.chassis.SetData("firmware-version", version)
	for _, sw := range p.chassis.Switches {
		sw.SetData("firmware-version", version)
	}
}

// curSwitch 当前 FID 的交换机，未发现 WWN 前用占位键
func (p *parser) curSwitch() *model.Switch {
	if sw := p.chassis.SwitchByFID(p.fid); sw != nil {
		return sw
	}
	sw := p.chassis.GetOrAddSwitch(fmt.Sprintf("fid-%d", p.fid), p.fid)
	if p.firmware != "" {
		sw.SetData("firmware-version", p.firmware)
	}
	return sw
}

// renameSwitch switchshow 给出真实 WWN 后替换占位键
func (p *parser) renameSwitch(sw *model.Switch, wwn string) *model.Switch {
	if sw.WWN == wwn || wwn == "" {
		return sw
	}
	delete(p.chassis.Switches, sw.WWN)
	sw.WWN = wwn
	p.chassis.Switches[wwn] = sw
	return sw
}

// parseContext CURRENT CONTEXT 行取 FID
func parseContext(line string) (int, bool) {
	t := strings.TrimSpace(line)
	if !strings.HasPrefix(t, "CURRENT CONTEXT") {
		return 0, false
	}
	rest := strings.TrimPrefix(t, "CURRENT CONTEXT")
	rest = strings.TrimLeft(rest, " -")
	fields := strings.FieldsFunc(rest, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return 0, false
	}
	var fid int
	if _, err := fmt.Sscanf(fields[0], "%d", &fid); err != nil {
		return 0, false
	}
	return fid, true
}

// sectionMarker 识别命令段标记
// 接受裸命令行（可带参数与尾部冒号）以及 supportDecode 的 /fabos/... 全路径形式
func sectionMarker(line string) (keyword, arg string) {
	t := strings.TrimSpace(line)
	t = strings.TrimSuffix(t, ":")
	t = strings.TrimSpace(t)
	if t == "" {
		return "", ""
	}
	fields := strings.Fields(t)
	head := fields[0]
	if strings.HasPrefix(head, "/fabos/") {
		head = path.Base(head)
	}
	head = strings.ToLower(head)
	if !skipSections[head] {
		if _, ok := handlers[head]; !ok {
			return "", ""
		}
	}
	// 命令参数只认简单形式，如 sfpshow -all、portstats64show 5
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}
	return head, arg
}

// skipToNextSection 快进到下一个命令段标记
func skipToNextSection(lines []string, start int) int {
	for i := start; i < len(lines); i++ {
		if kw, _ := sectionMarker(lines[i]); kw != "" {
			return i
		}
		if _, ok := parseContext(lines[i]); ok {
			return i
		}
	}
	return len(lines)
}
